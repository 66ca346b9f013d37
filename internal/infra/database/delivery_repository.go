package database

import (
	"context"
	"fmt"
	"time"

	"community_content_bot/internal/domain/delivery"
	"community_content_bot/internal/domain/tenant"
)

type DeliveryRepository struct {
	db *DB
}

func NewDeliveryRepository(db *DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// Append relies on delivery_log_period_unique: a second entry for the same
// period inserts nothing and is reported as delivery.ErrAlreadyClaimed.
func (r *DeliveryRepository) Append(ctx context.Context, e *delivery.Entry) error {
	query := r.db.rebind(`INSERT INTO delivery_log (id, tenant_id, feature, content_item_id, channel_id, dispatched_at, period_key)
	           VALUES (?, ?, ?, ?, ?, ?, ?)
	           ON CONFLICT (tenant_id, feature, period_key) DO NOTHING`)
	res, err := r.db.ExecContext(ctx, query, e.ID, e.TenantID, e.Feature, e.ContentItemID, e.ChannelID, e.DispatchedAt.UTC(), e.PeriodKey)
	if err != nil {
		return fmt.Errorf("error appending delivery log entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error appending delivery log entry: %w", err)
	}
	if n == 0 {
		return delivery.ErrAlreadyClaimed
	}
	return nil
}

func (r *DeliveryRepository) Exists(ctx context.Context, tenantID string, feature tenant.Feature, periodKey string) (bool, error) {
	query := r.db.rebind(`SELECT COUNT(*) FROM delivery_log WHERE tenant_id = ? AND feature = ? AND period_key = ?`)
	var count int
	if err := r.db.QueryRowContext(ctx, query, tenantID, feature, periodKey).Scan(&count); err != nil {
		return false, fmt.Errorf("error checking delivery log: %w", err)
	}
	return count > 0, nil
}

func (r *DeliveryRepository) EntriesFor(ctx context.Context, tenantID string, feature tenant.Feature, since time.Time) ([]*delivery.Entry, error) {
	query := `SELECT id, tenant_id, feature, content_item_id, channel_id, dispatched_at, period_key
	           FROM delivery_log WHERE tenant_id = ? AND feature = ?`
	args := []any{tenantID, feature}
	if !since.IsZero() {
		query += ` AND dispatched_at >= ?`
		args = append(args, since.UTC())
	}
	query += ` ORDER BY dispatched_at DESC`

	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("error querying delivery log: %w", err)
	}
	defer rows.Close()

	entries := make([]*delivery.Entry, 0)
	for rows.Next() {
		var e delivery.Entry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Feature, &e.ContentItemID, &e.ChannelID, &e.DispatchedAt, &e.PeriodKey); err != nil {
			return nil, fmt.Errorf("error scanning delivery log row: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery log rows: %w", err)
	}
	return entries, nil
}
