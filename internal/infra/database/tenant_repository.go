package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"community_content_bot/internal/domain/tenant"
)

type TenantRepository struct {
	db *DB
}

func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) ListTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tenant_id FROM tenant_configs ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("error listing tenants: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tenants: %w", err)
	}
	return ids, nil
}

func (r *TenantRepository) Get(ctx context.Context, tenantID string) (*tenant.ScheduleConfig, error) {
	cfg := &tenant.ScheduleConfig{TenantID: tenantID, Features: make(map[tenant.Feature]*tenant.FeatureSchedule)}
	query := r.db.rebind(`SELECT timezone, created_at, updated_at FROM tenant_configs WHERE tenant_id = ?`)
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(&cfg.Timezone, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, fmt.Errorf("error getting tenant config: %w", err)
	}

	query = r.db.rebind(`SELECT feature, enabled, channel_id, schedule_kind, at_time, weekday, interval_days, last_dispatched_at
	           FROM tenant_features WHERE tenant_id = ?`)
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("error querying tenant features: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			fs      tenant.FeatureSchedule
			atTime  string
			weekday int
		)
		if err := rows.Scan(&fs.Feature, &fs.Enabled, &fs.ChannelID, &fs.Schedule.Kind, &atTime,
			&weekday, &fs.Schedule.IntervalDays, &fs.Schedule.LastDispatchedAt); err != nil {
			return nil, fmt.Errorf("error scanning tenant feature row: %w", err)
		}
		at, err := tenant.ParseClockTime(atTime)
		if err != nil {
			return nil, fmt.Errorf("tenant %s feature %s: %w", tenantID, fs.Feature, err)
		}
		fs.Schedule.At = at
		fs.Schedule.Weekday = time.Weekday(weekday)
		cfg.Features[fs.Feature] = &fs
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tenant feature rows: %w", err)
	}
	return cfg, nil
}

func (r *TenantRepository) CreateIfMissing(ctx context.Context, cfg *tenant.ScheduleConfig) (bool, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	now := time.Now().UTC()
	res, err := txn.ExecContext(ctx, r.db.rebind(`INSERT INTO tenant_configs (tenant_id, timezone, created_at, updated_at)
	           VALUES (?, ?, ?, ?) ON CONFLICT (tenant_id) DO NOTHING`), cfg.TenantID, cfg.Timezone, now, now)
	if err != nil {
		return false, fmt.Errorf("error creating tenant config: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, fmt.Errorf("error creating tenant config: %w", err)
	} else if n == 0 {
		return false, nil
	}

	for _, fs := range cfg.Features {
		if err := r.saveFeature(ctx, txn, cfg.TenantID, fs, now); err != nil {
			return false, err
		}
	}
	if err := txn.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit tenant config: %w", err)
	}
	cfg.CreatedAt, cfg.UpdatedAt = now, now
	return true, nil
}

// SaveFeature upserts one feature's settings for an existing tenant.
func (r *TenantRepository) SaveFeature(ctx context.Context, tenantID string, fs *tenant.FeatureSchedule) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Rollback()

	if err := r.saveFeature(ctx, txn, tenantID, fs, time.Now().UTC()); err != nil {
		return err
	}
	return txn.Commit()
}

func (r *TenantRepository) saveFeature(ctx context.Context, txn *sql.Tx, tenantID string, fs *tenant.FeatureSchedule, now time.Time) error {
	if !fs.Feature.Valid() {
		return fmt.Errorf("unknown feature %q", fs.Feature)
	}
	if err := fs.Schedule.Validate(); err != nil {
		return fmt.Errorf("feature %s: %w", fs.Feature, err)
	}
	var last sql.NullTime
	if fs.Schedule.LastDispatchedAt.Valid {
		last = sql.NullTime{Time: fs.Schedule.LastDispatchedAt.Time.UTC(), Valid: true}
	}

	query := r.db.rebind(`INSERT INTO tenant_features
	           (tenant_id, feature, enabled, channel_id, schedule_kind, at_time, weekday, interval_days, last_dispatched_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	           ON CONFLICT (tenant_id, feature) DO UPDATE SET
	             enabled = excluded.enabled,
	             channel_id = excluded.channel_id,
	             schedule_kind = excluded.schedule_kind,
	             at_time = excluded.at_time,
	             weekday = excluded.weekday,
	             interval_days = excluded.interval_days,
	             last_dispatched_at = excluded.last_dispatched_at,
	             updated_at = excluded.updated_at`)
	_, err := txn.ExecContext(ctx, query, tenantID, fs.Feature, fs.Enabled, fs.ChannelID, fs.Schedule.Kind,
		fs.Schedule.At.String(), int(fs.Schedule.Weekday), fs.Schedule.IntervalDays, last, now)
	if err != nil {
		return fmt.Errorf("error saving feature %s for tenant %s: %w", fs.Feature, tenantID, err)
	}
	return nil
}

func (r *TenantRepository) UpdateLastDispatched(ctx context.Context, tenantID string, feature tenant.Feature, at time.Time) error {
	query := r.db.rebind(`UPDATE tenant_features SET last_dispatched_at = ?, updated_at = ?
	           WHERE tenant_id = ? AND feature = ?`)
	res, err := r.db.ExecContext(ctx, query, at.UTC(), time.Now().UTC(), tenantID, feature)
	if err != nil {
		return fmt.Errorf("error updating last dispatch time: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error updating last dispatch time: %w", err)
	}
	if n == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}
