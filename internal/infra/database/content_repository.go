package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"community_content_bot/internal/domain/content"
)

type ContentRepository struct {
	db *DB
}

func NewContentRepository(db *DB) *ContentRepository {
	return &ContentRepository{db: db}
}

const contentColumns = `id, tenant_id, kind, owner_user_id, recurring_month, recurring_day, birth_year, title, body, fields, created_at`

// Create stores a new item. Content is normally managed outside the bot;
// this is used by imports and tests.
func (r *ContentRepository) Create(ctx context.Context, item *content.Item) error {
	var month, day sql.NullInt32
	if item.Recurring != nil {
		month = sql.NullInt32{Int32: int32(item.Recurring.Month), Valid: true}
		day = sql.NullInt32{Int32: int32(item.Recurring.Day), Valid: true}
	}
	fields := item.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	rawFields, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("error encoding content fields: %w", err)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	query := r.db.rebind(`INSERT INTO content_items (` + contentColumns + `)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.db.ExecContext(ctx, query, item.ID, item.TenantID, item.Kind, item.OwnerUserID, month, day,
		item.BirthYear, item.Title, item.Body, string(rawFields), item.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("error creating content item: %w", err)
	}
	return nil
}

func (r *ContentRepository) PoolFor(ctx context.Context, tenantID string, kind content.Kind) ([]*content.Item, error) {
	query := r.db.rebind(`SELECT ` + contentColumns + ` FROM content_items
	           WHERE tenant_id = ? AND kind = ? ORDER BY created_at, id`)
	rows, err := r.db.QueryContext(ctx, query, tenantID, kind)
	if err != nil {
		return nil, fmt.Errorf("error querying content pool: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (r *ContentRepository) RecurringMatch(ctx context.Context, tenantID string, md content.MonthDay) ([]*content.Item, error) {
	query := r.db.rebind(`SELECT ` + contentColumns + ` FROM content_items
	           WHERE tenant_id = ? AND kind = ? AND recurring_month = ? AND recurring_day = ?
	           ORDER BY created_at, id`)
	rows, err := r.db.QueryContext(ctx, query, tenantID, content.KindProfile, int(md.Month), md.Day)
	if err != nil {
		return nil, fmt.Errorf("error querying recurring matches: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// Helper to scan multiple rows
func scanItems(rows *sql.Rows) ([]*content.Item, error) {
	items := make([]*content.Item, 0)
	for rows.Next() {
		var (
			item       content.Item
			month, day sql.NullInt32
			rawFields  string
		)
		if err := rows.Scan(&item.ID, &item.TenantID, &item.Kind, &item.OwnerUserID, &month, &day,
			&item.BirthYear, &item.Title, &item.Body, &rawFields, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning content row: %w", err)
		}
		if month.Valid && day.Valid {
			item.Recurring = &content.MonthDay{Month: time.Month(month.Int32), Day: int(day.Int32)}
		}
		if rawFields != "" {
			if err := json.Unmarshal([]byte(rawFields), &item.Fields); err != nil {
				return nil, fmt.Errorf("error decoding fields of content item %s: %w", item.ID, err)
			}
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating content rows: %w", err)
	}
	return items, nil
}
