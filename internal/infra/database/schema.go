package database

import (
	"context"
	"fmt"
)

// Timestamps are TIMESTAMPTZ on postgres and DATETIME on sqlite so the
// sqlite driver parses them back into time.Time.
func (db *DB) timestampType() string {
	if db.driver == DriverPostgres {
		return "TIMESTAMPTZ"
	}
	return "DATETIME"
}

func (db *DB) schema() []string {
	ts := db.timestampType()
	return []string{
		`CREATE TABLE IF NOT EXISTS tenant_configs (
			tenant_id  TEXT PRIMARY KEY,
			timezone   TEXT NOT NULL DEFAULT 'UTC',
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tenant_features (
			tenant_id          TEXT NOT NULL REFERENCES tenant_configs (tenant_id) ON DELETE CASCADE,
			feature            TEXT NOT NULL,
			enabled            BOOLEAN NOT NULL DEFAULT FALSE,
			channel_id         BIGINT,
			schedule_kind      TEXT NOT NULL,
			at_time            TEXT NOT NULL,
			weekday            INTEGER NOT NULL DEFAULT 0,
			interval_days      INTEGER NOT NULL DEFAULT 0,
			last_dispatched_at ` + ts + `,
			updated_at         ` + ts + ` NOT NULL,
			PRIMARY KEY (tenant_id, feature)
		)`,
		`CREATE TABLE IF NOT EXISTS content_items (
			id              TEXT PRIMARY KEY,
			tenant_id       TEXT NOT NULL,
			kind            TEXT NOT NULL,
			owner_user_id   BIGINT,
			recurring_month INTEGER,
			recurring_day   INTEGER,
			birth_year      INTEGER,
			title           TEXT NOT NULL DEFAULT '',
			body            TEXT NOT NULL DEFAULT '',
			fields          TEXT NOT NULL DEFAULT '{}',
			created_at      ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS content_items_tenant_kind_idx ON content_items (tenant_id, kind)`,
		`CREATE INDEX IF NOT EXISTS content_items_recurring_idx ON content_items (tenant_id, recurring_month, recurring_day)`,
		`CREATE TABLE IF NOT EXISTS delivery_log (
			id              TEXT PRIMARY KEY,
			tenant_id       TEXT NOT NULL,
			feature         TEXT NOT NULL,
			content_item_id TEXT NOT NULL,
			channel_id      BIGINT NOT NULL,
			dispatched_at   ` + ts + ` NOT NULL,
			period_key      TEXT NOT NULL,
			CONSTRAINT delivery_log_period_unique UNIQUE (tenant_id, feature, period_key)
		)`,
		`CREATE INDEX IF NOT EXISTS delivery_log_history_idx ON delivery_log (tenant_id, feature, dispatched_at)`,
	}
}

// Migrate creates any missing tables. It is safe to run on every start.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range db.schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
