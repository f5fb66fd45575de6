package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// schema is written once for both dialects; {{serial}} and {{ts}} are the only differences.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS clients (
		id {{serial}},
		company_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		pool_volume NUMERIC(12,2)
	)`,
	`CREATE TABLE IF NOT EXISTS client_team_assignments (
		company_id BIGINT NOT NULL,
		client_id BIGINT NOT NULL REFERENCES clients(id),
		weekday TEXT NOT NULL,
		team_id BIGINT NOT NULL,
		PRIMARY KEY (client_id, weekday)
	)`,
	`CREATE TABLE IF NOT EXISTS parameter_definitions (
		id {{serial}},
		company_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		value_min NUMERIC(10,2),
		value_max NUMERIC(10,2),
		value_target NUMERIC(10,2),
		product_increase TEXT,
		product_decrease TEXT,
		dosage_increase NUMERIC(12,2),
		dosage_decrease NUMERIC(12,2),
		increment_increase NUMERIC(10,2),
		increment_decrease NUMERIC(10,2),
		reference_volume NUMERIC(12,2),
		alert_above NUMERIC(10,2),
		alert_topic TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		CONSTRAINT parameter_definitions_company_name_key UNIQUE (company_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS maintenance_records (
		id {{serial}},
		company_id BIGINT NOT NULL,
		client_id BIGINT NOT NULL REFERENCES clients(id),
		team_id BIGINT NOT NULL,
		weekday TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at {{ts}} NOT NULL,
		closed_at {{ts}}
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS maintenance_records_one_pending
		ON maintenance_records (client_id, weekday) WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS maintenance_records_company_status
		ON maintenance_records (company_id, status, client_id, weekday)`,
	`CREATE TABLE IF NOT EXISTS parameter_instances (
		id {{serial}},
		company_id BIGINT NOT NULL,
		maintenance_record_id BIGINT NOT NULL REFERENCES maintenance_records(id),
		parameter_name TEXT NOT NULL,
		last_value NUMERIC(10,2),
		current_value NUMERIC(10,2),
		applied_product TEXT,
		applied_quantity NUMERIC(12,2),
		status TEXT NOT NULL,
		reason_note TEXT,
		changed_by TEXT,
		updated_at {{ts}} NOT NULL,
		CONSTRAINT parameter_instances_record_name_key UNIQUE (maintenance_record_id, parameter_name)
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id {{serial}},
		company_id BIGINT NOT NULL,
		client_id BIGINT NOT NULL REFERENCES clients(id),
		topic TEXT NOT NULL,
		subject TEXT NOT NULL,
		message TEXT NOT NULL,
		status TEXT NOT NULL,
		assignee TEXT,
		attachments TEXT NOT NULL DEFAULT '[]',
		extra_service_value NUMERIC(12,2),
		created_at {{ts}} NOT NULL,
		resolved_at {{ts}}
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS notifications_one_open
		ON notifications (company_id, client_id, topic) WHERE status <> 'resolved'`,
}

// Migrate creates the tables and indexes the workflow relies on. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	serial, ts := "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ"
	if dialect == SQLite {
		serial, ts = "INTEGER PRIMARY KEY AUTOINCREMENT", "TIMESTAMP"
	}
	r := strings.NewReplacer("{{serial}}", serial, "{{ts}}", ts)
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}
