package database

import (
	"context"
	"fmt"
)

// Ledger timestamps are unix milliseconds so range predicates compare the
// same way on both dialects.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS idempotency_records (
		scope            TEXT    NOT NULL,
		idem_key         TEXT    NOT NULL,
		state            TEXT    NOT NULL,
		response_hash    TEXT    NOT NULL DEFAULT '',
		response_payload TEXT,
		created_at       BIGINT  NOT NULL,
		updated_at       BIGINT  NOT NULL,
		expires_at       BIGINT  NOT NULL,
		PRIMARY KEY (scope, idem_key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_idempotency_expires ON idempotency_records (expires_at)`,
	`CREATE TABLE IF NOT EXISTS audit_records (
		id                       TEXT PRIMARY KEY,
		request_id               TEXT NOT NULL,
		channel                  TEXT NOT NULL,
		actor                    TEXT NOT NULL,
		intent                   TEXT NOT NULL,
		brain                    TEXT NOT NULL,
		command_snapshot         TEXT,
		external_result_snapshot TEXT,
		status                   TEXT NOT NULL,
		error_message            TEXT NOT NULL DEFAULT '',
		created_at               BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_request ON audit_records (request_id)`,
}

// Migrate creates the ledger and audit tables. It is safe to run repeatedly.
func (c *SQLClient) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
