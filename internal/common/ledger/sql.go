package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"command-pipeline/internal/common/database"
	"command-pipeline/internal/models"
)

const (
	insertClaimSQL = `INSERT INTO idempotency_records
		(scope, idem_key, state, response_hash, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, '', ?, ?, ?)
		ON CONFLICT (scope, idem_key) DO NOTHING`

	reclaimSQL = `UPDATE idempotency_records
		SET state = ?, response_hash = '', response_payload = NULL, created_at = ?, updated_at = ?, expires_at = ?
		WHERE scope = ? AND idem_key = ? AND (state = ? OR expires_at < ?)`

	finalizeSQL = `UPDATE idempotency_records
		SET state = ?, response_hash = ?, response_payload = ?, updated_at = ?, expires_at = ?
		WHERE scope = ? AND idem_key = ? AND state = ?`

	selectRecordSQL = `SELECT scope, idem_key, state, response_hash, response_payload, created_at, updated_at, expires_at
		FROM idempotency_records
		WHERE scope = ? AND idem_key = ?`

	purgeSQL = `DELETE FROM idempotency_records WHERE expires_at < ?`
)

// claimAttempts bounds the insert/reclaim/read loop when a record is purged
// between steps.
const claimAttempts = 3

// SQLStore is the PostgreSQL/SQLite ledger backend.
type SQLStore struct {
	db   *database.SQLClient
	opts Options
}

func NewSQLStore(db *database.SQLClient, opts Options) *SQLStore {
	return &SQLStore{db: db, opts: opts.withDefaults()}
}

func (s *SQLStore) Begin(ctx context.Context, scope, key string) (BeginResult, error) {
	for attempt := 0; attempt < claimAttempts; attempt++ {
		now := s.opts.Now().UTC()
		nowMs := now.UnixMilli()
		leaseMs := now.Add(s.opts.InProgressTTL).UnixMilli()

		res, err := s.db.Exec(ctx, insertClaimSQL,
			scope, key, string(models.StateInProgress), nowMs, nowMs, leaseMs)
		if err != nil {
			return BeginResult{}, fmt.Errorf("ledger insert failed: %w", err)
		}
		if claimed(res) {
			return BeginResult{Fresh: true}, nil
		}

		res, err = s.db.Exec(ctx, reclaimSQL,
			string(models.StateInProgress), nowMs, nowMs, leaseMs,
			scope, key, string(models.StateFailed), nowMs)
		if err != nil {
			return BeginResult{}, fmt.Errorf("ledger reclaim failed: %w", err)
		}
		if claimed(res) {
			return BeginResult{Fresh: true}, nil
		}

		prev, err := s.Lookup(ctx, scope, key)
		if err != nil {
			return BeginResult{}, err
		}
		if prev != nil {
			return BeginResult{Previous: prev}, nil
		}
	}
	return BeginResult{}, fmt.Errorf("ledger claim for %s/%s did not settle", scope, key)
}

func (s *SQLStore) Complete(ctx context.Context, scope, key string, payload []byte) error {
	return s.finalize(ctx, scope, key, models.StateCompleted, payload)
}

func (s *SQLStore) Fail(ctx context.Context, scope, key string, payload []byte) error {
	return s.finalize(ctx, scope, key, models.StateFailed, payload)
}

func (s *SQLStore) finalize(ctx context.Context, scope, key string, state models.IdempotencyState, payload []byte) error {
	now := s.opts.Now().UTC()
	res, err := s.db.Exec(ctx, finalizeSQL,
		string(state), ResponseHash(payload), string(payload), now.UnixMilli(), now.Add(s.opts.Retention).UnixMilli(),
		scope, key, string(models.StateInProgress))
	if err != nil {
		return fmt.Errorf("ledger finalize failed: %w", err)
	}
	if claimed(res) {
		return nil
	}

	rec, err := s.Lookup(ctx, scope, key)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrRecordNotFound
	}
	return ErrAlreadyFinalized
}

func (s *SQLStore) Lookup(ctx context.Context, scope, key string) (*models.IdempotencyRecord, error) {
	var (
		rec                          models.IdempotencyRecord
		state                        string
		payload                      sql.NullString
		createdMs, updatedMs, expiry int64
	)
	err := s.db.QueryRow(ctx, selectRecordSQL, scope, key).
		Scan(&rec.Scope, &rec.Key, &state, &rec.ResponseHash, &payload, &createdMs, &updatedMs, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger lookup failed: %w", err)
	}

	rec.State = models.IdempotencyState(state)
	if payload.Valid && payload.String != "" {
		rec.ResponsePayload = []byte(payload.String)
	}
	rec.CreatedAt = time.UnixMilli(createdMs).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	rec.ExpiresAt = time.UnixMilli(expiry).UTC()
	return &rec, nil
}

// Purge deletes every record whose lease or retention ended before the cutoff.
func (s *SQLStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.Exec(ctx, purgeSQL, before.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("ledger purge failed: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func claimed(res sql.Result) bool {
	n, err := res.RowsAffected()
	return err == nil && n == 1
}
