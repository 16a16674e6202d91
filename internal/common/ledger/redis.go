package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"command-pipeline/internal/models"
)

// beginScript claims KEYS[1] when it is absent, failed or past its expiry.
// ARGV: now_ms, expires_ms, ttl_ms.
var beginScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if state then
	local expires = tonumber(redis.call('HGET', KEYS[1], 'expires_at') or '0')
	if state ~= 'failed' and expires >= tonumber(ARGV[1]) then
		return 0
	end
	redis.call('DEL', KEYS[1])
end
redis.call('HSET', KEYS[1],
	'state', 'in_progress',
	'response_hash', '',
	'created_at', ARGV[1],
	'updated_at', ARGV[1],
	'expires_at', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// finalizeScript moves an in-progress record to a terminal state.
// ARGV: state, hash, payload, now_ms, expires_ms, ttl_ms.
var finalizeScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if not state then
	return -1
end
if state ~= 'in_progress' then
	return 0
end
redis.call('HSET', KEYS[1],
	'state', ARGV[1],
	'response_hash', ARGV[2],
	'response_payload', ARGV[3],
	'updated_at', ARGV[4],
	'expires_at', ARGV[5])
redis.call('PEXPIRE', KEYS[1], ARGV[6])
return 1
`)

// RedisStore keeps each record in a hash. Redis key expiry doubles as the
// retention window, so Purge has nothing to do.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	opts   Options
}

func NewRedisStore(client redis.UniversalClient, prefix string, opts Options) *RedisStore {
	if prefix == "" {
		prefix = "idem"
	}
	return &RedisStore{client: client, prefix: prefix, opts: opts.withDefaults()}
}

func (s *RedisStore) recordKey(scope, key string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, scope, key)
}

func (s *RedisStore) Begin(ctx context.Context, scope, key string) (BeginResult, error) {
	rk := s.recordKey(scope, key)
	for attempt := 0; attempt < claimAttempts; attempt++ {
		now := s.opts.Now().UTC()
		won, err := beginScript.Run(ctx, s.client, []string{rk},
			now.UnixMilli(),
			now.Add(s.opts.InProgressTTL).UnixMilli(),
			s.opts.InProgressTTL.Milliseconds(),
		).Int()
		if err != nil {
			return BeginResult{}, fmt.Errorf("ledger begin failed: %w", err)
		}
		if won == 1 {
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

func (s *RedisStore) Complete(ctx context.Context, scope, key string, payload []byte) error {
	return s.finalize(ctx, scope, key, models.StateCompleted, payload)
}

func (s *RedisStore) Fail(ctx context.Context, scope, key string, payload []byte) error {
	return s.finalize(ctx, scope, key, models.StateFailed, payload)
}

func (s *RedisStore) finalize(ctx context.Context, scope, key string, state models.IdempotencyState, payload []byte) error {
	now := s.opts.Now().UTC()
	res, err := finalizeScript.Run(ctx, s.client, []string{s.recordKey(scope, key)},
		string(state),
		ResponseHash(payload),
		string(payload),
		now.UnixMilli(),
		now.Add(s.opts.Retention).UnixMilli(),
		s.opts.Retention.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("ledger finalize failed: %w", err)
	}
	switch res {
	case 1:
		return nil
	case -1:
		return ErrRecordNotFound
	}
	return ErrAlreadyFinalized
}

func (s *RedisStore) Lookup(ctx context.Context, scope, key string) (*models.IdempotencyRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.recordKey(scope, key)).Result()
	if err != nil {
		return nil, fmt.Errorf("ledger lookup failed: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	rec := &models.IdempotencyRecord{
		Scope:        scope,
		Key:          key,
		State:        models.IdempotencyState(fields["state"]),
		ResponseHash: fields["response_hash"],
		CreatedAt:    millis(fields["created_at"]),
		UpdatedAt:    millis(fields["updated_at"]),
		ExpiresAt:    millis(fields["expires_at"]),
	}
	if p := fields["response_payload"]; p != "" {
		rec.ResponsePayload = []byte(p)
	}
	return rec, nil
}

func (s *RedisStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func millis(v string) time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
