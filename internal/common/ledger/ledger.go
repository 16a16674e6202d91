// Package ledger guarantees at-most-once execution per idempotency key.
//
// A caller claims a key with Begin. Exactly one concurrent caller observes a
// fresh claim; everyone else sees the record the winner left behind and
// either replays it or waits for it. Completed and Failed records are kept
// for the retention window, in-progress claims only for a short lease so a
// crashed worker cannot wedge a key forever.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"command-pipeline/internal/common/config"
	"command-pipeline/internal/common/database"
	"command-pipeline/internal/models"
)

// DefaultScope is used when a request does not name one.
const DefaultScope = "default"

const responseDomain = "command-pipeline/response/v1"

var (
	ErrAlreadyFinalized = errors.New("idempotency record already finalized")
	ErrRecordNotFound   = errors.New("idempotency record not found")
	ErrMissingKey       = errors.New("request carries no idempotency identifier")
)

// BeginResult reports the outcome of a claim. When Fresh is false Previous
// holds the record that blocked it.
type BeginResult struct {
	Fresh    bool
	Previous *models.IdempotencyRecord
}

type Ledger interface {
	Begin(ctx context.Context, scope, key string) (BeginResult, error)
	Complete(ctx context.Context, scope, key string, payload []byte) error
	Fail(ctx context.Context, scope, key string, payload []byte) error
	Lookup(ctx context.Context, scope, key string) (*models.IdempotencyRecord, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
	Ping(ctx context.Context) error
}

// Options controls record lifetimes. Now is injectable for tests.
type Options struct {
	Retention     time.Duration
	InProgressTTL time.Duration
	Now           func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Retention <= 0 {
		o.Retention = 72 * time.Hour
	}
	if o.InProgressTTL <= 0 {
		o.InProgressTTL = 2 * time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// OptionsFromConfig converts the millisecond config values.
func OptionsFromConfig(cfg config.LedgerConfig) Options {
	return Options{
		Retention:     config.GetDuration(cfg.Retention),
		InProgressTTL: config.GetDuration(cfg.InProgressTTL),
	}
}

// New builds the backend selected by cfg.Backend.
func New(cfg config.LedgerConfig, sqlClient *database.SQLClient, redisClient *database.RedisClient) (Ledger, error) {
	opts := OptionsFromConfig(cfg)
	switch cfg.Backend {
	case "sql", "":
		if sqlClient == nil {
			return nil, fmt.Errorf("ledger backend sql requires a database connection")
		}
		return NewSQLStore(sqlClient, opts), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("ledger backend redis requires a redis connection")
		}
		return NewRedisStore(redisClient.GetClient(), cfg.KeyPrefix, opts), nil
	}
	return nil, fmt.Errorf("unsupported ledger backend %q", cfg.Backend)
}

// DeriveKey returns the idempotency key for a request. Keys come from caller
// identifiers only: the request id, or the call id plus tool-call id.
func DeriveKey(req models.CommandRequest) (scope, key string, err error) {
	scope = req.Scope
	if scope == "" {
		scope = DefaultScope
	}
	switch {
	case req.RequestID != "":
		return scope, "req:" + req.RequestID, nil
	case req.CallID != "" && req.ToolCallID != "":
		return scope, "call:" + req.CallID + ":" + req.ToolCallID, nil
	}
	return "", "", ErrMissingKey
}

// ResponseHash is the domain-separated SHA-256 of a stored response payload.
func ResponseHash(payload []byte) string {
	h := sha256.New()
	h.Write([]byte(responseDomain))
	h.Write([]byte{0x00})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
