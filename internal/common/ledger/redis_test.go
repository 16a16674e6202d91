package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisStore(t *testing.T, clock *fakeClock) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "idem", testOptions(clock)), mr
}

// ==========================
// Redis Backend
// ==========================

func TestRedisStore_Contract(t *testing.T) {
	ledgerContract(t, func(t *testing.T, clock *fakeClock) Ledger {
		store, _ := newMiniredisStore(t, clock)
		return store
	})
}

func TestRedisStore_TTLFollowsState(t *testing.T) {
	ctx := context.Background()
	store, mr := newMiniredisStore(t, newFakeClock())

	_, err := store.Begin(ctx, "default", "req:ttl")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, mr.TTL("idem:default:req:ttl"))

	require.NoError(t, store.Complete(ctx, "default", "req:ttl", []byte(`{}`)))
	assert.Equal(t, time.Hour, mr.TTL("idem:default:req:ttl"))
	assert.Equal(t, "completed", mr.HGet("idem:default:req:ttl", "state"))
}

func TestRedisStore_ExpiredKeyIsFresh(t *testing.T) {
	ctx := context.Background()
	store, mr := newMiniredisStore(t, newFakeClock())

	_, err := store.Begin(ctx, "default", "req:gone")
	require.NoError(t, err)

	mr.FastForward(31 * time.Second)

	res, err := store.Begin(ctx, "default", "req:gone")
	require.NoError(t, err)
	assert.True(t, res.Fresh)
}

func TestRedisStore_PurgeIsNoop(t *testing.T) {
	store, _ := newMiniredisStore(t, newFakeClock())
	n, err := store.Purge(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisStore_Ping(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "", Options{})

	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, store.Ping(context.Background()))

	mock.ExpectPing().SetErr(errors.New("connection refused"))
	err := store.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")

	assert.NoError(t, mock.ExpectationsWereMet())
}
