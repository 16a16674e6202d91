package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"command-pipeline/internal/common/database"
	"command-pipeline/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testOptions(clock *fakeClock) Options {
	return Options{
		Retention:     time.Hour,
		InProgressTTL: 30 * time.Second,
		Now:           clock.Now,
	}
}

func newSQLiteStore(t *testing.T, clock *fakeClock) *SQLStore {
	t.Helper()
	client, err := database.NewSQLiteMemory()
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Migrate(context.Background()))
	return NewSQLStore(client, testOptions(clock))
}

// ledgerContract runs the same behavioural checks against any backend.
func ledgerContract(t *testing.T, newStore func(t *testing.T, clock *fakeClock) Ledger) {
	ctx := context.Background()

	t.Run("fresh then replay", func(t *testing.T) {
		store := newStore(t, newFakeClock())

		res, err := store.Begin(ctx, "default", "req:1")
		require.NoError(t, err)
		assert.True(t, res.Fresh)

		payload := []byte(`{"message":"booked","action":"completed"}`)
		require.NoError(t, store.Complete(ctx, "default", "req:1", payload))

		res, err = store.Begin(ctx, "default", "req:1")
		require.NoError(t, err)
		assert.False(t, res.Fresh)
		require.NotNil(t, res.Previous)
		assert.Equal(t, models.StateCompleted, res.Previous.State)
		assert.JSONEq(t, string(payload), string(res.Previous.ResponsePayload))
		assert.Equal(t, ResponseHash(payload), res.Previous.ResponseHash)
	})

	t.Run("second complete rejected", func(t *testing.T) {
		store := newStore(t, newFakeClock())

		_, err := store.Begin(ctx, "default", "req:2")
		require.NoError(t, err)
		require.NoError(t, store.Complete(ctx, "default", "req:2", []byte(`{"n":1}`)))

		err = store.Complete(ctx, "default", "req:2", []byte(`{"n":2}`))
		assert.ErrorIs(t, err, ErrAlreadyFinalized)

		rec, err := store.Lookup(ctx, "default", "req:2")
		require.NoError(t, err)
		assert.JSONEq(t, `{"n":1}`, string(rec.ResponsePayload))
	})

	t.Run("complete without claim", func(t *testing.T) {
		store := newStore(t, newFakeClock())
		assert.ErrorIs(t, store.Complete(ctx, "default", "never", []byte(`{}`)), ErrRecordNotFound)
	})

	t.Run("in progress blocks", func(t *testing.T) {
		store := newStore(t, newFakeClock())

		_, err := store.Begin(ctx, "default", "req:3")
		require.NoError(t, err)

		res, err := store.Begin(ctx, "default", "req:3")
		require.NoError(t, err)
		assert.False(t, res.Fresh)
		assert.Equal(t, models.StateInProgress, res.Previous.State)
	})

	t.Run("failed record is reclaimed", func(t *testing.T) {
		store := newStore(t, newFakeClock())

		_, err := store.Begin(ctx, "default", "req:4")
		require.NoError(t, err)
		require.NoError(t, store.Fail(ctx, "default", "req:4", []byte(`{"action":"error"}`)))

		res, err := store.Begin(ctx, "default", "req:4")
		require.NoError(t, err)
		assert.True(t, res.Fresh)
	})

	t.Run("expired lease is reclaimed", func(t *testing.T) {
		clock := newFakeClock()
		store := newStore(t, clock)

		_, err := store.Begin(ctx, "default", "req:5")
		require.NoError(t, err)

		clock.Advance(31 * time.Second)

		res, err := store.Begin(ctx, "default", "req:5")
		require.NoError(t, err)
		assert.True(t, res.Fresh)
	})

	t.Run("scopes are independent", func(t *testing.T) {
		store := newStore(t, newFakeClock())

		a, err := store.Begin(ctx, "tenant-a", "req:6")
		require.NoError(t, err)
		b, err := store.Begin(ctx, "tenant-b", "req:6")
		require.NoError(t, err)
		assert.True(t, a.Fresh)
		assert.True(t, b.Fresh)
	})

	t.Run("concurrent begin has one winner", func(t *testing.T) {
		store := newStore(t, newFakeClock())

		const callers = 16
		var (
			wg    sync.WaitGroup
			fresh int32
			start = make(chan struct{})
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				res, err := store.Begin(ctx, "default", "req:race")
				if assert.NoError(t, err) && res.Fresh {
					atomic.AddInt32(&fresh, 1)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), fresh)
	})
}

// ==========================
// SQLite Backend
// ==========================

func TestSQLStore_Contract(t *testing.T) {
	ledgerContract(t, func(t *testing.T, clock *fakeClock) Ledger {
		return newSQLiteStore(t, clock)
	})
}

func TestSQLStore_Purge(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newSQLiteStore(t, clock)

	_, err := store.Begin(ctx, "default", "old")
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "default", "old", []byte(`{}`)))

	clock.Advance(2 * time.Hour)
	_, err = store.Begin(ctx, "default", "new")
	require.NoError(t, err)

	n, err := store.Purge(ctx, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rec, err := store.Lookup(ctx, "default", "old")
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = store.Lookup(ctx, "default", "new")
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestSQLStore_Timestamps(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newSQLiteStore(t, clock)

	_, err := store.Begin(ctx, "default", "req:t")
	require.NoError(t, err)

	rec, err := store.Lookup(ctx, "default", "req:t")
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), rec.CreatedAt)
	assert.Equal(t, clock.Now().Add(30*time.Second), rec.ExpiresAt)

	clock.Advance(5 * time.Second)
	require.NoError(t, store.Complete(ctx, "default", "req:t", []byte(`{}`)))

	rec, err = store.Lookup(ctx, "default", "req:t")
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Hour), rec.ExpiresAt)
	assert.True(t, rec.Terminal())
}

// ==========================
// Key Derivation
// ==========================

func TestDeriveKey(t *testing.T) {
	tests := []struct {
		name      string
		req       models.CommandRequest
		wantScope string
		wantKey   string
		wantErr   bool
	}{
		{"request id", models.CommandRequest{RequestID: "r-1"}, DefaultScope, "req:r-1", false},
		{"call and tool call", models.CommandRequest{CallID: "c-9", ToolCallID: "t-2"}, DefaultScope, "call:c-9:t-2", false},
		{"explicit scope", models.CommandRequest{RequestID: "r-1", Scope: "tenant-a"}, "tenant-a", "req:r-1", false},
		{"call id alone", models.CommandRequest{CallID: "c-9", RawText: "my heater is out"}, "", "", true},
		{"nothing", models.CommandRequest{RawText: "my heater is out"}, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope, key, err := DeriveKey(tt.req)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMissingKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantScope, scope)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestResponseHash(t *testing.T) {
	a := ResponseHash([]byte(`{"a":1}`))
	assert.Len(t, a, 64)
	assert.Equal(t, a, ResponseHash([]byte(`{"a":1}`)))
	assert.NotEqual(t, a, ResponseHash([]byte(`{"a":2}`)))
}
