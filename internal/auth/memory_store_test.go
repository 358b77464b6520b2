// ABOUTME: Tests for the in-memory session store
// ABOUTME: Covers create/get/delete semantics, id uniqueness, and sweeping

package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0)
	store := NewMemoryStore(func() time.Time { return start })

	sess, err := store.Create(ctx, "user_1", "alice", "tok")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, start, sess.CreatedAt)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	got.Username = "mallory"
	again, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", again.Username, "stored record must not be mutable through a returned copy")
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	store := NewMemoryStore(nil)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStore_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)

	sess, err := store.Create(ctx, "user_1", "alice", "tok")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, sess.ID))
	require.NoError(t, store.Delete(ctx, sess.ID))
	require.NoError(t, store.Delete(ctx, "never-existed"))

	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStore_DistinctIDs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)

	var (
		mu  sync.Mutex
		ids = make(map[string]struct{})
		wg  sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := store.Create(ctx, "user_1", "alice", "tok")
			if err != nil {
				t.Errorf("Create() error = %v", err)
				return
			}
			mu.Lock()
			ids[sess.ID] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 50)
	assert.Equal(t, 50, store.Len())
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	clock, advance := fixedClock(time.Unix(1_700_000_000, 0))
	store := NewMemoryStore(clock)

	old, err := store.Create(ctx, "user_1", "alice", "tok")
	require.NoError(t, err)

	advance(30 * time.Minute)
	fresh, err := store.Create(ctx, "user_2", "bob", "tok")
	require.NoError(t, err)

	advance(31 * time.Minute)
	swept, err := store.Sweep(ctx, clock(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{old.ID}, swept)

	_, err = store.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestSession_ExpiredBoundary(t *testing.T) {
	created := time.Unix(1_700_000_000, 0)
	sess := &Session{CreatedAt: created}

	assert.False(t, sess.Expired(created.Add(time.Hour), time.Hour), "valid at exactly ttl")
	assert.True(t, sess.Expired(created.Add(time.Hour+time.Second), time.Hour))
}

func TestDeriveUserID(t *testing.T) {
	a := DeriveUserID("alice")
	assert.Equal(t, a, DeriveUserID("alice"))
	assert.NotEqual(t, a, DeriveUserID("bob"))
	assert.Regexp(t, `^user_[0-9a-f-]{36}$`, a)
}
