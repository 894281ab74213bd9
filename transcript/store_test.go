package transcript

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertions)
var (
	_ core.TranscriptStore = (*Store)(nil)
	_ Backend              = (*InMemoryBackend)(nil)
)

func newTestStore(t *testing.T) (*Store, *InMemoryBackend) {
	t.Helper()
	sealer, err := NewSealer(testSecret())
	require.NoError(t, err)
	backend := NewInMemoryBackend()
	return NewStore(sealer, backend), backend
}

func TestStore_AppendAndLoadInOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		require.NoError(t, store.Append(ctx, "u1", "s1", core.Interaction{
			Input: fmt.Sprintf("T%d", i), Response: fmt.Sprintf("R%d", i),
		}))
	}
	got, err := store.LoadSession(ctx, "u1", "s1")
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, in := range got {
		assert.Equal(t, fmt.Sprintf("T%d", i+1), in.Input)
		assert.Equal(t, fmt.Sprintf("R%d", i+1), in.Response)
	}

	none, err := store.LoadSession(ctx, "u1", "unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_BackendSeesOnlyCiphertext(t *testing.T) {
	store, backend := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "alice", "s1", core.Interaction{Input: "my password", Response: "noted"}))

	backend.mu.RLock()
	defer backend.mu.RUnlock()
	_, plainKey := backend.interactions["alice"]
	assert.False(t, plainKey, "user id must not be used as storage key")
	for _, sessions := range backend.interactions {
		for _, recs := range sessions {
			for _, rec := range recs {
				assert.NotContains(t, string(rec.Input), "my password")
				assert.NotContains(t, string(rec.Response), "noted")
			}
		}
	}
}

func TestStore_LatestSummaryAcrossSessions(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.ReadLatestSummary(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.WriteSummary(ctx, "u1", "s1", "first"))
	require.NoError(t, store.WriteSummary(ctx, "u1", "s2", "second"))
	require.NoError(t, store.WriteSummary(ctx, "u2", "s3", "other user"))

	summary, ok, err := store.ReadLatestSummary(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", summary)
}

type brokenBackend struct{ *InMemoryBackend }

func (brokenBackend) AppendInteraction(context.Context, string, string, SealedInteraction) error {
	return errors.New("connection refused")
}

func TestStore_FailuresAreStoreUnavailable(t *testing.T) {
	sealer, err := NewSealer(testSecret())
	require.NoError(t, err)
	ctx := context.Background()

	store := NewStore(sealer, brokenBackend{NewInMemoryBackend()})
	err = store.Append(ctx, "u1", "s1", core.Interaction{Input: "a", Response: "b"})
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)

	// Tampered ciphertext must fail rather than degrade.
	healthy, backend := newTestStore(t)
	require.NoError(t, healthy.Append(ctx, "u1", "s1", core.Interaction{Input: "a", Response: "b"}))
	backend.mu.Lock()
	for _, sessions := range backend.interactions {
		sessions["s1"][0].Response[len(sessions["s1"][0].Response)-1] ^= 0xFF
	}
	backend.mu.Unlock()
	_, err = healthy.LoadSession(ctx, "u1", "s1")
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
}

func TestStore_ConcurrentSessions(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for u := 0; u < 8; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", u)
			for i := 0; i < 10; i++ {
				if err := store.Append(ctx, user, "s", core.Interaction{Input: fmt.Sprint(i)}); err != nil {
					t.Errorf("append: %v", err)
				}
			}
		}(u)
	}
	wg.Wait()
	for u := 0; u < 8; u++ {
		got, err := store.LoadSession(ctx, fmt.Sprintf("u%d", u), "s")
		require.NoError(t, err)
		require.Len(t, got, 10)
		for i, in := range got {
			assert.Equal(t, fmt.Sprint(i), in.Input)
		}
	}
}
