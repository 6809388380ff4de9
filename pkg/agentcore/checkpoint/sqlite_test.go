package checkpoint_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/agentcore/agentcore/pkg/agentcore/checkpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_Persistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoints.db")

	store1, err := checkpoint.NewSQLiteStore(path)
	require.NoError(t, err)

	ts := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store1.Save(ctx, checkpoint.Snapshot{SessionID: "sess-1", Data: []byte(`[{"role":"user"}]`), Timestamp: ts}))
	require.NoError(t, store1.Close())

	store2, err := checkpoint.NewSQLiteStore(path)
	require.NoError(t, err)
	defer store2.Close()

	got, err := store2.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, []byte(`[{"role":"user"}]`), got.Data)
	assert.Equal(t, ts, got.Timestamp)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := checkpoint.NewSQLiteStore("/nonexistent-dir-xyz/checkpoints.db")
	assert.Error(t, err)
}

func TestSQLiteStore_CloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	store, err := checkpoint.NewSQLiteStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestSQLiteStore_NotFound(t *testing.T) {
	store, err := checkpoint.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestSQLiteStore_ClosedRejectsOperations(t *testing.T) {
	store, err := checkpoint.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	err = store.Save(context.Background(), checkpoint.Snapshot{SessionID: "sess-1"})
	assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)

	_, err = store.Load(context.Background(), "sess-1")
	assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
}

func TestSQLiteStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store, err := checkpoint.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	const numGoroutines = 20
	const numOps = 10

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			sessionID := "sess-" + string(rune('a'+id%26))
			for j := 0; j < numOps; j++ {
				switch j % 3 {
				case 0:
					_ = store.Save(ctx, checkpoint.Snapshot{SessionID: sessionID, Data: []byte("x")})
				case 1:
					_, _ = store.Load(ctx, sessionID)
				case 2:
					_ = store.Delete(ctx, sessionID)
				}
			}
		}(i)
	}
	wg.Wait()
}
