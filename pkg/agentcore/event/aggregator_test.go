package event_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentcoreerrors "github.com/agentcore/agentcore/pkg/agentcore/errors"
	"github.com/agentcore/agentcore/pkg/agentcore/event"
)

func TestCorrelationAggregator_FiresOnCompleteOnceAllTypesSeen(t *testing.T) {
	var gotKey string
	var gotEvents []event.Event
	agg := event.NewCorrelationAggregator([]string{"a", "b"}, nil, func(ctx context.Context, key string, events []event.Event) ([]event.Event, error) {
		gotKey = key
		gotEvents = events
		return nil, nil
	})

	_, err := agg.Handle(context.Background(), event.New("a", "test", nil, event.WithCorrelationKey("corr-1")))
	require.NoError(t, err)
	assert.Empty(t, gotKey, "OnComplete must not fire until both types arrive")

	_, err = agg.Handle(context.Background(), event.New("b", "test", nil, event.WithCorrelationKey("corr-1")))
	require.NoError(t, err)
	assert.Equal(t, "corr-1", gotKey)
	assert.Len(t, gotEvents, 2)
}

func TestCorrelationAggregator_DuplicateTypesAreTolerated(t *testing.T) {
	fired := 0
	agg := event.NewCorrelationAggregator([]string{"a", "b"}, nil, func(ctx context.Context, key string, events []event.Event) ([]event.Event, error) {
		fired++
		return nil, nil
	})

	_, _ = agg.Handle(context.Background(), event.New("a", "test", nil, event.WithCorrelationKey("corr-1")))
	_, _ = agg.Handle(context.Background(), event.New("a", "test", nil, event.WithCorrelationKey("corr-1")))
	_, err := agg.Handle(context.Background(), event.New("b", "test", nil, event.WithCorrelationKey("corr-1")))
	require.NoError(t, err)

	assert.Equal(t, 1, fired)
}

func TestCorrelationAggregator_ResetsBufferAfterCompletion(t *testing.T) {
	store := event.NewMemoryStore()
	fired := 0
	agg := event.NewCorrelationAggregator([]string{"a"}, store, func(ctx context.Context, key string, events []event.Event) ([]event.Event, error) {
		fired++
		return nil, nil
	})

	_, err := agg.Handle(context.Background(), event.New("a", "test", nil, event.WithCorrelationKey("corr-1")))
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	buffered, err := store.Get(context.Background(), "corr-1")
	require.NoError(t, err)
	assert.Empty(t, buffered)
}

func TestCorrelationAggregator_WaitForEventsUnblocksOnCompletion(t *testing.T) {
	agg := event.NewCorrelationAggregator([]string{"a", "b"}, nil, nil)

	done := make(chan []event.Event, 1)
	go func() {
		events, err := agg.WaitForEvents(context.Background(), "corr-1", time.Second)
		require.NoError(t, err)
		done <- events
	}()

	require.Eventually(t, func() bool {
		_, err := agg.Handle(context.Background(), event.New("a", "test", nil, event.WithCorrelationKey("corr-1")))
		return err == nil
	}, time.Second, time.Millisecond)
	_, err := agg.Handle(context.Background(), event.New("b", "test", nil, event.WithCorrelationKey("corr-1")))
	require.NoError(t, err)

	select {
	case events := <-done:
		assert.Len(t, events, 2)
	case <-time.After(time.Second):
		t.Fatal("WaitForEvents did not unblock")
	}
}

func TestCorrelationAggregator_WaitForEventsTimesOutWithPartialBuffer(t *testing.T) {
	agg := event.NewCorrelationAggregator([]string{"a", "b"}, nil, nil)
	_, err := agg.Handle(context.Background(), event.New("a", "test", nil, event.WithCorrelationKey("corr-1")))
	require.NoError(t, err)

	partial, err := agg.WaitForEvents(context.Background(), "corr-1", 10*time.Millisecond)
	var timeoutErr *agentcoreerrors.AggregatorTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Len(t, partial, 1)
}

func TestCorrelationAggregator_WaitForEventsReturnsImmediatelyIfAlreadyComplete(t *testing.T) {
	store := event.NewMemoryStore()
	_, err := store.Append(context.Background(), "corr-1", event.New("a", "test", nil))
	require.NoError(t, err)

	agg := event.NewCorrelationAggregator([]string{"a"}, store, nil)

	events, err := agg.WaitForEvents(context.Background(), "corr-1", time.Millisecond)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestMemoryStore_AppendGetReset(t *testing.T) {
	store := event.NewMemoryStore()
	_, err := store.Append(context.Background(), "corr-1", event.New("a", "test", nil))
	require.NoError(t, err)
	_, err = store.Append(context.Background(), "corr-1", event.New("b", "test", nil))
	require.NoError(t, err)

	buffered, err := store.Get(context.Background(), "corr-1")
	require.NoError(t, err)
	assert.Len(t, buffered, 2)

	require.NoError(t, store.Reset(context.Background(), "corr-1"))
	buffered, err = store.Get(context.Background(), "corr-1")
	require.NoError(t, err)
	assert.Empty(t, buffered)
}
