package event_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/pkg/agentcore/event"
)

func TestDispatcher_DeliversToResolvedHandler(t *testing.T) {
	router := event.NewRouter()
	var mu sync.Mutex
	var received []string
	router.Register(event.TypedHandler[string]([]string{"greeting"}, func(ctx context.Context, payload string, meta event.Metadata) ([]event.Event, error) {
		mu.Lock()
		received = append(received, payload)
		mu.Unlock()
		return nil, nil
	}))

	dispatcher := event.NewDispatcher(router, event.WithInterBatchWait(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	go dispatcher.Run(ctx)

	dispatcher.Submit(event.New("greeting", "test", "hello"))
	dispatcher.Submit(event.NewTerminate("test"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"hello"}, received)
	mu.Unlock()
	cancel()
}

func TestDispatcher_HandlerPanicDoesNotStopTheLoop(t *testing.T) {
	router := event.NewRouter()
	var mu sync.Mutex
	var secondDelivered bool

	router.Register(event.TypedHandler[string]([]string{"boom"}, func(ctx context.Context, payload string, meta event.Metadata) ([]event.Event, error) {
		panic("handler exploded")
	}))
	router.Register(event.TypedHandler[string]([]string{"fine"}, func(ctx context.Context, payload string, meta event.Metadata) ([]event.Event, error) {
		mu.Lock()
		secondDelivered = true
		mu.Unlock()
		return nil, nil
	}))

	dispatcher := event.NewDispatcher(router, event.WithInterBatchWait(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	dispatcher.Submit(event.New("boom", "test", "x"))
	dispatcher.Submit(event.New("fine", "test", "y"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return secondDelivered
	}, time.Second, time.Millisecond)
}

func TestDispatcher_DerivedEventsAreResubmitted(t *testing.T) {
	router := event.NewRouter()
	var mu sync.Mutex
	var chainReceived bool

	router.Register(event.TypedHandler[string]([]string{"first"}, func(ctx context.Context, payload string, meta event.Metadata) ([]event.Event, error) {
		return []event.Event{event.New("second", "test", "derived")}, nil
	}))
	router.Register(event.TypedHandler[string]([]string{"second"}, func(ctx context.Context, payload string, meta event.Metadata) ([]event.Event, error) {
		mu.Lock()
		chainReceived = true
		mu.Unlock()
		return nil, nil
	}))

	dispatcher := event.NewDispatcher(router, event.WithInterBatchWait(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	dispatcher.Submit(event.New("first", "test", "x"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return chainReceived
	}, time.Second, time.Millisecond)
}

func TestDispatcher_QueueLen(t *testing.T) {
	router := event.NewRouter()
	dispatcher := event.NewDispatcher(router, event.WithBatchSize(1))
	dispatcher.Submit(event.New("a", "test", nil))
	dispatcher.Submit(event.New("b", "test", nil))
	assert.Equal(t, 2, dispatcher.QueueLen())
}

func TestConcurrentDispatcher_WaitForEmpty(t *testing.T) {
	router := event.NewRouter()
	var count int
	var mu sync.Mutex
	router.Register(event.TypedHandler[string]([]string{"job"}, func(ctx context.Context, payload string, meta event.Metadata) ([]event.Event, error) {
		mu.Lock()
		count++
		mu.Unlock()
		return nil, nil
	}))

	dispatcher := event.NewConcurrentDispatcher(router)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	for i := 0; i < 10; i++ {
		dispatcher.Submit(event.New("job", "test", "x"))
	}

	require.True(t, dispatcher.WaitForEmpty(time.Second))
	mu.Lock()
	assert.Equal(t, 10, count)
	mu.Unlock()
}

func TestConcurrentDispatcher_DispatchSignalMarksProcessed(t *testing.T) {
	router := event.NewRouter()
	router.Register(event.TypedHandler[event.SignalPayload]([]string{event.SignalEventType}, func(ctx context.Context, payload event.SignalPayload, meta event.Metadata) ([]event.Event, error) {
		return nil, nil
	}))

	store := event.NewSignalMemoryStore()
	dispatcher := event.NewConcurrentDispatcher(router, event.WithSignalStore(store))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	sig := event.NewSignal("corr-1", map[string]any{"action": "cancel"})
	require.NoError(t, dispatcher.DispatchSignal(context.Background(), sig))

	require.Eventually(t, func() bool {
		got, err := store.Get(context.Background(), sig.ID)
		return err == nil && got.Status == event.SignalProcessed
	}, time.Second, time.Millisecond)
}

func TestConcurrentDispatcher_DispatchSignalMarksFailedOnHandlerError(t *testing.T) {
	router := event.NewRouter()
	router.Register(event.TypedHandler[event.SignalPayload]([]string{event.SignalEventType}, func(ctx context.Context, payload event.SignalPayload, meta event.Metadata) ([]event.Event, error) {
		return nil, errors.New("handler refused the signal")
	}))

	store := event.NewSignalMemoryStore()
	dispatcher := event.NewConcurrentDispatcher(router, event.WithSignalStore(store))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	sig := event.NewSignal("corr-2", nil)
	require.NoError(t, dispatcher.DispatchSignal(context.Background(), sig))

	require.Eventually(t, func() bool {
		got, err := store.Get(context.Background(), sig.ID)
		return err == nil && got.Status == event.SignalFailed
	}, time.Second, time.Millisecond)
}

func TestConcurrentDispatcher_DispatchSignalCorrelationKeyMatchesTarget(t *testing.T) {
	router := event.NewRouter()
	var gotCorrelationKey string
	router.Register(event.HandlerFunc(func(ctx context.Context, evt event.Event) ([]event.Event, error) {
		if evt.Type() == event.SignalEventType {
			gotCorrelationKey = evt.CorrelationKey()
		}
		return nil, nil
	}))

	dispatcher := event.NewConcurrentDispatcher(router)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	sig := event.NewSignal("target-corr-key", nil)
	require.NoError(t, dispatcher.DispatchSignal(context.Background(), sig))

	require.Eventually(t, func() bool {
		return gotCorrelationKey == "target-corr-key"
	}, time.Second, time.Millisecond)
}
