package event_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/pkg/agentcore/event"
)

func TestNew_DefaultsCorrelationKeyToOwnID(t *testing.T) {
	evt := event.New("order.created", "checkout", map[string]any{"id": 1})
	assert.Equal(t, evt.ID(), evt.CorrelationKey())
	assert.Empty(t, evt.CausationID())
}

func TestNewFromParent_InheritsCorrelationKeyAndRecordsCausation(t *testing.T) {
	parent := event.New("order.created", "checkout", nil, event.WithCorrelationKey("corr-1"))
	child := event.NewFromParent(parent, "order.shipped", "fulfillment", nil)

	assert.Equal(t, "corr-1", child.CorrelationKey())
	assert.Equal(t, parent.ID(), child.CausationID())
}

func TestNewTerminate(t *testing.T) {
	evt := event.NewTerminate("dispatcher")
	assert.Equal(t, event.TerminateEvent, evt.Type())
}

func TestBaseEvent_DataBytesCachesMarshaledPayload(t *testing.T) {
	evt := event.New("order.created", "checkout", map[string]any{"id": float64(1)})
	first := evt.DataBytes()
	second := evt.DataBytes()
	assert.JSONEq(t, `{"id":1}`, string(first))
	assert.Equal(t, &first[0], &second[0], "DataBytes should return the cached slice, not re-marshal")
}

func TestTypedHandler_MatchesDirectType(t *testing.T) {
	var gotPayload string
	handler := event.TypedHandler[string]([]string{"greeting"}, func(ctx context.Context, payload string, meta event.Metadata) ([]event.Event, error) {
		gotPayload = payload
		return nil, nil
	})

	evt := event.New("greeting", "test", "hello")
	_, err := handler.Handle(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, "hello", gotPayload)
}

func TestTypedHandler_RemarshalsMapPayload(t *testing.T) {
	type greeting struct {
		Text string `json:"text"`
	}
	var got greeting
	handler := event.TypedHandler[greeting]([]string{"greeting"}, func(ctx context.Context, payload greeting, meta event.Metadata) ([]event.Event, error) {
		got = payload
		return nil, nil
	})

	// Simulate a payload that arrived as map[string]any, as it would after
	// a transport round trip through JSON.
	evt := event.New("greeting", "test", map[string]any{"text": "hi"})
	_, err := handler.Handle(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Text)
}

func TestChainMiddleware_AppliesInOrderOutermostFirst(t *testing.T) {
	var order []string
	base := event.HandlerFunc(func(ctx context.Context, evt event.Event) ([]event.Event, error) {
		order = append(order, "base")
		return nil, nil
	})

	wrap := func(name string) event.MiddlewareFunc {
		return func(next event.Handler) event.Handler {
			return event.HandlerFunc(func(ctx context.Context, evt event.Event) ([]event.Event, error) {
				order = append(order, name)
				return next.Handle(ctx, evt)
			})
		}
	}

	chained := event.ChainMiddleware(base, wrap("outer"), wrap("inner"))
	_, err := chained.Handle(context.Background(), event.New("x", "test", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "base"}, order)
}
