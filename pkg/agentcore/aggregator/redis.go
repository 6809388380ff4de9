// Package aggregator provides a Redis-backed event.Store for multi-process
// deployments of the Correlation Aggregator: every process buffering events
// under the same correlation key must see the same buffer, so the buffer
// itself has to live outside any one process's memory.
package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentcore/agentcore/pkg/agentcore/event"
)

// envelope is the wire format one buffered event is stored as. Event is an
// interface, so a concrete, round-trippable shape is needed to push it
// through Redis and reconstruct it on Get.
type envelope struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Source         string          `json:"source"`
	CorrelationKey string          `json:"correlation_key"`
	CausationID    string          `json:"causation_id,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	Data           json.RawMessage `json:"data"`
}

func toEnvelope(evt event.Event) envelope {
	return envelope{
		ID:             evt.ID(),
		Type:           evt.Type(),
		Source:         evt.Source(),
		CorrelationKey: evt.CorrelationKey(),
		CausationID:    evt.CausationID(),
		Timestamp:      evt.Timestamp(),
		Data:           evt.DataBytes(),
	}
}

func (e envelope) toEvent() event.Event {
	return event.New[json.RawMessage](e.Type, e.Source, e.Data,
		event.WithEventID(e.ID),
		event.WithCorrelationKey(e.CorrelationKey),
		event.WithCausationID(e.CausationID),
		event.WithTimestamp(e.Timestamp),
	)
}

// RedisStore implements event.Store by buffering each correlation key's
// events as a Redis list, so every process routing events through the same
// Redis instance observes the same buffer regardless of which process
// appended to it. All correlation keys for a given aggregator must still
// route to this same Redis instance/keyspace — RedisStore only removes the
// single-process memory constraint, not the single-aggregator-instance one.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix overrides the default "aggregator:" Redis key prefix.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithBufferTTL sets an expiry on each correlation key's buffer, so an
// aggregation that never completes doesn't accumulate forever. Zero (the
// default) means no expiry.
func WithBufferTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// NewRedisStore wraps an existing Redis client. The caller owns the
// client's lifecycle.
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{client: client, prefix: "aggregator:"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(correlationKey string) string {
	return s.prefix + correlationKey
}

var _ event.Store = (*RedisStore)(nil)

func (s *RedisStore) Append(ctx context.Context, key string, evt event.Event) ([]event.Event, error) {
	payload, err := json.Marshal(toEnvelope(evt))
	if err != nil {
		return nil, fmt.Errorf("aggregator: marshal event: %w", err)
	}

	redisKey := s.key(key)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, redisKey, payload)
	if s.ttl > 0 {
		pipe.Expire(ctx, redisKey, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("aggregator: append to buffer: %w", err)
	}

	return s.Get(ctx, key)
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]event.Event, error) {
	raw, err := s.client.LRange(ctx, s.key(key), 0, -1).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("aggregator: read buffer: %w", err)
	}

	events := make([]event.Event, 0, len(raw))
	for _, item := range raw {
		var env envelope
		if err := json.Unmarshal([]byte(item), &env); err != nil {
			return nil, fmt.Errorf("aggregator: decode buffered event: %w", err)
		}
		events = append(events, env.toEvent())
	}
	return events, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("aggregator: reset buffer: %w", err)
	}
	return nil
}
