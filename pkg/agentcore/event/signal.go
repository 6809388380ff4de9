package event

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SignalEventType is the event type a Signal is wrapped in before it
// travels through the ordinary submit path.
const SignalEventType = "signal.received"

// SignalStatus tracks a Signal's delivery outcome.
type SignalStatus string

const (
	SignalPending   SignalStatus = "pending"
	SignalProcessed SignalStatus = "processed"
	SignalFailed    SignalStatus = "failed"
)

// Signal is a fire-and-forget external message injected into a running
// dispatcher. It carries no response channel: a caller that needs to know
// the outcome polls SignalStore.Get by ID instead of blocking on delivery.
type Signal struct {
	ID                   string
	TargetCorrelationKey string
	Payload              map[string]any

	Status      SignalStatus
	Error       string
	SentAt      time.Time
	ProcessedAt *time.Time
}

// NewSignal creates a pending Signal targeting targetCorrelationKey.
func NewSignal(targetCorrelationKey string, payload map[string]any) *Signal {
	return &Signal{
		ID:                   uuid.New().String(),
		TargetCorrelationKey: targetCorrelationKey,
		Payload:              payload,
		Status:               SignalPending,
		SentAt:               time.Now(),
	}
}

// SignalStore persists signals so an external caller can poll completion
// status instead of holding a connection open across dispatch.
type SignalStore interface {
	Save(ctx context.Context, sig *Signal) error
	Get(ctx context.Context, signalID string) (*Signal, error)
	MarkProcessed(ctx context.Context, signalID string) error
	MarkFailed(ctx context.Context, signalID string, err error) error
}

// SignalMemoryStore is the default in-process SignalStore implementation.
type SignalMemoryStore struct {
	mu      sync.RWMutex
	signals map[string]*Signal
}

// NewSignalMemoryStore creates an empty SignalMemoryStore.
func NewSignalMemoryStore() *SignalMemoryStore {
	return &SignalMemoryStore{signals: make(map[string]*Signal)}
}

func (s *SignalMemoryStore) Save(_ context.Context, sig *Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[sig.ID] = cloneSignal(sig)
	return nil
}

func (s *SignalMemoryStore) Get(_ context.Context, signalID string) (*Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.signals[signalID]
	if !ok {
		return nil, ErrSignalNotFound
	}
	return cloneSignal(sig), nil
}

func (s *SignalMemoryStore) MarkProcessed(_ context.Context, signalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.signals[signalID]
	if !ok {
		return ErrSignalNotFound
	}
	now := time.Now()
	sig.Status = SignalProcessed
	sig.ProcessedAt = &now
	return nil
}

func (s *SignalMemoryStore) MarkFailed(_ context.Context, signalID string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.signals[signalID]
	if !ok {
		return ErrSignalNotFound
	}
	now := time.Now()
	sig.Status = SignalFailed
	sig.ProcessedAt = &now
	if err != nil {
		sig.Error = err.Error()
	}
	return nil
}

func cloneSignal(sig *Signal) *Signal {
	out := *sig
	if sig.Payload != nil {
		out.Payload = make(map[string]any, len(sig.Payload))
		for k, v := range sig.Payload {
			out.Payload[k] = v
		}
	}
	if sig.ProcessedAt != nil {
		t := *sig.ProcessedAt
		out.ProcessedAt = &t
	}
	return &out
}

// SignalPayload is the Event payload a Signal is wrapped in. A handler
// registered for SignalEventType (directly, or via TypedHandler[SignalPayload])
// receives this instead of the original Signal, since only the ID and the
// caller-supplied payload are relevant once it's traveling as an event.
type SignalPayload struct {
	SignalID string         `json:"signal_id"`
	Payload  map[string]any `json:"payload"`
}

// ErrSignalNotFound is returned by a SignalStore when the signal ID does
// not exist.
var ErrSignalNotFound = errors.New("signal not found")
