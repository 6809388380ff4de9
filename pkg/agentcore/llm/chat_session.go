package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/agentcore/agentcore/pkg/agentcore/checkpoint"
	"github.com/agentcore/agentcore/pkg/agentcore/observability"
)

// SizedMessage pairs a Message with its cached token length, so the
// session's budget check never re-tokenizes a message it has already
// measured.
type SizedMessage struct {
	Message     Message
	TokenLength int
}

// ChatSession manages the bounded-token-budget history for one
// conversation. The system prompt lives at index 0 and is exempt from
// eviction; once the running total exceeds MaxContext, the session evicts
// starting at index 1 (FIFO) until it fits again.
type ChatSession struct {
	Broker    *Broker
	Tokenizer Tokenizer
	Tools     []ToolDescriptor

	MaxContext int

	messages []SizedMessage

	Logger  *slog.Logger
	Tracer  observability.Tracer
	Metrics observability.MetricsRecorder

	// Checkpointer, when set, snapshots the message buffer to a
	// checkpoint.Store every CheckpointEvery Send calls so a session can
	// resume across process restarts. Set via WithCheckpoint.
	Checkpointer    checkpoint.Store
	CheckpointEvery int
	SessionID       string

	insertsSinceCheckpoint int
}

// ChatSessionOption configures a ChatSession at construction time.
type ChatSessionOption func(*ChatSession)

// WithCheckpoint enables persistence: the session's message buffer is
// snapshotted to store every `every` Send calls (minimum 1). SessionID
// must still be set by the caller (e.g. assigned from a request ID)
// before the first checkpoint is written.
func WithCheckpoint(store checkpoint.Store, every int) ChatSessionOption {
	if every < 1 {
		every = 1
	}
	return func(s *ChatSession) {
		s.Checkpointer = store
		s.CheckpointEvery = every
	}
}

// NewChatSession creates a session seeded with systemPrompt at index 0.
func NewChatSession(broker *Broker, systemPrompt string, tools []ToolDescriptor, maxContext int, tokenizer Tokenizer, opts ...ChatSessionOption) *ChatSession {
	if tokenizer == nil {
		tokenizer = WordTokenizer{}
	}
	s := &ChatSession{
		Broker:     broker,
		Tokenizer:  tokenizer,
		Tools:      tools,
		MaxContext: maxContext,
		Logger:     slog.Default(),
		Tracer:     observability.NoopTracer{},
		Metrics:    observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Insert(Message{Role: RoleSystem, Content: systemPrompt})
	return s
}

// RestoreChatSession reconstructs a ChatSession from the latest checkpoint
// stored under sessionID, wiring the same store back in so subsequent
// Send calls keep checkpointing.
func RestoreChatSession(ctx context.Context, broker *Broker, tools []ToolDescriptor, maxContext int, tokenizer Tokenizer, sessionID string, opts ...ChatSessionOption) (*ChatSession, error) {
	s := NewChatSession(broker, "", tools, maxContext, tokenizer, opts...)
	if err := s.Restore(ctx, sessionID); err != nil {
		return nil, err
	}
	return s, nil
}

// Send appends query as a user message, runs the broker's tool-call loop
// over the full session history, records the assistant's reply, and
// returns its text content.
func (s *ChatSession) Send(ctx context.Context, correlationID, query string) (string, error) {
	s.Insert(Message{Role: RoleUser, Content: query})

	reply, finalMessages, err := s.Broker.Generate(ctx, correlationID, s.plainMessages(), s.Tools)
	if err != nil {
		return "", err
	}

	// The broker's internal tool-call turns (assistant/tool pairs beyond
	// the last user message) become part of the session history too.
	s.absorb(finalMessages)
	s.Insert(Message{Role: RoleAssistant, Content: reply})

	s.maybeCheckpoint(ctx)

	return reply, nil
}

// maybeCheckpoint runs once per Send and saves a snapshot once
// CheckpointEvery Send calls have accumulated since the last one. A no-op
// when checkpointing is disabled.
func (s *ChatSession) maybeCheckpoint(ctx context.Context) {
	if s.Checkpointer == nil || s.SessionID == "" {
		return
	}
	s.insertsSinceCheckpoint++
	if s.insertsSinceCheckpoint < s.CheckpointEvery {
		return
	}
	s.insertsSinceCheckpoint = 0
	s.saveCheckpoint(ctx)
}

// absorb appends any messages finalMessages holds beyond what the session
// already has. finalMessages never includes the broker's final reply, which
// Send adds itself, so this captures only the assistant/tool turns a
// multi-step tool-call loop produced mid-generation.
func (s *ChatSession) absorb(finalMessages []Message) {
	if len(finalMessages) <= len(s.messages) {
		return
	}
	for _, m := range finalMessages[len(s.messages):] {
		s.Insert(m)
	}
}

// Insert appends message to the session, tokenizing it once, then evicts
// from index 1 forward (never index 0, the system prompt) while the
// running token total exceeds MaxContext.
func (s *ChatSession) Insert(message Message) {
	sized := s.size(message)
	s.messages = append(s.messages, sized)

	total := s.totalTokens()
	for total > s.MaxContext && len(s.messages) > 1 {
		evicted := s.messages[1]
		s.messages = append(s.messages[:1], s.messages[2:]...)
		total -= evicted.TokenLength
		observability.LogSessionEviction(s.Logger, evicted.TokenLength, total, s.MaxContext)
	}
}

func (s *ChatSession) size(message Message) SizedMessage {
	if message.Content == "" {
		return SizedMessage{Message: message, TokenLength: 0}
	}
	return SizedMessage{Message: message, TokenLength: s.Tokenizer.CountTokens(message.Content)}
}

func (s *ChatSession) totalTokens() int {
	total := 0
	for _, m := range s.messages {
		total += m.TokenLength
	}
	return total
}

// Messages returns a copy of the session's current message buffer.
func (s *ChatSession) Messages() []Message {
	return s.plainMessages()
}

func (s *ChatSession) plainMessages() []Message {
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Message
	}
	return out
}

func (s *ChatSession) saveCheckpoint(ctx context.Context) {
	data, err := json.Marshal(s.plainMessages())
	if err != nil {
		observability.LogToolFault(s.Logger, "checkpoint", err)
		return
	}
	snapshot := checkpoint.Snapshot{SessionID: s.SessionID, Data: data, Timestamp: time.Now()}
	if err := s.Checkpointer.Save(ctx, snapshot); err != nil {
		observability.LogToolFault(s.Logger, "checkpoint", err)
	}
}

// Restore replaces the session's message buffer with a previously saved
// checkpoint, re-tokenizing each message.
func (s *ChatSession) Restore(ctx context.Context, sessionID string) error {
	snapshot, err := s.Checkpointer.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	var messages []Message
	if err := json.Unmarshal(snapshot.Data, &messages); err != nil {
		return err
	}
	s.messages = s.messages[:0]
	for _, m := range messages {
		s.messages = append(s.messages, s.size(m))
	}
	s.SessionID = sessionID
	return nil
}
