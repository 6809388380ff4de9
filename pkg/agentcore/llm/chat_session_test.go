package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/pkg/agentcore/checkpoint"
	"github.com/agentcore/agentcore/pkg/agentcore/llm"
)

func newTestBroker(gw *llm.MockGateway) *llm.Broker {
	return llm.NewBroker(gw, nil, llm.NewToolRegistry(), "mock-model", 4)
}

func TestChatSession_SendAppendsUserAndAssistantTurns(t *testing.T) {
	gw := llm.NewMockGateway("hi back")
	session := llm.NewChatSession(newTestBroker(gw), "system prompt", nil, 1000, llm.WordTokenizer{})

	reply, err := session.Send(context.Background(), "corr-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi back", reply)

	messages := session.Messages()
	require.Len(t, messages, 3)
	assert.Equal(t, llm.RoleSystem, messages[0].Role)
	assert.Equal(t, llm.RoleUser, messages[1].Role)
	assert.Equal(t, "hello", messages[1].Content)
	assert.Equal(t, llm.RoleAssistant, messages[2].Role)
	assert.Equal(t, "hi back", messages[2].Content)
}

func TestChatSession_EvictsOldestNonSystemMessagesOverBudget(t *testing.T) {
	gw := llm.NewMockGateway("ok")
	// Each turn contributes a handful of tokens; cap the budget low enough
	// that only the system prompt and the most recent turn can survive.
	session := llm.NewChatSession(newTestBroker(gw), "sys", nil, 5, llm.WordTokenizer{})

	_, err := session.Send(context.Background(), "corr-1", "one two three")
	require.NoError(t, err)
	_, err = session.Send(context.Background(), "corr-2", "four five six")
	require.NoError(t, err)

	messages := session.Messages()
	// The system prompt is always retained at index 0.
	assert.Equal(t, llm.RoleSystem, messages[0].Role)
	assert.Less(t, len(messages), 5, "older turns should have been evicted")
}

func TestChatSession_CheckpointSaveAndRestore(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	gw := llm.NewMockGateway("first reply")
	session := llm.NewChatSession(newTestBroker(gw), "sys", nil, 1000, llm.WordTokenizer{}, llm.WithCheckpoint(store, 1))
	session.SessionID = "session-1"

	_, err := session.Send(context.Background(), "corr-1", "remember this")
	require.NoError(t, err)

	snapshot, err := store.Load(context.Background(), "session-1")
	require.NoError(t, err)
	assert.NotEmpty(t, snapshot.Data)

	restored, err := llm.RestoreChatSession(context.Background(), newTestBroker(llm.NewMockGateway("")), nil, 1000, llm.WordTokenizer{}, "session-1", llm.WithCheckpoint(store, 1))
	require.NoError(t, err)
	assert.Equal(t, session.Messages(), restored.Messages())
}

func TestRestoreChatSession_MissingSessionReturnsError(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	_, err := llm.RestoreChatSession(context.Background(), newTestBroker(llm.NewMockGateway("")), nil, 1000, llm.WordTokenizer{}, "does-not-exist", llm.WithCheckpoint(store, 1))
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestChatSession_CheckpointEveryGatesFrequency(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	gw := llm.NewMockGateway("ok")
	session := llm.NewChatSession(newTestBroker(gw), "sys", nil, 1000, llm.WordTokenizer{}, llm.WithCheckpoint(store, 3))
	session.SessionID = "session-2"

	_, err := session.Send(context.Background(), "corr-1", "one")
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "session-2")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound, "checkpoint-every 3 means the first send alone shouldn't persist")

	_, err = session.Send(context.Background(), "corr-2", "two")
	require.NoError(t, err)
	_, err = session.Send(context.Background(), "corr-3", "three")
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "session-2")
	assert.NoError(t, err, "the third send should have triggered the checkpoint")
}
