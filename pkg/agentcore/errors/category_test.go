package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	agentcoreerrors "github.com/agentcore/agentcore/pkg/agentcore/errors"
)

func TestCategorize_GatewayErrorRetryableIsTransient(t *testing.T) {
	err := &agentcoreerrors.GatewayError{Provider: "anthropic", Model: "claude", Err: stderrors.New("503"), Retryable: true}
	assert.Equal(t, agentcoreerrors.CategoryTransient, agentcoreerrors.Categorize(err))
	assert.True(t, agentcoreerrors.IsRetryable(err))
}

func TestCategorize_GatewayErrorNotRetryableIsPermanent(t *testing.T) {
	err := &agentcoreerrors.GatewayError{Provider: "anthropic", Model: "claude", Err: stderrors.New("401"), Retryable: false}
	assert.Equal(t, agentcoreerrors.CategoryPermanent, agentcoreerrors.Categorize(err))
	assert.False(t, agentcoreerrors.IsRetryable(err))
}

func TestCategorize_ToolNotFoundIsEscalatable(t *testing.T) {
	err := &agentcoreerrors.ToolNotFoundError{ToolName: "search"}
	assert.Equal(t, agentcoreerrors.CategoryEscalatable, agentcoreerrors.Categorize(err))
}

func TestCategorize_SchemaParseFailureIsEscalatable(t *testing.T) {
	err := &agentcoreerrors.SchemaParseFailureError{RawText: "{", Err: stderrors.New("unexpected EOF")}
	assert.Equal(t, agentcoreerrors.CategoryEscalatable, agentcoreerrors.Categorize(err))
}

func TestCategorize_CategorizedErrorReturnsItsOwnCategory(t *testing.T) {
	err := agentcoreerrors.NewCategorized(stderrors.New("x"), agentcoreerrors.CategoryHumanRequired, "ctx")
	assert.Equal(t, agentcoreerrors.CategoryHumanRequired, agentcoreerrors.Categorize(err))
}

func TestCategorize_UnknownErrorDefaultsToPermanent(t *testing.T) {
	assert.Equal(t, agentcoreerrors.CategoryPermanent, agentcoreerrors.Categorize(stderrors.New("plain")))
}

func TestHandlerFaultError_UnwrapAndMessage(t *testing.T) {
	inner := stderrors.New("boom")
	err := &agentcoreerrors.HandlerFaultError{HandlerName: "h1", EventType: "order.created", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "h1")
	assert.Contains(t, err.Error(), "order.created")
}

func TestCategorizedError_ContextInMessage(t *testing.T) {
	err := agentcoreerrors.NewCategorized(stderrors.New("x"), agentcoreerrors.CategoryTransient, "fetching order")
	assert.Contains(t, err.Error(), "fetching order")
	assert.Contains(t, err.Error(), "transient")
}
