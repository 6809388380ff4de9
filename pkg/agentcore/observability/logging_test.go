package observability_test

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/agentcore/agentcore/pkg/agentcore/observability"
)

func TestLoggingHelpers_NilLoggerIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		observability.LogDispatchStart(nil, 1)
		observability.LogHandlerFault(nil, "h", "t", stderrors.New("x"))
		observability.LogAggregatorTimeout(nil, "corr", []string{"a"})
		observability.LogLLMCall(nil, "model", 1, 1)
		observability.LogLLMResponse(nil, "model", 10, 1, nil)
		observability.LogLLMResponse(nil, "model", 10, 1, stderrors.New("x"))
		observability.LogParameterIncompatibility(nil, "model", "param", "reason")
		observability.LogToolCall(nil, "tool", 1)
		observability.LogToolFault(nil, "tool", stderrors.New("x"))
		observability.LogLoopExceeded(nil, 5)
		observability.LogSessionEviction(nil, 10, 100, 200)
		assert.Nil(t, observability.EnrichLogger(nil, "c", "t"))
	})
}

func TestTimedOperation_MeasuresElapsedMilliseconds(t *testing.T) {
	done := observability.TimedOperation()
	time.Sleep(5 * time.Millisecond)
	elapsed := done()
	assert.GreaterOrEqual(t, elapsed, float64(0))
}
