package llm

import (
	"context"
	"sync"
)

// MockGateway is a test double implementing Gateway. It supports a fixed
// response, a cycling sequence of responses, a forced error, or a custom
// completion function, and records every request it receives.
type MockGateway struct {
	mu sync.Mutex

	response     string
	responses    []string
	responseIdx  int
	err          error
	completeFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	Calls []CompletionRequest
}

// NewMockGateway creates a MockGateway that always returns response as the
// completion content.
func NewMockGateway(response string) *MockGateway {
	return &MockGateway{response: response}
}

// WithResponses configures a cycling sequence of responses: the first call
// returns responses[0], the second responses[1], and so on, wrapping back
// to the start once exhausted.
func (m *MockGateway) WithResponses(responses ...string) *MockGateway {
	m.responses = responses
	m.responseIdx = 0
	return m
}

// WithError forces every Complete call to return err.
func (m *MockGateway) WithError(err error) *MockGateway {
	m.err = err
	return m
}

// WithCompleteFunc overrides Complete entirely with fn.
func (m *MockGateway) WithCompleteFunc(fn func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)) *MockGateway {
	m.completeFunc = fn
	return m
}

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	fn := m.completeFunc
	forcedErr := m.err
	m.mu.Unlock()

	if forcedErr != nil {
		return nil, forcedErr
	}
	if fn != nil {
		return fn(ctx, req)
	}

	content := m.nextResponse()
	return &CompletionResponse{Content: content, FinishReason: "stop"}, nil
}

func (m *MockGateway) nextResponse() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.responses) == 0 {
		return m.response
	}
	r := m.responses[m.responseIdx%len(m.responses)]
	m.responseIdx++
	return r
}

// CallCount returns the number of Complete invocations recorded so far.
func (m *MockGateway) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent CompletionRequest, or nil if none yet.
func (m *MockGateway) LastCall() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	return &m.Calls[len(m.Calls)-1]
}

// Reset clears call history and rewinds the response cycle to the start.
func (m *MockGateway) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.responseIdx = 0
}
