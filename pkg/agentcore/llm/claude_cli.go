package llm

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	agentcoreerrors "github.com/agentcore/agentcore/pkg/agentcore/errors"
)

// ClaudeCLI implements Gateway by shelling out to the claude CLI binary.
// It has no tool-call support of its own: the Broker drives tool calls at
// a higher layer, so ClaudeCLI only ever needs to turn a CompletionRequest
// into a single prompt and parse back plain text.
type ClaudeCLI struct {
	path    string
	model   string
	workdir string
	timeout time.Duration
}

// ClaudeCLIOption configures ClaudeCLI.
type ClaudeCLIOption func(*ClaudeCLI)

// NewClaudeCLI creates a ClaudeCLI gateway. Assumes "claude" is on PATH
// unless overridden with WithClaudeCLIPath.
func NewClaudeCLI(opts ...ClaudeCLIOption) *ClaudeCLI {
	c := &ClaudeCLI{
		path:    "claude",
		timeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithClaudeCLIPath(path string) ClaudeCLIOption {
	return func(c *ClaudeCLI) { c.path = path }
}

func WithClaudeCLIModel(model string) ClaudeCLIOption {
	return func(c *ClaudeCLI) { c.model = model }
}

func WithClaudeCLIWorkdir(dir string) ClaudeCLIOption {
	return func(c *ClaudeCLI) { c.workdir = dir }
}

func WithClaudeCLITimeout(d time.Duration) ClaudeCLIOption {
	return func(c *ClaudeCLI) { c.timeout = d }
}

func (c *ClaudeCLI) Name() string { return "claude-cli" }

// Complete shells out to `claude --print` with the flattened conversation
// as a single prompt and returns the raw text reply. Tool calls are never
// populated: the CLI's text interface has no structured tool-call
// protocol, so a ClaudeCLI-backed Broker only ever sees terminal text.
func (c *ClaudeCLI) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := c.buildArgs(req)
	cmd := exec.CommandContext(runCtx, c.path, args...)
	if c.workdir != "" {
		cmd.Dir = c.workdir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() != nil {
			return nil, &agentcoreerrors.GatewayError{Provider: c.Name(), Model: c.modelFor(req), Err: runCtx.Err(), Retryable: false}
		}
		errMsg := stderr.String()
		return nil, &agentcoreerrors.GatewayError{
			Provider:  c.Name(),
			Model:     c.modelFor(req),
			Err:       fmt.Errorf("%w: %s", err, errMsg),
			Retryable: isRetryableError(errMsg),
		}
	}

	resp := &CompletionResponse{
		Content:      strings.TrimSpace(stdout.String()),
		FinishReason: "stop",
		Model:        c.modelFor(req),
		Duration:     time.Since(start),
	}
	return resp, nil
}

func (c *ClaudeCLI) modelFor(req CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return c.model
}

// buildArgs flattens a CompletionRequest's system prompt and message
// history into claude CLI flags and a single -p prompt string.
func (c *ClaudeCLI) buildArgs(req CompletionRequest) []string {
	args := []string{"--print"}

	var systemPrompt string
	var history []Message
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			systemPrompt = m.Content
			continue
		}
		history = append(history, m)
	}
	if systemPrompt != "" {
		args = append(args, "--system-prompt", systemPrompt)
	}

	if model := c.modelFor(req); model != "" {
		args = append(args, "--model", model)
	}
	if req.MaxTokens > 0 {
		args = append(args, "--max-tokens", fmt.Sprintf("%d", req.MaxTokens))
	}

	var prompt strings.Builder
	for _, msg := range history {
		switch msg.Role {
		case RoleUser:
			prompt.WriteString(msg.Content)
			prompt.WriteString("\n")
		case RoleAssistant:
			if prompt.Len() > 0 {
				prompt.WriteString("\nAssistant: ")
				prompt.WriteString(msg.Content)
				prompt.WriteString("\n\nUser: ")
			}
		}
	}

	if promptStr := strings.TrimSpace(prompt.String()); promptStr != "" {
		args = append(args, "-p", promptStr)
	}

	return args
}

func isRetryableError(errMsg string) bool {
	errLower := strings.ToLower(errMsg)
	return strings.Contains(errLower, "rate limit") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "overloaded") ||
		strings.Contains(errLower, "503") ||
		strings.Contains(errLower, "529")
}
