package llm_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentcoreerrors "github.com/agentcore/agentcore/pkg/agentcore/errors"
	"github.com/agentcore/agentcore/pkg/agentcore/llm"
)

// fakeClaudeBinary writes an executable shell script standing in for the
// claude CLI so ClaudeCLI.Complete can be exercised without a real
// installation. Skips on non-Unix runtimes, matching the CLI's own
// shell-out assumption.
func fakeClaudeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake claude binary script is a POSIX shell script")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "claude")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestClaudeCLI_CompleteReturnsTrimmedStdout(t *testing.T) {
	path := fakeClaudeBinary(t, "#!/bin/sh\necho '  hello from claude  '\n")
	gw := llm.NewClaudeCLI(llm.WithClaudeCLIPath(path), llm.WithClaudeCLIModel("claude-test"))

	resp, err := gw.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "hello from claude", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, "claude-test", resp.Model)
}

func TestClaudeCLI_CompleteNonZeroExitWrapsGatewayError(t *testing.T) {
	path := fakeClaudeBinary(t, "#!/bin/sh\necho 'rate limit exceeded' 1>&2\nexit 1\n")
	gw := llm.NewClaudeCLI(llm.WithClaudeCLIPath(path))

	_, err := gw.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})

	require.Error(t, err)
	var gwErr *agentcoreerrors.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.True(t, gwErr.Retryable, "a rate-limit stderr message should be classified retryable")
}

func TestClaudeCLI_CompleteTimeout(t *testing.T) {
	path := fakeClaudeBinary(t, "#!/bin/sh\nsleep 2\necho too-late\n")
	gw := llm.NewClaudeCLI(llm.WithClaudeCLIPath(path), llm.WithClaudeCLITimeout(10*time.Millisecond))

	_, err := gw.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})

	require.Error(t, err)
	var gwErr *agentcoreerrors.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.False(t, gwErr.Retryable)
}

func TestClaudeCLI_Name(t *testing.T) {
	assert.Equal(t, "claude-cli", llm.NewClaudeCLI().Name())
}
