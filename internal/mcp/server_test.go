//go:build unix

package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/secretsh/internal/executor"
	"github.com/fyrsmithlabs/secretsh/internal/runner"
	"github.com/fyrsmithlabs/secretsh/internal/scrub"
	"github.com/fyrsmithlabs/secretsh/internal/secrets"
)

const testSecretValue = "mcp-test-secret-value"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := secrets.NewStore()
	store.Set("API_KEY", testSecretValue, "/home/dev/.config/secretsh/secrets.env")

	exec, err := executor.New(scrub.MustNew(scrub.Config{}), []string{"sudo"})
	require.NoError(t, err)
	svc, err := runner.New(store, exec, nil, runner.Config{}, nil)
	require.NoError(t, err)

	s, err := NewServer(&Config{Name: "secretsh-test", Version: "0.0.1", Logger: zap.NewNop()}, svc)
	require.NoError(t, err)
	return s
}

func TestNewServer(t *testing.T) {
	t.Run("requires runner", func(t *testing.T) {
		_, err := NewServer(nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "runner service is required")
	})

	t.Run("default config", func(t *testing.T) {
		store := secrets.NewStore()
		exec, err := executor.New(scrub.MustNew(scrub.Config{}), nil)
		require.NoError(t, err)
		svc, err := runner.New(store, exec, nil, runner.Config{}, nil)
		require.NoError(t, err)

		s, err := NewServer(nil, svc)
		require.NoError(t, err)
		require.NotNil(t, s.mcp)
	})
}

func TestHandleExecute(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, out, err := s.handleExecute(ctx, nil, executeInput{
		Command: `echo "$API_KEY"`,
		Secrets: []string{"API_KEY"},
	})
	require.NoError(t, err)
	assert.Equal(t, executor.Result{ExitCode: 0, Stdout: "[REDACTED:API_KEY]\n", RedactedCount: 1, Status: executor.StatusCompleted}, out)
	require.Len(t, result.Content, 1)
	text := result.Content[0].(*mcp.TextContent).Text
	assert.Contains(t, text, "exit code: 0 (1 redacted)")
	assert.NotContains(t, text, testSecretValue)
	assert.False(t, result.IsError)
}

func TestHandleExecute_Validation(t *testing.T) {
	s := newTestServer(t)

	_, _, err := s.handleExecute(context.Background(), nil, executeInput{Command: "  "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command is required")

	_, _, err = s.handleExecute(context.Background(), nil, executeInput{Command: "true", TimeoutMs: -5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout_ms")
}

func TestHandleExecute_Rejections(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		input  executeInput
		stderr string
	}{
		{"unknown secret", executeInput{Command: "true", Secrets: []string{"NOPE"}}, "Unknown secrets: NOPE"},
		{"blocked", executeInput{Command: "sudo id"}, "Blocked command: sudo"},
		{"timeout", executeInput{Command: "sleep 5", TimeoutMs: 50}, "Command timeout exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, out, err := s.handleExecute(ctx, nil, tt.input)
			require.NoError(t, err)
			assert.Equal(t, 1, out.ExitCode)
			assert.Equal(t, tt.stderr, out.Stderr)
			assert.True(t, result.IsError)
		})
	}
}

func TestHandleExecute_NonZeroExitIsNotToolError(t *testing.T) {
	s := newTestServer(t)

	result, out, err := s.handleExecute(context.Background(), nil, executeInput{Command: "echo nope >&2; exit 1"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.ExitCode)
	assert.False(t, result.IsError)
}

func TestHandleListSecrets(t *testing.T) {
	s := newTestServer(t)

	result, out, err := s.handleListSecrets(context.Background(), nil, listSecretsInput{})
	require.NoError(t, err)
	require.Len(t, out.Secrets, 1)
	assert.Equal(t, "API_KEY", out.Secrets[0].Name)
	assert.Equal(t, "/home/dev/.config/secretsh/secrets.env", out.Secrets[0].ActiveSource)

	text := result.Content[0].(*mcp.TextContent).Text
	assert.Equal(t, "API_KEY (from /home/dev/.config/secretsh/secrets.env)", text)
	assert.NotContains(t, text, testSecretValue)
}

func TestServer_InMemorySession(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.Connect(ctx, serverTransport)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"execute_command", "list_secrets"}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name: "execute_command",
		Arguments: map[string]any{
			"command": `echo "$API_KEY"`,
			"secrets": []string{"API_KEY"},
		},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out executor.Result
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, executor.Result{ExitCode: 0, Stdout: "[REDACTED:API_KEY]\n", RedactedCount: 1}, out)
	assert.NotContains(t, string(raw), testSecretValue)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "list_secrets", Arguments: map[string]any{}})
	require.NoError(t, err)
	raw, err = json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	assert.JSONEq(t, `{"secrets":[{"name":"API_KEY","active_source":"/home/dev/.config/secretsh/secrets.env","sources":["/home/dev/.config/secretsh/secrets.env"]}]}`, string(raw))
}

func TestRejection(t *testing.T) {
	assert.NoError(t, rejection(executor.Result{ExitCode: 0, Status: executor.StatusCompleted}))
	assert.NoError(t, rejection(executor.Result{ExitCode: 1, Stderr: "grep: no match", Status: executor.StatusCompleted}))
	assert.NoError(t, rejection(executor.Result{ExitCode: 1, Stderr: "Command canceled", Status: executor.StatusCompleted}),
		"command output that looks like a rejection is not one")
	assert.NoError(t, rejection(executor.Result{ExitCode: 1, Stderr: "sh: not found", Status: executor.StatusSpawnFailed}))

	err := rejection(executor.Result{ExitCode: 1, Stderr: "Blocked command: env", Status: executor.StatusBlocked})
	require.Error(t, err)
	assert.Equal(t, "Blocked command: env", err.Error())
	assert.Equal(t, "blocked", categorizeError(err))

	err = rejection(executor.Result{ExitCode: 1, Stderr: "Unknown secrets: X", Status: executor.StatusUnknownSecrets})
	assert.Equal(t, "unknown_secret", categorizeError(err))
}

func TestHandleExecute_CommandPrintingRejectionText(t *testing.T) {
	s := newTestServer(t)

	for _, msg := range []string{"Command canceled", "Command timeout exceeded", "Blocked command: rm"} {
		t.Run(msg, func(t *testing.T) {
			result, out, err := s.handleExecute(context.Background(), nil, executeInput{
				Command: "printf '%s' '" + msg + "' >&2; exit 1",
			})
			require.NoError(t, err)
			assert.Equal(t, 1, out.ExitCode)
			assert.Equal(t, msg, out.Stderr)
			assert.Equal(t, executor.StatusCompleted, out.Status)
			assert.False(t, result.IsError)
		})
	}
}
