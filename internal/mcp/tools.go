package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/secretsh/internal/executor"
	"github.com/fyrsmithlabs/secretsh/internal/runner"
	"github.com/fyrsmithlabs/secretsh/internal/secrets"
)

const (
	toolExecute     = "execute_command"
	toolListSecrets = "list_secrets"
)

// executeInput is the execute_command argument object.
type executeInput struct {
	Command    string   `json:"command" jsonschema:"Shell command to run; reference secrets as environment variables, e.g. $API_KEY"`
	Secrets    []string `json:"secrets,omitempty" jsonschema:"Names of secrets to inject as environment variables"`
	TimeoutMs  int      `json:"timeout_ms,omitempty" jsonschema:"Timeout in milliseconds (default 30000)"`
	WorkingDir string   `json:"working_dir,omitempty" jsonschema:"Working directory for the command"`
}

// listSecretsInput takes no arguments.
type listSecretsInput struct{}

type listSecretsOutput struct {
	Secrets []secrets.Metadata `json:"secrets"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: toolExecute,
		Description: "Run a shell command with named secrets injected into its environment. " +
			"Output is returned with every injected secret value and secret-shaped token redacted.",
	}, s.handleExecute)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolListSecrets,
		Description: "List available secret names and the source files that define them. Values are never returned.",
	}, s.handleListSecrets)
}

func (s *Server) handleExecute(ctx context.Context, _ *mcp.CallToolRequest, args executeInput) (*mcp.CallToolResult, executor.Result, error) {
	start := time.Now()
	s.metrics.IncrementActive(ctx, toolExecute)
	var toolErr error
	defer func() {
		s.metrics.DecrementActive(ctx, toolExecute)
		s.metrics.RecordInvocation(ctx, toolExecute, time.Since(start), toolErr)
	}()

	if strings.TrimSpace(args.Command) == "" {
		toolErr = errors.New("invalid input: command is required")
		return nil, executor.Result{}, toolErr
	}
	if args.TimeoutMs < 0 {
		toolErr = fmt.Errorf("invalid input: timeout_ms must not be negative, got %d", args.TimeoutMs)
		return nil, executor.Result{}, toolErr
	}

	res := s.runner.Run(ctx, runner.Request{
		Command:    args.Command,
		Secrets:    args.Secrets,
		Timeout:    time.Duration(args.TimeoutMs) * time.Millisecond,
		WorkingDir: args.WorkingDir,
	})
	toolErr = rejection(res)
	s.metrics.RecordRedactions(ctx, toolExecute, res.RedactedCount)

	s.logger.Debug("execute_command finished",
		zap.Int("exit_code", res.ExitCode),
		zap.Int("redacted_count", res.RedactedCount),
	)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: formatResult(res)},
		},
		IsError: toolErr != nil,
	}, res, nil
}

func (s *Server) handleListSecrets(ctx context.Context, _ *mcp.CallToolRequest, _ listSecretsInput) (*mcp.CallToolResult, listSecretsOutput, error) {
	start := time.Now()
	s.metrics.IncrementActive(ctx, toolListSecrets)
	defer func() {
		s.metrics.DecrementActive(ctx, toolListSecrets)
		s.metrics.RecordInvocation(ctx, toolListSecrets, time.Since(start), nil)
	}()

	out := listSecretsOutput{Secrets: s.runner.Secrets()}

	var b strings.Builder
	if len(out.Secrets) == 0 {
		b.WriteString("No secrets loaded")
	}
	for i, md := range out.Secrets {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s (from %s)", md.Name, md.ActiveSource)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: b.String()},
		},
	}, out, nil
}

// rejectedError reports a command the pipeline refused to run or could not
// finish.
type rejectedError struct {
	status executor.Status
	msg    string
}

func (e *rejectedError) Error() string { return e.msg }

// rejection returns an error for results the pipeline refused to run or
// could not finish. A command that ran and exited non-zero is not one,
// whatever it printed.
func rejection(res executor.Result) error {
	if !res.Status.Rejected() {
		return nil
	}
	return &rejectedError{status: res.Status, msg: res.Stderr}
}

func formatResult(res executor.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "exit code: %d", res.ExitCode)
	if res.RedactedCount > 0 {
		fmt.Fprintf(&b, " (%d redacted)", res.RedactedCount)
	}
	if res.Stdout != "" {
		b.WriteString("\n--- stdout ---\n")
		b.WriteString(res.Stdout)
	}
	if res.Stderr != "" {
		b.WriteString("\n--- stderr ---\n")
		b.WriteString(res.Stderr)
	}
	return b.String()
}
