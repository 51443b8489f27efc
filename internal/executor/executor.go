// Package executor runs shell commands with secrets injected into their
// environment and returns output with those secrets scrubbed.
//
// Every execution resolves to exactly one outcome. Failures are reported
// in the Result with exit code 1; Execute never returns an error.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/secretsh/internal/logging"
	"github.com/fyrsmithlabs/secretsh/internal/scrub"
	"github.com/fyrsmithlabs/secretsh/internal/verify"
)

const (
	DefaultShell          = "/bin/sh"
	DefaultTimeout        = 30 * time.Second
	DefaultMaxOutputBytes = 10 * 1024 * 1024
	DefaultWaitDelay      = 2 * time.Second

	msgTimeout  = "Command timeout exceeded"
	msgCanceled = "Command canceled"
	msgBlocked  = "Blocked command: "
	truncNotice = "\n[output truncated]"
)

// Request is one command execution.
type Request struct {
	Command string
	// Secrets are injected as environment variables, replacing inherited
	// variables of the same name, and scrubbed from the output.
	Secrets    map[string]string
	Timeout    time.Duration
	WorkingDir string
}

// Result is the caller-visible outcome of an execution.
type Result struct {
	ExitCode      int    `json:"exit_code"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	RedactedCount int    `json:"redacted_count"`

	// Status says how the execution ended. It is not part of the wire
	// result; callers use it instead of parsing Stderr.
	Status Status `json:"-"`
}

// Verifier checks scrubbed output for surviving secret material.
type Verifier interface {
	Check(ctx context.Context, stdout, stderr string, secrets map[string]string) []verify.Gap
}

// Executor runs commands. It holds no per-request state and is safe for
// concurrent use.
type Executor struct {
	engine         *scrub.Engine
	blocklist      []blockRule
	verifier       Verifier
	logger         *logging.Logger
	metrics        *Metrics
	shell          string
	defaultTimeout time.Duration
	maxOutput      int
	waitDelay      time.Duration

	killGroup func(pid int) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the operator logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithVerifier enables post-redaction verification.
func WithVerifier(v Verifier) Option {
	return func(e *Executor) { e.verifier = v }
}

// WithShell sets the shell that runs commands with "-c".
func WithShell(shell string) Option {
	return func(e *Executor) {
		if shell != "" {
			e.shell = shell
		}
	}
}

// WithDefaultTimeout sets the timeout for requests that carry none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.defaultTimeout = d
		}
	}
}

// WithMaxOutputBytes caps each captured stream.
func WithMaxOutputBytes(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxOutput = n
		}
	}
}

// WithWaitDelay bounds how long output pipes are drained after the child
// exits or is killed.
func WithWaitDelay(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.waitDelay = d
		}
	}
}

// New creates an Executor that scrubs output with engine and rejects
// commands matching any blocklist entry.
func New(engine *scrub.Engine, blocklist []string, opts ...Option) (*Executor, error) {
	if engine == nil {
		return nil, errors.New("scrub engine is required")
	}
	e := &Executor{
		engine:         engine,
		blocklist:      compileBlocklist(blocklist),
		logger:         logging.NewNop(),
		metrics:        NewMetrics(),
		shell:          DefaultShell,
		defaultTimeout: DefaultTimeout,
		maxOutput:      DefaultMaxOutputBytes,
		waitDelay:      DefaultWaitDelay,
		killGroup:      killProcessGroup,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("executor")
	return e, nil
}

// Execute runs req and returns its scrubbed result.
func (e *Executor) Execute(ctx context.Context, req Request) Result {
	start := time.Now()
	command := e.engine.Scrub(req.Command, req.Secrets).Text

	if entry, ok := blocked(e.blocklist, req.Command); ok {
		e.metrics.RecordBlocked()
		e.logger.Warn(ctx, "command blocked",
			zap.String("command", command),
			zap.String("entry", entry),
		)
		return Result{ExitCode: 1, Stderr: msgBlocked + entry, Status: StatusBlocked}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	cmd := exec.Command(e.shell, "-c", req.Command)
	cmd.Dir = req.WorkingDir
	cmd.Env = buildEnv(os.Environ(), req.Secrets)
	cmd.WaitDelay = e.waitDelay
	setProcessGroup(cmd)

	stdout := newCapture(e.maxOutput)
	stderr := newCapture(e.maxOutput)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	e.logger.Debug(ctx, "executing command",
		zap.String("command", command),
		zap.String("dir", req.WorkingDir),
		zap.Duration("timeout", timeout),
		zap.Int("secrets", len(req.Secrets)),
	)

	s := &settlement{}
	if err := cmd.Start(); err != nil {
		s.settle(outcome{kind: spawnFailed, err: err})
		return e.finish(ctx, req, s.result(), start, nil, nil)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.reap(cmd, s)
	}()

	timer := time.AfterFunc(timeout, func() { e.expire(ctx, s, cmd) })

	select {
	case <-done:
		timer.Stop()
	case <-ctx.Done():
		timer.Stop()
		if s.settle(outcome{kind: canceled}) {
			e.kill(ctx, cmd)
		}
		<-done
	}

	return e.finish(ctx, req, s.result(), start, stdout, stderr)
}

// reap waits for the child and settles its exit in the same goroutine, so
// a timer firing after the child was reaped finds the outcome taken.
func (e *Executor) reap(cmd *exec.Cmd, s *settlement) bool {
	return s.settle(exitOutcome(cmd, cmd.Wait()))
}

// expire settles the execution as timed out and kills the child. It does
// nothing once the exit has been settled.
func (e *Executor) expire(ctx context.Context, s *settlement, cmd *exec.Cmd) bool {
	if !s.settle(outcome{kind: timedOut}) {
		return false
	}
	e.kill(ctx, cmd)
	return true
}

// kill targets the whole process group, falling back to the direct child.
func (e *Executor) kill(ctx context.Context, cmd *exec.Cmd) {
	pid := cmd.Process.Pid
	err := e.killGroup(pid)
	if err == nil {
		return
	}
	e.logger.Warn(ctx, "process group kill failed, killing child only",
		zap.Int("pid", pid),
		zap.Error(err),
	)
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		e.logger.Error(ctx, "failed to kill command", zap.Int("pid", pid), zap.Error(err))
	}
}

func (e *Executor) finish(ctx context.Context, req Request, o outcome, start time.Time, stdout, stderr *capture) Result {
	var res Result
	switch o.kind {
	case timedOut:
		res = Result{ExitCode: 1, Stderr: msgTimeout, Status: StatusTimeout}
		e.logger.Warn(ctx, "command timed out", zap.Duration("elapsed", time.Since(start)))
	case canceled:
		res = Result{ExitCode: 1, Stderr: msgCanceled, Status: StatusCanceled}
		e.logger.Warn(ctx, "command canceled", zap.Error(ctx.Err()))
	case spawnFailed:
		res = Result{ExitCode: 1, Stderr: o.err.Error(), Status: StatusSpawnFailed}
		e.logger.Error(ctx, "failed to start command", zap.Error(o.err))
	default:
		if o.err != nil {
			e.logger.Warn(ctx, "command wait failed", zap.Error(o.err))
		}
		res = e.scrubOutput(ctx, req, o.code, stdout, stderr)
	}

	elapsed := time.Since(start)
	e.metrics.RecordExecution(o.kind.String(), elapsed.Seconds())
	e.logger.Info(ctx, "command finished",
		zap.String("outcome", o.kind.String()),
		zap.Int("exit_code", res.ExitCode),
		zap.Int("redacted_count", res.RedactedCount),
		zap.Duration("duration", elapsed),
	)
	return res
}

func (e *Executor) scrubOutput(ctx context.Context, req Request, code int, stdout, stderr *capture) Result {
	trim := longestValue(req.Secrets)

	outText, outCut := stdout.text(trim)
	errText, errCut := stderr.text(trim)

	outScrub := e.engine.Scrub(outText, req.Secrets)
	errScrub := e.engine.Scrub(errText, req.Secrets)

	res := Result{
		Status:        StatusCompleted,
		ExitCode:      code,
		Stdout:        outScrub.Text,
		Stderr:        errScrub.Text,
		RedactedCount: outScrub.RedactedCount + errScrub.RedactedCount,
	}
	e.metrics.RecordRedactions(res.RedactedCount)

	if e.verifier != nil {
		for _, gap := range e.verifier.Check(ctx, res.Stdout, res.Stderr, req.Secrets) {
			e.metrics.RecordGap(string(gap.Category))
		}
	}

	// Scrubbing and verification ran on the raw bytes; only now is the
	// text made safe for transports that require valid UTF-8.
	res.Stdout = strings.ToValidUTF8(res.Stdout, "\uFFFD")
	res.Stderr = strings.ToValidUTF8(res.Stderr, "\uFFFD")

	if outCut {
		res.Stdout += truncNotice
		e.metrics.RecordTruncated()
		e.logger.Warn(ctx, "stdout truncated", zap.Int("limit_bytes", e.maxOutput))
	}
	if errCut {
		res.Stderr += truncNotice
		e.metrics.RecordTruncated()
		e.logger.Warn(ctx, "stderr truncated", zap.Int("limit_bytes", e.maxOutput))
	}
	return res
}

// exitOutcome maps the Wait error to an exit code. A child killed by a
// signal reports -1, which becomes 1.
func exitOutcome(cmd *exec.Cmd, err error) outcome {
	if err == nil {
		return outcome{kind: exited, code: 0}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return outcome{kind: exited, code: normalizeCode(exitErr.ExitCode())}
	}
	if cmd.ProcessState != nil {
		return outcome{kind: exited, code: normalizeCode(cmd.ProcessState.ExitCode())}
	}
	return outcome{kind: exited, code: 1, err: fmt.Errorf("wait: %w", err)}
}

func normalizeCode(code int) int {
	if code < 0 {
		return 1
	}
	return code
}

// buildEnv returns base with every overlay variable set, replacing
// existing definitions.
func buildEnv(base []string, overlay map[string]string) []string {
	env := make([]string, 0, len(base)+len(overlay))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, ok := overlay[name]; ok {
			continue
		}
		env = append(env, kv)
	}

	names := make([]string, 0, len(overlay))
	for name := range overlay {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		env = append(env, name+"="+overlay[name])
	}
	return env
}

func longestValue(secrets map[string]string) int {
	n := 0
	for _, v := range secrets {
		if len(v) > n {
			n = len(v)
		}
	}
	return n
}
