// Package runner is the caller-facing entry point for command execution.
// It applies admission control and secret resolution before handing the
// request to the executor.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/secretsh/internal/executor"
	"github.com/fyrsmithlabs/secretsh/internal/logging"
	"github.com/fyrsmithlabs/secretsh/internal/ratelimit"
	"github.com/fyrsmithlabs/secretsh/internal/secrets"
)

// Request names the secrets to inject rather than carrying their values.
type Request struct {
	Command    string
	Secrets    []string
	Timeout    time.Duration
	WorkingDir string
}

// Config bounds request timeouts.
type Config struct {
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
}

// Service runs requests against one secret store.
type Service struct {
	store    *secrets.Store
	exec     *executor.Executor
	limiter  *ratelimit.Limiter
	cfg      Config
	logger   *logging.Logger
	tracer   trace.Tracer
	newRunID func() string
}

const instrumentationName = "github.com/fyrsmithlabs/secretsh/internal/runner"

// New creates a Service. A nil limiter disables rate limiting.
func New(store *secrets.Store, exec *executor.Executor, limiter *ratelimit.Limiter, cfg Config, logger *logging.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("secret store is required")
	}
	if exec == nil {
		return nil, errors.New("executor is required")
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = executor.DefaultTimeout
	}
	if cfg.MaxTimeout > 0 && cfg.DefaultTimeout > cfg.MaxTimeout {
		cfg.DefaultTimeout = cfg.MaxTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		store:    store,
		exec:     exec,
		limiter:  limiter,
		cfg:      cfg,
		logger:   logger.Named("runner"),
		tracer:   otel.Tracer(instrumentationName),
		newRunID: uuid.NewString,
	}, nil
}

// Run executes req. Denied and invalid requests never spawn a process.
func (s *Service) Run(ctx context.Context, req Request) executor.Result {
	runID := s.newRunID()
	ctx, span := s.tracer.Start(ctx, "secretsh.run", trace.WithAttributes(
		attribute.String("execution.id", runID),
		attribute.StringSlice("secrets", req.Secrets),
	))
	defer span.End()
	ctx = logging.WithExecutionID(ctx, runID)

	if !s.limiter.Check() {
		wait := s.limiter.WaitTime()
		s.logger.Warn(ctx, "execution rate limited", zap.Duration("retry_in", wait))
		span.SetStatus(codes.Error, "rate limited")
		return executor.Result{
			ExitCode: 1,
			Stderr:   fmt.Sprintf("Rate limit exceeded: retry in %s", formatWait(wait)),
			Status:   executor.StatusRateLimited,
		}
	}

	values, missing := s.store.Resolve(req.Secrets)
	if len(missing) > 0 {
		s.logger.Warn(ctx, "unknown secrets requested", zap.Strings("names", missing))
		span.SetStatus(codes.Error, "unknown secrets")
		return executor.Result{
			ExitCode: 1,
			Stderr:   "Unknown secrets: " + strings.Join(missing, ", "),
			Status:   executor.StatusUnknownSecrets,
		}
	}

	s.logger.Info(ctx, "running command",
		zap.Strings("secrets", sortedNames(values)),
		zap.Duration("timeout", s.timeout(req.Timeout)),
	)

	res := s.exec.Execute(ctx, executor.Request{
		Command:    req.Command,
		Secrets:    values,
		Timeout:    s.timeout(req.Timeout),
		WorkingDir: req.WorkingDir,
	})
	span.SetAttributes(
		attribute.Int("exit_code", res.ExitCode),
		attribute.Int("redacted_count", res.RedactedCount),
	)
	return res
}

// Secrets describes the store without values.
func (s *Service) Secrets() []secrets.Metadata {
	return s.store.Describe()
}

func (s *Service) timeout(requested time.Duration) time.Duration {
	t := requested
	if t <= 0 {
		t = s.cfg.DefaultTimeout
	}
	if s.cfg.MaxTimeout > 0 && t > s.cfg.MaxTimeout {
		t = s.cfg.MaxTimeout
	}
	return t
}

// formatWait rounds up to whole milliseconds so a short wait never reads 0s.
func formatWait(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if r := d.Truncate(time.Millisecond); r < d {
		d = r + time.Millisecond
	}
	return d.String()
}

func sortedNames(values map[string]string) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
