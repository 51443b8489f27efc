package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/secretsh/internal/config"
	"github.com/fyrsmithlabs/secretsh/internal/executor"
	"github.com/fyrsmithlabs/secretsh/internal/logging"
	"github.com/fyrsmithlabs/secretsh/internal/ratelimit"
	"github.com/fyrsmithlabs/secretsh/internal/runner"
	"github.com/fyrsmithlabs/secretsh/internal/scrub"
	"github.com/fyrsmithlabs/secretsh/internal/secrets"
	"github.com/fyrsmithlabs/secretsh/internal/telemetry"
	"github.com/fyrsmithlabs/secretsh/internal/verify"
)

// app is the wired pipeline shared by the subcommands.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	store   *secrets.Store
	engine  *scrub.Engine
	service *runner.Service
	tel     *telemetry.Telemetry
}

// close flushes telemetry and logs.
func (a *app) close() {
	if err := a.tel.Shutdown(context.Background()); err != nil {
		a.logger.Warn(context.Background(), "telemetry shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if len(configFiles) > 0 {
		cfg, err = config.LoadFiles(configFiles...)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Secrets.Files = append(cfg.Secrets.Files, secretFiles...)
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	logCfg, err := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	// stdout belongs to the MCP transport and to command output.
	logCfg.Output.Stderr = true
	return logging.NewLogger(logCfg, nil)
}

func newEngine(cfg *config.Config, logger *logging.Logger) (*scrub.Engine, error) {
	engine, err := scrub.New(scrub.Config{
		Mode:           scrub.Mode(cfg.Redaction.Mode),
		CustomPatterns: cfg.Redaction.CustomPatterns,
		ProbeBudget:    cfg.Redaction.ProbeBudget,
	}, scrub.WithLogger(logger.Named("scrub")))
	if err != nil {
		return nil, fmt.Errorf("failed to build redaction engine: %w", err)
	}
	return engine, nil
}

// newApp loads configuration and secrets and wires the execution pipeline.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	tel := telemetry.New(ctx, cfg.Telemetry, version, logger)
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		_ = logger.Sync()
		return nil, err
	}
	a.tel = tel
	return a, nil
}

func buildApp(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*app, error) {
	store := secrets.NewStore()
	if err := secrets.NewLoader(logger.Named("secrets")).Load(ctx, store, cfg.Secrets.Files...); err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return nil, err
	}

	allowlist, err := verify.LoadAllowlist(cfg.Verify.AllowlistPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load allowlist: %w", err)
	}
	verifier := verify.New(verify.Config{
		EncodedVariants: cfg.Verify.EncodedVariants,
		ResidualScan:    cfg.Verify.ResidualScan,
		ScansPerSecond:  cfg.Verify.ResidualScansPerSecond,
		Allowlist:       allowlist,
	}, logger)

	exec, err := executor.New(engine, cfg.Executor.Blocklist,
		executor.WithLogger(logger),
		executor.WithVerifier(verifier),
		executor.WithShell(cfg.Executor.Shell),
		executor.WithDefaultTimeout(cfg.Executor.DefaultTimeout),
		executor.WithMaxOutputBytes(cfg.Executor.MaxOutputBytes),
		executor.WithWaitDelay(cfg.Executor.WaitDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter, err = ratelimit.New(ratelimit.Config{
			MaxRequests: cfg.RateLimit.MaxRequests,
			Window:      cfg.RateLimit.Window,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
	}

	service, err := runner.New(store, exec, limiter, runner.Config{
		DefaultTimeout: cfg.Executor.DefaultTimeout,
		MaxTimeout:     cfg.Executor.MaxTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}

	logger.Info(ctx, "secretsh ready",
		zap.Int("secrets", store.Len()),
		zap.String("redaction_mode", string(engine.Mode())),
		zap.Bool("rate_limit", limiter != nil),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		engine:  engine,
		service: service,
	}, nil
}
