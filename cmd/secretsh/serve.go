package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/secretsh/internal/http"
	"github.com/fyrsmithlabs/secretsh/internal/mcp"
	"github.com/fyrsmithlabs/secretsh/internal/secrets"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the MCP tools on stdio",
	Long: `Serve execute_command and list_secrets to an MCP client over stdio.

The operator HTTP endpoint (health, metrics, pattern-only scrub) starts
alongside when http.enabled is set. Secret sources are read once; with
secrets.watch set, edits are reported but only applied on restart.

Examples:
  # Typical MCP client entry
  secretsh serve -f ~/.secrets/agent.env

  # Expose metrics on localhost:9191
  SECRETSH_HTTP__ENABLED=true secretsh serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Secrets.Watch && len(a.cfg.Secrets.Files) > 0 {
		if err := secrets.Watch(ctx, a.logger.Named("secrets"), a.cfg.Secrets.Files, nil); err != nil {
			a.logger.Warn(ctx, "secret source watch disabled", zap.Error(err))
		}
	}

	var httpSrv *httpserver.Server
	httpErr := make(chan error, 1)
	if a.cfg.HTTP.Enabled {
		httpSrv, err = httpserver.NewServer(a.engine, a.service, a.logger.Underlying().Named("http"), &httpserver.Config{
			Host:    a.cfg.HTTP.Host,
			Port:    a.cfg.HTTP.Port,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("failed to create http server: %w", err)
		}
		go func() { httpErr <- httpSrv.Start() }()
	}

	srv, err := mcp.NewServer(&mcp.Config{
		Name:    "secretsh",
		Version: version,
		Logger:  a.logger.Underlying().Named("mcp"),
	}, a.service)
	if err != nil {
		return fmt.Errorf("failed to create mcp server: %w", err)
	}

	mcpErr := make(chan error, 1)
	go func() { mcpErr <- srv.Run(ctx) }()

	select {
	case err = <-mcpErr:
	case err = <-httpErr:
		if err != nil {
			err = fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
		a.logger.Info(context.Background(), "shutdown signal received")
	}

	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := httpSrv.Shutdown(shutdownCtx); serr != nil {
			a.logger.Warn(shutdownCtx, "http server shutdown failed", zap.Error(serr))
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
