package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/secretsh/internal/runner"
)

var (
	runSecrets []string
	runTimeout time.Duration
	runDir     string
)

var runCmd = &cobra.Command{
	Use:   "run -s NAME... -- command",
	Short: "Run a command through the redaction pipeline",
	Long: `Run a command with the named secrets injected, printing the scrubbed
output and exiting with the command's exit code.

The command goes through the same blocklist, rate limit, timeout and
redaction as an MCP execute_command call.

Examples:
  secretsh run -s GITHUB_TOKEN -- 'gh api user'
  secretsh run -s DB_USER,DB_PASS --timeout 2m -- psql -c 'select 1'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringSliceVarP(&runSecrets, "secret", "s", nil, "secret name to inject (repeatable)")
	runCmd.Flags().DurationVarP(&runTimeout, "timeout", "t", 0, "command timeout (default from config)")
	runCmd.Flags().StringVarP(&runDir, "dir", "d", "", "working directory")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	res := a.service.Run(ctx, runner.Request{
		Command:    strings.Join(args, " "),
		Secrets:    runSecrets,
		Timeout:    runTimeout,
		WorkingDir: runDir,
	})

	fmt.Fprint(cmd.OutOrStdout(), res.Stdout)
	fmt.Fprint(cmd.ErrOrStderr(), res.Stderr)
	if res.ExitCode != 0 {
		return &exitError{code: res.ExitCode}
	}
	return nil
}
