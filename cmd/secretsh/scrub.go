package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var scrubStats bool

var scrubCmd = &cobra.Command{
	Use:   "scrub [file]",
	Short: "Scrub credential-shaped text from a file or stdin",
	Long: `Scrub text with the built-in and custom patterns.

Loaded secret values are not used, so this cannot be used to test guesses
against them.

Examples:
  # Scrub a file
  secretsh scrub build.log

  # Scrub from stdin
  cat output.log | secretsh scrub -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScrub,
}

func init() {
	scrubCmd.Flags().BoolVar(&scrubStats, "stats", false, "print redaction counts to stderr")
}

func runScrub(cmd *cobra.Command, args []string) error {
	var content []byte
	var err error

	if len(args) == 0 || args[0] == "-" {
		content, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
	} else {
		content, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	res := engine.Scrub(string(content), nil)
	fmt.Fprint(cmd.OutOrStdout(), res.Text)

	if scrubStats {
		fmt.Fprintf(cmd.ErrOrStderr(), "redacted %d in %s\n", res.RedactedCount, res.Duration)
		for _, label := range res.Labels() {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %d\n", label, res.ByLabel[label])
		}
	}
	return nil
}
