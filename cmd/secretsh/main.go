// Package main implements the secretsh CLI.
//
// secretsh runs shell commands on behalf of an AI agent with named secrets
// injected into the environment, and scrubs every secret from the output
// before the agent sees it.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, set via ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configFiles []string
	secretFiles []string
)

// exitError carries a child exit code out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "secretsh",
	Short: "Run commands with secrets the caller never sees",
	Long: `secretsh injects named secrets into a shell command's environment and
redacts them, and anything that looks like a credential, from its output.

Agents talk to it over MCP with "secretsh serve". Operators can use the
same pipeline directly with "secretsh run".`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(versionString() + "\n")
	rootCmd.PersistentFlags().StringSliceVarP(&configFiles, "config", "c", nil,
		"config file (repeatable; replaces the global and project files)")
	rootCmd.PersistentFlags().StringSliceVarP(&secretFiles, "secrets-file", "f", nil,
		"secret source file, applied after configured sources (repeatable)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scrubCmd)
	rootCmd.AddCommand(secretsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), versionString())
	},
}

func versionString() string {
	return fmt.Sprintf("secretsh %s (commit: %s, built: %s)", version, gitCommit, buildDate)
}
