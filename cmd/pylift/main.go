package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codewithboateng/pylift/internal/reporting"
	"github.com/codewithboateng/pylift/internal/rules"
)

var rootCmd = &cobra.Command{
	Use:   "pylift",
	Short: "Static detector for common Python mistakes",
	Long: `pylift parses Python sources, resolves scopes and reports off-by-one loops,
None dereferences, shadowed variables and swallowed exceptions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError carries a process status through cobra's error return.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int, err error) error { return &exitError{code: code, err: err} }

// configFailure maps configuration problems to the configuration exit status.
func configFailure(err error) error {
	var ce *rules.ConfigurationError
	if errors.As(err, &ce) {
		return exitWith(reporting.ExitConfig, err)
	}
	return exitWith(reporting.ExitConfig, fmt.Errorf("configuration: %w", err))
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().String("config", "", "path to YAML config (optional)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (default from config)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				fmt.Fprintln(os.Stderr, "pylift:", ee.err)
			}
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "pylift:", err)
		os.Exit(reporting.ExitConfig)
	}
}
