package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codewithboateng/pylift/internal/ir"
)

// Overridden at build time via -ldflags.
var (
	version   = "0.1.0-dev"
	gitCommit = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		name := color.New(color.FgGreen, color.Bold).Sprint("pylift")
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (IR %s)", name, version, ir.Version)
		if gitCommit != "" {
			fmt.Fprintf(cmd.OutOrStdout(), " commit %s", gitCommit)
		}
		fmt.Fprintln(cmd.OutOrStdout())
	},
}
