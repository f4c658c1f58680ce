package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codewithboateng/pylift/internal/reporting"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Regenerate JSON/HTML reports for a stored run",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare the diagnostics of two stored runs",
	Args:  cobra.NoArgs,
	RunE:  runDiff,
}

func init() {
	reportCmd.Flags().String("run", "latest", "run id, or latest")
	reportCmd.Flags().String("out", "", "output directory (default from config)")
	reportCmd.Flags().Bool("no-color", false, "disable colored text output")

	diffCmd.Flags().String("base", "", "base run id")
	diffCmd.Flags().String("head", "latest", "head run id, or latest")
	diffCmd.Flags().String("out", "", "output directory (default from config)")
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	db, _, err := openDB(cmd, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	id, _ := cmd.Flags().GetString("run")
	if id == "latest" {
		if id, err = db.LatestRunID(); err != nil {
			return fmt.Errorf("no stored runs: %w", err)
		}
	}
	run, err := db.LoadRun(id)
	if err != nil {
		return fmt.Errorf("load run %s: %w", id, err)
	}
	out := outDir(cmd, cfg)
	jsonPath, err := reporting.WriteRunJSON(run.ID, out, &run)
	if err != nil {
		return err
	}
	htmlPath, err := reporting.WriteHTML(run.ID, out, &run)
	if err != nil {
		return err
	}
	noColor, _ := cmd.Flags().GetBool("no-color")
	w := cmd.OutOrStdout()
	if err := reporting.WriteText(w, run.Diagnostics, run.Failures, reporting.TextOptions{NoColor: noColor}); err != nil {
		return err
	}
	fmt.Fprintf(w, "Report OK\n  Run: %s\n  JSON: %s\n  HTML: %s\n", run.ID, jsonPath, htmlPath)
	return nil
}

func runDiff(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	base, _ := cmd.Flags().GetString("base")
	head, _ := cmd.Flags().GetString("head")
	if base == "" {
		return exitWith(reporting.ExitConfig, errors.New("diff: --base is required"))
	}
	db, _, err := openDB(cmd, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if head == "latest" {
		if head, err = db.LatestRunID(); err != nil {
			return fmt.Errorf("no stored runs: %w", err)
		}
	}
	br, err := db.LoadRun(base)
	if err != nil {
		return fmt.Errorf("load base run: %w", err)
	}
	hr, err := db.LoadRun(head)
	if err != nil {
		return fmt.Errorf("load head run: %w", err)
	}
	path, payload, err := reporting.WriteDiffJSON(base, head, outDir(cmd, cfg), &br, &hr)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Diff OK\n  new: %d  removed: %d  changed: %d\n  %s\n",
		payload.Summary.NewCount, payload.Summary.RemovedCount, payload.Summary.ChangedCount, path)
	return nil
}
