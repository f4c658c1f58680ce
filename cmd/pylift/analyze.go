package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codewithboateng/pylift/internal/engine"
	"github.com/codewithboateng/pylift/internal/ir"
	"github.com/codewithboateng/pylift/internal/parser"
	"github.com/codewithboateng/pylift/internal/reporting"
	"github.com/codewithboateng/pylift/internal/rules"
	"github.com/codewithboateng/pylift/internal/rulesdsl"
	"github.com/codewithboateng/pylift/internal/shared"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] [path...]",
	Short: "Analyze Python files or directories",
	Long: `Analyze every *.py file under the given paths (or analysis.sources from the
config). Exit status: 0 clean, 1 error-severity diagnostics, 2 configuration
error, 3 some files could not be analyzed.`,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.String("format", "", "output format (text|json|sarif|none); default from config")
	f.String("out", "", "directory for run JSON/HTML reports (default from config)")
	f.Bool("no-store", false, "do not persist the run or write report files")
	f.Int("jobs", 0, "max parallel workers (0=config or GOMAXPROCS)")
	f.StringSlice("enable", nil, "pattern ids to run (default all)")
	f.StringSlice("disable", nil, "pattern ids to skip")
	f.StringSlice("severity", nil, "severity overrides as id=level")
	f.String("min-severity", "", "drop diagnostics below this level (info|warning|error)")
	f.StringSlice("include", nil, "file name globs to analyze (default *.py)")
	f.StringSlice("rules", nil, "extra YAML rule packs")
	f.Bool("show-fix", false, "print suggested fixes in text output")
	f.Bool("no-color", false, "disable colored text output")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	started := time.Now()
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyAnalyzeFlags(cmd, &cfg); err != nil {
		return configFailure(err)
	}

	// precedence: args > config
	sources := args
	if len(sources) == 0 {
		sources = cfg.Analysis.Sources
	}
	if len(sources) == 0 {
		return exitWith(reporting.ExitConfig, errors.New("analyze: a path argument (or analysis.sources in config) is required"))
	}

	reg, err := rulesdsl.Extend(rules.Builtin(), cfg.Analysis.RulePacks)
	if err != nil {
		return configFailure(err)
	}
	eng, err := engine.New(engine.Options{
		Registry:    reg,
		Settings:    cfg.Settings(),
		Logger:      logger,
		MaxFileSize: cfg.Analysis.MaxFileBytes,
		Jobs:        cfg.Analysis.Jobs,
	})
	if err != nil {
		return configFailure(err)
	}

	var files []parser.File
	for _, src := range sources {
		fs, err := parser.Discover(src, cfg.Analysis.Include)
		if err != nil {
			return configFailure(err)
		}
		files = append(files, fs...)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rep, err := eng.AnalyzeFiles(ctx, files)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return exitWith(reporting.ExitFailures, err)
		}
		return err
	}
	for i := range rep.Faults {
		logger.Warn("pattern skipped for file", slog.String("pattern", rep.Faults[i].PatternID), slog.String("file", rep.Faults[i].Path))
	}

	run := rep.Run(uuid.NewString(), strings.Join(sources, ","), started, eng.Context())
	noStore, _ := cmd.Flags().GetBool("no-store")
	if !noStore {
		if err := persistRun(cmd, cfg, logger, &run); err != nil {
			return err
		}
	}

	if err := writeOutput(cmd, cfg, eng, &run, files); err != nil {
		return err
	}
	logger.Info("analyze complete",
		slog.String("run", run.ID),
		slog.Int("files", len(run.Files)),
		slog.Int("diagnostics", len(run.Diagnostics)),
		slog.Int("failures", len(run.Failures)),
		slog.Int("waived", run.Waived),
		slog.Duration("elapsed", time.Since(started)),
	)
	if code := reporting.ExitCode(run.Diagnostics, run.Failures); code != reporting.ExitClean {
		return exitWith(code, nil)
	}
	return nil
}

// applyAnalyzeFlags layers command-line flags over the loaded config.
func applyAnalyzeFlags(cmd *cobra.Command, cfg *shared.Config) error {
	f := cmd.Flags()
	if v, _ := f.GetString("format"); v != "" {
		cfg.Reporting.Format = v
	}
	if v, _ := f.GetInt("jobs"); v > 0 {
		cfg.Analysis.Jobs = v
	}
	if v, _ := f.GetStringSlice("enable"); len(v) > 0 {
		cfg.Analysis.Enabled = v
	}
	if v, _ := f.GetStringSlice("disable"); len(v) > 0 {
		cfg.Analysis.Disabled = append(cfg.Analysis.Disabled, v...)
	}
	if v, _ := f.GetString("min-severity"); v != "" {
		cfg.Analysis.MinSeverity = v
	}
	if v, _ := f.GetStringSlice("include"); len(v) > 0 {
		cfg.Analysis.Include = v
	}
	if v, _ := f.GetStringSlice("rules"); len(v) > 0 {
		cfg.Analysis.RulePacks = append(cfg.Analysis.RulePacks, v...)
	}
	overrides, _ := f.GetStringSlice("severity")
	for _, kv := range overrides {
		id, level, ok := strings.Cut(kv, "=")
		if !ok {
			return &rules.ConfigurationError{Field: "severity", Value: kv, Reason: "want id=level"}
		}
		if cfg.Analysis.SeverityOverride == nil {
			cfg.Analysis.SeverityOverride = map[string]string{}
		}
		cfg.Analysis.SeverityOverride[strings.TrimSpace(id)] = strings.TrimSpace(level)
	}
	switch cfg.Reporting.Format {
	case "text", "json", "sarif", "none":
	default:
		return &rules.ConfigurationError{Field: "format", Value: cfg.Reporting.Format, Reason: "want text, json, sarif or none"}
	}
	return nil
}

// persistRun applies active waivers, stores the run and writes report files.
func persistRun(cmd *cobra.Command, cfg shared.Config, logger *slog.Logger, run *ir.Run) error {
	db, dsn, err := openDB(cmd, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ws, err := db.ListWaivers(true)
	if err != nil {
		return fmt.Errorf("list waivers: %w", err)
	}
	run.Diagnostics, run.Waived = rules.ApplyWaivers(run.Diagnostics, ws)
	if err := db.SaveRun(run); err != nil {
		return fmt.Errorf("db save run: %w", err)
	}

	out := outDir(cmd, cfg)
	jsonPath, err := reporting.WriteRunJSON(run.ID, out, run)
	if err != nil {
		return fmt.Errorf("write run json: %w", err)
	}
	htmlPath, err := reporting.WriteHTML(run.ID, out, run)
	if err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	logger.Debug("run stored", slog.String("run", run.ID), slog.String("db", dsn),
		slog.String("json", jsonPath), slog.String("html", htmlPath))
	return nil
}

func writeOutput(cmd *cobra.Command, cfg shared.Config, eng *engine.Engine, run *ir.Run, files []parser.File) error {
	w := cmd.OutOrStdout()
	switch cfg.Reporting.Format {
	case "json":
		return reporting.WriteJSON(w, run.Diagnostics)
	case "sarif":
		return reporting.WriteSARIF(w, version, eng.Selected(), run.Diagnostics)
	case "none":
		return nil
	}
	showFix, _ := cmd.Flags().GetBool("show-fix")
	noColor, _ := cmd.Flags().GetBool("no-color")
	snippets := make(map[string][]byte, len(files))
	for _, f := range files {
		if f.Err == nil {
			snippets[f.Path] = f.Text
		}
	}
	return reporting.WriteText(w, run.Diagnostics, run.Failures, reporting.TextOptions{
		NoColor:  noColor,
		ShowFix:  showFix,
		Snippets: snippets,
	})
}
