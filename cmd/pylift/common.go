package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/codewithboateng/pylift/internal/shared"
	"github.com/codewithboateng/pylift/internal/storage"
)

// loadConfig reads --config and installs the logger.
func loadConfig(cmd *cobra.Command) (shared.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := shared.LoadConfig(path)
	if err != nil {
		return cfg, nil, configFailure(err)
	}
	logger := shared.InitLogger(cfg.Logging.Format, cfg.Logging.Level)
	return cfg, logger, nil
}

// openDB opens the run store; --db overrides the config.
func openDB(cmd *cobra.Command, cfg shared.Config) (*storage.DB, string, error) {
	dsn, _ := cmd.Flags().GetString("db")
	if dsn == "" {
		dsn = cfg.Database.DSN
	}
	if cfg.Database.Driver != "" && cfg.Database.Driver != "sqlite" {
		return nil, dsn, configFailure(fmt.Errorf("unsupported database driver %q", cfg.Database.Driver))
	}
	db, err := storage.OpenSQLite(dsn)
	if err != nil {
		return nil, dsn, fmt.Errorf("db open: %w", err)
	}
	if err := db.CreateSchema(); err != nil {
		_ = db.Close()
		return nil, dsn, fmt.Errorf("db schema: %w", err)
	}
	return db, dsn, nil
}

func outDir(cmd *cobra.Command, cfg shared.Config) string {
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		return out
	}
	return cfg.Reporting.OutDir
}
