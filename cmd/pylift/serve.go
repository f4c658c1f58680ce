package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codewithboateng/pylift/internal/api"
	"github.com/codewithboateng/pylift/internal/engine"
	"github.com/codewithboateng/pylift/internal/rules"
	"github.com/codewithboateng/pylift/internal/rulesdsl"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API (runs, diagnostics, waivers, analyze, metrics)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
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
	})
	if err != nil {
		return configFailure(err)
	}
	db, dsn, err := openDB(cmd, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	s := &api.Server{
		DB:              db,
		UserStore:       db,
		Engine:          eng,
		Registry:        reg,
		Logger:          logger,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		SessionDuration: time.Duration(cfg.Server.SessionHours) * time.Hour,
		MaxSourceBytes:  cfg.Analysis.MaxFileBytes,
	}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	logger.Info("api listening", slog.String("addr", cfg.Server.Addr), slog.String("db", dsn))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
