package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codewithboateng/pylift/internal/reporting"
	"github.com/codewithboateng/pylift/internal/security"
	"github.com/codewithboateng/pylift/internal/storage"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage API users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create an API user (password from --password or PYLIFT_PASSWORD)",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

func init() {
	userAddCmd.Flags().String("role", "viewer", "role (viewer|admin)")
	userAddCmd.Flags().String("password", "", "password (prefer PYLIFT_PASSWORD)")
	userCmd.AddCommand(userAddCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	roleFlag, _ := cmd.Flags().GetString("role")
	role, err := storage.ParseRole(roleFlag)
	if err != nil {
		return exitWith(reporting.ExitConfig, fmt.Errorf("user add: %w", err))
	}
	pw, _ := cmd.Flags().GetString("password")
	if pw == "" {
		pw = os.Getenv("PYLIFT_PASSWORD")
	}
	if err := security.ValidatePassword(pw); err != nil {
		return exitWith(reporting.ExitConfig, fmt.Errorf("user add: %w", err))
	}
	hash, err := security.HashPassword(pw)
	if err != nil {
		return err
	}

	db, _, err := openDB(cmd, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	id, err := db.CreateUser(args[0], hash, role)
	if errors.Is(err, storage.ErrUserExists) {
		return exitWith(reporting.ExitConfig, fmt.Errorf("user add: %w", err))
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	_ = db.LogAudit("cli", "user:create", args[0], map[string]any{"role": string(role)})
	fmt.Fprintf(cmd.OutOrStdout(), "User OK\n  ID: %d\n  Username: %s\n  Role: %s\n", id, args[0], role)
	return nil
}
