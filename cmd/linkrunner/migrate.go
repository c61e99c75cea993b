package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/abdulachik/linkrunner/internal/config"
	"github.com/abdulachik/linkrunner/internal/db"
)

var migrateStatus bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run all pending database migrations to set up or update the schema.

Examples:
  linkrunner migrate           # Apply pending migrations
  linkrunner migrate --status  # Show applied and pending migrations`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "Show migration status without applying anything")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	slog.Info("connecting to database", "path", cfg.DatabasePath)
	store, err := db.NewStore(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer store.Close()

	if migrateStatus {
		return printMigrationStatus(ctx, cmd, store)
	}

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("migrations completed successfully")
	return nil
}

func printMigrationStatus(ctx context.Context, cmd *cobra.Command, store *db.Store) error {
	applied, err := store.AppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}
	pending, err := store.PendingMigrations(ctx)
	if err != nil {
		return fmt.Errorf("list pending migrations: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, v := range applied {
		fmt.Fprintf(out, "applied  %s\n", v)
	}
	for _, v := range pending {
		fmt.Fprintf(out, "pending  %s\n", v)
	}
	if len(pending) == 0 {
		fmt.Fprintln(out, "Database is up to date.")
	}
	return nil
}
