package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdulachik/linkrunner/internal/config"
	"github.com/abdulachik/linkrunner/internal/db"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show run statistics",
	Long:  `Display how many runs are recorded in each status.`,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	counts, err := store.CountRunsByStatus(ctx)
	if err != nil {
		return fmt.Errorf("count runs: %w", err)
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== LinkRunner Statistics ===")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Runs:       %d\n", total)
	fmt.Fprintf(out, "  running:   %d\n", counts[db.RunStatusRunning])
	fmt.Fprintf(out, "  succeeded: %d\n", counts[db.RunStatusSucceeded])
	fmt.Fprintf(out, "  failed:    %d\n", counts[db.RunStatusFailed])
	return nil
}
