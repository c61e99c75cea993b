package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdulachik/linkrunner/internal/backend"
	"github.com/abdulachik/linkrunner/internal/config"
	"github.com/abdulachik/linkrunner/internal/db"
	"github.com/abdulachik/linkrunner/internal/workflow"
)

var (
	runsWorkflow string
	runsStatus   string
	runsLimit    int
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List recorded runs or show one",
	Long: `List recorded workflow runs, newest first, or show a single run as JSON.

Examples:
  linkrunner runs
  linkrunner runs --workflow get-profile --status failed
  linkrunner runs 6f1c9a52-0d5e-4c1b-9a53-1d9f7e0f3b21`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsWorkflow, "workflow", "", "Only show runs of this workflow")
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "Only show runs in this status (running, succeeded, failed)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to show")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
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

	if len(args) == 1 {
		run, err := store.GetRun(ctx, args[0])
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", workflow.ErrRunNotFound, args[0])
		}
		if err != nil {
			return fmt.Errorf("get run: %w", err)
		}
		return printJSON(cmd, newRunView(run))
	}

	runs, err := store.ListRuns(ctx, db.ListRunsParams{
		Workflow: runsWorkflow,
		Status:   runsStatus,
		Limit:    runsLimit,
	})
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWORKFLOW\tSTATUS\tSTARTED\tDURATION\tERROR")
	for _, run := range runs {
		duration := "-"
		if run.FinishedAt.Valid {
			duration = run.FinishedAt.Time.Sub(run.CreatedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			run.ID,
			run.Workflow,
			run.Status,
			run.CreatedAt.Format(time.RFC3339),
			duration,
			backend.Truncate(run.Error.String, 60),
		)
	}
	return tw.Flush()
}

// runView is the JSON shape printed for a single run.
type runView struct {
	ID         string          `json:"id"`
	Workflow   string          `json:"workflow"`
	Status     string          `json:"status"`
	Input      json.RawMessage `json:"input"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	Permanent  bool            `json:"permanent,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

func newRunView(run db.Run) runView {
	v := runView{
		ID:        run.ID,
		Workflow:  run.Workflow,
		Status:    run.Status,
		Input:     json.RawMessage(run.Input),
		Error:     run.Error.String,
		Permanent: run.Permanent,
		CreatedAt: run.CreatedAt,
	}
	if run.Result.Valid {
		v.Result = json.RawMessage(run.Result.String)
	}
	if run.FinishedAt.Valid {
		v.FinishedAt = &run.FinishedAt.Time
	}
	return v
}
