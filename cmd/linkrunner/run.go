package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abdulachik/linkrunner/internal/config"
	"github.com/abdulachik/linkrunner/internal/db"
	"github.com/abdulachik/linkrunner/internal/request"
	"github.com/abdulachik/linkrunner/internal/workflow"
)

var runInput string

var runCmd = &cobra.Command{
	Use:   "run <workflow>",
	Short: "Run a workflow and wait for its result",
	Long: `Run one workflow to completion and print its result as JSON.
The command exits non-zero when the run fails.

Examples:
  linkrunner run get-profile --input '{"profile_url":"https://www.linkedin.com/in/someone/"}'
  linkrunner run create-post --input '{"text":"Hello LinkedIn"}'
  linkrunner run save-lead --input '{"linkedin_profile_url":"https://www.linkedin.com/in/someone/"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "Workflow input as a JSON object")
	_ = runCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	raw, err := request.Decode([]byte(runInput))
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	registry, overrides, err := newRegistry(cfg)
	if err != nil {
		return fmt.Errorf("load workflows: %w", err)
	}

	runner := workflow.NewRunner(workflow.Options{
		Registry: registry,
		Config:   cfg,
		Executor: newExecutor(cfg, overrides, nil),
		Store:    store,
		Notifier: newNotifier(cfg),
	})
	defer runner.Close()

	run, err := runner.Execute(ctx, args[0], raw)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true
	if run.Status != db.RunStatusSucceeded {
		return fmt.Errorf("run %s: %s", run.ID, run.Error.String)
	}

	return printJSON(cmd, json.RawMessage(run.Result.String))
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
