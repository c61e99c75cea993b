package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdulachik/linkrunner/internal/api"
	"github.com/abdulachik/linkrunner/internal/config"
	"github.com/abdulachik/linkrunner/internal/health"
	"github.com/abdulachik/linkrunner/internal/observability"
	"github.com/abdulachik/linkrunner/internal/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Long: `Run the LinkRunner HTTP service. Workflow runs are started over the API,
executed in the background and recorded in the database. Metrics are served
on a separate listener.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.ValidateForServe(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// Runs left running by a previous process can never finish.
	interrupted, err := store.FailInterruptedRuns(ctx, "interrupted by restart", time.Now().UTC())
	if err != nil {
		return fmt.Errorf("fail interrupted runs: %w", err)
	}
	if interrupted > 0 {
		slog.Warn("marked interrupted runs as failed", "count", interrupted)
	}

	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	registry, overrides, err := newRegistry(cfg)
	if err != nil {
		return fmt.Errorf("load workflows: %w", err)
	}

	tracker := health.NewTracker()
	healthChecker := health.NewChecker(store, tracker)

	runner := workflow.NewRunner(workflow.Options{
		Registry: registry,
		Config:   cfg,
		Executor: newExecutor(cfg, overrides, metrics),
		Store:    store,
		Notifier: newNotifier(cfg),
		Tracker:  tracker,
	})

	router := api.NewRouter(api.RouterConfig{
		Runner:        runner,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		APIKey:        cfg.APIKey,
	})

	if cfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no API_KEY configured")
	}

	// No WriteTimeout: ?wait=true holds the response for a whole run.
	apiServer := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         cfg.MetricsAddr,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 2)

	go func() {
		slog.Info("starting API server", "addr", cfg.HTTPAddr, "workflows", len(registry.List()))
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	go func() {
		slog.Info("starting metrics server", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	shutdown := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("server failed", "error", err)
		runErr = fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down...")
	healthChecker.SetShuttingDown()

	// In-flight runs are cancelled first so waiting requests can return.
	runner.Close()
	shutdown(10 * time.Second)

	return runErr
}
