package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abdulachik/linkrunner/internal/config"
	"github.com/abdulachik/linkrunner/internal/db"
	"github.com/abdulachik/linkrunner/internal/notify"
	"github.com/abdulachik/linkrunner/internal/observability"
	"github.com/abdulachik/linkrunner/internal/poller"
	"github.com/abdulachik/linkrunner/internal/step"
	"github.com/abdulachik/linkrunner/internal/workflow"
)

// openStore connects to the run store and applies pending migrations.
func openStore(ctx context.Context, cfg *config.Config) (*db.Store, error) {
	slog.Info("connecting to database", "path", cfg.DatabasePath)
	store, err := db.NewStore(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// newRegistry returns the built-in workflows with WORKFLOWS_FILE applied.
func newRegistry(cfg *config.Config) (*workflow.Registry, *config.Overrides, error) {
	overrides, err := config.LoadOverrides(cfg.WorkflowsFile)
	if err != nil {
		return nil, nil, err
	}

	registry, err := workflow.NewRegistry(workflow.Defaults()...)
	if err != nil {
		return nil, nil, err
	}
	if err := registry.ApplyOverrides(overrides); err != nil {
		return nil, nil, err
	}
	return registry, overrides, nil
}

// newExecutor builds the step executor. metrics may be nil.
func newExecutor(cfg *config.Config, overrides *config.Overrides, metrics *observability.Metrics) *step.Executor {
	interval := cfg.PollInterval
	if overrides != nil && overrides.PollInterval > 0 {
		interval = overrides.PollInterval
	}

	engine := poller.New(poller.Config{
		Interval: interval,
		Metrics:  metrics,
		OnTransition: func(from, to poller.State) {
			slog.Debug("engine state changed", "from", from, "to", to)
		},
	})
	return step.New(step.Config{Engine: engine, Metrics: metrics})
}

// newNotifier always logs and also posts to NOTIFY_WEBHOOK_URL when set.
func newNotifier(cfg *config.Config) notify.Notifier {
	notifiers := notify.Multi{notify.NewLogNotifier()}
	if cfg.NotifyWebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(notify.WebhookConfig{URL: cfg.NotifyWebhookURL}))
	}
	return notifiers
}
