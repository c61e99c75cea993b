package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abdulachik/linkrunner/internal/backend"
	"github.com/abdulachik/linkrunner/internal/config"
	"github.com/abdulachik/linkrunner/internal/db"
	"github.com/abdulachik/linkrunner/internal/health"
	"github.com/abdulachik/linkrunner/internal/notify"
	"github.com/abdulachik/linkrunner/internal/request"
	"github.com/abdulachik/linkrunner/internal/step"
)

var (
	// ErrRunNotFound is returned when a run ID does not exist.
	ErrRunNotFound = errors.New("run not found")
	// ErrRunnerClosed is returned by Start after Close.
	ErrRunnerClosed = errors.New("runner is closed")
)

// Options holds runner dependencies. Notifier and Tracker are optional.
type Options struct {
	Registry *Registry
	Config   *config.Config
	Executor *step.Executor
	Store    *db.Store
	Notifier notify.Notifier
	Tracker  *health.Tracker
}

// Runner starts workflows, records each run and reports the outcome.
type Runner struct {
	registry *Registry
	cfg      *config.Config
	executor *step.Executor
	store    *db.Store
	notifier notify.Notifier
	tracker  *health.Tracker

	newID func() string
	now   func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewRunner creates a new runner.
func NewRunner(opts Options) *Runner {
	executor := opts.Executor
	if executor == nil {
		executor = step.New(step.Config{})
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		registry: opts.Registry,
		cfg:      opts.Config,
		executor: executor,
		store:    opts.Store,
		notifier: opts.Notifier,
		tracker:  opts.Tracker,
		newID:    uuid.NewString,
		now:      func() time.Time { return time.Now().UTC() },
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// Registry returns the runner's workflow registry.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// RunStep runs one step of a workflow against its backend under timeout.
// Every error is returned as a *step.Failure.
func (r *Runner) RunStep(ctx context.Context, name string, input request.Request, timeout time.Duration) (backend.Payload, error) {
	def, err := r.registry.Get(name)
	if err != nil {
		return nil, r.executor.Fail(name, err).Err()
	}

	adapter, err := def.Backend(r.cfg)
	if err != nil {
		return nil, r.executor.Fail(name, err).Err()
	}

	outcome := r.executor.Execute(ctx, name, adapter, input, timeout)
	return outcome.Payload, outcome.Err()
}

// prepare validates raw input and records a new run.
func (r *Runner) prepare(ctx context.Context, name string, raw map[string]any) (Definition, request.Request, db.Run, error) {
	def, err := r.registry.Get(name)
	if err != nil {
		return Definition{}, nil, db.Run{}, err
	}

	req, err := def.Parse(raw)
	if err != nil {
		return Definition{}, nil, db.Run{}, err
	}

	input, err := json.Marshal(req.Values())
	if err != nil {
		return Definition{}, nil, db.Run{}, fmt.Errorf("marshal input: %w", err)
	}

	run, err := r.store.CreateRun(ctx, db.CreateRunParams{
		ID:        r.newID(),
		Workflow:  def.Name,
		Input:     string(input),
		CreatedAt: r.now(),
	})
	if err != nil {
		return Definition{}, nil, db.Run{}, fmt.Errorf("create run: %w", err)
	}

	slog.Info("run started", "run_id", run.ID, "workflow", def.Name)
	return def, req, run, nil
}

// Execute runs a workflow and waits for it to finish. Validation and
// unknown-workflow errors are returned before a run is recorded; otherwise
// the finished run is returned and its status tells success from failure.
func (r *Runner) Execute(ctx context.Context, name string, raw map[string]any) (db.Run, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return db.Run{}, ErrRunnerClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()
	defer r.wg.Done()

	def, req, run, err := r.prepare(ctx, name, raw)
	if err != nil {
		return db.Run{}, err
	}

	// Close cancels synchronous runs as well.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(r.baseCtx, cancel)
	defer stop()

	r.finish(ctx, run.ID, def, req)
	return r.Get(context.WithoutCancel(ctx), run.ID)
}

// Start records a run and executes it in the background.
func (r *Runner) Start(ctx context.Context, name string, raw map[string]any) (db.Run, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return db.Run{}, ErrRunnerClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()

	def, req, run, err := r.prepare(ctx, name, raw)
	if err != nil {
		r.wg.Done()
		return db.Run{}, err
	}

	go func() {
		defer r.wg.Done()
		r.finish(r.baseCtx, run.ID, def, req)
	}()

	return run, nil
}

// finish executes the run's step and records its outcome.
func (r *Runner) finish(ctx context.Context, id string, def Definition, req request.Request) {
	payload, err := r.RunStep(ctx, def.Name, req, def.Timeout)

	// The outcome is recorded even when ctx was cancelled mid-run.
	recordCtx := context.WithoutCancel(ctx)
	finishedAt := r.now()

	n := notify.Notification{
		RunID:      id,
		Workflow:   def.Name,
		FinishedAt: finishedAt,
	}

	if err == nil {
		result, marshalErr := json.Marshal(payload)
		if marshalErr != nil {
			err = r.executor.Fail(def.Name, fmt.Errorf("marshal result: %w", marshalErr)).Err()
		} else {
			if err := r.store.CompleteRun(recordCtx, db.CompleteRunParams{
				ID:         id,
				Result:     string(result),
				FinishedAt: finishedAt,
			}); err != nil {
				slog.Error("failed to record run", "run_id", id, "error", err)
			}

			if r.tracker != nil {
				r.tracker.SetHealthy(def.Name, fmt.Sprintf("run %s succeeded", id))
			}

			n.Subject = fmt.Sprintf("%s succeeded", def.Name)
			n.Status = db.RunStatusSucceeded
			n.Result = result
			slog.Info("run succeeded", "run_id", id, "workflow", def.Name)
			r.notify(recordCtx, n)
			return
		}
	}

	permanent := true
	var f *step.Failure
	if errors.As(err, &f) {
		permanent = f.Permanent
	}

	if err := r.store.FailRun(recordCtx, db.FailRunParams{
		ID:         id,
		Error:      err.Error(),
		Permanent:  permanent,
		FinishedAt: finishedAt,
	}); err != nil {
		slog.Error("failed to record run", "run_id", id, "error", err)
	}

	if r.tracker != nil {
		r.tracker.SetUnhealthy(def.Name, err)
	}

	n.Subject = fmt.Sprintf("%s failed", def.Name)
	n.Status = db.RunStatusFailed
	n.Error = err.Error()
	n.Permanent = permanent
	slog.Warn("run failed", "run_id", id, "workflow", def.Name, "error", err)
	r.notify(recordCtx, n)
}

func (r *Runner) notify(ctx context.Context, n notify.Notification) {
	if r.notifier == nil {
		return
	}
	n.Body = n.Subject
	if n.Error != "" {
		n.Body = n.Error
	}
	if err := r.notifier.Send(ctx, n); err != nil {
		slog.Warn("failed to send notification", "run_id", n.RunID, "error", err)
	}
}

// Get returns a run by ID.
func (r *Runner) Get(ctx context.Context, id string) (db.Run, error) {
	run, err := r.store.GetRun(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// List returns recorded runs, newest first.
func (r *Runner) List(ctx context.Context, params db.ListRunsParams) ([]db.Run, error) {
	return r.store.ListRuns(ctx, params)
}

// Close cancels in-flight runs and waits for them to be recorded.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}
