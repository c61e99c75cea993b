// Package poller drives a backend adapter from submission to a terminal state.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdulachik/linkrunner/internal/apperrors"
	"github.com/abdulachik/linkrunner/internal/backend"
	"github.com/abdulachik/linkrunner/internal/observability"
	"github.com/abdulachik/linkrunner/internal/request"
)

// DefaultInterval is the wait between polls when none is configured.
const DefaultInterval = 5 * time.Second

// State is the engine's position in a job's lifecycle.
type State int

const (
	StateSubmitted State = iota
	StatePolling
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSubmitted:
		return "SUBMITTED"
	case StatePolling:
		return "POLLING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Config holds engine configuration.
type Config struct {
	// Interval is the fixed wait between polls. There is no backoff and no
	// attempt limit; the caller's context is the only ceiling.
	Interval time.Duration

	// Metrics is optional.
	Metrics *observability.Metrics

	// OnTransition, if set, is called on every state change.
	OnTransition func(from, to State)
}

// Engine runs submit, poll-until-terminal and fetch against one adapter.
// An Engine holds no per-job state and is safe for concurrent use.
type Engine struct {
	interval     time.Duration
	metrics      *observability.Metrics
	onTransition func(from, to State)
}

// New creates a new engine.
func New(cfg Config) *Engine {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Engine{
		interval:     interval,
		metrics:      cfg.Metrics,
		onTransition: cfg.OnTransition,
	}
}

// Interval returns the configured poll interval.
func (e *Engine) Interval() time.Duration {
	return e.interval
}

// job tracks one Run invocation.
type job struct {
	engine  *Engine
	adapter backend.Adapter
	state   State
	handle  backend.Handle
}

func (j *job) transition(to State) {
	from := j.state
	if from == to {
		return
	}
	j.state = to
	if j.engine.onTransition != nil {
		j.engine.onTransition(from, to)
	}
}

func (j *job) fail(err error) (backend.Payload, error) {
	j.transition(StateFailed)
	return nil, err
}

// Run submits req and returns the job's result. It returns when the job
// reaches DONE or FAILED, or when ctx is done.
func (e *Engine) Run(ctx context.Context, adapter backend.Adapter, req request.Request) (backend.Payload, error) {
	j := &job{engine: e, adapter: adapter, state: StateSubmitted}
	name := adapter.Name()

	sub, err := adapter.Submit(ctx, req)
	if err != nil {
		return j.fail(asAdapterError(name+".submit", err))
	}

	if e.metrics != nil {
		e.metrics.RecordSubmission(ctx, name, sub.IsImmediate())
	}

	if sub.IsImmediate() {
		if sub.Result.Empty() {
			return j.fail(apperrors.EmptyResponse(name + ".submit"))
		}
		slog.Info("job completed synchronously", "adapter", name)
		j.transition(StateDone)
		return sub.Result, nil
	}

	j.handle = sub.Handle
	j.transition(StatePolling)
	slog.Info("job submitted", "adapter", name, "handle", j.handle)

	return j.poll(ctx)
}

func (j *job) poll(ctx context.Context) (backend.Payload, error) {
	e := j.engine
	name := j.adapter.Name()

	for {
		status, err := j.adapter.PollStatus(ctx, j.handle)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return j.fail(ctxErr)
			}
			return j.fail(asAdapterError(name+".poll", err))
		}

		if e.metrics != nil {
			e.metrics.RecordPoll(ctx, name, status.State.String())
		}

		switch status.State {
		case backend.StateDone:
			return j.fetch(ctx)

		case backend.StateFailed:
			slog.Info("job failed", "adapter", name, "handle", j.handle)
			return j.fail(apperrors.JobFailed(string(j.handle), string(status.Raw)))

		case backend.StatePending:
			slog.Debug("job pending", "adapter", name, "handle", j.handle, "retry_in", e.interval)

		default:
			return j.fail(apperrors.Adapter(name+".poll", fmt.Errorf("unknown job state %v", status.State)))
		}

		if err := wait(ctx, e.interval); err != nil {
			return j.fail(err)
		}
	}
}

// wait suspends for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (j *job) fetch(ctx context.Context) (backend.Payload, error) {
	name := j.adapter.Name()

	payload, err := j.adapter.FetchResult(ctx, j.handle)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return j.fail(ctxErr)
		}
		return j.fail(asAdapterError(name+".fetch", err))
	}
	if payload.Empty() {
		return j.fail(apperrors.EmptyResult(string(j.handle)))
	}

	slog.Info("job completed", "adapter", name, "handle", j.handle)
	j.transition(StateDone)
	return payload, nil
}

// asAdapterError wraps errors the adapter left unclassified.
func asAdapterError(op string, err error) error {
	if apperrors.Kind(err) != nil {
		return err
	}
	return apperrors.Adapter(op, err)
}
