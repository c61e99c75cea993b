// Package step runs one polling job under a deadline and reduces every
// failure to a single outcome type.
package step

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdulachik/linkrunner/internal/apperrors"
	"github.com/abdulachik/linkrunner/internal/backend"
	"github.com/abdulachik/linkrunner/internal/observability"
	"github.com/abdulachik/linkrunner/internal/poller"
	"github.com/abdulachik/linkrunner/internal/request"
)

// Failure is the externally visible form of every step error.
type Failure struct {
	Op        string
	Reason    string // "<op> failed: <cause>"
	Permanent bool
	Err       error
}

func (f *Failure) Error() string {
	return f.Reason
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Outcome is either a successful payload or a Failure.
type Outcome struct {
	Payload backend.Payload
	Failure *Failure
}

// Success returns a successful outcome.
func Success(p backend.Payload) Outcome {
	return Outcome{Payload: p}
}

// OK reports whether the step succeeded.
func (o Outcome) OK() bool {
	return o.Failure == nil
}

// Err returns the failure as an error, or nil on success.
func (o Outcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return o.Failure
}

// Classifier reports whether err is permanent, i.e. must not be retried.
type Classifier func(err error) bool

// AllPermanent treats every failure as permanent.
func AllPermanent(error) bool {
	return true
}

// TransientAdapterErrors marks transport and provider errors as retryable.
// Every other kind, including deadlines, stays permanent.
func TransientAdapterErrors(err error) bool {
	return !errors.Is(apperrors.Kind(err), apperrors.ErrAdapter)
}

// Config holds executor configuration.
type Config struct {
	Engine *poller.Engine

	// Classifier defaults to AllPermanent.
	Classifier Classifier

	// Metrics is optional.
	Metrics *observability.Metrics
}

// Executor wraps engine runs with a deadline.
type Executor struct {
	engine     *poller.Engine
	classifier Classifier
	metrics    *observability.Metrics
}

// New creates a new executor.
func New(cfg Config) *Executor {
	engine := cfg.Engine
	if engine == nil {
		engine = poller.New(poller.Config{Metrics: cfg.Metrics})
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = AllPermanent
	}
	return &Executor{
		engine:     engine,
		classifier: classifier,
		metrics:    cfg.Metrics,
	}
}

type result struct {
	payload backend.Payload
	err     error
}

// Execute runs adapter against req. A timeout of zero means no deadline
// beyond ctx. When the deadline elapses the in-flight run is abandoned
// and its context cancelled; no partial result is returned.
func (x *Executor) Execute(ctx context.Context, name string, adapter backend.Adapter, req request.Request, timeout time.Duration) Outcome {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	if x.metrics != nil {
		x.metrics.RecordStepStarted(ctx, name)
	}

	slog.Info("step started", "step", name, "adapter", adapter.Name(), "timeout", timeout)

	results := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		payload, err := x.engine.Run(ctx, adapter, req)
		results <- result{payload: payload, err: err}
	}()

	var res result
	select {
	case res = <-results:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() != nil {
		res.err = apperrors.DeadlineExceeded(name, res.err)
	}

	outcome := Success(res.payload)
	if res.err != nil {
		outcome = x.Fail(name, res.err)
	}

	if x.metrics != nil {
		x.metrics.RecordStepCompleted(context.WithoutCancel(ctx), name, outcome.OK(), kindOf(res.err), time.Since(start).Seconds())
	}
	if outcome.OK() {
		slog.Info("step succeeded", "step", name, "duration", time.Since(start))
	}

	return outcome
}

// Fail converts err into a failed outcome. Errors raised before the engine
// runs, such as validation or configuration errors, go through here too.
func (x *Executor) Fail(name string, err error) Outcome {
	var f *Failure
	if errors.As(err, &f) {
		return Outcome{Failure: f}
	}

	f = &Failure{
		Op:        name,
		Reason:    fmt.Sprintf("%s failed: %v", name, err),
		Permanent: x.classifier(err),
		Err:       err,
	}

	slog.Error("step failed", "step", name, "error", f.Reason, "permanent", f.Permanent)
	return Outcome{Failure: f}
}

// kindOf names the error kind for metrics.
func kindOf(err error) string {
	switch apperrors.Kind(err) {
	case nil:
		if err == nil {
			return ""
		}
		return "unknown"
	case apperrors.ErrConfiguration:
		return "configuration"
	case apperrors.ErrValidation:
		return "validation"
	case apperrors.ErrDeadlineExceeded:
		return "deadline_exceeded"
	case apperrors.ErrJobFailed:
		return "job_failed"
	case apperrors.ErrEmptyResult:
		return "empty_result"
	default:
		return "adapter"
	}
}
