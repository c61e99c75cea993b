// Package backendtest provides a scripted backend.Adapter for tests.
package backendtest

import (
	"context"
	"errors"
	"sync"

	"github.com/abdulachik/linkrunner/internal/backend"
	"github.com/abdulachik/linkrunner/internal/request"
)

// Adapter replays a fixed script. Statuses are returned in order and the
// last one repeats once the script is exhausted.
type Adapter struct {
	AdapterName string

	Submission backend.Submission
	SubmitErr  error

	Statuses []backend.Status
	PollErr  error

	// BlockPoll makes PollStatus wait for ctx cancellation.
	BlockPoll bool
	// IgnoreContext makes a blocked PollStatus wait for Release instead of
	// ctx. Register Release with t.Cleanup.
	IgnoreContext bool

	Result   backend.Payload
	FetchErr error

	releaseOnce sync.Once
	release     chan struct{}

	mu      sync.Mutex
	submits int
	polls   int
	fetches int
	last    request.Request
}

// ErrReleased is returned by a PollStatus that ignored its context once
// Release is called.
var ErrReleased = errors.New("backendtest: released")

func (a *Adapter) released() chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.release == nil {
		a.release = make(chan struct{})
	}
	return a.release
}

// Release unblocks every PollStatus waiting under IgnoreContext. It is safe
// to call more than once.
func (a *Adapter) Release() {
	ch := a.released()
	a.releaseOnce.Do(func() { close(ch) })
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	if a.AdapterName == "" {
		return "scripted"
	}
	return a.AdapterName
}

// Submit returns the scripted submission.
func (a *Adapter) Submit(ctx context.Context, req request.Request) (backend.Submission, error) {
	a.mu.Lock()
	a.submits++
	a.last = req
	a.mu.Unlock()

	if a.SubmitErr != nil {
		return backend.Submission{}, a.SubmitErr
	}
	return a.Submission, nil
}

// PollStatus returns the next scripted status.
func (a *Adapter) PollStatus(ctx context.Context, h backend.Handle) (backend.Status, error) {
	a.mu.Lock()
	n := a.polls
	a.polls++
	a.mu.Unlock()

	if a.BlockPoll {
		if a.IgnoreContext {
			<-a.released()
			return backend.Status{}, ErrReleased
		}
		<-ctx.Done()
		return backend.Status{}, ctx.Err()
	}
	if a.PollErr != nil {
		return backend.Status{}, a.PollErr
	}
	if len(a.Statuses) == 0 {
		return backend.Status{State: backend.StatePending}, nil
	}
	if n >= len(a.Statuses) {
		n = len(a.Statuses) - 1
	}
	return a.Statuses[n], nil
}

// FetchResult returns the scripted result.
func (a *Adapter) FetchResult(ctx context.Context, h backend.Handle) (backend.Payload, error) {
	a.mu.Lock()
	a.fetches++
	a.mu.Unlock()

	if a.FetchErr != nil {
		return nil, a.FetchErr
	}
	return a.Result, nil
}

// Submits returns the number of Submit calls.
func (a *Adapter) Submits() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.submits
}

// Polls returns the number of PollStatus calls.
func (a *Adapter) Polls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.polls
}

// Fetches returns the number of FetchResult calls.
func (a *Adapter) Fetches() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fetches
}

// LastRequest returns the request passed to the most recent Submit.
func (a *Adapter) LastRequest() request.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Pending is shorthand for a PENDING status.
func Pending() backend.Status { return backend.Status{State: backend.StatePending} }

// Done is shorthand for a DONE status.
func Done() backend.Status { return backend.Status{State: backend.StateDone} }

// Failed is shorthand for a FAILED status with a raw diagnostic body.
func Failed(raw string) backend.Status {
	return backend.Status{State: backend.StateFailed, Raw: []byte(raw)}
}
