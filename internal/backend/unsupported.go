package backend

import (
	"context"
	"errors"

	"github.com/abdulachik/linkrunner/internal/request"
)

// ErrUnsupported matches errors returned by Unsupported adapters.
var ErrUnsupported = errors.New("operation not supported")

// UnsupportedError carries the fixed reason an operation is unavailable.
type UnsupportedError struct {
	Reason string
}

func (e *UnsupportedError) Error() string { return e.Reason }

func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }

// Unsupported is an adapter whose Submit always fails, so polling never starts.
type Unsupported struct {
	name   string
	reason string
}

// NewUnsupported creates a stub adapter for an unimplemented capability.
func NewUnsupported(name, reason string) *Unsupported {
	return &Unsupported{name: name, reason: reason}
}

// Name returns the adapter name.
func (u *Unsupported) Name() string {
	return u.name
}

// Submit always fails.
func (u *Unsupported) Submit(ctx context.Context, req request.Request) (Submission, error) {
	return Submission{}, &UnsupportedError{Reason: u.reason}
}

// PollStatus always fails.
func (u *Unsupported) PollStatus(ctx context.Context, h Handle) (Status, error) {
	return Status{}, &UnsupportedError{Reason: u.reason}
}

// FetchResult always fails.
func (u *Unsupported) FetchResult(ctx context.Context, h Handle) (Payload, error) {
	return nil, &UnsupportedError{Reason: u.reason}
}
