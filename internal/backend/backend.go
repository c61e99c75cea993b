// Package backend defines the contract every external job provider implements.
package backend

import (
	"context"
	"encoding/json"

	"github.com/abdulachik/linkrunner/internal/request"
)

// Handle identifies an in-flight job. It is only meaningful to the adapter
// that issued it.
type Handle string

// State is the tag of a job status observation.
type State int

const (
	StatePending State = iota
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Status is one poll observation. Raw carries the provider response for
// diagnostics; control flow only looks at State.
type Status struct {
	State State
	Raw   json.RawMessage
}

// Payload is the final artifact of a job.
type Payload map[string]any

// Empty reports whether the payload carries no data.
func (p Payload) Empty() bool {
	return len(p) == 0
}

// Submission is the outcome of starting a job: either a Handle to poll or
// a Result the provider returned synchronously.
type Submission struct {
	Handle Handle
	Result Payload
}

// Pending returns a submission that must be polled.
func Pending(h Handle) Submission {
	return Submission{Handle: h}
}

// Immediate returns a submission that already carries its result.
func Immediate(p Payload) Submission {
	return Submission{Result: p}
}

// IsImmediate reports whether no polling is needed.
func (s Submission) IsImmediate() bool {
	return s.Handle == ""
}

// Adapter is the uniform interface over an external provider.
//
// Adapters wrap every transport or provider error as apperrors.Adapter and
// never sleep or retry; retry policy is not theirs to decide.
type Adapter interface {
	// Name identifies the adapter in logs and metrics.
	Name() string

	// Submit starts the external job.
	Submit(ctx context.Context, req request.Request) (Submission, error)

	// PollStatus performs exactly one status check.
	PollStatus(ctx context.Context, h Handle) (Status, error)

	// FetchResult retrieves the artifact. Only valid after a StateDone poll.
	FetchResult(ctx context.Context, h Handle) (Payload, error)
}
