// Package notify reports finished runs.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Notification describes a finished run.
type Notification struct {
	Subject    string          `json:"subject"`
	Body       string          `json:"body"`
	RunID      string          `json:"run_id"`
	Workflow   string          `json:"workflow"`
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
	Permanent  bool            `json:"permanent,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Notifier is the interface for sending notifications.
type Notifier interface {
	// Send sends a notification.
	Send(ctx context.Context, notification Notification) error
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

// Send sends to every notifier and joins their errors.
func (m Multi) Send(ctx context.Context, notification Notification) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, notification); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
