package phantombuster

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abdulachik/linkrunner/internal/apperrors"
	"github.com/abdulachik/linkrunner/internal/backend"
	"github.com/abdulachik/linkrunner/internal/request"
)

// errSynchronous is returned when the engine tries to poll a synchronous adapter.
var errSynchronous = fmt.Errorf("lead save completes synchronously and has no job to poll")

// LeadsAdapter saves a profile into PhantomBuster's lead storage. The call
// completes synchronously, so Submit always returns an immediate result.
type LeadsAdapter struct {
	*client
}

// NewLeadsAdapter creates a leads adapter.
func NewLeadsAdapter(cfg Config) (*LeadsAdapter, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &LeadsAdapter{client: c}, nil
}

// Name returns the adapter name.
func (a *LeadsAdapter) Name() string {
	return "phantombuster.leads"
}

// saveLeadRequest is the request body for saving a lead.
type saveLeadRequest struct {
	LinkedinProfileURL string `json:"linkedinProfileUrl"`
}

// Submit saves the lead.
func (a *LeadsAdapter) Submit(ctx context.Context, req request.Request) (backend.Submission, error) {
	const op = "phantombuster.leads.submit"

	lead, ok := req.(request.Lead)
	if !ok {
		return backend.Submission{}, apperrors.Adapter(op, fmt.Errorf("unsupported request schema"))
	}

	slog.Info("saving lead", "profile_url", lead.ProfileURL())

	httpReq, err := a.newRequest(ctx, "POST", leadsSavePath, saveLeadRequest{LinkedinProfileURL: lead.ProfileURL()})
	if err != nil {
		return backend.Submission{}, apperrors.Adapter(op, err)
	}

	var resp map[string]any
	if _, err := backend.DoJSON(a.httpClient, httpReq, &resp); err != nil {
		return backend.Submission{}, apperrors.Adapter(op, err)
	}

	return backend.Immediate(backend.Payload(resp)), nil
}

// PollStatus is not applicable.
func (a *LeadsAdapter) PollStatus(ctx context.Context, h backend.Handle) (backend.Status, error) {
	return backend.Status{}, apperrors.Adapter("phantombuster.leads.poll", errSynchronous)
}

// FetchResult is not applicable.
func (a *LeadsAdapter) FetchResult(ctx context.Context, h backend.Handle) (backend.Payload, error) {
	return nil, apperrors.Adapter("phantombuster.leads.fetch", errSynchronous)
}
