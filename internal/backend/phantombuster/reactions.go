package phantombuster

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/abdulachik/linkrunner/internal/apperrors"
	"github.com/abdulachik/linkrunner/internal/backend"
	"github.com/abdulachik/linkrunner/internal/request"
)

// ReactionsAdapter launches the reactions agent and polls its container.
type ReactionsAdapter struct {
	*client
	agentID       string
	sessionCookie string
}

// NewReactionsAdapter creates a reactions adapter.
func NewReactionsAdapter(cfg Config) (*ReactionsAdapter, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AgentID == "" {
		return nil, apperrors.Configuration("PHANTOMBUSTER_REACTIONS_AGENT_ID")
	}
	if cfg.SessionCookie == "" {
		return nil, apperrors.Configuration("LINKEDIN_SESSION_COOKIE")
	}

	return &ReactionsAdapter{
		client:        c,
		agentID:       cfg.AgentID,
		sessionCookie: cfg.SessionCookie,
	}, nil
}

// Name returns the adapter name.
func (a *ReactionsAdapter) Name() string {
	return "phantombuster.reactions"
}

// launchArgument is the agent argument for a reactions scrape.
type launchArgument struct {
	SessionCookie  string `json:"sessionCookie"`
	SpreadsheetURL string `json:"spreadsheetUrl"`
	Homerun        bool   `json:"homerun"`
}

// launchRequest is the request body for launching an agent.
type launchRequest struct {
	Argument launchArgument `json:"argument"`
}

// launchResponse is the response from launching an agent.
type launchResponse struct {
	Status string `json:"status"`
	Data   struct {
		ContainerID string `json:"containerId"`
	} `json:"data"`
}

// Submit launches the agent for the requested profile.
func (a *ReactionsAdapter) Submit(ctx context.Context, req request.Request) (backend.Submission, error) {
	const op = "phantombuster.reactions.submit"

	profile, ok := req.(request.Profile)
	if !ok {
		return backend.Submission{}, apperrors.Adapter(op, fmt.Errorf("unsupported request schema"))
	}

	slog.Info("initiating reactions scrape", "profile_url", profile.ProfileURL())

	httpReq, err := a.newRequest(ctx, "POST", fmt.Sprintf(launchPath, a.agentID), launchRequest{
		Argument: launchArgument{
			SessionCookie:  a.sessionCookie,
			SpreadsheetURL: profile.ProfileURL(),
			Homerun:        true,
		},
	})
	if err != nil {
		return backend.Submission{}, apperrors.Adapter(op, err)
	}

	var launched launchResponse
	if _, err := backend.DoJSON(a.httpClient, httpReq, &launched); err != nil {
		return backend.Submission{}, apperrors.Adapter(op, err)
	}

	if launched.Data.ContainerID == "" {
		return backend.Submission{}, apperrors.Adapter(op, fmt.Errorf("failed to get containerId from launch response"))
	}

	slog.Info("scrape initiated", "container_id", launched.Data.ContainerID)
	return backend.Pending(backend.Handle(launched.Data.ContainerID)), nil
}

// PollStatus checks the container once.
func (a *ReactionsAdapter) PollStatus(ctx context.Context, h backend.Handle) (backend.Status, error) {
	container, raw, err := a.fetchContainer(ctx, string(h))
	if err != nil {
		return backend.Status{}, apperrors.Adapter("phantombuster.reactions.poll", err)
	}
	return backend.Status{State: mapStatus(container.Status), Raw: json.RawMessage(raw)}, nil
}

// FetchResult returns the container's result object.
func (a *ReactionsAdapter) FetchResult(ctx context.Context, h backend.Handle) (backend.Payload, error) {
	container, _, err := a.fetchContainer(ctx, string(h))
	if err != nil {
		return nil, apperrors.Adapter("phantombuster.reactions.fetch", err)
	}

	slog.Info("phantombuster job finished", "container_id", h)
	return backend.Payload{
		"status":       "success",
		"containerId":  string(h),
		"resultObject": container.ResultObject,
	}, nil
}
