// Package brightdata scrapes LinkedIn profiles and posts through Bright Data
// dataset snapshots.
package brightdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/abdulachik/linkrunner/internal/apperrors"
	"github.com/abdulachik/linkrunner/internal/backend"
	"github.com/abdulachik/linkrunner/internal/request"
)

const (
	defaultBaseURL = "https://api.brightdata.com"

	triggerPath  = "/datasets/v3/trigger"
	progressPath = "/datasets/v3/progress/"
	snapshotPath = "/datasets/v3/snapshot/"
)

// Config holds configuration for a Bright Data adapter.
type Config struct {
	APIToken   string
	DatasetID  string
	BaseURL    string
	HTTPClient *http.Client
}

// Adapter drives one Bright Data dataset.
type Adapter struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
	datasetID  string

	name      string
	resultKey string
	discover  bool
}

// NewProfileAdapter creates an adapter that scrapes a single profile.
func NewProfileAdapter(cfg Config) (*Adapter, error) {
	return newAdapter(cfg, "brightdata.profile", "profiles", "BRIGHT_DATA_PROFILE_DATASET_ID", false)
}

// NewPostsAdapter creates an adapter that discovers a profile's posts.
func NewPostsAdapter(cfg Config) (*Adapter, error) {
	return newAdapter(cfg, "brightdata.posts", "posts", "BRIGHT_DATA_POSTS_DATASET_ID", true)
}

func newAdapter(cfg Config, name, resultKey, datasetKey string, discover bool) (*Adapter, error) {
	if cfg.APIToken == "" {
		return nil, apperrors.Configuration("BRIGHT_DATA_API_TOKEN")
	}
	if cfg.DatasetID == "" {
		return nil, apperrors.Configuration(datasetKey)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = backend.NewHTTPClient()
	}

	return &Adapter{
		httpClient: client,
		baseURL:    baseURL,
		apiToken:   cfg.APIToken,
		datasetID:  cfg.DatasetID,
		name:       name,
		resultKey:  resultKey,
		discover:   discover,
	}, nil
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	return a.name
}

// triggerInput is one entry of the trigger request body.
type triggerInput struct {
	URL string `json:"url"`
}

// progressResponse is the response from the progress endpoint.
type progressResponse struct {
	SnapshotID string `json:"snapshot_id"`
	Status     string `json:"status"`
}

// Submit triggers a collection for the requested profile.
func (a *Adapter) Submit(ctx context.Context, req request.Request) (backend.Submission, error) {
	op := a.name + ".submit"

	profile, ok := req.(request.Profile)
	if !ok {
		return backend.Submission{}, apperrors.Adapter(op, fmt.Errorf("unsupported request schema %q", schemaOf(req)))
	}

	target := profile.ProfileURL()
	if a.discover {
		target = ProfileURL(target)
		slog.Info("initiating post discovery", "profile_url", target, "activity_url", ActivityURL(target))
	} else {
		slog.Info("initiating profile scrape", "profile_url", target)
	}

	body, err := json.Marshal([]triggerInput{{URL: target}})
	if err != nil {
		return backend.Submission{}, apperrors.Adapter(op, fmt.Errorf("marshal request: %w", err))
	}

	q := url.Values{}
	q.Set("dataset_id", a.datasetID)
	q.Set("include_errors", "true")
	if a.discover {
		q.Set("type", "discover_new")
		q.Set("discover_by", "profile_url")
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+triggerPath+"?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return backend.Submission{}, apperrors.Adapter(op, fmt.Errorf("create request: %w", err))
	}
	a.setHeaders(httpReq)

	_, respBody, err := backend.Do(a.httpClient, httpReq)
	if err != nil {
		return backend.Submission{}, apperrors.Adapter(op, err)
	}

	var triggered progressResponse
	if err := json.Unmarshal(respBody, &triggered); err == nil && triggered.SnapshotID != "" {
		slog.Info("collection triggered", "adapter", a.name, "snapshot_id", triggered.SnapshotID)
		return backend.Pending(backend.Handle(triggered.SnapshotID)), nil
	}

	payload, err := a.toPayload(respBody)
	if err != nil {
		return backend.Submission{}, apperrors.Adapter(op, err)
	}

	slog.Info("received synchronous response", "adapter", a.name)
	return backend.Immediate(payload), nil
}

// PollStatus checks snapshot progress once.
func (a *Adapter) PollStatus(ctx context.Context, h backend.Handle) (backend.Status, error) {
	op := a.name + ".poll"

	httpReq, err := http.NewRequestWithContext(ctx, "GET", a.baseURL+progressPath+url.PathEscape(string(h)), nil)
	if err != nil {
		return backend.Status{}, apperrors.Adapter(op, fmt.Errorf("create request: %w", err))
	}
	a.setHeaders(httpReq)

	_, body, err := backend.Do(a.httpClient, httpReq)
	if err != nil {
		return backend.Status{}, apperrors.Adapter(op, err)
	}

	var progress progressResponse
	if err := json.Unmarshal(body, &progress); err != nil {
		return backend.Status{}, apperrors.Adapter(op, fmt.Errorf("parse response: %w", err))
	}

	slog.Debug("snapshot status", "snapshot_id", h, "status", progress.Status)

	return backend.Status{State: mapStatus(progress.Status), Raw: body}, nil
}

// FetchResult downloads the snapshot.
func (a *Adapter) FetchResult(ctx context.Context, h backend.Handle) (backend.Payload, error) {
	op := a.name + ".fetch"

	httpReq, err := http.NewRequestWithContext(ctx, "GET", a.baseURL+snapshotPath+url.PathEscape(string(h))+"?format=json", nil)
	if err != nil {
		return nil, apperrors.Adapter(op, fmt.Errorf("create request: %w", err))
	}
	a.setHeaders(httpReq)

	_, body, err := backend.Do(a.httpClient, httpReq)
	if err != nil {
		return nil, apperrors.Adapter(op, err)
	}

	payload, err := a.toPayload(body)
	if err != nil {
		return nil, apperrors.Adapter(op, err)
	}

	slog.Info("snapshot downloaded", "snapshot_id", h, "keys", len(payload))
	return payload, nil
}

func (a *Adapter) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.apiToken)
	req.Header.Set("Content-Type", "application/json")
}

// toPayload converts a snapshot body into a payload. Record arrays are
// stored under the adapter's result key; an empty array yields an empty payload.
func (a *Adapter) toPayload(body []byte) (backend.Payload, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return backend.Payload{}, nil
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	switch v := decoded.(type) {
	case map[string]any:
		return backend.Payload(v), nil
	case []any:
		if len(v) == 0 {
			return backend.Payload{}, nil
		}
		return backend.Payload{a.resultKey: v}, nil
	case nil:
		return backend.Payload{}, nil
	default:
		return nil, fmt.Errorf("unexpected response type %T", v)
	}
}

func mapStatus(status string) backend.State {
	switch strings.ToLower(status) {
	case "ready", "done":
		return backend.StateDone
	case "failed":
		return backend.StateFailed
	default:
		return backend.StatePending
	}
}

func schemaOf(req request.Request) string {
	if req == nil {
		return "<nil>"
	}
	return req.Schema()
}
