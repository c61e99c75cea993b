// Package phantombuster runs PhantomBuster agents and stores leads.
package phantombuster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/abdulachik/linkrunner/internal/apperrors"
	"github.com/abdulachik/linkrunner/internal/backend"
)

const (
	defaultBaseURL = "https://api.phantombuster.com"

	launchPath    = "/api/v1/agent/%s/launch"
	containerPath = "/api/v2/containers/fetch"
	leadsSavePath = "/api/v2/org-storage/leads/save"

	apiKeyHeader = "X-Phantombuster-Key-1"
)

// Config holds configuration shared by the PhantomBuster adapters.
type Config struct {
	APIKey        string
	AgentID       string // reactions agent only
	SessionCookie string // reactions agent only
	BaseURL       string
	HTTPClient    *http.Client
}

// client is the HTTP plumbing shared by both adapters.
type client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func newClient(cfg Config) (*client, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.Configuration("PHANTOMBUSTER_API_KEY")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = backend.NewHTTPClient()
	}

	return &client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
	}, nil
}

func (c *client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// containerResponse is the response from the container fetch endpoint.
type containerResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ResultObject any    `json:"resultObject"`
}

func (c *client) fetchContainer(ctx context.Context, containerID string) (*containerResponse, []byte, error) {
	q := url.Values{}
	q.Set("id", containerID)
	q.Set("withResultObject", "true")

	req, err := c.newRequest(ctx, "GET", containerPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, nil, err
	}

	_, body, err := backend.Do(c.httpClient, req)
	if err != nil {
		return nil, nil, err
	}

	var container containerResponse
	if err := json.Unmarshal(body, &container); err != nil {
		return nil, nil, fmt.Errorf("parse response: %w", err)
	}

	slog.Debug("phantombuster container", "container_id", containerID, "status", container.Status)
	return &container, body, nil
}

func mapStatus(status string) backend.State {
	switch strings.ToLower(status) {
	case "finished":
		return backend.StateDone
	case "failed":
		return backend.StateFailed
	default:
		return backend.StatePending
	}
}
