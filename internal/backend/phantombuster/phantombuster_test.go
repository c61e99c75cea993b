package phantombuster

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdulachik/linkrunner/internal/apperrors"
	"github.com/abdulachik/linkrunner/internal/backend"
	"github.com/abdulachik/linkrunner/internal/request"
)

func reactionsConfig(baseURL string) Config {
	return Config{
		APIKey:        "key",
		AgentID:       "agent-1",
		SessionCookie: "li_at=cookie",
		BaseURL:       baseURL,
	}
}

func TestNewReactionsAdapter(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantKey string
	}{
		{"missing key", Config{AgentID: "a", SessionCookie: "c"}, "PHANTOMBUSTER_API_KEY"},
		{"missing agent", Config{APIKey: "k", SessionCookie: "c"}, "PHANTOMBUSTER_REACTIONS_AGENT_ID"},
		{"missing cookie", Config{APIKey: "k", AgentID: "a"}, "LINKEDIN_SESSION_COOKIE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReactionsAdapter(tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
			assert.Contains(t, err.Error(), tt.wantKey)
		})
	}

	t.Run("defaults", func(t *testing.T) {
		a, err := NewReactionsAdapter(reactionsConfig(""))
		require.NoError(t, err)
		assert.Equal(t, defaultBaseURL, a.baseURL)
		assert.Equal(t, "phantombuster.reactions", a.Name())
	})
}

func TestReactionsAdapter_Submit(t *testing.T) {
	t.Run("returns container handle", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "POST", r.Method)
			assert.Equal(t, "/api/v1/agent/agent-1/launch", r.URL.Path)
			assert.Equal(t, "key", r.Header.Get(apiKeyHeader))

			var body launchRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "li_at=cookie", body.Argument.SessionCookie)
			assert.Equal(t, "https://site.example/in/bob/", body.Argument.SpreadsheetURL)
			assert.True(t, body.Argument.Homerun)

			w.Write([]byte(`{"status": "success", "data": {"containerId": "c-42"}}`))
		}))
		defer server.Close()

		a, err := NewReactionsAdapter(reactionsConfig(server.URL))
		require.NoError(t, err)

		profile, err := request.NewProfile(map[string]any{"profile_url": "https://site.example/in/bob/"})
		require.NoError(t, err)

		sub, err := a.Submit(context.Background(), profile)
		require.NoError(t, err)
		assert.Equal(t, backend.Handle("c-42"), sub.Handle)
	})

	t.Run("missing container id", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status": "success", "data": {}}`))
		}))
		defer server.Close()

		a, err := NewReactionsAdapter(reactionsConfig(server.URL))
		require.NoError(t, err)

		profile, err := request.NewProfile(map[string]any{"profile_url": "https://site.example/in/bob/"})
		require.NoError(t, err)

		_, err = a.Submit(context.Background(), profile)
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrAdapter))
		assert.Contains(t, err.Error(), "containerId")
	})
}

func TestReactionsAdapter_PollAndFetch(t *testing.T) {
	var status atomic.Value
	status.Store("running")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, containerPath, r.URL.Path)
		assert.Equal(t, "c-42", r.URL.Query().Get("id"))
		assert.Equal(t, "true", r.URL.Query().Get("withResultObject"))
		json.NewEncoder(w).Encode(map[string]any{
			"id":           "c-42",
			"status":       status.Load(),
			"resultObject": `[{"reactor":"carol"}]`,
		})
	}))
	defer server.Close()

	a, err := NewReactionsAdapter(reactionsConfig(server.URL))
	require.NoError(t, err)

	st, err := a.PollStatus(context.Background(), "c-42")
	require.NoError(t, err)
	assert.Equal(t, backend.StatePending, st.State)

	status.Store("failed")
	st, err = a.PollStatus(context.Background(), "c-42")
	require.NoError(t, err)
	assert.Equal(t, backend.StateFailed, st.State)
	assert.Contains(t, string(st.Raw), "failed")

	status.Store("finished")
	st, err = a.PollStatus(context.Background(), "c-42")
	require.NoError(t, err)
	assert.Equal(t, backend.StateDone, st.State)

	payload, err := a.FetchResult(context.Background(), "c-42")
	require.NoError(t, err)
	assert.Equal(t, "success", payload["status"])
	assert.Equal(t, "c-42", payload["containerId"])
	assert.Equal(t, `[{"reactor":"carol"}]`, payload["resultObject"])
}

func TestReactionsAdapter_PollError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	a, err := NewReactionsAdapter(reactionsConfig(server.URL))
	require.NoError(t, err)

	_, err = a.PollStatus(context.Background(), "c-42")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAdapter))
	assert.Contains(t, err.Error(), "401")
}

func TestLeadsAdapter(t *testing.T) {
	t.Run("requires key", func(t *testing.T) {
		_, err := NewLeadsAdapter(Config{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
	})

	t.Run("saves lead immediately", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "POST", r.Method)
			assert.Equal(t, leadsSavePath, r.URL.Path)
			assert.Equal(t, "key", r.Header.Get(apiKeyHeader))

			var body saveLeadRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "https://site.example/in/dave/", body.LinkedinProfileURL)

			w.Write([]byte(`{"id": "lead-7", "status": "saved"}`))
		}))
		defer server.Close()

		a, err := NewLeadsAdapter(Config{APIKey: "key", BaseURL: server.URL})
		require.NoError(t, err)

		lead, err := request.NewLead(map[string]any{"linkedin_profile_url": "https://site.example/in/dave/"})
		require.NoError(t, err)

		sub, err := a.Submit(context.Background(), lead)
		require.NoError(t, err)
		assert.True(t, sub.IsImmediate())
		assert.Equal(t, "lead-7", sub.Result["id"])
	})

	t.Run("poll is not applicable", func(t *testing.T) {
		a, err := NewLeadsAdapter(Config{APIKey: "key"})
		require.NoError(t, err)

		_, err = a.PollStatus(context.Background(), "x")
		assert.True(t, errors.Is(err, apperrors.ErrAdapter))
		_, err = a.FetchResult(context.Background(), "x")
		assert.True(t, errors.Is(err, apperrors.ErrAdapter))
	})
}
