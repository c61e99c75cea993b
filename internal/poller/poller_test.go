package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdulachik/linkrunner/internal/apperrors"
	"github.com/abdulachik/linkrunner/internal/backend"
	"github.com/abdulachik/linkrunner/internal/backend/backendtest"
	"github.com/abdulachik/linkrunner/internal/observability"
	"github.com/abdulachik/linkrunner/internal/request"
)

func profileRequest(t *testing.T) request.Request {
	t.Helper()
	p, err := request.NewProfile(map[string]any{"profile_url": "https://site.example/in/alice/"})
	require.NoError(t, err)
	return p
}

// transitions records state changes.
type transitions struct {
	mu    sync.Mutex
	steps []string
}

func (tr *transitions) record(from, to State) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.steps = append(tr.steps, from.String()+"->"+to.String())
}

func (tr *transitions) list() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.steps...)
}

func newEngine(tr *transitions) *Engine {
	cfg := Config{Interval: time.Millisecond}
	if tr != nil {
		cfg.OnTransition = tr.record
	}
	return New(cfg)
}

func TestNew_DefaultInterval(t *testing.T) {
	assert.Equal(t, DefaultInterval, New(Config{}).Interval())
	assert.Equal(t, DefaultInterval, New(Config{Interval: -time.Second}).Interval())
	assert.Equal(t, time.Second, New(Config{Interval: time.Second}).Interval())
}

func TestRun_ImmediateResultSkipsPolling(t *testing.T) {
	tr := &transitions{}
	adapter := &backendtest.Adapter{
		Submission: backend.Immediate(backend.Payload{"post_id": "urn:li:share:1"}),
	}

	payload, err := newEngine(tr).Run(context.Background(), adapter, profileRequest(t))
	require.NoError(t, err)
	assert.Equal(t, "urn:li:share:1", payload["post_id"])
	assert.Equal(t, 0, adapter.Polls())
	assert.Equal(t, 0, adapter.Fetches())
	assert.Equal(t, []string{"SUBMITTED->DONE"}, tr.list())
}

func TestRun_EmptyImmediateResultFails(t *testing.T) {
	adapter := &backendtest.Adapter{Submission: backend.Immediate(backend.Payload{})}

	_, err := newEngine(nil).Run(context.Background(), adapter, profileRequest(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrEmptyResult))
	assert.Equal(t, "scripted.submit returned an empty result", err.Error())
	assert.Equal(t, 0, adapter.Polls())
}

func TestRun_PollsUntilDone(t *testing.T) {
	tr := &transitions{}
	adapter := &backendtest.Adapter{
		Submission: backend.Pending("H"),
		Statuses:   []backend.Status{backendtest.Pending(), backendtest.Pending(), backendtest.Done()},
		Result:     backend.Payload{"posts": []any{"p1", "p2"}},
	}

	payload, err := newEngine(tr).Run(context.Background(), adapter, profileRequest(t))
	require.NoError(t, err)
	assert.Equal(t, backend.Payload{"posts": []any{"p1", "p2"}}, payload)
	assert.Equal(t, 3, adapter.Polls())
	assert.Equal(t, 1, adapter.Fetches())
	assert.Equal(t, []string{"SUBMITTED->POLLING", "POLLING->DONE"}, tr.list())
}

func TestRun_FailedStatusStopsPolling(t *testing.T) {
	tr := &transitions{}
	adapter := &backendtest.Adapter{
		Submission: backend.Pending("H"),
		Statuses:   []backend.Status{backendtest.Pending(), backendtest.Failed(`{"error":"blocked"}`), backendtest.Done()},
	}

	_, err := newEngine(tr).Run(context.Background(), adapter, profileRequest(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrJobFailed))
	assert.Contains(t, err.Error(), "job H failed")
	assert.Contains(t, err.Error(), "blocked")
	assert.Equal(t, 2, adapter.Polls())
	assert.Equal(t, 0, adapter.Fetches())
	assert.Equal(t, []string{"SUBMITTED->POLLING", "POLLING->FAILED"}, tr.list())
}

func TestRun_OutOfRangeStateIsAdapterError(t *testing.T) {
	adapter := &backendtest.Adapter{
		Submission: backend.Pending("H"),
		Statuses:   []backend.Status{{State: backend.State(99)}},
	}

	_, err := newEngine(nil).Run(context.Background(), adapter, profileRequest(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAdapter))
	assert.Contains(t, err.Error(), "unknown job state")
	assert.Equal(t, 1, adapter.Polls())
	assert.Equal(t, 0, adapter.Fetches())
}

func TestRun_EmptyFetchFails(t *testing.T) {
	adapter := &backendtest.Adapter{
		Submission: backend.Pending("H"),
		Statuses:   []backend.Status{backendtest.Done()},
		Result:     backend.Payload{},
	}

	_, err := newEngine(nil).Run(context.Background(), adapter, profileRequest(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrEmptyResult))
	assert.Contains(t, err.Error(), "H")
}

func TestRun_AdapterErrors(t *testing.T) {
	boom := errors.New("connection reset")

	tests := []struct {
		name    string
		adapter *backendtest.Adapter
		wantOp  string
	}{
		{
			name:    "submit",
			adapter: &backendtest.Adapter{SubmitErr: boom},
			wantOp:  "scripted.submit",
		},
		{
			name:    "poll",
			adapter: &backendtest.Adapter{Submission: backend.Pending("H"), PollErr: boom},
			wantOp:  "scripted.poll",
		},
		{
			name: "fetch",
			adapter: &backendtest.Adapter{
				Submission: backend.Pending("H"),
				Statuses:   []backend.Status{backendtest.Done()},
				FetchErr:   boom,
			},
			wantOp: "scripted.fetch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newEngine(nil).Run(context.Background(), tt.adapter, profileRequest(t))
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrAdapter))
			assert.True(t, errors.Is(err, boom))
			assert.Contains(t, err.Error(), tt.wantOp)
		})
	}
}

func TestRun_ClassifiedErrorsPassThrough(t *testing.T) {
	cfgErr := apperrors.Configuration("BRIGHT_DATA_API_TOKEN")
	adapter := &backendtest.Adapter{SubmitErr: cfgErr}

	_, err := newEngine(nil).Run(context.Background(), adapter, profileRequest(t))
	assert.Same(t, cfgErr, err)
}

func TestRun_PendingForeverStopsOnContext(t *testing.T) {
	adapter := &backendtest.Adapter{
		Submission: backend.Pending("H"),
		Statuses:   []backend.Status{backendtest.Pending()},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newEngine(nil).Run(ctx, adapter, profileRequest(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
	assert.Greater(t, adapter.Polls(), 1)
	assert.Equal(t, 0, adapter.Fetches())
}

func TestRun_WaitsFixedInterval(t *testing.T) {
	adapter := &backendtest.Adapter{
		Submission: backend.Pending("H"),
		Statuses:   []backend.Status{backendtest.Pending(), backendtest.Pending(), backendtest.Done()},
		Result:     backend.Payload{"ok": true},
	}

	engine := New(Config{Interval: 20 * time.Millisecond})

	start := time.Now()
	_, err := engine.Run(context.Background(), adapter, profileRequest(t))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRun_RecordsMetrics(t *testing.T) {
	metrics, _, err := observability.NewMetrics(context.Background())
	require.NoError(t, err)

	adapter := &backendtest.Adapter{
		Submission: backend.Pending("H"),
		Statuses:   []backend.Status{backendtest.Done()},
		Result:     backend.Payload{"ok": true},
	}

	engine := New(Config{Interval: time.Millisecond, Metrics: metrics})
	_, err = engine.Run(context.Background(), adapter, profileRequest(t))
	require.NoError(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "SUBMITTED", StateSubmitted.String())
	assert.Equal(t, "POLLING", StatePolling.String())
	assert.Equal(t, "DONE", StateDone.String())
	assert.Equal(t, "FAILED", StateFailed.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}
