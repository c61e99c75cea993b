package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdulachik/linkrunner/internal/apperrors"
	"github.com/abdulachik/linkrunner/internal/backend"
	"github.com/abdulachik/linkrunner/internal/backend/backendtest"
	"github.com/abdulachik/linkrunner/internal/config"
	"github.com/abdulachik/linkrunner/internal/db"
	"github.com/abdulachik/linkrunner/internal/db/dbtest"
	"github.com/abdulachik/linkrunner/internal/health"
	"github.com/abdulachik/linkrunner/internal/notify"
	"github.com/abdulachik/linkrunner/internal/poller"
	"github.com/abdulachik/linkrunner/internal/request"
	"github.com/abdulachik/linkrunner/internal/step"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Send(ctx context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) last() notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[len(r.sent)-1]
}

func scripted(name string, adapter backend.Adapter) Definition {
	return Definition{
		Name:    name,
		Schema:  request.ProfileSchema,
		Parse:   request.ParseProfile,
		Backend: func(*config.Config) (backend.Adapter, error) { return adapter, nil },
		Timeout: time.Second,
	}
}

type fixture struct {
	runner   *Runner
	store    *db.Store
	tracker  *health.Tracker
	notifier *recordingNotifier
}

func newFixture(t *testing.T, defs ...Definition) *fixture {
	t.Helper()

	registry, err := NewRegistry(defs...)
	require.NoError(t, err)

	f := &fixture{
		store:    dbtest.NewTestStore(t),
		tracker:  health.NewTracker(),
		notifier: &recordingNotifier{},
	}
	f.runner = NewRunner(Options{
		Registry: registry,
		Config:   &config.Config{},
		Executor: step.New(step.Config{Engine: poller.New(poller.Config{Interval: time.Millisecond})}),
		Store:    f.store,
		Notifier: f.notifier,
		Tracker:  f.tracker,
	})
	t.Cleanup(f.runner.Close)
	return f
}

var aliceInput = map[string]any{"profile_url": "https://site.example/in/alice/"}

func TestRegistry(t *testing.T) {
	t.Run("defaults register", func(t *testing.T) {
		r, err := NewRegistry(Defaults()...)
		require.NoError(t, err)

		var names []string
		for _, d := range r.List() {
			names = append(names, d.Name)
		}
		assert.Equal(t, []string{
			CreatePost,
			GetProfile,
			GetProfilePosts,
			GetProfileReactions,
			GetProfileReactionsPhantomBuster,
			SaveLead,
		}, names)
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		_, err := NewRegistry(scripted("a", nil), scripted("a", nil))
		assert.Error(t, err)
	})

	t.Run("rejects incomplete definitions", func(t *testing.T) {
		r, err := NewRegistry()
		require.NoError(t, err)
		assert.Error(t, r.Register(Definition{Name: "x"}))
		d := scripted("y", nil)
		d.Timeout = 0
		assert.Error(t, r.Register(d))
	})

	t.Run("unknown workflow", func(t *testing.T) {
		r, err := NewRegistry(Defaults()...)
		require.NoError(t, err)
		_, err = r.Get("nope")
		assert.True(t, errors.Is(err, ErrUnknownWorkflow))
	})

	t.Run("applies overrides", func(t *testing.T) {
		r, err := NewRegistry(Defaults()...)
		require.NoError(t, err)

		o, err := config.ParseOverrides([]byte("workflows:\n  get-profile-posts:\n    timeout: 5m\n"))
		require.NoError(t, err)
		require.NoError(t, r.ApplyOverrides(o))

		d, err := r.Get(GetProfilePosts)
		require.NoError(t, err)
		assert.Equal(t, 5*time.Minute, d.Timeout)

		d, err = r.Get(SaveLead)
		require.NoError(t, err)
		assert.Equal(t, 60*time.Second, d.Timeout)
	})

	t.Run("overrides must name known workflows", func(t *testing.T) {
		r, err := NewRegistry(Defaults()...)
		require.NoError(t, err)
		o := &config.Overrides{Workflows: map[string]config.WorkflowOverride{"typo": {Timeout: time.Minute}}}
		assert.True(t, errors.Is(r.ApplyOverrides(o), ErrUnknownWorkflow))
	})
}

func TestDefaults_RequireCredentials(t *testing.T) {
	tests := map[string]string{
		CreatePost:                       "LINKEDIN_ACCESS_TOKEN",
		GetProfile:                       "BRIGHT_DATA_API_TOKEN",
		GetProfilePosts:                  "BRIGHT_DATA_API_TOKEN",
		GetProfileReactionsPhantomBuster: "PHANTOMBUSTER_API_KEY",
		SaveLead:                         "PHANTOMBUSTER_API_KEY",
	}

	r, err := NewRegistry(Defaults()...)
	require.NoError(t, err)

	for name, key := range tests {
		t.Run(name, func(t *testing.T) {
			d, err := r.Get(name)
			require.NoError(t, err)

			_, err = d.Backend(&config.Config{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
			assert.Contains(t, err.Error(), key)
		})
	}

	t.Run("reactions stub needs nothing", func(t *testing.T) {
		d, err := r.Get(GetProfileReactions)
		require.NoError(t, err)
		adapter, err := d.Backend(&config.Config{})
		require.NoError(t, err)
		assert.Equal(t, "reactions", adapter.Name())
	})
}

func TestRunner_ExecuteSuccess(t *testing.T) {
	adapter := &backendtest.Adapter{
		Submission: backend.Pending("H"),
		Statuses:   []backend.Status{backendtest.Pending(), backendtest.Done()},
		Result:     backend.Payload{"posts": []any{"p1"}},
	}
	f := newFixture(t, scripted("posts", adapter))

	run, err := f.runner.Execute(context.Background(), "posts", aliceInput)
	require.NoError(t, err)
	assert.Equal(t, db.RunStatusSucceeded, run.Status)
	assert.JSONEq(t, `{"posts":["p1"]}`, run.Result.String)
	assert.JSONEq(t, `{"profile_url":"https://site.example/in/alice/"}`, run.Input)
	assert.True(t, run.FinishedAt.Valid)

	assert.True(t, f.tracker.Status("posts").Healthy)
	assert.Equal(t, db.RunStatusSucceeded, f.notifier.last().Status)
	assert.Equal(t, run.ID, f.notifier.last().RunID)
}

func TestRunner_ExecuteFailure(t *testing.T) {
	adapter := &backendtest.Adapter{
		Submission: backend.Pending("H"),
		Statuses:   []backend.Status{backendtest.Failed(`{"reason":"blocked"}`)},
	}
	f := newFixture(t, scripted("posts", adapter))

	run, err := f.runner.Execute(context.Background(), "posts", aliceInput)
	require.NoError(t, err)
	assert.Equal(t, db.RunStatusFailed, run.Status)
	assert.True(t, run.Permanent)
	assert.Contains(t, run.Error.String, "posts failed: job H failed")

	assert.False(t, f.tracker.Status("posts").Healthy)
	last := f.notifier.last()
	assert.Equal(t, db.RunStatusFailed, last.Status)
	assert.True(t, last.Permanent)
}

func TestRunner_ValidationErrorRecordsNothing(t *testing.T) {
	adapter := &backendtest.Adapter{}
	f := newFixture(t, scripted("posts", adapter))

	_, err := f.runner.Execute(context.Background(), "posts", map[string]any{
		"profile_url": "https://site.example/in/alice/",
		"unexpected":  true,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Equal(t, 0, adapter.Submits())

	runs, err := f.runner.List(context.Background(), db.ListRunsParams{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunner_MissingCredentialFailsRun(t *testing.T) {
	f := newFixture(t, Defaults()...)

	run, err := f.runner.Execute(context.Background(), GetProfilePosts, aliceInput)
	require.NoError(t, err)
	assert.Equal(t, db.RunStatusFailed, run.Status)
	assert.Equal(t, "get-profile-posts failed: BRIGHT_DATA_API_TOKEN is not set", run.Error.String)
}

func TestRunner_UnsupportedReactions(t *testing.T) {
	f := newFixture(t, Defaults()...)

	run, err := f.runner.Execute(context.Background(), GetProfileReactions, aliceInput)
	require.NoError(t, err)
	assert.Equal(t, db.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error.String, "premium feature")
}

func TestRunner_StartAndGet(t *testing.T) {
	adapter := &backendtest.Adapter{
		Submission: backend.Immediate(backend.Payload{"status": "success"}),
	}
	f := newFixture(t, scripted("lead", adapter))

	run, err := f.runner.Start(context.Background(), "lead", aliceInput)
	require.NoError(t, err)
	assert.Equal(t, db.RunStatusRunning, run.Status)

	require.Eventually(t, func() bool {
		got, err := f.runner.Get(context.Background(), run.ID)
		return err == nil && got.Status == db.RunStatusSucceeded
	}, time.Second, 5*time.Millisecond)
}

func TestRunner_StartDoesNotSerializeRecording(t *testing.T) {
	adapter := &backendtest.Adapter{
		Submission: backend.Immediate(backend.Payload{"status": "success"}),
	}
	f := newFixture(t, scripted("lead", adapter))

	entered := make(chan struct{})
	unblock := make(chan struct{})
	var calls sync.Mutex
	n := 0
	f.runner.newID = func() string {
		calls.Lock()
		n++
		first := n == 1
		calls.Unlock()
		if first {
			close(entered)
			<-unblock
			return "run-stuck"
		}
		return fmt.Sprintf("run-%d", n)
	}

	stuck := make(chan error, 1)
	go func() {
		_, err := f.runner.Start(context.Background(), "lead", aliceInput)
		stuck <- err
	}()
	<-entered

	done := make(chan error, 1)
	go func() {
		_, err := f.runner.Start(context.Background(), "lead", aliceInput)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start blocked behind another Start that was still recording its run")
	}

	close(unblock)
	require.NoError(t, <-stuck)
}

func TestRunner_FailedStartDoesNotBlockClose(t *testing.T) {
	f := newFixture(t, scripted("lead", &backendtest.Adapter{}))

	_, err := f.runner.Start(context.Background(), "lead", map[string]any{"profile_url": "not a url"})
	require.Error(t, err)
	_, err = f.runner.Start(context.Background(), "missing", aliceInput)
	require.Error(t, err)

	closed := make(chan struct{})
	go func() {
		f.runner.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close waited on a run that was never started")
	}
}

func TestRunner_CloseCancelsInFlightRuns(t *testing.T) {
	adapter := &backendtest.Adapter{
		Submission: backend.Pending("H"),
		BlockPoll:  true,
	}
	f := newFixture(t, scripted("slow", adapter))

	run, err := f.runner.Start(context.Background(), "slow", aliceInput)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return adapter.Polls() > 0 }, time.Second, time.Millisecond)
	f.runner.Close()

	got, err := f.runner.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, db.RunStatusFailed, got.Status)
	assert.Contains(t, got.Error.String, "context canceled")

	_, err = f.runner.Start(context.Background(), "slow", aliceInput)
	assert.True(t, errors.Is(err, ErrRunnerClosed))

	_, err = f.runner.Execute(context.Background(), "slow", aliceInput)
	assert.True(t, errors.Is(err, ErrRunnerClosed))
}

func TestRunner_CloseCancelsSynchronousRuns(t *testing.T) {
	adapter := &backendtest.Adapter{
		Submission: backend.Pending("H"),
		BlockPoll:  true,
	}
	f := newFixture(t, scripted("slow", adapter))

	done := make(chan db.Run, 1)
	go func() {
		run, _ := f.runner.Execute(context.Background(), "slow", aliceInput)
		done <- run
	}()

	require.Eventually(t, func() bool { return adapter.Polls() > 0 }, time.Second, time.Millisecond)
	f.runner.Close()

	select {
	case run := <-done:
		assert.Equal(t, db.RunStatusFailed, run.Status)
	case <-time.After(time.Second):
		t.Fatal("Execute did not return after Close")
	}
}

func TestRunner_RunStep(t *testing.T) {
	adapter := &backendtest.Adapter{
		Submission: backend.Pending("H"),
		Statuses:   []backend.Status{backendtest.Pending()},
	}
	f := newFixture(t, scripted("slow", adapter))

	req, err := request.NewProfile(aliceInput)
	require.NoError(t, err)

	_, err = f.runner.RunStep(context.Background(), "slow", req, 20*time.Millisecond)
	require.Error(t, err)

	var failure *step.Failure
	require.True(t, errors.As(err, &failure))
	assert.True(t, failure.Permanent)
	assert.Equal(t, "slow failed: deadline exceeded", failure.Reason)

	_, err = f.runner.RunStep(context.Background(), "missing", req, time.Second)
	assert.True(t, errors.Is(err, ErrUnknownWorkflow))
}

func TestRunner_GetNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.runner.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestRunner_ResultIsJSON(t *testing.T) {
	adapter := &backendtest.Adapter{
		Submission: backend.Immediate(backend.Payload{"post_id": "urn:li:share:1"}),
	}
	f := newFixture(t, scripted("post", adapter))

	run, err := f.runner.Execute(context.Background(), "post", aliceInput)
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(run.Result.String), &result))
	assert.Equal(t, "urn:li:share:1", result["post_id"])
}
