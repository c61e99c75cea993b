package health

import (
	"context"
	"sync"
	"time"
)

// Pinger is implemented by dependencies that must be reachable for the
// service to accept work, such as the run store.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Status is an overall or per-check state.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult contains the result of one check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is the probe response.
type Response struct {
	Status    Status                     `json:"status"`
	Checks    map[string]CheckResult     `json:"checks,omitempty"`
	Workflows map[string]ComponentStatus `json:"workflows,omitempty"`
}

// IsHealthy reports whether the instance should receive traffic. A
// degraded instance still does: a failing provider affects one workflow,
// not the service.
func (r *Response) IsHealthy() bool {
	return r.Status != StatusUnhealthy
}

// Checker answers liveness and readiness probes.
type Checker struct {
	store   Pinger
	tracker *Tracker
	timeout time.Duration

	mu           sync.RWMutex
	shuttingDown bool
}

// NewChecker creates a new checker. tracker may be nil.
func NewChecker(store Pinger, tracker *Tracker) *Checker {
	return &Checker{
		store:   store,
		tracker: tracker,
		timeout: 2 * time.Second,
	}
}

// Liveness reports that the process is up.
func (c *Checker) Liveness(ctx context.Context) *Response {
	return &Response{Status: StatusHealthy}
}

// Readiness checks the run store and summarizes workflow outcomes.
func (c *Checker) Readiness(ctx context.Context) *Response {
	c.mu.RLock()
	shuttingDown := c.shuttingDown
	c.mu.RUnlock()

	if shuttingDown {
		return &Response{
			Status: StatusUnhealthy,
			Checks: map[string]CheckResult{
				"shutdown": {Status: StatusUnhealthy, Message: "service is shutting down"},
			},
		}
	}

	resp := &Response{
		Status: StatusHealthy,
		Checks: map[string]CheckResult{"store": c.checkStore(ctx)},
	}
	if resp.Checks["store"].Status != StatusHealthy {
		resp.Status = StatusUnhealthy
	}

	if c.tracker != nil {
		resp.Workflows = c.tracker.All()
		if resp.Status == StatusHealthy && !c.tracker.AllHealthy() {
			resp.Status = StatusDegraded
		}
	}

	return resp
}

func (c *Checker) checkStore(ctx context.Context) CheckResult {
	if c.store == nil {
		return CheckResult{Status: StatusUnhealthy, Message: "store not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.store.PingContext(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// SetShuttingDown makes readiness fail so load balancers stop sending work.
func (c *Checker) SetShuttingDown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuttingDown = true
}
