// Package health tracks workflow outcomes and answers liveness and
// readiness probes.
package health

import (
	"sync"
	"time"
)

// ComponentStatus represents the health of a component.
type ComponentStatus struct {
	Healthy     bool      `json:"healthy"`
	LastCheck   time.Time `json:"last_check"`
	LastSuccess time.Time `json:"last_success,omitzero"`
	LastError   string    `json:"last_error,omitempty"`
	Message     string    `json:"message,omitempty"`
}

// Tracker records the last outcome of each workflow.
type Tracker struct {
	mu         sync.RWMutex
	components map[string]*ComponentStatus
	now        func() time.Time
}

// NewTracker creates a new health tracker.
func NewTracker() *Tracker {
	return &Tracker{
		components: make(map[string]*ComponentStatus),
		now:        time.Now,
	}
}

func (t *Tracker) component(name string) *ComponentStatus {
	c, ok := t.components[name]
	if !ok {
		c = &ComponentStatus{}
		t.components[name] = c
	}
	return c
}

// SetHealthy marks a component as healthy.
func (t *Tracker) SetHealthy(name, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	c := t.component(name)
	c.Healthy = true
	c.LastCheck = now
	c.LastSuccess = now
	c.LastError = ""
	c.Message = message
}

// SetUnhealthy marks a component as unhealthy.
func (t *Tracker) SetUnhealthy(name string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.component(name)
	c.Healthy = false
	c.LastCheck = t.now()
	c.LastError = err.Error()
	c.Message = ""
}

// Status returns a copy of a component's status, or nil if it was never reported.
func (t *Tracker) Status(name string) *ComponentStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if c, ok := t.components[name]; ok {
		cp := *c
		return &cp
	}
	return nil
}

// All returns copies of every component status.
func (t *Tracker) All() map[string]ComponentStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]ComponentStatus, len(t.components))
	for name, c := range t.components {
		result[name] = *c
	}
	return result
}

// AllHealthy returns true if every reported component is healthy.
func (t *Tracker) AllHealthy() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, c := range t.components {
		if !c.Healthy {
			return false
		}
	}
	return true
}
