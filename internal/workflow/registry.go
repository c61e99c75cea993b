// Package workflow registers the named workflows and runs them as durably
// tracked runs.
package workflow

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/abdulachik/linkrunner/internal/backend"
	"github.com/abdulachik/linkrunner/internal/config"
	"github.com/abdulachik/linkrunner/internal/request"
)

// ErrUnknownWorkflow is returned for names that are not registered.
var ErrUnknownWorkflow = errors.New("unknown workflow")

// BackendFactory builds the adapter a workflow runs against. It returns a
// configuration error when a required credential is missing.
type BackendFactory func(cfg *config.Config) (backend.Adapter, error)

// Definition describes one workflow.
type Definition struct {
	Name        string
	Description string
	Schema      request.Schema
	Parse       request.Parser
	Backend     BackendFactory
	Timeout     time.Duration
}

// Registry holds workflow definitions by name.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry creates a registry with the given definitions.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a definition.
func (r *Registry) Register(d Definition) error {
	if d.Name == "" {
		return fmt.Errorf("workflow name is required")
	}
	if d.Parse == nil || d.Backend == nil {
		return fmt.Errorf("workflow %s: parser and backend are required", d.Name)
	}
	if d.Timeout <= 0 {
		return fmt.Errorf("workflow %s: timeout must be positive", d.Name)
	}
	if _, exists := r.defs[d.Name]; exists {
		return fmt.Errorf("workflow %s is already registered", d.Name)
	}
	r.defs[d.Name] = d
	return nil
}

// Get returns a definition by name.
func (r *Registry) Get(name string) (Definition, error) {
	d, ok := r.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownWorkflow, name)
	}
	return d, nil
}

// List returns all definitions sorted by name.
func (r *Registry) List() []Definition {
	defs := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})
	return defs
}

// ApplyOverrides replaces default timeouts with configured ones.
func (r *Registry) ApplyOverrides(o *config.Overrides) error {
	if o == nil {
		return nil
	}
	for name := range o.Workflows {
		if _, ok := r.defs[name]; !ok {
			return fmt.Errorf("overrides: %w: %s", ErrUnknownWorkflow, name)
		}
	}
	for name, d := range r.defs {
		d.Timeout = o.Timeout(name, d.Timeout)
		r.defs[name] = d
	}
	return nil
}
