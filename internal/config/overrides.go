package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Overrides adjusts workflow defaults from a YAML file.
//
//	poll_interval: 10s
//	workflows:
//	  get-profile-posts:
//	    timeout: 5m
type Overrides struct {
	PollInterval time.Duration               `yaml:"poll_interval"`
	Workflows    map[string]WorkflowOverride `yaml:"workflows"`
}

// WorkflowOverride holds per-workflow settings.
type WorkflowOverride struct {
	Timeout time.Duration `yaml:"timeout"`
}

// ParseOverrides parses YAML content into Overrides.
func ParseOverrides(data []byte) (*Overrides, error) {
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse overrides: %w", err)
	}
	if o.PollInterval < 0 {
		return nil, fmt.Errorf("poll_interval must not be negative")
	}
	for name, w := range o.Workflows {
		if w.Timeout < 0 {
			return nil, fmt.Errorf("workflow %s: timeout must not be negative", name)
		}
	}
	return &o, nil
}

// LoadOverrides reads the overrides file. An empty path yields empty overrides.
func LoadOverrides(path string) (*Overrides, error) {
	if path == "" {
		return &Overrides{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overrides: %w", err)
	}
	return ParseOverrides(data)
}

// Timeout returns the override for a workflow, or fallback when none is set.
func (o *Overrides) Timeout(workflow string, fallback time.Duration) time.Duration {
	if o == nil {
		return fallback
	}
	if w, ok := o.Workflows[workflow]; ok && w.Timeout > 0 {
		return w.Timeout
	}
	return fallback
}
