package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/abdulachik/linkrunner/internal/apperrors"
)

// Config holds all application configuration.
type Config struct {
	// Database
	DatabasePath string

	// Service
	HTTPAddr    string
	MetricsAddr string
	APIKey      string // optional bearer token for the HTTP API

	// Logging
	LogLevel string

	// Polling
	PollInterval  time.Duration
	WorkflowsFile string // optional YAML overrides

	// Bright Data
	BrightDataAPIToken         string
	BrightDataPostsDatasetID   string
	BrightDataProfileDatasetID string
	BrightDataBaseURL          string

	// PhantomBuster
	PhantomBusterAPIKey           string
	PhantomBusterReactionsAgentID string
	PhantomBusterBaseURL          string
	LinkedInSessionCookie         string

	// LinkedIn
	LinkedInAccessToken string
	LinkedInAuthorURN   string
	LinkedInBaseURL     string

	// Notification settings
	NotifyWebhookURL string
}

// Load reads configuration from environment variables.
// It automatically loads .env file if present.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath:                  getEnv("DATABASE_PATH", "data/linkrunner.db"),
		HTTPAddr:                      getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr:                   getEnv("METRICS_ADDR", ":9090"),
		APIKey:                        getEnv("API_KEY", ""),
		LogLevel:                      getEnv("LOG_LEVEL", "info"),
		WorkflowsFile:                 getEnv("WORKFLOWS_FILE", ""),
		BrightDataAPIToken:            getEnv("BRIGHT_DATA_API_TOKEN", ""),
		BrightDataPostsDatasetID:      getEnv("BRIGHT_DATA_POSTS_DATASET_ID", "gd_lyy3tktm25m4avu764"),
		BrightDataProfileDatasetID:    getEnv("BRIGHT_DATA_PROFILE_DATASET_ID", "gd_l1viktl72bvl7bjuj0"),
		BrightDataBaseURL:             getEnv("BRIGHT_DATA_BASE_URL", "https://api.brightdata.com"),
		PhantomBusterAPIKey:           getEnv("PHANTOMBUSTER_API_KEY", ""),
		PhantomBusterReactionsAgentID: getEnv("PHANTOMBUSTER_REACTIONS_AGENT_ID", ""),
		PhantomBusterBaseURL:          getEnv("PHANTOMBUSTER_BASE_URL", "https://api.phantombuster.com"),
		LinkedInSessionCookie:         getEnv("LINKEDIN_SESSION_COOKIE", ""),
		LinkedInAccessToken:           getEnv("LINKEDIN_ACCESS_TOKEN", ""),
		LinkedInAuthorURN:             getEnv("LINKEDIN_AUTHOR_URN", ""),
		LinkedInBaseURL:               getEnv("LINKEDIN_BASE_URL", "https://api.linkedin.com"),
		NotifyWebhookURL:              getEnv("NOTIFY_WEBHOOK_URL", ""),
	}

	var err error
	cfg.PollInterval, err = time.ParseDuration(getEnv("POLL_INTERVAL", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("invalid POLL_INTERVAL: must be positive")
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return apperrors.Configuration("DATABASE_PATH")
	}
	return nil
}

// ValidateForBrightData checks configuration needed by the Bright Data adapters.
func (c *Config) ValidateForBrightData() error {
	if c.BrightDataAPIToken == "" {
		return apperrors.Configuration("BRIGHT_DATA_API_TOKEN")
	}
	return nil
}

// ValidateForPhantomBusterReactions checks configuration needed to launch the reactions agent.
func (c *Config) ValidateForPhantomBusterReactions() error {
	if c.PhantomBusterAPIKey == "" {
		return apperrors.Configuration("PHANTOMBUSTER_API_KEY")
	}
	if c.PhantomBusterReactionsAgentID == "" {
		return apperrors.Configuration("PHANTOMBUSTER_REACTIONS_AGENT_ID")
	}
	if c.LinkedInSessionCookie == "" {
		return apperrors.Configuration("LINKEDIN_SESSION_COOKIE")
	}
	return nil
}

// ValidateForPhantomBusterLeads checks configuration needed to save leads.
func (c *Config) ValidateForPhantomBusterLeads() error {
	if c.PhantomBusterAPIKey == "" {
		return apperrors.Configuration("PHANTOMBUSTER_API_KEY")
	}
	return nil
}

// ValidateForLinkedIn checks configuration needed for posting.
func (c *Config) ValidateForLinkedIn() error {
	if c.LinkedInAccessToken == "" {
		return apperrors.Configuration("LINKEDIN_ACCESS_TOKEN")
	}
	if c.LinkedInAuthorURN == "" {
		return apperrors.Configuration("LINKEDIN_AUTHOR_URN")
	}
	return nil
}

// ValidateForServe checks configuration needed for serve mode.
// Provider credentials are checked per run, so a partially configured
// service can still serve the workflows it has credentials for.
func (c *Config) ValidateForServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.HTTPAddr == "" {
		return apperrors.Configuration("HTTP_ADDR")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
