package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdulachik/linkrunner/internal/apperrors"
)

func TestLoad(t *testing.T) {
	// Save original env and restore after test
	origEnv := os.Environ()
	t.Cleanup(func() {
		os.Clearenv()
		for _, e := range origEnv {
			for i := 0; i < len(e); i++ {
				if e[i] == '=' {
					os.Setenv(e[:i], e[i+1:])
					break
				}
			}
		}
	})

	t.Run("defaults", func(t *testing.T) {
		os.Clearenv()
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "data/linkrunner.db", cfg.DatabasePath)
		assert.Equal(t, ":8080", cfg.HTTPAddr)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 5*time.Second, cfg.PollInterval)
		assert.Equal(t, "https://api.brightdata.com", cfg.BrightDataBaseURL)
		assert.Equal(t, "https://api.phantombuster.com", cfg.PhantomBusterBaseURL)
		assert.Equal(t, "https://api.linkedin.com", cfg.LinkedInBaseURL)
		assert.Empty(t, cfg.BrightDataAPIToken)
	})

	t.Run("custom values", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("DATABASE_PATH", "/custom/path.db")
		os.Setenv("BRIGHT_DATA_API_TOKEN", "bd-token")
		os.Setenv("PHANTOMBUSTER_REACTIONS_AGENT_ID", "agent-1")
		os.Setenv("POLL_INTERVAL", "250ms")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "/custom/path.db", cfg.DatabasePath)
		assert.Equal(t, "bd-token", cfg.BrightDataAPIToken)
		assert.Equal(t, "agent-1", cfg.PhantomBusterReactionsAgentID)
		assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	})

	t.Run("invalid duration", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("POLL_INTERVAL", "invalid")

		_, err := Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "POLL_INTERVAL")
	})

	t.Run("non-positive duration", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("POLL_INTERVAL", "0s")

		_, err := Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "POLL_INTERVAL")
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := &Config{DatabasePath: "test.db"}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing database path", func(t *testing.T) {
		cfg := &Config{}
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_PATH")
		assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
	})
}

func TestConfig_ValidateForBrightData(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := &Config{BrightDataAPIToken: "token"}
		assert.NoError(t, cfg.ValidateForBrightData())
	})

	t.Run("missing token", func(t *testing.T) {
		err := (&Config{}).ValidateForBrightData()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "BRIGHT_DATA_API_TOKEN")
		assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
	})
}

func TestConfig_ValidateForPhantomBusterReactions(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := &Config{
			PhantomBusterAPIKey:           "key",
			PhantomBusterReactionsAgentID: "agent",
			LinkedInSessionCookie:         "li_at",
		}
		assert.NoError(t, cfg.ValidateForPhantomBusterReactions())
	})

	t.Run("missing api key", func(t *testing.T) {
		cfg := &Config{PhantomBusterReactionsAgentID: "agent"}
		err := cfg.ValidateForPhantomBusterReactions()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "PHANTOMBUSTER_API_KEY")
	})

	t.Run("missing agent id", func(t *testing.T) {
		cfg := &Config{PhantomBusterAPIKey: "key"}
		err := cfg.ValidateForPhantomBusterReactions()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "PHANTOMBUSTER_REACTIONS_AGENT_ID")
	})

	t.Run("missing session cookie", func(t *testing.T) {
		cfg := &Config{PhantomBusterAPIKey: "key", PhantomBusterReactionsAgentID: "agent"}
		err := cfg.ValidateForPhantomBusterReactions()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "LINKEDIN_SESSION_COOKIE")
	})
}

func TestConfig_ValidateForLinkedIn(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := &Config{
			LinkedInAccessToken: "token",
			LinkedInAuthorURN:   "urn:li:person:abc",
		}
		assert.NoError(t, cfg.ValidateForLinkedIn())
	})

	t.Run("missing access token", func(t *testing.T) {
		cfg := &Config{LinkedInAuthorURN: "urn:li:person:abc"}
		err := cfg.ValidateForLinkedIn()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "LINKEDIN_ACCESS_TOKEN")
	})

	t.Run("missing author urn", func(t *testing.T) {
		cfg := &Config{LinkedInAccessToken: "token"}
		err := cfg.ValidateForLinkedIn()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "LINKEDIN_AUTHOR_URN")
	})
}

func TestOverrides(t *testing.T) {
	t.Run("parses durations", func(t *testing.T) {
		o, err := ParseOverrides([]byte(`
poll_interval: 2s
workflows:
  get-profile-posts:
    timeout: 5m
`))
		require.NoError(t, err)

		assert.Equal(t, 2*time.Second, o.PollInterval)
		assert.Equal(t, 5*time.Minute, o.Timeout("get-profile-posts", time.Minute))
		assert.Equal(t, time.Minute, o.Timeout("create-post", time.Minute))
	})

	t.Run("rejects negative timeout", func(t *testing.T) {
		_, err := ParseOverrides([]byte(`
workflows:
  save-lead:
    timeout: -1s
`))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "save-lead")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := ParseOverrides([]byte("workflows: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("empty path", func(t *testing.T) {
		o, err := LoadOverrides("")
		require.NoError(t, err)
		assert.Equal(t, time.Second, o.Timeout("anything", time.Second))
	})

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "workflows.yaml")
		require.NoError(t, os.WriteFile(path, []byte("poll_interval: 1s\n"), 0o644))

		o, err := LoadOverrides(path)
		require.NoError(t, err)
		assert.Equal(t, time.Second, o.PollInterval)
	})

	t.Run("nil overrides fall back", func(t *testing.T) {
		var o *Overrides
		assert.Equal(t, time.Second, o.Timeout("x", time.Second))
	})
}
