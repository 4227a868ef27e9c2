package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":3000", cfg.Server.Address)
	assert.Equal(t, "shu8hvrXbJbY3Eb9W", cfg.Upstream.ActorID)
	assert.Equal(t, 5, cfg.Upstream.PostsLimit)
	assert.Equal(t, 7*24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 50, cfg.Cache.ListLimit)
	assert.Equal(t, DriverSQLite, cfg.Cache.Driver)
	assert.Equal(t, 100, cfg.RateLimit.MaxRequests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 2, cfg.Compare.MinProfiles)
	assert.Equal(t, 5, cfg.Compare.MaxProfiles)
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("INSTALYTICS_APIFY_TOKEN", "apify_api_test")
	t.Setenv("INSTALYTICS_CACHE_DRIVER", "Postgres")
	t.Setenv("INSTALYTICS_CACHE_DSN", "postgres://localhost/instalytics")
	t.Setenv("INSTALYTICS_CACHE_TTL", "24h")
	t.Setenv("INSTALYTICS_RATE_LIMIT_MAX", "30")
	t.Setenv("INSTALYTICS_RATE_LIMIT_WINDOW", "1m")
	t.Setenv("INSTALYTICS_LOG_LEVEL", "debug")

	config := DefaultConfig()
	err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Server.Address != ":8080" {
		t.Errorf("Expected address to be :8080, got %s", config.Server.Address)
	}
	if config.Upstream.Token != "apify_api_test" {
		t.Errorf("Expected token to be apify_api_test, got %s", config.Upstream.Token)
	}
	if config.Cache.Driver != DriverPostgres {
		t.Errorf("Expected driver to be postgres, got %s", config.Cache.Driver)
	}
	if config.Cache.DSN != "postgres://localhost/instalytics" {
		t.Errorf("Unexpected DSN %s", config.Cache.DSN)
	}
	if config.Cache.TTL != 24*time.Hour {
		t.Errorf("Expected TTL to be 24h, got %s", config.Cache.TTL)
	}
	if config.RateLimit.MaxRequests != 30 {
		t.Errorf("Expected max requests to be 30, got %d", config.RateLimit.MaxRequests)
	}
	if config.RateLimit.Window != time.Minute {
		t.Errorf("Expected window to be 1m, got %s", config.RateLimit.Window)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvExplicitAddressWinsOverPort(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("INSTALYTICS_ADDRESS", "127.0.0.1:9000")

	config := DefaultConfig()
	require.NoError(t, config.LoadFromEnv())
	assert.Equal(t, "127.0.0.1:9000", config.Server.Address)
}

func TestLoadFromEnvBadDuration(t *testing.T) {
	t.Setenv("INSTALYTICS_CACHE_TTL", "a week")

	config := DefaultConfig()
	err := config.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INSTALYTICS_CACHE_TTL")
	assert.Equal(t, 7*24*time.Hour, config.Cache.TTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"memory driver needs no dsn", func(c *Config) { c.Cache.Driver = DriverMemory; c.Cache.DSN = "" }, false},
		{"unknown driver", func(c *Config) { c.Cache.Driver = "mongo" }, true},
		{"sqlite without dsn", func(c *Config) { c.Cache.DSN = "" }, true},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }, true},
		{"bad strategy", func(c *Config) { c.RateLimit.Strategy = "leaky" }, true},
		{"disabled limiter skips checks", func(c *Config) { c.RateLimit.Enabled = false; c.RateLimit.MaxRequests = 0 }, false},
		{"compare min below two", func(c *Config) { c.Compare.MinProfiles = 1 }, true},
		{"compare max below min", func(c *Config) { c.Compare.MaxProfiles = 1 }, true},
		{"too many warmers", func(c *Config) { c.Warmer.Workers = 15 }, true},
		{"invalid log level", func(c *Config) { c.Logging.Level = "invalid" }, true},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.TTL = 0
	cfg.Warmer.Workers = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache TTL must be positive")
	assert.Contains(t, err.Error(), "warmer workers must be positive")
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()

	config.MergeCommandLineFlags(map[string]interface{}{
		"address":      ":4000",
		"token":        "flag-token",
		"cache-driver": "memory",
		"workers":      7,
		"log-level":    "error",
		"log-format":   "json",
	})

	assert.Equal(t, ":4000", config.Server.Address)
	assert.Equal(t, "flag-token", config.Upstream.Token)
	assert.Equal(t, DriverMemory, config.Cache.Driver)
	assert.Equal(t, 7, config.Warmer.Workers)
	assert.Equal(t, "error", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	config := DefaultConfig()
	config.Upstream.ActorID = "custom-actor"
	config.Cache.TTL = 48 * time.Hour
	config.Warmer.Workers = 8

	require.NoError(t, config.Save(configPath))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(configPath))

	assert.Equal(t, "custom-actor", loaded.Upstream.ActorID)
	assert.Equal(t, 48*time.Hour, loaded.Cache.TTL)
	assert.Equal(t, 8, loaded.Warmer.Workers)
}

func TestDurationParsing(t *testing.T) {
	yamlContent := `
upstream:
  call_timeout: 90s
cache:
  ttl: 168h
rate_limit:
  window: 15m
`
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(yamlContent), &cfg))

	assert.Equal(t, 90*time.Second, cfg.Upstream.CallTimeout)
	assert.Equal(t, 7*24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
}

func TestLoad(t *testing.T) {
	t.Run("precedence order", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		configContent := `
upstream:
  actor_id: file-actor
cache:
  driver: memory
logging:
  level: warn
`
		require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

		t.Setenv("INSTALYTICS_LOG_LEVEL", "debug")
		t.Setenv("INSTALYTICS_ACTOR_ID", "")

		cfg, err := Load(configPath, map[string]interface{}{"log-level": "error"})
		require.NoError(t, err)

		// flags > env > file > defaults
		assert.Equal(t, "error", cfg.Logging.Level)
		assert.Equal(t, "file-actor", cfg.Upstream.ActorID)
		assert.Equal(t, DriverMemory, cfg.Cache.Driver)
	})

	t.Run("validation failure", func(t *testing.T) {
		cfg, err := Load("", map[string]interface{}{"cache-driver": "bogus"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "configuration validation failed")
		assert.Nil(t, cfg)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
		assert.Error(t, err)
	})
}
