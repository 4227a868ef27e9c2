package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the analytics service
type Config struct {
	// HTTP server settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Scraping service settings
	Upstream UpstreamConfig `yaml:"upstream" json:"upstream"`

	// Profile cache settings
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Per-client request throttling
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Comparison settings
	Compare CompareConfig `yaml:"compare" json:"compare"`

	// Bulk prefetch settings
	Warmer WarmerConfig `yaml:"warmer" json:"warmer"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address         string        `yaml:"address" json:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	TrustedProxies  []string      `yaml:"trusted_proxies" json:"trusted_proxies"`
	CORSOrigins     []string      `yaml:"cors_origins" json:"cors_origins"`
}

// UpstreamConfig holds the scraping actor configuration
type UpstreamConfig struct {
	BaseURL       string        `yaml:"base_url" json:"base_url"`
	ActorID       string        `yaml:"actor_id" json:"actor_id"`
	Token         string        `yaml:"token" json:"-"`
	CallTimeout   time.Duration `yaml:"call_timeout" json:"call_timeout"`
	WaitForFinish time.Duration `yaml:"wait_for_finish" json:"wait_for_finish"`
	PollInterval  time.Duration `yaml:"poll_interval" json:"poll_interval"`
	PostsLimit    int           `yaml:"posts_limit" json:"posts_limit"`
	Retries       int           `yaml:"retries" json:"retries"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent"`
}

// CacheConfig holds the profile store configuration
type CacheConfig struct {
	Driver        string        `yaml:"driver" json:"driver"`
	DSN           string        `yaml:"dsn" json:"-"`
	TTL           time.Duration `yaml:"ttl" json:"ttl"`
	ListLimit     int           `yaml:"list_limit" json:"list_limit"`
	PurgeInterval time.Duration `yaml:"purge_interval" json:"purge_interval"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	Strategy    string        `yaml:"strategy" json:"strategy"`
	MaxRequests int           `yaml:"max_requests" json:"max_requests"`
	Window      time.Duration `yaml:"window" json:"window"`
}

// CompareConfig holds comparison limits
type CompareConfig struct {
	MinProfiles   int           `yaml:"min_profiles" json:"min_profiles"`
	MaxProfiles   int           `yaml:"max_profiles" json:"max_profiles"`
	HandleTimeout time.Duration `yaml:"handle_timeout" json:"handle_timeout"`
}

// WarmerConfig holds bulk prefetch configuration
type WarmerConfig struct {
	Workers           int `yaml:"workers" json:"workers"`
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	StrategySlidingWindow = "sliding_window"
	StrategyTokenBucket   = "token_bucket"
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":3000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Upstream: UpstreamConfig{
			BaseURL:       "https://api.apify.com",
			ActorID:       "shu8hvrXbJbY3Eb9W",
			CallTimeout:   2 * time.Minute,
			WaitForFinish: time.Minute,
			PollInterval:  2 * time.Second,
			PostsLimit:    5,
			Retries:       0,
			UserAgent:     "instalytics/1.0",
		},
		Cache: CacheConfig{
			Driver:        DriverSQLite,
			DSN:           "instalytics.db",
			TTL:           7 * 24 * time.Hour,
			ListLimit:     50,
			PurgeInterval: time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			Strategy:    StrategySlidingWindow,
			MaxRequests: 100,
			Window:      15 * time.Minute,
		},
		Compare: CompareConfig{
			MinProfiles:   2,
			MaxProfiles:   5,
			HandleTimeout: 3 * time.Minute,
		},
		Warmer: WarmerConfig{
			Workers:           3,
			RequestsPerMinute: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	// Server
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Address = ":" + port
	}
	if addr := os.Getenv("INSTALYTICS_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}

	// Upstream
	if token := os.Getenv("APIFY_API_TOKEN"); token != "" {
		c.Upstream.Token = token
	}
	if token := os.Getenv("INSTALYTICS_APIFY_TOKEN"); token != "" {
		c.Upstream.Token = token
	}
	if actor := os.Getenv("INSTALYTICS_ACTOR_ID"); actor != "" {
		c.Upstream.ActorID = actor
	}
	if baseURL := os.Getenv("INSTALYTICS_UPSTREAM_URL"); baseURL != "" {
		c.Upstream.BaseURL = baseURL
	}
	if timeout := os.Getenv("INSTALYTICS_CALL_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("INSTALYTICS_CALL_TIMEOUT: %w", err))
		} else {
			c.Upstream.CallTimeout = d
		}
	}

	if retries := os.Getenv("INSTALYTICS_UPSTREAM_RETRIES"); retries != "" {
		n, err := strconv.Atoi(retries)
		if err != nil {
			errs = append(errs, fmt.Errorf("INSTALYTICS_UPSTREAM_RETRIES: %w", err))
		} else {
			c.Upstream.Retries = n
		}
	}

	// Cache
	if driver := os.Getenv("INSTALYTICS_CACHE_DRIVER"); driver != "" {
		c.Cache.Driver = strings.ToLower(driver)
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Cache.DSN = dsn
	}
	if dsn := os.Getenv("INSTALYTICS_CACHE_DSN"); dsn != "" {
		c.Cache.DSN = dsn
	}
	if ttl := os.Getenv("INSTALYTICS_CACHE_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			errs = append(errs, fmt.Errorf("INSTALYTICS_CACHE_TTL: %w", err))
		} else {
			c.Cache.TTL = d
		}
	}

	// Rate limiting
	if max := os.Getenv("INSTALYTICS_RATE_LIMIT_MAX"); max != "" {
		var val int
		fmt.Sscanf(max, "%d", &val)
		if val > 0 {
			c.RateLimit.MaxRequests = val
		}
	}
	if window := os.Getenv("INSTALYTICS_RATE_LIMIT_WINDOW"); window != "" {
		d, err := time.ParseDuration(window)
		if err != nil {
			errs = append(errs, fmt.Errorf("INSTALYTICS_RATE_LIMIT_WINDOW: %w", err))
		} else {
			c.RateLimit.Window = d
		}
	}
	if enabled := os.Getenv("INSTALYTICS_RATE_LIMIT_ENABLED"); enabled != "" {
		c.RateLimit.Enabled = strings.ToLower(enabled) == "true"
	}

	// Logging
	if logLevel := os.Getenv("INSTALYTICS_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if format := os.Getenv("INSTALYTICS_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	for _, loc := range DefaultLocations() {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// DefaultLocations lists config file candidates in order of precedence
func DefaultLocations() []string {
	home := os.Getenv("HOME")
	return []string{
		".instalytics.yaml",
		".instalytics.yml",
		filepath.Join(home, ".config", "instalytics", "config.yaml"),
		filepath.Join(home, ".config", "instalytics", "config.yml"),
		filepath.Join(home, ".instalytics.yaml"),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Address == "" {
		errs = append(errs, errors.New("server address is required"))
	}

	// Upstream
	if c.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("upstream base URL is required"))
	}
	if c.Upstream.ActorID == "" {
		errs = append(errs, errors.New("upstream actor ID is required"))
	}
	if c.Upstream.CallTimeout <= 0 {
		errs = append(errs, errors.New("upstream call timeout must be positive"))
	}
	if c.Upstream.PollInterval <= 0 {
		errs = append(errs, errors.New("upstream poll interval must be positive"))
	}
	if c.Upstream.Retries < 0 {
		errs = append(errs, errors.New("upstream retries cannot be negative"))
	}
	if c.Upstream.PostsLimit <= 0 {
		errs = append(errs, errors.New("upstream posts limit must be positive"))
	}

	// Cache
	switch c.Cache.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Cache.DSN == "" {
			errs = append(errs, fmt.Errorf("cache DSN is required for driver %s", c.Cache.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache driver %q", c.Cache.Driver))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache TTL must be positive"))
	}
	if c.Cache.ListLimit <= 0 {
		errs = append(errs, errors.New("cache list limit must be positive"))
	}
	if c.Cache.PurgeInterval < 0 {
		errs = append(errs, errors.New("cache purge interval cannot be negative"))
	}

	// Rate limiting
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxRequests <= 0 {
			errs = append(errs, errors.New("rate limit max requests must be positive"))
		}
		if c.RateLimit.Window <= 0 {
			errs = append(errs, errors.New("rate limit window must be positive"))
		}
		if c.RateLimit.Strategy != StrategySlidingWindow && c.RateLimit.Strategy != StrategyTokenBucket {
			errs = append(errs, fmt.Errorf("unknown rate limit strategy %q", c.RateLimit.Strategy))
		}
	}

	// Compare
	if c.Compare.MinProfiles < 2 {
		errs = append(errs, errors.New("compare min profiles must be at least 2"))
	}
	if c.Compare.MaxProfiles < c.Compare.MinProfiles {
		errs = append(errs, errors.New("compare max profiles must not be below min profiles"))
	}
	if c.Compare.HandleTimeout <= 0 {
		errs = append(errs, errors.New("compare handle timeout must be positive"))
	}

	// Warmer
	if c.Warmer.Workers <= 0 {
		errs = append(errs, errors.New("warmer workers must be positive"))
	}
	if c.Warmer.Workers > 10 {
		errs = append(errs, errors.New("warmer workers should not exceed 10"))
	}
	if c.Warmer.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("warmer requests per minute must be positive"))
	}

	// Logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	if c.Logging.Format != "" && c.Logging.Format != "console" && c.Logging.Format != "json" {
		errs = append(errs, errors.New("invalid log format"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if addr, ok := flags["address"].(string); ok && addr != "" {
		c.Server.Address = addr
	}
	if token, ok := flags["token"].(string); ok && token != "" {
		c.Upstream.Token = token
	}
	if driver, ok := flags["cache-driver"].(string); ok && driver != "" {
		c.Cache.Driver = driver
	}
	if dsn, ok := flags["cache-dsn"].(string); ok && dsn != "" {
		c.Cache.DSN = dsn
	}
	if workers, ok := flags["workers"].(int); ok && workers > 0 {
		c.Warmer.Workers = workers
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if format, ok := flags["log-format"].(string); ok && format != "" {
		c.Logging.Format = format
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".instalytics.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
