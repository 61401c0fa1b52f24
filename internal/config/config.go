package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultCacheTTL     = 6 * time.Hour
	DefaultFetchTimeout = 10 * time.Second
	maxFetchTimeout     = 10 * time.Second
)

// ErrMissingCredential is reported when live data is wanted but no FRED API key is set
var ErrMissingCredential = errors.New("FRED API key is not configured, serving simulated data")

// Config holds application configuration
type Config struct {
	Port         string
	LogLevel     string
	Debug        bool
	FREDURL      string
	FREDAPIKey   string
	CacheTTL     time.Duration
	FetchTimeout time.Duration
}

// fileConfig mirrors the optional yaml file. The API key is env only.
type fileConfig struct {
	Port         string        `yaml:"port"`
	LogLevel     string        `yaml:"log_level"`
	Debug        bool          `yaml:"debug"`
	FREDURL      string        `yaml:"fred_url"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// NewConfig loads configuration from an optional yaml file and environment
// variables. Environment variables take precedence over the file.
func NewConfig(path string) (*Config, error) {
	cfg := &Config{
		Port:         "8080",
		LogLevel:     "info",
		FREDURL:      "https://api.stlouisfed.org/fred",
		CacheTTL:     DefaultCacheTTL,
		FetchTimeout: DefaultFetchTimeout,
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.FREDURL = getEnv("FRED_URL", cfg.FREDURL)
	cfg.FREDAPIKey = getEnv("API_FRED", "")

	var err error
	if cfg.Debug, err = getEnvBool("DEBUG", cfg.Debug); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getEnvDuration("CACHE_TTL", cfg.CacheTTL); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = getEnvDuration("FETCH_TIMEOUT", cfg.FetchTimeout); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required values and duration bounds
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.FREDURL == "" {
		return fmt.Errorf("FRED_URL is required")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.FetchTimeout <= 0 || c.FetchTimeout > maxFetchTimeout {
		return fmt.Errorf("FETCH_TIMEOUT must be in (0, %s], got %s", maxFetchTimeout, c.FetchTimeout)
	}
	return nil
}

// LiveConfigured reports whether a FRED credential is available
func (c *Config) LiveConfigured() bool {
	return c.FREDAPIKey != ""
}

// CheckCredential returns ErrMissingCredential when live mode cannot work
func (c *Config) CheckCredential() error {
	if !c.LiveConfigured() {
		return ErrMissingCredential
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.Port != "" {
		c.Port = fc.Port
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.FREDURL != "" {
		c.FREDURL = fc.FREDURL
	}
	if fc.CacheTTL != 0 {
		c.CacheTTL = fc.CacheTTL
	}
	if fc.FetchTimeout != 0 {
		c.FetchTimeout = fc.FetchTimeout
	}
	c.Debug = fc.Debug
	return nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
