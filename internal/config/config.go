// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	// ContentDir overrides the embedded challenge pack when set.
	ContentDir string
	// PreviewOrigin is an optional separate origin that serves preview documents,
	// e.g. "https://preview.example.com". Empty serves them from this host.
	PreviewOrigin       string
	SessionTTL          time.Duration
	SweepInterval       time.Duration
	SubmitDelay         time.Duration
	SubmitRatePerMinute int
	AdminUserIDs        []string
	Retry               RetryConfig
}

// RetryConfig controls database retry behavior on SQLITE_BUSY.
type RetryConfig struct {
	DatabaseMaxRetries     int
	DatabaseRetryBaseDelay time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		FrontendURL:         getEnv("FRONTEND_URL", ""),
		DBPath:              getEnv("DB_PATH", "./data/lab.db"),
		ContentDir:          getEnv("CONTENT_DIR", ""),
		PreviewOrigin:       strings.TrimRight(getEnv("PREVIEW_ORIGIN", ""), "/"),
		SessionTTL:          getEnvDuration("SESSION_TTL", 60*time.Minute),
		SweepInterval:       getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		SubmitDelay:         getEnvDuration("SUBMIT_DELAY", 1500*time.Millisecond),
		SubmitRatePerMinute: getEnvInt("SUBMIT_RATE_PER_MINUTE", 30),
		AdminUserIDs:        getEnvList("ADMIN_USER_IDS"),
		Retry: RetryConfig{
			DatabaseMaxRetries:     getEnvInt("DB_MAX_RETRIES", 3),
			DatabaseRetryBaseDelay: getEnvDuration("DB_RETRY_BASE_DELAY", 50*time.Millisecond),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0")
	}
	if c.SubmitDelay < 0 {
		return fmt.Errorf("SUBMIT_DELAY cannot be negative")
	}
	if c.SubmitRatePerMinute <= 0 {
		return fmt.Errorf("SUBMIT_RATE_PER_MINUTE must be > 0")
	}
	if c.Retry.DatabaseMaxRetries <= 0 {
		return fmt.Errorf("DB_MAX_RETRIES must be > 0")
	}
	if c.PreviewOrigin != "" && !strings.HasPrefix(c.PreviewOrigin, "http://") && !strings.HasPrefix(c.PreviewOrigin, "https://") {
		return fmt.Errorf("PREVIEW_ORIGIN must be an http(s) origin")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// FrameAncestors returns the origins allowed to embed preview documents.
func (c *Config) FrameAncestors() []string {
	ancestors := []string{"'self'"}
	if c.FrontendURL != "" {
		ancestors = append(ancestors, strings.TrimRight(c.FrontendURL, "/"))
	}
	return ancestors
}

// PreviewURL returns the absolute or host-relative URL for a preview path.
func (c *Config) PreviewURL(path string) string {
	return c.PreviewOrigin + path
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
