package provider

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultTimeout            = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultRetryBaseDelay     = time.Second
	DefaultRateLimitPerMinute = 60
	DefaultCacheTTL           = 30 * time.Minute
	DefaultCacheSize          = 1000
)

// Credentials are opaque to everything but the backend that uses them
type Credentials struct {
	APIKey    string
	APISecret string
	BaseURL   string
}

// Config controls how a Managed provider calls its backend
type Config struct {
	Name               string
	Enabled            bool
	Credentials        Credentials
	Timeout            time.Duration
	MaxRetries         int
	RetryBaseDelay     time.Duration
	RateLimitPerMinute int
	CacheTTL           time.Duration
	CacheSize          int
}

// DefaultConfig returns an enabled configuration with default limits
func DefaultConfig(name string) Config {
	return Config{
		Name:               name,
		Enabled:            true,
		Timeout:            DefaultTimeout,
		MaxRetries:         DefaultMaxRetries,
		RetryBaseDelay:     DefaultRetryBaseDelay,
		RateLimitPerMinute: DefaultRateLimitPerMinute,
		CacheTTL:           DefaultCacheTTL,
		CacheSize:          DefaultCacheSize,
	}
}

// Validate checks the configuration for values that would break the
// retry, cache or rate limit machinery
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("provider name is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("provider %s: timeout must be positive", c.Name)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("provider %s: max retries must not be negative", c.Name)
	}
	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("provider %s: retry delay must not be negative", c.Name)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("provider %s: rate limit must not be negative", c.Name)
	}
	if c.CacheTTL < 0 || c.CacheSize < 0 {
		return fmt.Errorf("provider %s: cache settings must not be negative", c.Name)
	}
	return nil
}

// HasCredentials reports whether both key and secret are set
func (c Config) HasCredentials() bool {
	return c.Credentials.APIKey != "" && c.Credentials.APISecret != ""
}
