package config

import (
	"fmt"
	"time"

	"github.com/passbi/passbi_travel/internal/provider"
	"gopkg.in/yaml.v3"
)

// providerFile is the layout of PROVIDERS_FILE
type providerFile struct {
	Providers []providerEntry `yaml:"providers"`
}

type providerEntry struct {
	Name               string         `yaml:"name"`
	Kind               provider.Kind  `yaml:"kind"`
	Enabled            *bool          `yaml:"enabled"`
	Timeout            *time.Duration `yaml:"timeout"`
	MaxRetries         *int           `yaml:"max_retries"`
	RetryBaseDelay     *time.Duration `yaml:"retry_base_delay"`
	RateLimitPerMinute *int           `yaml:"rate_limit_per_minute"`
	CacheTTL           *time.Duration `yaml:"cache_ttl"`
	CacheSize          *int           `yaml:"cache_size"`

	// Credentials are read from the named environment variables so the
	// file itself never holds secrets
	APIKeyEnv    string `yaml:"api_key_env"`
	APISecretEnv string `yaml:"api_secret_env"`
	BaseURL      string `yaml:"base_url"`

	Synthetic struct {
		DynamicPricing bool          `yaml:"dynamic_pricing"`
		Variations     bool          `yaml:"variations"`
		Seed           int64         `yaml:"seed"`
		MaxDelay       time.Duration `yaml:"max_delay"`
		ErrorRate      float64       `yaml:"error_rate"`
	} `yaml:"synthetic"`
}

// ParseProviders decodes a providers YAML document. Unset fields keep the
// provider defaults.
func ParseProviders(data []byte, env func(string) string) ([]provider.Spec, error) {
	var file providerFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse providers: %w", err)
	}
	if len(file.Providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}

	specs := make([]provider.Spec, 0, len(file.Providers))
	for i, e := range file.Providers {
		spec, err := e.spec(env)
		if err != nil {
			return nil, fmt.Errorf("provider %d: %w", i, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (e providerEntry) spec(env func(string) string) (provider.Spec, error) {
	switch e.Kind {
	case provider.KindSynthetic, provider.KindLive, provider.KindStub:
	default:
		return provider.Spec{}, fmt.Errorf("unknown kind %q", e.Kind)
	}

	cfg := provider.DefaultConfig(e.Name)
	if e.Enabled != nil {
		cfg.Enabled = *e.Enabled
	}
	if e.Timeout != nil {
		cfg.Timeout = *e.Timeout
	}
	if e.MaxRetries != nil {
		cfg.MaxRetries = *e.MaxRetries
	}
	if e.RetryBaseDelay != nil {
		cfg.RetryBaseDelay = *e.RetryBaseDelay
	}
	if e.RateLimitPerMinute != nil {
		cfg.RateLimitPerMinute = *e.RateLimitPerMinute
	}
	if e.CacheTTL != nil {
		cfg.CacheTTL = *e.CacheTTL
	}
	if e.CacheSize != nil {
		cfg.CacheSize = *e.CacheSize
	}

	cfg.Credentials.BaseURL = e.BaseURL
	if e.APIKeyEnv != "" {
		cfg.Credentials.APIKey = env(e.APIKeyEnv)
	}
	if e.APISecretEnv != "" {
		cfg.Credentials.APISecret = env(e.APISecretEnv)
	}

	if err := cfg.Validate(); err != nil {
		return provider.Spec{}, err
	}

	return provider.Spec{
		Kind:   e.Kind,
		Config: cfg,
		Synthetic: provider.SyntheticOptions{
			DynamicPricing: e.Synthetic.DynamicPricing,
			Variations:     e.Synthetic.Variations,
			Seed:           e.Synthetic.Seed,
			MaxDelay:       e.Synthetic.MaxDelay,
			ErrorRate:      e.Synthetic.ErrorRate,
		},
	}, nil
}
