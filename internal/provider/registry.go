package provider

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/passbi/passbi_travel/internal/ratelimit"
)

// Kind selects a backend implementation
type Kind string

const (
	KindSynthetic Kind = "synthetic"
	KindLive      Kind = "live"
	KindStub      Kind = "stub"
)

// Spec describes one configured provider
type Spec struct {
	Kind      Kind
	Config    Config
	Synthetic SyntheticOptions
}

// Deps are the shared resources handed to every provider Build creates.
// Nil factories fall back to the in-memory cache and limiter.
type Deps struct {
	Logger     *slog.Logger
	HTTPClient *http.Client
	Cache      func(cfg Config) ResultCache
	Limiter    func(cfg Config) ratelimit.Limiter
}

// Build constructs the provider described by spec
func Build(spec Spec, deps Deps) (*Managed, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := []Option{WithLogger(logger)}
	if deps.Cache != nil {
		opts = append(opts, WithCache(deps.Cache(spec.Config)))
	}
	if deps.Limiter != nil {
		opts = append(opts, WithLimiter(deps.Limiter(spec.Config)))
	}

	switch spec.Kind {
	case KindSynthetic:
		backend, err := NewSynthetic(spec.Synthetic)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", spec.Config.Name, err)
		}
		return NewManaged(spec.Config, backend, opts...)

	case KindLive:
		cfg := spec.Config
		if !cfg.HasCredentials() {
			logger.Warn("live provider has no credentials, disabling", "provider", cfg.Name)
			cfg.Enabled = false
			return NewManaged(cfg, Stub{}, opts...)
		}
		backend, err := NewLive(cfg, deps.HTTPClient, logger)
		if err != nil {
			return nil, err
		}
		return NewManaged(cfg, backend, opts...)

	case KindStub:
		return NewStub(spec.Config, opts...)
	}

	return nil, fmt.Errorf("provider %s: unknown kind %q", spec.Config.Name, spec.Kind)
}

// BuildAll constructs every spec in order
func BuildAll(specs []Spec, deps Deps) ([]*Managed, error) {
	out := make([]*Managed, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if seen[spec.Config.Name] {
			return nil, fmt.Errorf("duplicate provider name %q", spec.Config.Name)
		}
		seen[spec.Config.Name] = true

		p, err := Build(spec, deps)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
