package provider

import (
	"context"

	"github.com/passbi/passbi_travel/internal/models"
)

// Stub stands in for an integration that is not wired yet. It answers
// every search with an empty route list.
type Stub struct{}

// Fetch returns no routes
func (Stub) Fetch(_ context.Context, _ models.SearchRequest) ([]models.Route, error) {
	return []models.Route{}, nil
}

// NewStub wraps a Stub in a Managed provider. Without an API key the
// provider is disabled.
func NewStub(cfg Config, opts ...Option) (*Managed, error) {
	if cfg.Credentials.APIKey == "" {
		cfg.Enabled = false
	}
	return NewManaged(cfg, Stub{}, opts...)
}
