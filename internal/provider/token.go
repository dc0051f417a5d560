package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	tokenRefreshMargin = 5 * time.Minute
	defaultTokenTTL    = 1799 * time.Second
)

// TokenSource fetches OAuth2 client-credentials tokens and caches them
// until less than five minutes of validity remain
type TokenSource struct {
	src oauth2.TokenSource
}

// NewTokenSource creates a token source for the given endpoint. Token
// requests go through client; nil means http.DefaultClient.
func NewTokenSource(tokenURL, clientID, clientSecret string, client *http.Client) *TokenSource {
	if client == nil {
		client = http.DefaultClient
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
	return &TokenSource{
		src: oauth2.ReuseTokenSourceWithExpiry(nil, &credentialsSource{ctx: ctx, cfg: cfg}, tokenRefreshMargin),
	}
}

// Token returns a valid access token, refreshing it when needed.
// Every error wraps ErrAuth.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	tok, err := s.src.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return "", fmt.Errorf("%w: %v", ErrAuth, &StatusError{Code: re.Response.StatusCode, Body: strings.TrimSpace(string(re.Body))})
		}
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	return tok.AccessToken, nil
}

// credentialsSource requests a fresh token on every call; caching is left
// to the reuse wrapper so the refresh margin applies
type credentialsSource struct {
	ctx context.Context
	cfg *clientcredentials.Config
}

func (c *credentialsSource) Token() (*oauth2.Token, error) {
	tok, err := c.cfg.Token(c.ctx)
	if err != nil {
		return nil, err
	}
	if tok.Expiry.IsZero() {
		tok.Expiry = time.Now().Add(defaultTokenTTL)
	}
	return tok, nil
}
