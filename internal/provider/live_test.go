package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/passbi/passbi_travel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const offersFixture = `{
  "data": [
    {
      "id": "1",
      "price": {"total": "189.40", "currency": "EUR"},
      "itineraries": [{
        "duration": "PT1H25M",
        "segments": [{
          "carrierCode": "OS",
          "departure": {"iataCode": "STR", "at": "2026-06-15T07:05:00"},
          "arrival": {"iataCode": "VIE", "at": "2026-06-15T08:30:00"}
        }]
      }],
      "travelerPricings": [{"fareDetailsBySegment": [{"includedCheckedBags": {"quantity": 2, "weight": 32, "weightUnit": "KG"}}]}]
    },
    {
      "id": "2",
      "price": {"total": "132.00", "currency": "EUR"},
      "itineraries": [{
        "duration": "PT4H10M",
        "segments": [
          {"carrierCode": "LH", "departure": {"iataCode": "STR", "at": "2026-06-15T06:00:00"}, "arrival": {"iataCode": "FRA", "at": "2026-06-15T06:55:00"}},
          {"carrierCode": "LH", "departure": {"iataCode": "FRA", "at": "2026-06-15T08:30:00"}, "arrival": {"iataCode": "VIE", "at": "2026-06-15T10:10:00"}}
        ]
      }]
    },
    {
      "id": "3",
      "price": {"total": "not-a-number", "currency": "EUR"},
      "itineraries": [{"duration": "PT1H", "segments": [{"carrierCode": "XX"}]}]
    }
  ],
  "dictionaries": {"carriers": {"OS": "AUSTRIAN AIRLINES", "LH": "LUFTHANSA"}}
}`

type fakeOffersAPI struct {
	tokenCalls  int32
	offerCalls  int32
	tokenStatus int
	tokenTTL    int
	offerStatus int

	mu        sync.Mutex
	lastQuery string
}

func (f *fakeOffersAPI) query() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastQuery
}

func (f *fakeOffersAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.tokenCalls, 1)
		if f.tokenStatus != 0 && f.tokenStatus != http.StatusOK {
			http.Error(w, "invalid_client", f.tokenStatus)
			return
		}
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") != "client_credentials" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		ttl := f.tokenTTL
		if ttl == 0 {
			ttl = 1799
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"access_token": "tok", "token_type": "Bearer", "expires_in": %d}`, ttl)
	})
	mux.HandleFunc(flightOffersPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.offerCalls, 1)
		f.mu.Lock()
		f.lastQuery = r.URL.RawQuery
		f.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if f.offerStatus != 0 && f.offerStatus != http.StatusOK {
			http.Error(w, "upstream trouble", f.offerStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(offersFixture))
	})
	return mux
}

func liveConfig(baseURL string) Config {
	cfg := testConfig("amadeus")
	cfg.Credentials = Credentials{APIKey: "key", APISecret: "secret", BaseURL: baseURL}
	return cfg
}

func TestLiveFetch(t *testing.T) {
	api := &fakeOffersAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	live, err := NewLive(liveConfig(srv.URL), srv.Client(), nil)
	require.NoError(t, err)

	routes, err := live.Fetch(context.Background(), testRequest(t))
	require.NoError(t, err)
	require.Len(t, routes, 2, "malformed offer is skipped")

	direct := routes[0]
	assert.Equal(t, "AUSTRIAN AIRLINES", direct.Carrier)
	assert.Equal(t, models.ModeFlight, direct.Mode)
	assert.Equal(t, "Stuttgart", direct.Origin)
	assert.Equal(t, 189.40, direct.PriceEUR)
	assert.InDelta(t, 1.42, direct.TotalDurationHours, 0.01)
	assert.Equal(t, 0, direct.Connections)
	assert.Equal(t, models.Baggage{CheckedBags: 2, PerBagKG: 32}, direct.Baggage)
	require.NotNil(t, direct.DepartureTime)
	assert.Equal(t, 7, direct.DepartureTime.Hour())

	connecting := routes[1]
	assert.Equal(t, 1, connecting.Connections)
	assert.Equal(t, []string{"Frankfurt"}, connecting.Via)
	assert.Equal(t, models.Baggage{CheckedBags: 1, PerBagKG: 23}, connecting.Baggage)

	assert.Contains(t, api.query(), "originLocationCode=STR")
	assert.Contains(t, api.query(), "currencyCode=EUR")
	assert.NotContains(t, api.query(), "nonStop")

	t.Run("token is reused", func(t *testing.T) {
		_, err := live.Fetch(context.Background(), testRequest(t))
		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&api.tokenCalls))
	})

	t.Run("nonstop when no connections allowed", func(t *testing.T) {
		req := testRequest(t)
		req.MaxConnections = 0
		_, err := live.Fetch(context.Background(), req)
		require.NoError(t, err)
		assert.Contains(t, api.query(), "nonStop=true")
	})
}

func TestLiveUnsupportedCity(t *testing.T) {
	api := &fakeOffersAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	live, err := NewLive(liveConfig(srv.URL), srv.Client(), nil)
	require.NoError(t, err)

	req := testRequest(t)
	req.Destination = "Reykjavik"
	routes, err := live.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, routes)
	assert.Equal(t, int32(0), atomic.LoadInt32(&api.offerCalls))
}

func TestLiveFailures(t *testing.T) {
	t.Run("token failure is not retried", func(t *testing.T) {
		api := &fakeOffersAPI{tokenStatus: http.StatusUnauthorized}
		srv := httptest.NewServer(api.handler())
		defer srv.Close()

		live, err := NewLive(liveConfig(srv.URL), srv.Client(), nil)
		require.NoError(t, err)
		p, err := NewManaged(liveConfig(srv.URL), live, WithSleep((&recordingSleep{}).sleep))
		require.NoError(t, err)

		res := p.Search(context.Background(), testRequest(t))
		assert.Equal(t, StatusFailed, res.Status)
		assert.Equal(t, 1, res.Attempts)
		assert.Equal(t, int32(1), atomic.LoadInt32(&api.tokenCalls))
	})

	t.Run("server errors are retried", func(t *testing.T) {
		api := &fakeOffersAPI{offerStatus: http.StatusBadGateway}
		srv := httptest.NewServer(api.handler())
		defer srv.Close()

		live, err := NewLive(liveConfig(srv.URL), srv.Client(), nil)
		require.NoError(t, err)
		p, err := NewManaged(liveConfig(srv.URL), live, WithSleep((&recordingSleep{}).sleep))
		require.NoError(t, err)

		res := p.Search(context.Background(), testRequest(t))
		assert.Equal(t, StatusFailed, res.Status)
		assert.Equal(t, 4, res.Attempts)
		assert.Equal(t, int32(4), atomic.LoadInt32(&api.offerCalls))
	})

	t.Run("bad request is a status error", func(t *testing.T) {
		api := &fakeOffersAPI{offerStatus: http.StatusBadRequest}
		srv := httptest.NewServer(api.handler())
		defer srv.Close()

		live, err := NewLive(liveConfig(srv.URL), srv.Client(), nil)
		require.NoError(t, err)
		_, err = live.Fetch(context.Background(), testRequest(t))

		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusBadRequest, statusErr.Code)
		assert.False(t, IsRetryable(err))
	})

	t.Run("requires credentials", func(t *testing.T) {
		_, err := NewLive(testConfig("amadeus"), nil, nil)
		assert.Error(t, err)
	})
}

func TestTokenSourceRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("reused while valid", func(t *testing.T) {
		api := &fakeOffersAPI{}
		srv := httptest.NewServer(api.handler())
		defer srv.Close()

		ts := NewTokenSource(srv.URL+tokenPath, "key", "secret", srv.Client())
		for i := 0; i < 3; i++ {
			tok, err := ts.Token(ctx)
			require.NoError(t, err)
			assert.Equal(t, "tok", tok)
		}
		assert.Equal(t, int32(1), atomic.LoadInt32(&api.tokenCalls))
	})

	t.Run("refreshed inside the five minute margin", func(t *testing.T) {
		api := &fakeOffersAPI{tokenTTL: 240}
		srv := httptest.NewServer(api.handler())
		defer srv.Close()

		ts := NewTokenSource(srv.URL+tokenPath, "key", "secret", srv.Client())
		_, err := ts.Token(ctx)
		require.NoError(t, err)
		_, err = ts.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&api.tokenCalls))
	})

	t.Run("rejection wraps ErrAuth with the status", func(t *testing.T) {
		api := &fakeOffersAPI{tokenStatus: http.StatusUnauthorized}
		srv := httptest.NewServer(api.handler())
		defer srv.Close()

		ts := NewTokenSource(srv.URL+tokenPath, "key", "secret", srv.Client())
		_, err := ts.Token(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAuth)
		assert.False(t, IsRetryable(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		api := &fakeOffersAPI{}
		srv := httptest.NewServer(api.handler())
		defer srv.Close()

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		ts := NewTokenSource(srv.URL+tokenPath, "key", "secret", srv.Client())
		_, err := ts.Token(cctx)
		assert.ErrorIs(t, err, ErrAuth)
		assert.Equal(t, int32(0), atomic.LoadInt32(&api.tokenCalls))
	})
}

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		in       string
		expected float64
	}{
		{"PT2H30M", 2.5},
		{"PT45M", 0.75},
		{"PT3H", 3},
		{"P1DT2H", 26},
		{"PT1.5H", 1.5},
		{"PT90M", 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseISODuration(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}

	for _, bad := range []string{"", "P", "PT", "2H30M", "PTXH", "-PT1H"} {
		_, err := ParseISODuration(bad)
		assert.Error(t, err, bad)
	}
}
