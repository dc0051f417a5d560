package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/passbi/passbi_travel/internal/agent"
	"github.com/passbi/passbi_travel/internal/aggregator"
	"github.com/passbi/passbi_travel/internal/config"
	"github.com/passbi/passbi_travel/internal/history"
	"github.com/passbi/passbi_travel/internal/models"
	"github.com/passbi/passbi_travel/internal/provider"
	"github.com/passbi/passbi_travel/internal/scoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plannerFunc func(ctx context.Context, req models.SearchRequest, opts ...agent.PlanOption) (*agent.Plan, error)

func (f plannerFunc) Plan(ctx context.Context, req models.SearchRequest, opts ...agent.PlanOption) (*agent.Plan, error) {
	return f(ctx, req, opts...)
}

type fakeHistory struct {
	runs    []agent.Run
	summary []history.DailySummary
	err     error

	gotLimit int
	gotFrom  time.Time
	gotTo    time.Time
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]agent.Run, error) {
	f.gotLimit = limit
	return f.runs, f.err
}

func (f *fakeHistory) Summary(_ context.Context, from, to time.Time) ([]history.DailySummary, error) {
	f.gotFrom, f.gotTo = from, to
	return f.summary, f.err
}

type staticStats provider.StatsSnapshot

func (s staticStats) Stats() provider.StatsSnapshot { return provider.StatsSnapshot(s) }

func newTestApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil)})
	h.Register(app)
	app.Use(NotFound)
	return app
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]interface{}{}
	if len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, &out), string(body))
	}
	return resp.StatusCode, out
}

// syntheticPlanner runs the real pipeline over the embedded catalogue
func syntheticPlanner(t *testing.T) *agent.Agent {
	t.Helper()
	p, err := provider.Build(provider.Spec{
		Kind:      provider.KindSynthetic,
		Config:    provider.DefaultConfig("synthetic"),
		Synthetic: provider.SyntheticOptions{Seed: 1},
	}, provider.Deps{})
	require.NoError(t, err)
	return agent.New(aggregator.New([]provider.Provider{p}))
}

func TestPlanGet(t *testing.T) {
	app := newTestApp(NewHandler(syntheticPlanner(t)))

	req := httptest.NewRequest(http.MethodGet,
		"/v2/plan?origin=Berlin&destination=Paris&date=2026-07-01&bags=1&max_connections=2&w_time=0.5&w_cost=0.5&limit=2", nil)
	status, body := doRequest(t, app, req)
	require.Equal(t, http.StatusOK, status, body)

	assert.Equal(t, "completed", body["state"])
	assert.NotEmpty(t, body["run_id"])

	routes := body["routes"].([]interface{})
	assert.Len(t, routes, 2)

	collection := body["collection"].(map[string]interface{})
	assert.Equal(t, float64(3), collection["collected"])

	scoringStats := body["scoring"].(map[string]interface{})
	assert.Equal(t, "combined", scoringStats["scoring_method"])
	assert.NotNil(t, body["reflection"])
}

func TestPlanGetFiltersByQuery(t *testing.T) {
	app := newTestApp(NewHandler(syntheticPlanner(t)))

	t.Run("direct only", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/v2/plan?origin=Berlin&destination=Paris&date=2026-07-01&bags=1&max_connections=0", nil)
		status, body := doRequest(t, app, req)
		require.Equal(t, http.StatusOK, status)

		routes := body["routes"].([]interface{})
		require.Len(t, routes, 1)
		route := routes[0].(map[string]interface{})["route"].(map[string]interface{})
		assert.Equal(t, "flight", route["mode"])
	})

	t.Run("modes and price method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/v2/plan?origin=Berlin&destination=Paris&date=2026-07-01&bags=1&modes=train,coach&method=price", nil)
		status, body := doRequest(t, app, req)
		require.Equal(t, http.StatusOK, status)

		routes := body["routes"].([]interface{})
		require.Len(t, routes, 2)
		first := routes[0].(map[string]interface{})["route"].(map[string]interface{})
		assert.Equal(t, "bus", first["mode"])
		assert.Equal(t, "price", body["scoring"].(map[string]interface{})["scoring_method"])
	})

	t.Run("no routes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/v2/plan?origin=Oslo&destination=Lima&date=2026-07-01", nil)
		status, body := doRequest(t, app, req)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "completed", body["state"])
		assert.Empty(t, body["routes"])
	})
}

func TestPlanPost(t *testing.T) {
	var got models.SearchRequest
	planner := plannerFunc(func(_ context.Context, req models.SearchRequest, _ ...agent.PlanOption) (*agent.Plan, error) {
		got = req
		return &agent.Plan{RunID: "run-1", State: agent.StateCompleted, Request: req, Routes: []scoring.Ranked{}}, nil
	})
	app := newTestApp(NewHandler(planner, WithDefaults(config.RequestDefaults{
		MinCheckedBags: 1, MaxConnections: 3, TimeWeight: 0.6, CostWeight: 0.4, Limit: 5,
	})))

	body := `{"origin":"Munich","destination":"Berlin","date":"2026-08-01","w_cost":0.7,"modes":["rail"],"prefer":["Deutsche Bahn"],"max_price":120}`
	req := httptest.NewRequest(http.MethodPost, "/v2/plan", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	status, resp := doRequest(t, app, req)
	require.Equal(t, http.StatusOK, status, resp)
	assert.Equal(t, "run-1", resp["run_id"])

	assert.Equal(t, 1, got.MinCheckedBags)
	assert.Equal(t, 3, got.MaxConnections)
	assert.InDelta(t, 0.3, got.TimeWeight, 1e-9)
	assert.InDelta(t, 0.7, got.CostWeight, 1e-9)
	assert.False(t, got.WeightsRebalanced)
	assert.Equal(t, []models.TransportMode{models.ModeTrain}, got.Modes)
	assert.Equal(t, []string{"Deutsche Bahn"}, got.PreferredCarriers)
	require.NotNil(t, got.MaxPriceEUR)
	assert.Equal(t, 120.0, *got.MaxPriceEUR)
}

func TestPlanBadRequests(t *testing.T) {
	called := false
	planner := plannerFunc(func(context.Context, models.SearchRequest, ...agent.PlanOption) (*agent.Plan, error) {
		called = true
		return &agent.Plan{}, nil
	})
	app := newTestApp(NewHandler(planner))

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"missing origin", "destination=Paris&date=2026-07-01", "origin"},
		{"bad date", "origin=Berlin&destination=Paris&date=2026-02-30", "date"},
		{"bags not a number", "origin=Berlin&destination=Paris&date=2026-07-01&bags=two", "bags"},
		{"weight not a number", "origin=Berlin&destination=Paris&date=2026-07-01&w_time=fast", "w_time"},
		{"weight out of range", "origin=Berlin&destination=Paris&date=2026-07-01&w_time=1.5&w_cost=0", "time_weight"},
		{"too many connections", "origin=Berlin&destination=Paris&date=2026-07-01&max_connections=9", "max_connections"},
		{"unknown mode", "origin=Berlin&destination=Paris&date=2026-07-01&modes=teleport", "modes"},
		{"unknown method", "origin=Berlin&destination=Paris&date=2026-07-01&method=vibes", "method"},
		{"zero limit", "origin=Berlin&destination=Paris&date=2026-07-01&limit=0", "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/v2/plan?"+tt.query, nil))
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Contains(t, body["error"], tt.want)
		})
	}
	assert.False(t, called)

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v2/plan", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		status, body := doRequest(t, app, req)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, body["error"], "invalid request body")
	})
}

func TestPlanFailures(t *testing.T) {
	const query = "/v2/plan?origin=Berlin&destination=Paris&date=2026-07-01"

	t.Run("run failure is a server error", func(t *testing.T) {
		planner := plannerFunc(func(context.Context, models.SearchRequest, ...agent.PlanOption) (*agent.Plan, error) {
			return &agent.Plan{RunID: "run-9", State: agent.StateFailed}, errors.New("planning run panicked: boom")
		})
		status, body := doRequest(t, newTestApp(NewHandler(planner)), httptest.NewRequest(http.MethodGet, query, nil))
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, "run-9", body["run_id"])
		assert.Contains(t, body["error"], "boom")
	})

	t.Run("validation failure inside the run", func(t *testing.T) {
		planner := plannerFunc(func(context.Context, models.SearchRequest, ...agent.PlanOption) (*agent.Plan, error) {
			return &agent.Plan{State: agent.StateFailed}, &scoring.ParamError{Param: "weights", Reason: "sum to zero"}
		})
		status, _ := doRequest(t, newTestApp(NewHandler(planner)), httptest.NewRequest(http.MethodGet, query, nil))
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestProviders(t *testing.T) {
	h := NewHandler(nil, WithProviders(
		staticStats{Name: "synthetic", Enabled: true, Searches: 4, Successes: 3},
		staticStats{Name: "omio"},
	))
	status, body := doRequest(t, newTestApp(h), httptest.NewRequest(http.MethodGet, "/v2/providers", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["count"])

	first := body["providers"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "synthetic", first["name"])
	assert.Equal(t, float64(4), first["searches"])
}

func TestRuns(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		app := newTestApp(NewHandler(nil))
		status, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/v2/runs", nil))
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "run history is disabled", body["error"])
	})

	t.Run("recent", func(t *testing.T) {
		store := &fakeHistory{runs: []agent.Run{{RunID: "a", State: agent.StateCompleted}, {RunID: "b", State: agent.StateFailed}}}
		app := newTestApp(NewHandler(nil, WithHistory(store)))

		status, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/v2/runs?limit=5", nil))
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 5, store.gotLimit)
		assert.Equal(t, float64(2), body["count"])

		status, _ = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/v2/runs?limit=0", nil))
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("store error", func(t *testing.T) {
		store := &fakeHistory{err: errors.New("connection refused")}
		app := newTestApp(NewHandler(nil, WithHistory(store)))
		status, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/v2/runs", nil))
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, "connection refused", body["error"])
	})

	t.Run("summary", func(t *testing.T) {
		store := &fakeHistory{summary: []history.DailySummary{{Date: "2026-06-30", Runs: 4}}}
		h := NewHandler(nil, WithHistory(store))
		h.now = func() time.Time { return time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC) }
		app := newTestApp(h)

		status, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/v2/runs/summary?days=3", nil))
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "2026-06-28", body["from"])
		assert.Equal(t, "2026-07-01", body["to"])
		assert.Equal(t, float64(1), body["count"])
		assert.Equal(t, time.Date(2026, 6, 28, 9, 0, 0, 0, time.UTC), store.gotFrom)

		status, _ = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/v2/runs/summary?days=365", nil))
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := NewHandler(nil,
			WithProviders(staticStats{Name: "synthetic", Enabled: true}, staticStats{Name: "omio"}),
			WithHealthCheck("redis", func(context.Context) error { return nil }),
		)
		status, body := doRequest(t, newTestApp(h), httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, float64(1), body["providers_enabled"])
		assert.Equal(t, "ok", body["checks"].(map[string]interface{})["redis"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		h := NewHandler(nil,
			WithHealthCheck("redis", func(context.Context) error { return nil }),
			WithHealthCheck("database", func(context.Context) error { return errors.New("database ping failed") }),
		)
		status, body := doRequest(t, newTestApp(h), httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, "unhealthy", body["status"])
		assert.Equal(t, "database ping failed", body["checks"].(map[string]interface{})["database"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "travel_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	app := fiber.New()
	app.Get("/metrics", Metrics(reg))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "travel_test_total 1")
}

func TestNotFound(t *testing.T) {
	status, body := doRequest(t, newTestApp(NewHandler(nil)), httptest.NewRequest(http.MethodGet, "/v1/nothing", nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "endpoint not found", body["error"])
}
