package api

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/passbi/passbi_travel/internal/agent"
	"github.com/passbi/passbi_travel/internal/aggregator"
	"github.com/passbi/passbi_travel/internal/config"
	"github.com/passbi/passbi_travel/internal/filters"
	"github.com/passbi/passbi_travel/internal/history"
	"github.com/passbi/passbi_travel/internal/models"
	"github.com/passbi/passbi_travel/internal/provider"
	"github.com/passbi/passbi_travel/internal/scoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthCheckTimeout = 2 * time.Second

// Planner runs planning requests
type Planner interface {
	Plan(ctx context.Context, req models.SearchRequest, opts ...agent.PlanOption) (*agent.Plan, error)
}

// RunHistory reads recorded planning runs
type RunHistory interface {
	Recent(ctx context.Context, limit int) ([]agent.Run, error)
	Summary(ctx context.Context, from, to time.Time) ([]history.DailySummary, error)
}

// StatsSource exposes provider statistics
type StatsSource interface {
	Stats() provider.StatsSnapshot
}

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// Handler serves the planning API
type Handler struct {
	planner   Planner
	providers []StatsSource
	history   RunHistory
	checks    map[string]HealthCheck
	defaults  config.RequestDefaults
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Handler
type Option func(*Handler)

// WithProviders exposes provider statistics on /v2/providers
func WithProviders(sources ...StatsSource) Option {
	return func(h *Handler) { h.providers = append(h.providers, sources...) }
}

// WithHistory enables /v2/runs
func WithHistory(store RunHistory) Option {
	return func(h *Handler) { h.history = store }
}

// WithHealthCheck adds a named dependency check to /health
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) { h.checks[name] = check }
}

// WithDefaults sets the request defaults
func WithDefaults(d config.RequestDefaults) Option {
	return func(h *Handler) { h.defaults = d }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler creates a Handler around planner
func NewHandler(planner Planner, opts ...Option) *Handler {
	h := &Handler{
		planner: planner,
		checks:  make(map[string]HealthCheck),
		defaults: config.RequestDefaults{
			MinCheckedBags: 2,
			MaxConnections: 2,
			TimeWeight:     0.6,
			CostWeight:     0.4,
			Limit:          5,
		},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the API routes
func (h *Handler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Get("/v2/plan", h.PlanGet)
	router.Post("/v2/plan", h.PlanPost)
	router.Get("/v2/providers", h.Providers)
	router.Get("/v2/runs", h.Runs)
	router.Get("/v2/runs/summary", h.RunSummary)
}

// Metrics serves the Prometheus exposition for gatherer
func Metrics(gatherer prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// PlanResponse is the body returned for a planning run
type PlanResponse struct {
	RunID      string               `json:"run_id"`
	State      agent.State          `json:"state"`
	Request    models.SearchRequest `json:"request"`
	Routes     []scoring.Ranked     `json:"routes"`
	Reflection *agent.Reflection    `json:"reflection,omitempty"`
	Collection aggregator.Stats     `json:"collection"`
	Filtering  filters.Report       `json:"filtering"`
	Scoring    scoring.Analytics    `json:"scoring"`
	ElapsedMS  int64                `json:"elapsed_ms"`
}

// PlanGet handles GET /v2/plan
func (h *Handler) PlanGet(c *fiber.Ctx) error {
	q, err := parsePlanQuery(c)
	if err != nil {
		return badRequest(c, err)
	}
	return h.plan(c, q)
}

// PlanPost handles POST /v2/plan with a JSON body
func (h *Handler) PlanPost(c *fiber.Ctx) error {
	var q PlanQuery
	if err := c.BodyParser(&q); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body: " + err.Error(),
		})
	}
	return h.plan(c, q)
}

func (h *Handler) plan(c *fiber.Ctx, q PlanQuery) error {
	params, err := q.Params(h.defaults)
	if err != nil {
		return badRequest(c, err)
	}
	limit, err := q.ResultLimit(h.defaults)
	if err != nil {
		return badRequest(c, err)
	}
	method, err := q.ScoringMethod()
	if err != nil {
		return badRequest(c, err)
	}
	req, err := models.NewSearchRequest(params)
	if err != nil {
		return badRequest(c, err)
	}

	plan, err := h.planner.Plan(c.UserContext(), req, agent.WithMethod(method))
	if err != nil {
		if IsClientError(err) {
			return badRequest(c, err)
		}
		resp := fiber.Map{"error": err.Error()}
		if plan != nil {
			resp["run_id"] = plan.RunID
		}
		h.logger.Error("planning request failed", "run_id", resp["run_id"], "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(resp)
	}

	return c.JSON(PlanResponse{
		RunID:      plan.RunID,
		State:      plan.State,
		Request:    plan.Request,
		Routes:     plan.Top(limit),
		Reflection: plan.Reflection,
		Collection: plan.Collection,
		Filtering:  plan.Filtering,
		Scoring:    plan.Scoring,
		ElapsedMS:  plan.ElapsedMS,
	})
}

// Providers handles GET /v2/providers
func (h *Handler) Providers(c *fiber.Ctx) error {
	snapshots := make([]provider.StatsSnapshot, len(h.providers))
	for i, p := range h.providers {
		snapshots[i] = p.Stats()
	}
	return c.JSON(fiber.Map{
		"providers": snapshots,
		"count":     len(snapshots),
	})
}

// Runs handles GET /v2/runs
func (h *Handler) Runs(c *fiber.Ctx) error {
	if h.history == nil {
		return historyDisabled(c)
	}
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 500 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 500",
		})
	}

	runs, err := h.history.Recent(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"runs":  runs,
		"count": len(runs),
	})
}

// RunSummary handles GET /v2/runs/summary?days=N
func (h *Handler) RunSummary(c *fiber.Ctx) error {
	if h.history == nil {
		return historyDisabled(c)
	}
	days, err := strconv.Atoi(c.Query("days", "7"))
	if err != nil || days < 1 || days > 90 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "days must be between 1 and 90",
		})
	}

	to := h.now()
	from := to.AddDate(0, 0, -days)
	summary, err := h.history.Summary(c.UserContext(), from, to)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"from":  from.Format("2006-01-02"),
		"to":    to.Format("2006-01-02"),
		"days":  summary,
		"count": len(summary),
	})
}

// Health handles the /health endpoint
func (h *Handler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
	defer cancel()

	checks := fiber.Map{}
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	enabled := 0
	for _, p := range h.providers {
		if p.Stats().Enabled {
			enabled++
		}
	}

	status := "healthy"
	httpStatus := fiber.StatusOK
	if !healthy {
		status = "unhealthy"
		httpStatus = fiber.StatusServiceUnavailable
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":            status,
		"checks":            checks,
		"providers_enabled": enabled,
	})
}

// ErrorHandler renders errors returned from handlers as JSON
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		} else if IsClientError(err) {
			code = fiber.StatusBadRequest
		}

		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}

// NotFound answers requests that matched no route
func NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "endpoint not found",
	})
}

// IsClientError reports whether err was caused by invalid input
func IsClientError(err error) bool {
	var (
		validation *models.ValidationError
		scoringErr *scoring.ParamError
		filterErr  *filters.ParamError
	)
	return errors.As(err, &validation) || errors.As(err, &scoringErr) || errors.As(err, &filterErr)
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func historyDisabled(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "run history is disabled",
	})
}
