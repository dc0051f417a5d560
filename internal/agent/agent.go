package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/passbi/passbi_travel/internal/aggregator"
	"github.com/passbi/passbi_travel/internal/filters"
	"github.com/passbi/passbi_travel/internal/models"
	"github.com/passbi/passbi_travel/internal/scoring"
)

// State is a step of a planning run
type State string

const (
	StateInitializing   State = "initializing"
	StateCollectingData State = "collecting_data"
	StateFiltering      State = "filtering"
	StateScoring        State = "scoring"
	StateReflecting     State = "reflecting"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

// Collector gathers candidate routes for a request
type Collector interface {
	Collect(ctx context.Context, req models.SearchRequest) ([]models.Route, aggregator.Stats)
}

// Plan is the outcome of one planning run
type Plan struct {
	RunID      string               `json:"run_id"`
	Request    models.SearchRequest `json:"request"`
	State      State                `json:"state"`
	States     []State              `json:"states"`
	Routes     []scoring.Ranked     `json:"routes"`
	Reflection *Reflection          `json:"reflection,omitempty"`
	Collection aggregator.Stats     `json:"collection"`
	Filtering  filters.Report       `json:"filtering"`
	Scoring    scoring.Analytics    `json:"scoring"`
	StartedAt  time.Time            `json:"started_at"`
	ElapsedMS  int64                `json:"elapsed_ms"`
	Error      string               `json:"error,omitempty"`
}

// Top returns at most n of the best routes. A negative n returns all.
func (p *Plan) Top(n int) []scoring.Ranked {
	if n < 0 || n >= len(p.Routes) {
		return p.Routes
	}
	return p.Routes[:n]
}

func (p *Plan) transition(s State) {
	p.State = s
	p.States = append(p.States, s)
}

// Agent drives requests through collection, filtering, scoring and
// reflection. It keeps no per-run state, so one Agent serves concurrent
// requests.
type Agent struct {
	collector Collector
	recorders []RunRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Agent
type Option func(*Agent)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithRecorder registers hooks that receive a summary of every run
func WithRecorder(recorders ...RunRecorder) Option {
	return func(a *Agent) {
		for _, r := range recorders {
			if r != nil {
				a.recorders = append(a.recorders, r)
			}
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates an agent collecting routes from collector
func New(collector Collector, opts ...Option) *Agent {
	a := &Agent{
		collector: collector,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type planOptions struct {
	scoring *scoring.Config
	method  scoring.Method
}

// PlanOption adjusts a single run
type PlanOption func(*planOptions)

// WithMethod scores the run with method instead of the combined scorer
func WithMethod(method scoring.Method) PlanOption {
	return func(o *planOptions) {
		o.method = method
	}
}

// WithScoring replaces the scoring configuration derived from the request
func WithScoring(cfg scoring.Config) PlanOption {
	return func(o *planOptions) {
		o.scoring = &cfg
	}
}

// Plan runs the full pipeline for req. "No routes" is a completed plan
// with an empty route list; an error is returned only when the run fails,
// and the failed plan is returned with it.
func (a *Agent) Plan(ctx context.Context, req models.SearchRequest, opts ...PlanOption) (plan *Plan, err error) {
	o := planOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	started := a.now()
	plan = &Plan{
		RunID:     uuid.NewString(),
		Request:   req,
		Routes:    []scoring.Ranked{},
		StartedAt: started,
	}
	plan.transition(StateInitializing)
	logger := a.logger.With("run_id", plan.RunID)

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("planning run panicked: %v", rec)
		}
		plan.ElapsedMS = a.now().Sub(started).Milliseconds()
		if err != nil {
			plan.transition(StateFailed)
			plan.Error = err.Error()
			plan.Routes = []scoring.Ranked{}
			logger.Error("planning run failed", "state", plan.States[len(plan.States)-2], "error", err)
		}
		a.record(ctx, plan, logger)
	}()

	validated, err := models.NewSearchRequest(req.Params())
	if err != nil {
		return plan, err
	}
	validated.WeightsRebalanced = validated.WeightsRebalanced || req.WeightsRebalanced
	plan.Request = validated

	chain, err := filters.FromRequest(validated, logger)
	if err != nil {
		return plan, err
	}

	cfg := scoring.ConfigForRequest(validated)
	if o.scoring != nil {
		cfg = *o.scoring
	}
	if o.method != "" {
		cfg.Method = o.method
	}
	ranker, err := scoring.NewRanker(cfg, logger)
	if err != nil {
		return plan, err
	}

	logger.Info("planning run started", "origin", validated.Origin, "destination", validated.Destination, "date", validated.Date)

	plan.transition(StateCollectingData)
	routes, stats := a.collector.Collect(ctx, validated)
	plan.Collection = stats
	if errors.Is(ctx.Err(), context.Canceled) {
		return plan, fmt.Errorf("planning run cancelled: %w", ctx.Err())
	}

	plan.transition(StateFiltering)
	filtered, report := chain.Apply(routes)
	plan.Filtering = report

	plan.transition(StateScoring)
	ranked, analytics := ranker.Rank(filtered)
	plan.Routes = ranked
	plan.Scoring = analytics

	plan.transition(StateReflecting)
	reflection := Reflect(stats, len(ranked), a.now().Sub(started))
	plan.Reflection = &reflection

	plan.transition(StateCompleted)
	logger.Info("planning run completed",
		"collected", stats.Collected,
		"filtered", report.Final,
		"quality", reflection.Quality,
		"elapsed_ms", reflection.ElapsedMS,
	)
	return plan, nil
}

func (a *Agent) record(ctx context.Context, plan *Plan, logger *slog.Logger) {
	if len(a.recorders) == 0 {
		return
	}
	run := NewRun(plan)
	// a cancelled request still gets recorded
	recordCtx := context.WithoutCancel(ctx)
	for _, r := range a.recorders {
		if err := r.RecordRun(recordCtx, run); err != nil {
			logger.Warn("failed to record run", "error", err)
		}
	}
}
