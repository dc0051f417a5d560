package filters

import (
	"log/slog"

	"github.com/passbi/passbi_travel/internal/models"
)

// Step records what one filter did
type Step struct {
	Filter   string         `json:"filter"`
	Input    int            `json:"input_count"`
	Output   int            `json:"output_count"`
	Removed  int            `json:"removed"`
	PassRate float64        `json:"pass_rate"`
	Routes   []models.Route `json:"-"`
}

// Report summarizes a chain run
type Report struct {
	Filters      int     `json:"total_filters"`
	Initial      int     `json:"initial_routes"`
	Final        int     `json:"final_routes"`
	PassRate     float64 `json:"overall_pass_rate"`
	StoppedEarly bool    `json:"stopped_early"`
	StoppedAfter string  `json:"stopped_after,omitempty"`
	Steps        []Step  `json:"steps"`
}

// Apply runs a single filter over routes. The input slice is not modified.
func Apply(f Filter, routes []models.Route) Step {
	kept := make([]models.Route, 0, len(routes))
	for _, r := range routes {
		if f.Keep(r) {
			kept = append(kept, r.Clone())
		}
	}
	return Step{
		Filter:   f.Name(),
		Input:    len(routes),
		Output:   len(kept),
		Removed:  len(routes) - len(kept),
		PassRate: rate(len(kept), len(routes)),
		Routes:   kept,
	}
}

// Chain applies filters in order
type Chain struct {
	filters []Filter
	logger  *slog.Logger
}

// NewChain creates a chain. A nil logger uses slog.Default.
func NewChain(logger *slog.Logger, filters ...Filter) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{filters: filters, logger: logger}
}

// Filters returns the filter names in order
func (c *Chain) Filters() []string {
	names := make([]string, len(c.filters))
	for i, f := range c.filters {
		names[i] = f.Name()
	}
	return names
}

// Apply runs every filter in order, stopping once nothing is left
func (c *Chain) Apply(routes []models.Route) ([]models.Route, Report) {
	report := Report{
		Filters: len(c.filters),
		Initial: len(routes),
		Steps:   make([]Step, 0, len(c.filters)),
	}

	current := models.CloneRoutes(routes)
	if current == nil {
		current = []models.Route{}
	}

	for _, f := range c.filters {
		if len(current) == 0 {
			break
		}
		step := Apply(f, current)
		report.Steps = append(report.Steps, step)
		current = step.Routes
		c.logger.Debug("filter applied", "filter", step.Filter, "input", step.Input, "output", step.Output)

		if len(current) == 0 {
			report.StoppedEarly = true
			report.StoppedAfter = step.Filter
			c.logger.Warn("no routes remaining", "filter", step.Filter)
		}
	}

	report.Final = len(current)
	report.PassRate = rate(report.Final, report.Initial)
	c.logger.Info("filter chain complete", "initial", report.Initial, "final", report.Final)
	return current, report
}

// FromRequest builds the standard chain for a search: connections and
// baggage always, then price, duration, excluded carriers and mode when
// requested. Preferred carriers only influence scoring.
func FromRequest(req models.SearchRequest, logger *slog.Logger) (*Chain, error) {
	var minKG *float64
	if req.MinBagWeightKG != nil && *req.MinBagWeightKG > 0 {
		minKG = req.MinBagWeightKG
	}

	connections, err := MaxConnections(req.MaxConnections)
	if err != nil {
		return nil, err
	}
	baggage, err := MinBaggage(req.MinCheckedBags, minKG)
	if err != nil {
		return nil, err
	}
	filters := []Filter{connections, baggage}

	if req.MinPriceEUR != nil || req.MaxPriceEUR != nil {
		f, err := PriceRange(req.MinPriceEUR, req.MaxPriceEUR)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	if req.MaxDurationHours != nil {
		f, err := MaxDuration(*req.MaxDurationHours)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	if len(req.ExcludedCarriers) > 0 {
		f, err := Carriers(nil, req.ExcludedCarriers)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	if len(req.Modes) > 0 && !req.AllModesRequested() {
		f, err := Modes(req.Modes...)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}

	return NewChain(logger, filters...), nil
}

func rate(out, in int) float64 {
	if in == 0 {
		return 0
	}
	return float64(out) / float64(in)
}
