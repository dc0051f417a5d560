package api

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/passbi/passbi_travel/internal/config"
	"github.com/passbi/passbi_travel/internal/models"
	"github.com/passbi/passbi_travel/internal/scoring"
)

// PlanQuery is the plan input accepted by both GET query strings and POST
// JSON bodies. Nil fields take the configured defaults.
type PlanQuery struct {
	Origin         string   `json:"origin"`
	Destination    string   `json:"destination"`
	Date           string   `json:"date"`
	Bags           *int     `json:"bags"`
	MaxConnections *int     `json:"max_connections"`
	TimeWeight     *float64 `json:"w_time"`
	CostWeight     *float64 `json:"w_cost"`
	Passengers     int      `json:"passengers"`
	Modes          []string `json:"modes"`
	MaxPrice       *float64 `json:"max_price"`
	MinPrice       *float64 `json:"min_price"`
	MaxHours       *float64 `json:"max_hours"`
	MinBagKG       *float64 `json:"min_bag_kg"`
	Prefer         []string `json:"prefer"`
	Exclude        []string `json:"exclude"`
	Limit          *int     `json:"limit"`
	Method         string   `json:"method"`
}

// parsePlanQuery reads a PlanQuery from the query string
func parsePlanQuery(c *fiber.Ctx) (PlanQuery, error) {
	q := PlanQuery{
		Origin:      c.Query("origin"),
		Destination: c.Query("destination"),
		Date:        c.Query("date"),
		Modes:       splitList(c.Query("modes")),
		Prefer:      splitList(c.Query("prefer")),
		Exclude:     splitList(c.Query("exclude")),
		Method:      c.Query("method"),
	}

	var err error
	if q.Bags, err = queryInt(c, "bags"); err != nil {
		return q, err
	}
	if q.MaxConnections, err = queryInt(c, "max_connections"); err != nil {
		return q, err
	}
	if q.Limit, err = queryInt(c, "limit"); err != nil {
		return q, err
	}
	passengers, err := queryInt(c, "passengers")
	if err != nil {
		return q, err
	}
	if passengers != nil {
		q.Passengers = *passengers
	}

	floats := []struct {
		key string
		dst **float64
	}{
		{"w_time", &q.TimeWeight},
		{"w_cost", &q.CostWeight},
		{"max_price", &q.MaxPrice},
		{"min_price", &q.MinPrice},
		{"max_hours", &q.MaxHours},
		{"min_bag_kg", &q.MinBagKG},
	}
	for _, f := range floats {
		if *f.dst, err = queryFloat(c, f.key); err != nil {
			return q, err
		}
	}
	return q, nil
}

// Params applies defaults and converts the query into request parameters.
// When only one weight is given the other is its complement.
func (q PlanQuery) Params(defaults config.RequestDefaults) (models.RequestParams, error) {
	p := models.RequestParams{
		Origin:            q.Origin,
		Destination:       q.Destination,
		Date:              q.Date,
		Passengers:        q.Passengers,
		MinCheckedBags:    intOr(q.Bags, defaults.MinCheckedBags),
		MaxConnections:    intOr(q.MaxConnections, defaults.MaxConnections),
		TimeWeight:        defaults.TimeWeight,
		CostWeight:        defaults.CostWeight,
		MinPriceEUR:       q.MinPrice,
		MaxPriceEUR:       q.MaxPrice,
		MaxDurationHours:  q.MaxHours,
		MinBagWeightKG:    q.MinBagKG,
		PreferredCarriers: q.Prefer,
		ExcludedCarriers:  q.Exclude,
	}

	switch {
	case q.TimeWeight != nil && q.CostWeight != nil:
		p.TimeWeight, p.CostWeight = *q.TimeWeight, *q.CostWeight
	case q.TimeWeight != nil:
		p.TimeWeight, p.CostWeight = *q.TimeWeight, 1-*q.TimeWeight
	case q.CostWeight != nil:
		p.TimeWeight, p.CostWeight = 1-*q.CostWeight, *q.CostWeight
	}

	for _, label := range q.Modes {
		mode, err := models.ParseMode(label)
		if err != nil {
			return p, &models.ValidationError{Field: "modes", Reason: err.Error()}
		}
		p.Modes = append(p.Modes, mode)
	}
	return p, nil
}

// ResultLimit returns the number of routes to return
func (q PlanQuery) ResultLimit(defaults config.RequestDefaults) (int, error) {
	n := intOr(q.Limit, defaults.Limit)
	if n < 1 {
		return 0, &models.ValidationError{Field: "limit", Reason: "must be at least 1"}
	}
	return n, nil
}

// ScoringMethod parses the requested ranking method, combined by default
func (q PlanQuery) ScoringMethod() (scoring.Method, error) {
	return scoring.ParseMethod(q.Method)
}

func queryInt(c *fiber.Ctx, key string) (*int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &models.ValidationError{Field: key, Reason: fmt.Sprintf("%q is not an integer", raw)}
	}
	return &v, nil
}

func queryFloat(c *fiber.Ctx, key string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, &models.ValidationError{Field: key, Reason: fmt.Sprintf("%q is not a number", raw)}
	}
	return &v, nil
}

// splitList splits a comma-separated query value, dropping empty items
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
