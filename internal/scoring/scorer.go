package scoring

import (
	"fmt"
	"math"

	"github.com/passbi/passbi_travel/internal/models"
)

// RouteScore is the score breakdown of one route. Lower is better.
type RouteScore struct {
	Index      int                `json:"route_index"`
	Overall    float64            `json:"overall_score"`
	Components map[string]float64 `json:"component_scores"`
	Normalized map[string]float64 `json:"normalized_scores"`
	Penalties  map[string]float64 `json:"penalties,omitempty"`
	Bonuses    map[string]float64 `json:"bonuses,omitempty"`
	Rank       int                `json:"rank"`
	Malformed  bool               `json:"malformed,omitempty"`
}

// Adjusted returns the overall score plus penalties minus bonuses
func (s RouteScore) Adjusted() float64 {
	if s.Malformed {
		return math.MaxFloat64
	}
	adjusted := s.Overall
	for _, p := range s.Penalties {
		adjusted += p
	}
	for _, b := range s.Bonuses {
		adjusted -= b
	}
	return adjusted
}

// worstScore ranks a route behind every scoreable one
func worstScore(index int) RouteScore {
	return RouteScore{
		Index:      index,
		Overall:    math.MaxFloat64,
		Components: map[string]float64{},
		Normalized: map[string]float64{},
		Malformed:  true,
	}
}

// Scorer defines the interface for scoring strategies
type Scorer interface {
	Method() Method
	Score(route models.Route, index int) (RouteScore, error)
}

// NewScorer returns the strategy selected by cfg.Method. Weights are
// normalized here so every scorer sees weights summing to 1.
func NewScorer(cfg Config) (Scorer, error) {
	method, err := ParseMethod(string(cfg.Method))
	if err != nil {
		return nil, err
	}
	weights, err := cfg.Weights.Normalized()
	if err != nil {
		return nil, err
	}
	cfg.Method = method
	cfg.Weights = weights

	switch method {
	case MethodPrice:
		return &PriceScorer{ranges: cfg.Ranges}, nil
	case MethodDuration:
		return &DurationScorer{ranges: cfg.Ranges}, nil
	case MethodConnections:
		return &ConnectionScorer{ranges: cfg.Ranges}, nil
	case MethodValue:
		return &ValueScorer{ranges: cfg.Ranges}, nil
	default:
		return &CombinedScorer{cfg: cfg}, nil
	}
}

// PriceScorer ranks purely by price
type PriceScorer struct {
	ranges Ranges
}

func (s *PriceScorer) Method() Method {
	return MethodPrice
}

func (s *PriceScorer) Score(r models.Route, index int) (RouteScore, error) {
	if err := checkRoute(r, index); err != nil {
		return RouteScore{}, err
	}
	return RouteScore{
		Index:      index,
		Overall:    r.PriceEUR,
		Components: map[string]float64{"price": r.PriceEUR},
		Normalized: map[string]float64{"price": s.ranges.Price.Normalize(r.PriceEUR)},
	}, nil
}

// DurationScorer ranks purely by total travel time
type DurationScorer struct {
	ranges Ranges
}

func (s *DurationScorer) Method() Method {
	return MethodDuration
}

func (s *DurationScorer) Score(r models.Route, index int) (RouteScore, error) {
	if err := checkRoute(r, index); err != nil {
		return RouteScore{}, err
	}
	return RouteScore{
		Index:      index,
		Overall:    r.TotalDurationHours,
		Components: map[string]float64{"duration": r.TotalDurationHours},
		Normalized: map[string]float64{"duration": s.ranges.Duration.Normalize(r.TotalDurationHours)},
	}, nil
}

// ConnectionScorer ranks by number of connections
type ConnectionScorer struct {
	ranges Ranges
}

func (s *ConnectionScorer) Method() Method {
	return MethodConnections
}

func (s *ConnectionScorer) Score(r models.Route, index int) (RouteScore, error) {
	if err := checkRoute(r, index); err != nil {
		return RouteScore{}, err
	}
	connections := float64(r.Connections)
	return RouteScore{
		Index:      index,
		Overall:    connections,
		Components: map[string]float64{"connections": connections},
		Normalized: map[string]float64{"connections": s.ranges.Connections.Normalize(connections)},
	}, nil
}

// CombinedScorer is the weighted multi-criteria scorer
type CombinedScorer struct {
	cfg Config
}

func (s *CombinedScorer) Method() Method {
	return MethodCombined
}

func (s *CombinedScorer) Score(r models.Route, index int) (RouteScore, error) {
	if err := checkRoute(r, index); err != nil {
		return RouteScore{}, err
	}

	connections := float64(r.Connections)
	adequacy := BaggageAdequacy(r.Baggage.CheckedBags, r.Baggage.PerBagKG)
	preference := CarrierPreference(r.Carrier, s.cfg.PreferredCarriers)

	normalized := map[string]float64{
		"price":       s.cfg.Ranges.Price.Normalize(r.PriceEUR),
		"duration":    s.cfg.Ranges.Duration.Normalize(r.TotalDurationHours),
		"connections": s.cfg.Ranges.Connections.Normalize(connections),
		"baggage":     1 - adequacy,
		"carrier":     1 - preference,
	}

	w := s.cfg.Weights
	overall := w.Price*normalized["price"] +
		w.Duration*normalized["duration"] +
		w.Connections*normalized["connections"] +
		w.Baggage*normalized["baggage"] +
		w.Carrier*normalized["carrier"]

	penalties := map[string]float64{}
	bonuses := map[string]float64{}
	if isRedEye(r) && s.cfg.RedEyePenalty != 0 {
		penalties["red_eye"] = s.cfg.RedEyePenalty
	}
	if r.Connections == 0 && s.cfg.DirectBonus != 0 {
		bonuses["direct"] = s.cfg.DirectBonus
	}

	return RouteScore{
		Index:   index,
		Overall: overall,
		Components: map[string]float64{
			"price":       r.PriceEUR,
			"duration":    r.TotalDurationHours,
			"connections": connections,
			"baggage":     adequacy,
			"carrier":     preference,
		},
		Normalized: normalized,
		Penalties:  penalties,
		Bonuses:    bonuses,
	}, nil
}

const minValuePrice = 0.01

// ValueScorer ranks by quality per unit of price, where quality favours
// short trips with few connections
type ValueScorer struct {
	ranges Ranges
}

func (s *ValueScorer) Method() Method {
	return MethodValue
}

func (s *ValueScorer) Score(r models.Route, index int) (RouteScore, error) {
	if err := checkRoute(r, index); err != nil {
		return RouteScore{}, err
	}

	connections := float64(r.Connections)
	quality := 1 - (0.6*s.ranges.Duration.Normalize(r.TotalDurationHours) +
		0.4*s.ranges.Connections.Normalize(connections))
	value := quality / math.Max(s.ranges.Price.Normalize(r.PriceEUR), minValuePrice)

	return RouteScore{
		Index:   index,
		Overall: 1 - value,
		Components: map[string]float64{
			"price":       r.PriceEUR,
			"duration":    r.TotalDurationHours,
			"connections": connections,
			"quality":     quality,
			"value":       value,
		},
		Normalized: map[string]float64{"quality": quality, "value": value},
	}, nil
}

// isRedEye reports departures between 02:00 and 04:59 local time
func isRedEye(r models.Route) bool {
	if r.DepartureTime == nil {
		return false
	}
	h := r.DepartureTime.Hour()
	return h >= 2 && h < 5
}

func checkRoute(r models.Route, index int) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("route %d cannot be scored: %w", index, err)
	}
	return nil
}
