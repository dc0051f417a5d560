package scoring

import (
	"fmt"
	"strings"

	"github.com/passbi/passbi_travel/internal/models"
)

// Method selects a scoring strategy
type Method string

const (
	MethodPrice       Method = "price"
	MethodDuration    Method = "duration"
	MethodConnections Method = "connections"
	MethodCombined    Method = "combined"
	MethodValue       Method = "value"
)

// Methods lists every supported scoring method
var Methods = []Method{MethodCombined, MethodPrice, MethodDuration, MethodConnections, MethodValue}

// ParseMethod resolves a method name. An empty name means combined.
func ParseMethod(name string) (Method, error) {
	value := Method(strings.ToLower(strings.TrimSpace(name)))
	if value == "" {
		return MethodCombined, nil
	}
	for _, m := range Methods {
		if m == value {
			return m, nil
		}
	}
	return "", &ParamError{Param: "method", Reason: fmt.Sprintf("unknown scoring method %q", name)}
}

// ParamError reports an invalid scoring parameter
type ParamError struct {
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid scoring parameter %s: %s", e.Param, e.Reason)
}

const (
	defaultDirectBonus   = 0.05
	defaultRedEyePenalty = 0.1

	// preferenceWeight is the raw carrier weight added when a request
	// names preferred carriers
	preferenceWeight = 0.1
)

// Config controls how routes are scored
type Config struct {
	Method            Method   `json:"method"`
	Weights           Weights  `json:"weights"`
	Ranges            Ranges   `json:"ranges"`
	PreferredCarriers []string `json:"preferred_carriers,omitempty"`
	DirectBonus       float64  `json:"direct_bonus"`
	RedEyePenalty     float64  `json:"red_eye_penalty"`
}

// DefaultConfig returns the combined scorer with default weights and ranges
func DefaultConfig() Config {
	return Config{
		Method:        MethodCombined,
		Weights:       DefaultWeights(),
		Ranges:        DefaultRanges(),
		DirectBonus:   defaultDirectBonus,
		RedEyePenalty: defaultRedEyePenalty,
	}
}

// ConfigForRequest derives the scoring configuration of a search: the
// time/cost split drives duration and price, and preferred carriers get a
// small weight of their own when present.
func ConfigForRequest(req models.SearchRequest) Config {
	cfg := DefaultConfig()
	cfg.Weights = TimeCostWeights(req.TimeWeight, req.CostWeight)
	if len(req.PreferredCarriers) > 0 {
		cfg.PreferredCarriers = append([]string(nil), req.PreferredCarriers...)
		cfg.Weights.Carrier = preferenceWeight
	}
	return cfg
}

func normalizeCarrier(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
