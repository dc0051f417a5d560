package models

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	maxCityNameLength = 100
	maxCheckedBags    = 10
	maxConnections    = 5
	maxPassengers     = 9

	// weightTolerance is how far time+cost weights may drift from 1 before
	// the cost weight is recomputed.
	weightTolerance = 0.01
)

// ValidationError describes a rejected request field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RequestParams holds raw, unvalidated search input
type RequestParams struct {
	Origin         string
	Destination    string
	Date           string
	Passengers     int
	MinCheckedBags int
	MaxConnections int
	TimeWeight     float64
	CostWeight     float64
	Modes          []TransportMode

	MinPriceEUR       *float64
	MaxPriceEUR       *float64
	MaxDurationHours  *float64
	MinBagWeightKG    *float64
	PreferredCarriers []string
	ExcludedCarriers  []string
}

// SearchRequest is a validated search. Build it with NewSearchRequest and
// treat it as read-only afterwards.
type SearchRequest struct {
	Origin         string          `json:"origin"`
	Destination    string          `json:"destination"`
	Date           string          `json:"date"`
	Passengers     int             `json:"passengers"`
	MinCheckedBags int             `json:"min_checked_bags"`
	MaxConnections int             `json:"max_connections"`
	TimeWeight     float64         `json:"time_weight"`
	CostWeight     float64         `json:"cost_weight"`
	Modes          []TransportMode `json:"modes"`

	MinPriceEUR       *float64 `json:"min_price_eur,omitempty"`
	MaxPriceEUR       *float64 `json:"max_price_eur,omitempty"`
	MaxDurationHours  *float64 `json:"max_duration_hours,omitempty"`
	MinBagWeightKG    *float64 `json:"min_bag_weight_kg,omitempty"`
	PreferredCarriers []string `json:"preferred_carriers,omitempty"`
	ExcludedCarriers  []string `json:"excluded_carriers,omitempty"`

	// WeightsRebalanced is set when CostWeight was recomputed from TimeWeight
	WeightsRebalanced bool `json:"weights_rebalanced,omitempty"`
}

// NewSearchRequest validates and normalizes raw parameters
func NewSearchRequest(p RequestParams) (SearchRequest, error) {
	origin, err := SanitizeCityName(p.Origin)
	if err != nil {
		return SearchRequest{}, &ValidationError{Field: "origin", Reason: err.Error()}
	}
	destination, err := SanitizeCityName(p.Destination)
	if err != nil {
		return SearchRequest{}, &ValidationError{Field: "destination", Reason: err.Error()}
	}
	if !ValidDate(p.Date) {
		return SearchRequest{}, &ValidationError{Field: "date", Reason: fmt.Sprintf("%q is not a YYYY-MM-DD calendar date", p.Date)}
	}

	passengers := p.Passengers
	if passengers == 0 {
		passengers = 1
	}
	if passengers < 1 || passengers > maxPassengers {
		return SearchRequest{}, &ValidationError{Field: "passengers", Reason: fmt.Sprintf("must be between 1 and %d", maxPassengers)}
	}
	if p.MinCheckedBags < 0 || p.MinCheckedBags > maxCheckedBags {
		return SearchRequest{}, &ValidationError{Field: "min_checked_bags", Reason: fmt.Sprintf("must be between 0 and %d", maxCheckedBags)}
	}
	if p.MaxConnections < 0 || p.MaxConnections > maxConnections {
		return SearchRequest{}, &ValidationError{Field: "max_connections", Reason: fmt.Sprintf("must be between 0 and %d", maxConnections)}
	}
	if !inUnitInterval(p.TimeWeight) {
		return SearchRequest{}, &ValidationError{Field: "time_weight", Reason: "must be between 0 and 1"}
	}
	if !inUnitInterval(p.CostWeight) {
		return SearchRequest{}, &ValidationError{Field: "cost_weight", Reason: "must be between 0 and 1"}
	}

	req := SearchRequest{
		Origin:         origin,
		Destination:    destination,
		Date:           p.Date,
		Passengers:     passengers,
		MinCheckedBags: p.MinCheckedBags,
		MaxConnections: p.MaxConnections,
		TimeWeight:     p.TimeWeight,
		CostWeight:     p.CostWeight,
	}
	if math.Abs(p.TimeWeight+p.CostWeight-1) > weightTolerance {
		req.CostWeight = 1 - p.TimeWeight
		req.WeightsRebalanced = true
	}

	modes, err := normalizeModes(p.Modes)
	if err != nil {
		return SearchRequest{}, &ValidationError{Field: "modes", Reason: err.Error()}
	}
	req.Modes = modes

	if err := validateOptionalBounds(p); err != nil {
		return SearchRequest{}, err
	}
	req.MinPriceEUR = copyFloat(p.MinPriceEUR)
	req.MaxPriceEUR = copyFloat(p.MaxPriceEUR)
	req.MaxDurationHours = copyFloat(p.MaxDurationHours)
	req.MinBagWeightKG = copyFloat(p.MinBagWeightKG)
	req.PreferredCarriers = cleanList(p.PreferredCarriers)
	req.ExcludedCarriers = cleanList(p.ExcludedCarriers)

	return req, nil
}

// Params returns the raw parameters the request can be rebuilt from
func (r SearchRequest) Params() RequestParams {
	return RequestParams{
		Origin:            r.Origin,
		Destination:       r.Destination,
		Date:              r.Date,
		Passengers:        r.Passengers,
		MinCheckedBags:    r.MinCheckedBags,
		MaxConnections:    r.MaxConnections,
		TimeWeight:        r.TimeWeight,
		CostWeight:        r.CostWeight,
		Modes:             append([]TransportMode(nil), r.Modes...),
		MinPriceEUR:       copyFloat(r.MinPriceEUR),
		MaxPriceEUR:       copyFloat(r.MaxPriceEUR),
		MaxDurationHours:  copyFloat(r.MaxDurationHours),
		MinBagWeightKG:    copyFloat(r.MinBagWeightKG),
		PreferredCarriers: append([]string(nil), r.PreferredCarriers...),
		ExcludedCarriers:  append([]string(nil), r.ExcludedCarriers...),
	}
}

// AllModesRequested reports whether the request covers every transport mode
func (r SearchRequest) AllModesRequested() bool {
	return len(r.Modes) == len(AllModes)
}

// SanitizeCityName trims a city name and rejects anything other than letters
// of any script, spaces, hyphens and apostrophes.
func SanitizeCityName(city string) (string, error) {
	trimmed := strings.TrimSpace(city)
	if trimmed == "" {
		return "", fmt.Errorf("city name must be a non-empty string")
	}
	if utf8.RuneCountInString(trimmed) > maxCityNameLength {
		return "", fmt.Errorf("city name longer than %d characters", maxCityNameLength)
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("city name contains control characters")
		}
		if !unicode.IsLetter(r) && r != ' ' && r != '-' && r != '\'' {
			return "", fmt.Errorf("city name contains invalid character %q", r)
		}
	}
	return trimmed, nil
}

// ValidDate reports whether s is a real calendar date in YYYY-MM-DD form
func ValidDate(s string) bool {
	if len(s) != len("2006-01-02") {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func normalizeModes(modes []TransportMode) ([]TransportMode, error) {
	if len(modes) == 0 {
		return append([]TransportMode(nil), AllModes...), nil
	}
	seen := make(map[TransportMode]struct{}, len(modes))
	out := make([]TransportMode, 0, len(modes))
	for _, m := range modes {
		if !m.Valid() {
			return nil, fmt.Errorf("unknown mode %q", m)
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func validateOptionalBounds(p RequestParams) error {
	if p.MinPriceEUR != nil && !finiteNonNegative(*p.MinPriceEUR) {
		return &ValidationError{Field: "min_price_eur", Reason: "must be a non-negative number"}
	}
	if p.MaxPriceEUR != nil && (!finiteNonNegative(*p.MaxPriceEUR) || *p.MaxPriceEUR == 0) {
		return &ValidationError{Field: "max_price_eur", Reason: "must be a positive number"}
	}
	if p.MinPriceEUR != nil && p.MaxPriceEUR != nil && *p.MinPriceEUR >= *p.MaxPriceEUR {
		return &ValidationError{Field: "min_price_eur", Reason: "must be lower than max_price_eur"}
	}
	if p.MaxDurationHours != nil && (!finiteNonNegative(*p.MaxDurationHours) || *p.MaxDurationHours == 0) {
		return &ValidationError{Field: "max_duration_hours", Reason: "must be a positive number"}
	}
	if p.MinBagWeightKG != nil && !finiteNonNegative(*p.MinBagWeightKG) {
		return &ValidationError{Field: "min_bag_weight_kg", Reason: "must be a non-negative number"}
	}

	excluded := make(map[string]bool, len(p.ExcludedCarriers))
	for _, c := range p.ExcludedCarriers {
		excluded[strings.ToLower(strings.TrimSpace(c))] = true
	}
	for _, c := range p.PreferredCarriers {
		if excluded[strings.ToLower(strings.TrimSpace(c))] {
			return &ValidationError{Field: "preferred_carriers", Reason: fmt.Sprintf("%q is also excluded", c)}
		}
	}
	return nil
}

func inUnitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
