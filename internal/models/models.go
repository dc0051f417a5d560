package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// TransportMode represents the type of travel service offered by a route
type TransportMode string

const (
	ModeFlight TransportMode = "flight"
	ModeTrain  TransportMode = "train"
	ModeBus    TransportMode = "bus"
	ModeCar    TransportMode = "car"
	ModeFerry  TransportMode = "ferry"
)

// AllModes lists every supported transport mode in canonical order
var AllModes = []TransportMode{ModeFlight, ModeTrain, ModeBus, ModeCar, ModeFerry}

// Valid reports whether m is one of the supported modes
func (m TransportMode) Valid() bool {
	switch m {
	case ModeFlight, ModeTrain, ModeBus, ModeCar, ModeFerry:
		return true
	}
	return false
}

// ParseMode maps a provider-specific mode label onto a TransportMode.
// Exact names match first, then keyword matching.
func ParseMode(label string) (TransportMode, error) {
	value := strings.ToLower(strings.TrimSpace(label))
	if m := TransportMode(value); m.Valid() {
		return m, nil
	}

	switch {
	case strings.Contains(value, "coach"):
		return ModeBus, nil
	case strings.Contains(value, "boat") || strings.Contains(value, "ship"):
		return ModeFerry, nil
	case strings.Contains(value, "air") || strings.Contains(value, "plane"):
		return ModeFlight, nil
	case strings.Contains(value, "rail") || strings.Contains(value, "intercity"):
		return ModeTrain, nil
	case strings.Contains(value, "drive") || strings.Contains(value, "rideshare"):
		return ModeCar, nil
	}

	return "", fmt.Errorf("unknown transport mode %q", label)
}

// Baggage represents the checked baggage allowance included in a fare
type Baggage struct {
	CheckedBags int     `json:"checked_bags"`
	PerBagKG    float64 `json:"per_bag_kg"`
}

// Route represents one normalized travel offer from a single provider
type Route struct {
	Provider           string        `json:"provider"`
	Mode               TransportMode `json:"mode"`
	Carrier            string        `json:"carrier"`
	Origin             string        `json:"origin"`
	Destination        string        `json:"destination"`
	Date               string        `json:"date"`
	PriceEUR           float64       `json:"price_eur"`
	TotalDurationHours float64       `json:"total_duration_hours"`
	Connections        int           `json:"connections"`
	Baggage            Baggage       `json:"baggage"`
	Via                []string      `json:"via,omitempty"`
	DepartureTime      *time.Time    `json:"departure_time,omitempty"`
	ArrivalTime        *time.Time    `json:"arrival_time,omitempty"`
}

// Clone returns a deep copy of the route
func (r Route) Clone() Route {
	clone := r
	if r.Via != nil {
		clone.Via = append([]string(nil), r.Via...)
	}
	if r.DepartureTime != nil {
		t := *r.DepartureTime
		clone.DepartureTime = &t
	}
	if r.ArrivalTime != nil {
		t := *r.ArrivalTime
		clone.ArrivalTime = &t
	}
	return clone
}

// Validate reports the first problem that makes the route unusable.
// A Connections/Via mismatch is tolerated.
func (r Route) Validate() error {
	if !r.Mode.Valid() {
		return fmt.Errorf("invalid mode %q", r.Mode)
	}
	if strings.TrimSpace(r.Origin) == "" || strings.TrimSpace(r.Destination) == "" {
		return fmt.Errorf("origin and destination are required")
	}
	if !finiteNonNegative(r.PriceEUR) {
		return fmt.Errorf("invalid price %v", r.PriceEUR)
	}
	if !finiteNonNegative(r.TotalDurationHours) {
		return fmt.Errorf("invalid duration %v", r.TotalDurationHours)
	}
	if r.Connections < 0 {
		return fmt.Errorf("negative connections %d", r.Connections)
	}
	if r.Baggage.CheckedBags < 0 || !finiteNonNegative(r.Baggage.PerBagKG) {
		return fmt.Errorf("invalid baggage %+v", r.Baggage)
	}
	return nil
}

// CloneRoutes deep-copies a route slice, preserving nil
func CloneRoutes(routes []Route) []Route {
	if routes == nil {
		return nil
	}
	out := make([]Route, len(routes))
	for i, r := range routes {
		out[i] = r.Clone()
	}
	return out
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
