package filters

import (
	"fmt"
	"math"
	"strings"

	"github.com/passbi/passbi_travel/internal/models"
)

// Filter keeps or drops a single route. Filters are pure, so applying one
// twice gives the same result as applying it once.
type Filter interface {
	Name() string
	Keep(route models.Route) bool
}

// ParamError reports an invalid filter parameter
type ParamError struct {
	Filter string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s filter: %s", e.Filter, e.Reason)
}

type predicate struct {
	name string
	keep func(models.Route) bool
}

func (p predicate) Name() string                 { return p.name }
func (p predicate) Keep(route models.Route) bool { return p.keep(route) }

// MaxConnections keeps routes with at most k connections
func MaxConnections(k int) (Filter, error) {
	if k < 0 {
		return nil, &ParamError{Filter: "connections", Reason: "max connections cannot be negative"}
	}
	return predicate{
		name: fmt.Sprintf("connections<=%d", k),
		keep: func(r models.Route) bool { return r.Connections <= k },
	}, nil
}

// MinBaggage keeps routes including at least bags checked bags and, when
// minKG is set, at least that weight per bag
func MinBaggage(bags int, minKG *float64) (Filter, error) {
	if bags < 0 {
		return nil, &ParamError{Filter: "baggage", Reason: "min checked bags cannot be negative"}
	}
	name := fmt.Sprintf("baggage>=%dbags", bags)
	if minKG != nil {
		if !positive(*minKG) {
			return nil, &ParamError{Filter: "baggage", Reason: "min weight must be a positive number"}
		}
		kg := *minKG
		name += fmt.Sprintf(",>=%gkg", kg)
		return predicate{
			name: name,
			keep: func(r models.Route) bool {
				return r.Baggage.CheckedBags >= bags && r.Baggage.PerBagKG >= kg
			},
		}, nil
	}
	return predicate{
		name: name,
		keep: func(r models.Route) bool { return r.Baggage.CheckedBags >= bags },
	}, nil
}

// PriceRange keeps routes priced within [min, max]. Either bound may be nil.
func PriceRange(minPrice, maxPrice *float64) (Filter, error) {
	if minPrice != nil && (math.IsNaN(*minPrice) || *minPrice < 0) {
		return nil, &ParamError{Filter: "price", Reason: "min price must be a non-negative number"}
	}
	if maxPrice != nil && !positive(*maxPrice) {
		return nil, &ParamError{Filter: "price", Reason: "max price must be a positive number"}
	}
	if minPrice != nil && maxPrice != nil && *minPrice >= *maxPrice {
		return nil, &ParamError{Filter: "price", Reason: "min price must be less than max price"}
	}

	parts := make([]string, 0, 2)
	lo, hi := math.Inf(-1), math.Inf(1)
	if minPrice != nil {
		lo = *minPrice
		parts = append(parts, fmt.Sprintf(">=%g", lo))
	}
	if maxPrice != nil {
		hi = *maxPrice
		parts = append(parts, fmt.Sprintf("<=%g", hi))
	}
	if len(parts) == 0 {
		parts = append(parts, "any")
	}

	return predicate{
		name: "price_" + strings.Join(parts, ","),
		keep: func(r models.Route) bool { return r.PriceEUR >= lo && r.PriceEUR <= hi },
	}, nil
}

// MaxDuration keeps routes no longer than hours
func MaxDuration(hours float64) (Filter, error) {
	if !positive(hours) {
		return nil, &ParamError{Filter: "duration", Reason: "max hours must be a positive number"}
	}
	return predicate{
		name: fmt.Sprintf("duration<=%gh", hours),
		keep: func(r models.Route) bool { return r.TotalDurationHours <= hours },
	}, nil
}

// Carriers keeps routes run by a preferred carrier (when any are given)
// and drops excluded carriers. Matching ignores case.
func Carriers(preferred, excluded []string) (Filter, error) {
	pref := carrierSet(preferred)
	excl := carrierSet(excluded)
	for c := range pref {
		if _, ok := excl[c]; ok {
			return nil, &ParamError{Filter: "carrier", Reason: fmt.Sprintf("%q is both preferred and excluded", c)}
		}
	}

	desc := make([]string, 0, 2)
	if len(pref) > 0 {
		desc = append(desc, fmt.Sprintf("preferred_%d", len(pref)))
	}
	if len(excl) > 0 {
		desc = append(desc, fmt.Sprintf("excluded_%d", len(excl)))
	}
	if len(desc) == 0 {
		desc = append(desc, "any")
	}

	return predicate{
		name: "carrier_" + strings.Join(desc, "-"),
		keep: func(r models.Route) bool {
			c := normalizeCarrier(r.Carrier)
			if len(pref) > 0 {
				if _, ok := pref[c]; !ok {
					return false
				}
			}
			_, banned := excl[c]
			return !banned
		},
	}, nil
}

// Modes keeps routes using one of the given transport modes
func Modes(modes ...models.TransportMode) (Filter, error) {
	if len(modes) == 0 {
		return nil, &ParamError{Filter: "mode", Reason: "at least one mode is required"}
	}
	allowed := make(map[models.TransportMode]struct{}, len(modes))
	names := make([]string, 0, len(modes))
	for _, m := range modes {
		if !m.Valid() {
			return nil, &ParamError{Filter: "mode", Reason: fmt.Sprintf("unknown mode %q", m)}
		}
		if _, dup := allowed[m]; !dup {
			names = append(names, string(m))
		}
		allowed[m] = struct{}{}
	}
	return predicate{
		name: "mode_" + strings.Join(names, "-"),
		keep: func(r models.Route) bool {
			_, ok := allowed[r.Mode]
			return ok
		},
	}, nil
}

func carrierSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if c := normalizeCarrier(n); c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}

func normalizeCarrier(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func positive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
