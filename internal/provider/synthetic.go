package provider

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/passbi/passbi_travel/internal/models"
)

//go:embed data/sample_routes.json
var sampleRoutes []byte

const maxSyntheticResults = 8

var departureSlots = []string{"06:30", "09:15", "14:20", "18:45", "21:10"}

var viaHubs = map[[2]string][]string{
	{"stuttgart", "vienna"}: {"Munich", "Salzburg", "Frankfurt"},
	{"berlin", "paris"}:     {"Frankfurt", "Brussels", "Cologne"},
	{"london", "rome"}:      {"Paris", "Milan", "Zurich"},
	{"madrid", "prague"}:    {"Barcelona", "Vienna", "Munich"},
}

var defaultHubs = []string{"Frankfurt", "Paris", "Amsterdam", "Munich", "Vienna"}

// SyntheticOptions tunes the synthetic catalogue backend
type SyntheticOptions struct {
	// Catalogue overrides the embedded sample routes
	Catalogue      []models.Route
	DynamicPricing bool
	Variations     bool
	// Seed makes pricing jitter and variations reproducible. Zero seeds from the clock.
	Seed      int64
	MaxDelay  time.Duration
	ErrorRate float64
	Now       func() time.Time
}

// Synthetic serves routes from a static catalogue with optional price
// and schedule variation. It needs no credentials.
type Synthetic struct {
	catalogue []models.Route
	opts      SyntheticOptions
	now       func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSynthetic loads the catalogue and seeds the random source
func NewSynthetic(opts SyntheticOptions) (*Synthetic, error) {
	catalogue := opts.Catalogue
	if catalogue == nil {
		var err error
		catalogue, err = LoadCatalogue(sampleRoutes)
		if err != nil {
			return nil, err
		}
	}
	if opts.ErrorRate < 0 || opts.ErrorRate > 1 {
		return nil, fmt.Errorf("error rate must be between 0 and 1, got %v", opts.ErrorRate)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Synthetic{
		catalogue: models.CloneRoutes(catalogue),
		opts:      opts,
		now:       now,
		rnd:       rand.New(rand.NewSource(seed)),
	}, nil
}

// LoadCatalogue decodes a JSON array of routes, dropping invalid entries
func LoadCatalogue(data []byte) ([]models.Route, error) {
	var routes []models.Route
	if err := json.Unmarshal(data, &routes); err != nil {
		return nil, fmt.Errorf("failed to decode route catalogue: %w", err)
	}

	valid := routes[:0]
	for _, r := range routes {
		if r.Validate() == nil {
			valid = append(valid, r)
		}
	}
	return valid, nil
}

// Size returns the number of catalogue entries
func (s *Synthetic) Size() int {
	return len(s.catalogue)
}

// Fetch matches the catalogue against the request
func (s *Synthetic) Fetch(ctx context.Context, req models.SearchRequest) ([]models.Route, error) {
	if s.opts.MaxDelay > 0 {
		delay := time.Duration(s.next() * float64(s.opts.MaxDelay))
		if err := sleepContext(ctx, delay); err != nil {
			return nil, err
		}
	}
	if s.opts.ErrorRate > 0 && s.next() < s.opts.ErrorRate {
		return nil, fmt.Errorf("simulated outage: %w", ErrTransient)
	}

	routes := s.match(req)
	if s.opts.DynamicPricing {
		s.applyPricing(routes, req.Date)
	}
	if s.opts.Variations {
		routes = s.addVariations(routes, req)
	}

	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].PriceEUR < routes[j].PriceEUR
	})
	if len(routes) > maxSyntheticResults {
		routes = routes[:maxSyntheticResults]
	}
	return routes, nil
}

func (s *Synthetic) match(req models.SearchRequest) []models.Route {
	origin := strings.ToLower(req.Origin)
	destination := strings.ToLower(req.Destination)

	modes := make(map[models.TransportMode]bool, len(req.Modes))
	for _, m := range req.Modes {
		modes[m] = true
	}

	out := make([]models.Route, 0)
	for _, r := range s.catalogue {
		if strings.ToLower(r.Origin) != origin || strings.ToLower(r.Destination) != destination {
			continue
		}
		if r.Connections > req.MaxConnections {
			continue
		}
		if len(modes) > 0 && !modes[r.Mode] {
			continue
		}
		c := r.Clone()
		c.Date = req.Date
		out = append(out, c)
	}
	return out
}

// applyPricing adjusts prices for booking horizon, weekends and jitter
func (s *Synthetic) applyPricing(routes []models.Route, date string) {
	travel, err := time.Parse("2006-01-02", date)
	for i := range routes {
		price := routes[i].PriceEUR
		if err == nil {
			daysAhead := int(travel.Sub(s.now()).Hours() / 24)
			switch {
			case daysAhead > 30:
				price *= 0.85
			case daysAhead < 7:
				price *= 1.20
			}
			if wd := travel.Weekday(); wd == time.Saturday || wd == time.Sunday {
				price *= 1.10
			}
		}
		price *= s.uniform(0.9, 1.1)
		routes[i].PriceEUR = math.Max(round2(price), 10)
	}
}

func (s *Synthetic) addVariations(routes []models.Route, req models.SearchRequest) []models.Route {
	out := make([]models.Route, 0, len(routes)*2)
	for _, r := range routes {
		out = append(out, r)
		if len(out) >= 5 || s.next() >= 0.6 {
			continue
		}

		if r.Mode == models.ModeFlight || r.Mode == models.ModeTrain {
			v := r.Clone()
			v.PriceEUR = round2(r.PriceEUR * s.uniform(0.95, 1.15))
			v.TotalDurationHours = round2(r.TotalDurationHours * s.uniform(0.9, 1.2))
			if dep, err := time.Parse("2006-01-02 15:04", req.Date+" "+s.pick(departureSlots)); err == nil {
				arr := dep.Add(time.Duration(v.TotalDurationHours * float64(time.Hour)))
				v.DepartureTime = &dep
				v.ArrivalTime = &arr
			}
			out = append(out, v)
		}

		if r.Connections == 0 && req.MaxConnections >= 1 && s.next() < 0.4 {
			v := r.Clone()
			v.Connections = 1
			v.PriceEUR = round2(r.PriceEUR * 0.8)
			v.TotalDurationHours = round2(r.TotalDurationHours * 1.5)
			v.Via = []string{s.viaCity(r.Origin, r.Destination)}
			v.DepartureTime, v.ArrivalTime = nil, nil
			out = append(out, v)
		}
	}
	return out
}

func (s *Synthetic) viaCity(origin, destination string) string {
	hubs, ok := viaHubs[[2]string{strings.ToLower(origin), strings.ToLower(destination)}]
	if !ok {
		hubs = defaultHubs
	}
	return s.pick(hubs)
}

func (s *Synthetic) next() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

func (s *Synthetic) uniform(lo, hi float64) float64 {
	return lo + s.next()*(hi-lo)
}

func (s *Synthetic) pick(values []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return values[s.rnd.Intn(len(values))]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
