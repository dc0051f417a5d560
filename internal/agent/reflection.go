package agent

import (
	"fmt"
	"math"
	"time"

	"github.com/passbi/passbi_travel/internal/aggregator"
)

const (
	lowSuccessRate = 0.5
	fewRoutes      = 3
	slowRun        = 10 * time.Second

	// targetRoutes and timeBudget cap the route and speed components of
	// the quality score
	targetRoutes = 5
	timeBudget   = 30 * time.Second
)

// Reflection is a post-hoc assessment of a planning run. It never changes
// the routes that were returned.
type Reflection struct {
	SuccessRate        float64  `json:"provider_success_rate"`
	RouteCount         int      `json:"route_count"`
	ElapsedMS          int64    `json:"elapsed_ms"`
	Quality            float64  `json:"quality_score"`
	Suggestions        []string `json:"suggestions"`
	NoResults          bool     `json:"no_results"`
	AllProvidersFailed bool     `json:"all_providers_failed"`
}

// Reflect scores a run from its collection stats, the number of routes
// returned and the wall-clock time it took
func Reflect(stats aggregator.Stats, routes int, elapsed time.Duration) Reflection {
	successRate := 1 - float64(stats.Failed)/float64(max(stats.Tried, 1))

	suggestions := []string{}
	if successRate < lowSuccessRate {
		suggestions = append(suggestions, fmt.Sprintf("high provider failure rate (%d of %d failed): check provider configuration and connectivity", stats.Failed, stats.Tried))
	}
	switch {
	case routes == 0:
		suggestions = append(suggestions, "no routes found: relax the constraints or try nearby dates")
	case routes < fewRoutes:
		suggestions = append(suggestions, fmt.Sprintf("few routes found (%d): consider allowing more connections or fewer bags", routes))
	}
	if elapsed > slowRun {
		suggestions = append(suggestions, fmt.Sprintf("slow execution (%.1fs): consider enabling caching or lowering provider timeouts", elapsed.Seconds()))
	}

	routeScore := math.Min(float64(routes)/targetRoutes, 1)
	speedScore := math.Max(0, 1-elapsed.Seconds()/timeBudget.Seconds())

	return Reflection{
		SuccessRate:        successRate,
		RouteCount:         routes,
		ElapsedMS:          elapsed.Milliseconds(),
		Quality:            (successRate + routeScore + speedScore) / 3,
		Suggestions:        suggestions,
		NoResults:          routes == 0,
		AllProvidersFailed: stats.Tried > 0 && stats.Failed == stats.Tried,
	}
}
