package scoring

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/passbi/passbi_travel/internal/models"
)

// Ranked pairs a route with its score
type Ranked struct {
	Route         models.Route `json:"route"`
	Score         RouteScore   `json:"score"`
	AdjustedScore float64      `json:"adjusted_score"`
}

// Analytics summarizes the adjusted scores of one ranking
type Analytics struct {
	Total     int     `json:"total_routes"`
	Scored    int     `json:"scored_routes"`
	Malformed int     `json:"malformed_routes"`
	Method    Method  `json:"scoring_method"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Mean      float64 `json:"mean"`
	Median    float64 `json:"median"`
	StdDev    float64 `json:"std_dev"`
	BestIndex int     `json:"best_route_index"`
	Weights   Weights `json:"weights_used"`
}

// Ranker scores routes and orders them best first
type Ranker struct {
	scorer  Scorer
	weights Weights
	logger  *slog.Logger
}

// NewRanker builds a ranker around the scorer selected by cfg
func NewRanker(cfg Config, logger *slog.Logger) (*Ranker, error) {
	scorer, err := NewScorer(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	weights, _ := cfg.Weights.Normalized()
	return &Ranker{scorer: scorer, weights: weights, logger: logger}, nil
}

// Method returns the scoring method in use
func (r *Ranker) Method() Method {
	return r.scorer.Method()
}

// Rank scores every route and returns them sorted by ascending adjusted
// score. Equal scores keep their input order. A route that cannot be
// scored is ranked last.
func (r *Ranker) Rank(routes []models.Route) ([]Ranked, Analytics) {
	ranked := make([]Ranked, len(routes))
	for i, route := range routes {
		score := r.score(route, i)
		ranked[i] = Ranked{Route: route.Clone(), Score: score, AdjustedScore: score.Adjusted()}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].AdjustedScore < ranked[b].AdjustedScore
	})
	for i := range ranked {
		ranked[i].Score.Rank = i + 1
	}

	analytics := r.analyze(ranked)
	r.logger.Info("routes ranked", "method", r.scorer.Method(), "routes", len(ranked), "malformed", analytics.Malformed)
	return ranked, analytics
}

// Best returns at most n top ranked routes
func (r *Ranker) Best(routes []models.Route, n int) []Ranked {
	ranked, _ := r.Rank(routes)
	if n >= 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

func (r *Ranker) score(route models.Route, index int) (score RouteScore) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("route scoring panicked", "route_index", index, "error", fmt.Sprint(rec))
			score = worstScore(index)
		}
	}()

	score, err := r.scorer.Score(route, index)
	if err != nil {
		r.logger.Warn("route scoring failed", "route_index", index, "error", err)
		return worstScore(index)
	}
	return score
}

func (r *Ranker) analyze(ranked []Ranked) Analytics {
	a := Analytics{
		Total:     len(ranked),
		Method:    r.scorer.Method(),
		BestIndex: -1,
		Weights:   r.weights,
	}

	scores := make([]float64, 0, len(ranked))
	for _, item := range ranked {
		if item.Score.Malformed {
			a.Malformed++
			continue
		}
		scores = append(scores, item.AdjustedScore)
	}
	a.Scored = len(scores)
	if len(scores) == 0 {
		return a
	}

	// ranked is sorted and malformed routes sort last
	a.BestIndex = ranked[0].Score.Index
	a.Min = scores[0]
	a.Max = scores[len(scores)-1]

	data := stats.Float64Data(scores)
	a.Mean, _ = stats.Mean(data)
	a.Median, _ = stats.Median(data)
	if len(scores) > 1 {
		a.StdDev, _ = stats.StandardDeviationSample(data)
	}
	return a
}
