package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/passbi/passbi_travel/internal/agent"
	"github.com/passbi/passbi_travel/internal/api"
	"github.com/passbi/passbi_travel/internal/app"
	"github.com/passbi/passbi_travel/internal/config"
	"github.com/passbi/passbi_travel/internal/models"
	"github.com/passbi/passbi_travel/internal/scoring"
)

// optionalFloat is a float flag that remembers whether it was set
type optionalFloat struct{ v *float64 }

func (f *optionalFloat) String() string {
	if f.v == nil {
		return ""
	}
	return fmt.Sprint(*f.v)
}

func (f *optionalFloat) Set(s string) error {
	var v float64
	if _, err := fmt.Sscan(s, &v); err != nil {
		return fmt.Errorf("%q is not a number", s)
	}
	f.v = &v
	return nil
}

// optionalInt is an int flag that remembers whether it was set
type optionalInt struct{ v *int }

func (f *optionalInt) String() string {
	if f.v == nil {
		return ""
	}
	return fmt.Sprint(*f.v)
}

func (f *optionalInt) Set(s string) error {
	var v int
	if _, err := fmt.Sscan(s, &v); err != nil {
		return fmt.Errorf("%q is not an integer", s)
	}
	f.v = &v
	return nil
}

func main() {
	var (
		q                                 api.PlanQuery
		modes, prefer, exclude            string
		bags, maxConnections, limit       optionalInt
		wTime, wCost                      optionalFloat
		maxPrice, minPrice, maxHours, kgs optionalFloat
	)
	timeout := flag.Duration("timeout", 60*time.Second, "Overall planning timeout")
	flag.StringVar(&q.Origin, "origin", "", "Origin city (required)")
	flag.StringVar(&q.Destination, "destination", "", "Destination city (required)")
	flag.StringVar(&q.Date, "date", "", "Travel date YYYY-MM-DD (required)")
	flag.IntVar(&q.Passengers, "passengers", 1, "Number of passengers")
	flag.Var(&bags, "bags", "Minimum checked bags")
	flag.Var(&maxConnections, "max-connections", "Maximum connections")
	flag.Var(&wTime, "w-time", "Time weight 0..1")
	flag.Var(&wCost, "w-cost", "Cost weight 0..1")
	flag.StringVar(&modes, "modes", "", "Comma-separated transport modes")
	flag.Var(&maxPrice, "max-price", "Maximum price in EUR")
	flag.Var(&minPrice, "min-price", "Minimum price in EUR")
	flag.Var(&maxHours, "max-hours", "Maximum total duration in hours")
	flag.Var(&kgs, "min-bag-kg", "Minimum weight per checked bag")
	flag.StringVar(&prefer, "prefer", "", "Comma-separated preferred carriers")
	flag.StringVar(&exclude, "exclude", "", "Comma-separated excluded carriers")
	flag.Var(&limit, "limit", "Number of routes to print")
	flag.StringVar(&q.Method, "method", "", "Scoring method: "+methodList())

	flag.Parse()

	if q.Origin == "" || q.Destination == "" || q.Date == "" {
		fmt.Fprintln(os.Stderr, "Error: -origin, -destination and -date are required")
		flag.PrintDefaults()
		os.Exit(2)
	}

	q.Bags, q.MaxConnections, q.Limit = bags.v, maxConnections.v, limit.v
	q.TimeWeight, q.CostWeight = wTime.v, wCost.v
	q.MaxPrice, q.MinPrice, q.MaxHours, q.MinBagKG = maxPrice.v, minPrice.v, maxHours.v, kgs.v
	q.Modes = splitFlag(modes)
	q.Prefer = splitFlag(prefer)
	q.Exclude = splitFlag(exclude)

	os.Exit(execute(q, *timeout))
}

func execute(q api.PlanQuery, timeout time.Duration) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		return 1
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	return run(ctx, a, cfg.Defaults, q)
}

// run plans once and prints the result. Only invalid input yields a
// non-zero exit code; a failed or empty run is still reported as JSON.
func run(ctx context.Context, a *app.App, defaults config.RequestDefaults, q api.PlanQuery) int {
	params, err := q.Params(defaults)
	if err != nil {
		return invalid(err)
	}
	limit, err := q.ResultLimit(defaults)
	if err != nil {
		return invalid(err)
	}
	method, err := q.ScoringMethod()
	if err != nil {
		return invalid(err)
	}
	req, err := models.NewSearchRequest(params)
	if err != nil {
		return invalid(err)
	}

	plan, err := a.Agent.Plan(ctx, req, agent.WithMethod(method))
	if err != nil && api.IsClientError(err) {
		return invalid(err)
	}

	plan.Routes = plan.Top(limit)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(plan); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to encode plan: %v\n", err)
	}
	return 0
}

func invalid(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 2
}

func splitFlag(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func methodList() string {
	names := make([]string, len(scoring.Methods))
	for i, m := range scoring.Methods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
