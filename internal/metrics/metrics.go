package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/passbi/passbi_travel/internal/agent"
	"github.com/passbi/passbi_travel/internal/provider"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "travel"

// Metrics holds the planner's Prometheus instruments
type Metrics struct {
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	routesReturned  prometheus.Histogram
	runQuality      prometheus.Gauge
	providerFailure prometheus.Counter

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates the instruments and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "planning_runs_total",
				Help:      "Total number of planning runs by final state",
			},
			[]string{"state"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "planning_run_duration_milliseconds",
				Help:      "Planning run duration in milliseconds",
				Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
			},
		),
		routesReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "planning_routes_returned",
				Help:      "Number of ranked routes returned per run",
				Buckets:   []float64{0, 1, 3, 5, 10, 20, 50},
			},
		),
		runQuality: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "planning_last_quality_score",
				Help:      "Reflection quality score of the most recent completed run",
			},
		),
		providerFailure: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "planning_all_providers_failed_total",
				Help:      "Runs in which every tried provider failed",
			},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_milliseconds",
				Help:      "HTTP request duration in milliseconds",
				Buckets:   []float64{1, 5, 10, 50, 100, 250, 500, 1000, 5000},
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.routesReturned,
		m.runQuality,
		m.providerFailure,
		m.requestsTotal,
		m.requestDuration,
	)
	return m
}

// RecordRun implements agent.RunRecorder
func (m *Metrics) RecordRun(_ context.Context, run agent.Run) error {
	m.runsTotal.WithLabelValues(string(run.State)).Inc()
	m.runDuration.Observe(float64(run.Elapsed.Milliseconds()))
	if run.State != agent.StateCompleted {
		return nil
	}
	m.routesReturned.Observe(float64(run.Ranked))
	m.runQuality.Set(run.Quality)
	if run.AllProvidersFailed {
		m.providerFailure.Inc()
	}
	return nil
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(float64(elapsed.Microseconds()) / 1000)
}

// StatsSource exposes provider statistics
type StatsSource interface {
	Stats() provider.StatsSnapshot
}

// ProviderCollector exports provider statistics at scrape time
type ProviderCollector struct {
	sources []StatsSource

	searches    *prometheus.Desc
	outcomes    *prometheus.Desc
	cacheHits   *prometheus.Desc
	retries     *prometheus.Desc
	avgLatency  *prometheus.Desc
	enabled     *prometheus.Desc
	successRate *prometheus.Desc
}

// NewProviderCollector creates a collector over sources
func NewProviderCollector(sources ...StatsSource) *ProviderCollector {
	labels := []string{"provider"}
	return &ProviderCollector{
		sources: sources,
		searches: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "provider", "searches_total"),
			"Searches handled by the provider", labels, nil),
		outcomes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "provider", "outcomes_total"),
			"Provider search outcomes", []string{"provider", "outcome"}, nil),
		cacheHits: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "provider", "cache_hits_total"),
			"Searches answered from the result cache", labels, nil),
		retries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "provider", "retries_total"),
			"Retried backend calls", labels, nil),
		avgLatency: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "provider", "average_latency_milliseconds"),
			"Average search latency", labels, nil),
		enabled: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "provider", "enabled"),
			"Whether the provider is enabled", labels, nil),
		successRate: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "provider", "success_rate"),
			"Successful searches over searches made while enabled", labels, nil),
	}
}

// Describe implements prometheus.Collector
func (c *ProviderCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.searches
	ch <- c.outcomes
	ch <- c.cacheHits
	ch <- c.retries
	ch <- c.avgLatency
	ch <- c.enabled
	ch <- c.successRate
}

// Collect implements prometheus.Collector
func (c *ProviderCollector) Collect(ch chan<- prometheus.Metric) {
	for _, src := range c.sources {
		s := src.Stats()
		ch <- prometheus.MustNewConstMetric(c.searches, prometheus.CounterValue, float64(s.Searches), s.Name)
		ch <- prometheus.MustNewConstMetric(c.outcomes, prometheus.CounterValue, float64(s.Successes), s.Name, "success")
		ch <- prometheus.MustNewConstMetric(c.outcomes, prometheus.CounterValue, float64(s.Failures-s.RateLimited), s.Name, "failure")
		ch <- prometheus.MustNewConstMetric(c.outcomes, prometheus.CounterValue, float64(s.RateLimited), s.Name, "rate_limited")
		ch <- prometheus.MustNewConstMetric(c.outcomes, prometheus.CounterValue, float64(s.Disabled), s.Name, "disabled")
		ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.CounterValue, float64(s.CacheHits), s.Name)
		ch <- prometheus.MustNewConstMetric(c.retries, prometheus.CounterValue, float64(s.Retries), s.Name)
		ch <- prometheus.MustNewConstMetric(c.avgLatency, prometheus.GaugeValue, s.AverageLatencyMS, s.Name)
		ch <- prometheus.MustNewConstMetric(c.enabled, prometheus.GaugeValue, boolValue(s.Enabled), s.Name)
		ch <- prometheus.MustNewConstMetric(c.successRate, prometheus.GaugeValue, s.SuccessRate(), s.Name)
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
