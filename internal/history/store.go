package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/passbi/passbi_travel/internal/agent"
)

// DBTX is the subset of pgxpool.Pool the store needs
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const schema = `
	CREATE TABLE IF NOT EXISTS planning_run (
		run_id               UUID PRIMARY KEY,
		origin               TEXT NOT NULL,
		destination          TEXT NOT NULL,
		travel_date          TEXT NOT NULL,
		state                TEXT NOT NULL,
		error                TEXT,
		providers_tried      INT NOT NULL,
		providers_failed     INT NOT NULL,
		providers_disabled   INT NOT NULL,
		routes_collected     INT NOT NULL,
		routes_filtered      INT NOT NULL,
		routes_ranked        INT NOT NULL,
		success_rate         DOUBLE PRECISION NOT NULL,
		quality_score        DOUBLE PRECISION NOT NULL,
		suggestions          TEXT[] NOT NULL DEFAULT '{}',
		all_providers_failed BOOLEAN NOT NULL DEFAULT false,
		started_at           TIMESTAMPTZ NOT NULL,
		elapsed_ms           BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS planning_run_started_at_idx ON planning_run (started_at DESC);
`

// Store persists planning run summaries in PostgreSQL
type Store struct {
	db      DBTX
	timeout time.Duration
}

// NewStore creates a store over db
func NewStore(db DBTX) *Store {
	return &Store{db: db, timeout: 5 * time.Second}
}

// EnsureSchema creates the run table when missing
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create planning_run schema: %w", err)
	}
	return nil
}

// RecordRun implements agent.RunRecorder
func (s *Store) RecordRun(ctx context.Context, run agent.Run) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		INSERT INTO planning_run (
			run_id,
			origin,
			destination,
			travel_date,
			state,
			error,
			providers_tried,
			providers_failed,
			providers_disabled,
			routes_collected,
			routes_filtered,
			routes_ranked,
			success_rate,
			quality_score,
			suggestions,
			all_providers_failed,
			started_at,
			elapsed_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (run_id) DO NOTHING
	`

	var runErr *string
	if run.Error != "" {
		runErr = &run.Error
	}
	suggestions := run.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}

	_, err := s.db.Exec(ctx, query,
		run.RunID,
		run.Origin,
		run.Destination,
		run.Date,
		string(run.State),
		runErr,
		run.Tried,
		run.Failed,
		run.Disabled,
		run.Collected,
		run.Filtered,
		run.Ranked,
		run.SuccessRate,
		run.Quality,
		suggestions,
		run.AllProvidersFailed,
		run.StartedAt,
		run.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.RunID, err)
	}
	return nil
}

// Recent returns the latest runs, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]agent.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT
			run_id::text,
			origin,
			destination,
			travel_date,
			state,
			COALESCE(error, ''),
			providers_tried,
			providers_failed,
			providers_disabled,
			routes_collected,
			routes_filtered,
			routes_ranked,
			success_rate,
			quality_score,
			suggestions,
			all_providers_failed,
			started_at,
			elapsed_ms
		FROM planning_run
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []agent.Run{}
	for rows.Next() {
		var (
			r         agent.Run
			state     string
			elapsedMS int64
		)
		if err := rows.Scan(&r.RunID, &r.Origin, &r.Destination, &r.Date, &state, &r.Error,
			&r.Tried, &r.Failed, &r.Disabled, &r.Collected, &r.Filtered, &r.Ranked,
			&r.SuccessRate, &r.Quality, &r.Suggestions, &r.AllProvidersFailed,
			&r.StartedAt, &elapsedMS); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.State = agent.State(state)
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DailySummary aggregates runs per day
type DailySummary struct {
	Date          string  `json:"date"`
	Runs          int64   `json:"runs"`
	Failed        int64   `json:"failed"`
	NoResults     int64   `json:"no_results"`
	AvgQuality    float64 `json:"avg_quality"`
	AvgElapsedMS  float64 `json:"avg_elapsed_ms"`
	AvgRoutes     float64 `json:"avg_routes"`
	UniqueOrigins int64   `json:"unique_origins"`
}

// Summary aggregates runs started in [from, to] by day, newest first
func (s *Store) Summary(ctx context.Context, from, to time.Time) ([]DailySummary, error) {
	query := `
		SELECT
			DATE(started_at) AS day,
			COUNT(*) AS runs,
			COUNT(*) FILTER (WHERE state = 'failed') AS failed,
			COUNT(*) FILTER (WHERE state = 'completed' AND routes_ranked = 0) AS no_results,
			AVG(quality_score) AS avg_quality,
			AVG(elapsed_ms) AS avg_elapsed,
			AVG(routes_ranked) AS avg_routes,
			COUNT(DISTINCT origin) AS unique_origins
		FROM planning_run
		WHERE started_at >= $1
			AND started_at <= $2
		GROUP BY DATE(started_at)
		ORDER BY day DESC
	`

	rows, err := s.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query run summary: %w", err)
	}
	defer rows.Close()

	days := []DailySummary{}
	for rows.Next() {
		var (
			d   DailySummary
			day time.Time
		)
		if err := rows.Scan(&day, &d.Runs, &d.Failed, &d.NoResults, &d.AvgQuality,
			&d.AvgElapsedMS, &d.AvgRoutes, &d.UniqueOrigins); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		d.Date = day.Format("2006-01-02")
		days = append(days, d)
	}
	return days, rows.Err()
}
