package agent

import (
	"context"
	"time"
)

// Run is the summary of a planning run handed to recorders. It carries
// counts and timings only, never route records.
type Run struct {
	RunID              string
	Origin             string
	Destination        string
	Date               string
	State              State
	Error              string
	Tried              int
	Failed             int
	Disabled           int
	Collected          int
	Filtered           int
	Ranked             int
	SuccessRate        float64
	Quality            float64
	Suggestions        []string
	AllProvidersFailed bool
	StartedAt          time.Time
	Elapsed            time.Duration
}

// RunRecorder receives a Run after every planning run, failed ones included
type RunRecorder interface {
	RecordRun(ctx context.Context, run Run) error
}

// NewRun summarizes a plan
func NewRun(plan *Plan) Run {
	run := Run{
		RunID:       plan.RunID,
		Origin:      plan.Request.Origin,
		Destination: plan.Request.Destination,
		Date:        plan.Request.Date,
		State:       plan.State,
		Error:       plan.Error,
		Tried:       plan.Collection.Tried,
		Failed:      plan.Collection.Failed,
		Disabled:    plan.Collection.Disabled,
		Collected:   plan.Collection.Collected,
		Filtered:    plan.Filtering.Final,
		Ranked:      len(plan.Routes),
		StartedAt:   plan.StartedAt,
		Elapsed:     time.Duration(plan.ElapsedMS) * time.Millisecond,
	}
	if plan.Reflection != nil {
		run.SuccessRate = plan.Reflection.SuccessRate
		run.Quality = plan.Reflection.Quality
		run.Suggestions = append([]string(nil), plan.Reflection.Suggestions...)
		run.AllProvidersFailed = plan.Reflection.AllProvidersFailed
	}
	return run
}

// RecorderFunc adapts a function to RunRecorder
type RecorderFunc func(ctx context.Context, run Run) error

func (f RecorderFunc) RecordRun(ctx context.Context, run Run) error {
	return f(ctx, run)
}
