package evcompbasic

import (
	"time"
)

// Outcome is the verdict of one test run.
type Outcome string

const (
	OutcomePass Outcome = "pass"
	OutcomeFail Outcome = "fail"
	// OutcomeSkip means the device lacks a required capability.
	OutcomeSkip Outcome = "skip"
)

// Result describes a finished run.
type Result struct {
	RunID    string
	TestName string
	Outcome  Outcome
	Reason   string

	StepsPerEV int
	EVs        []int
	// RawSeries is the sweep as captured; Series is what is left after the
	// saturated tail is trimmed.
	RawSeries   Series
	Series      Series
	Trimmed     int
	MinLumaDiff float64
	HasMinDiff  bool

	PlotPath  string
	ChartPath string

	StartedAt time.Time
	Duration  time.Duration
}

func (r *Result) fail(reason string) *Result {
	r.Outcome = OutcomeFail
	r.Reason = reason
	return r
}

func (r *Result) skip(reason string) *Result {
	r.Outcome = OutcomeSkip
	r.Reason = reason
	return r
}

// Readings renders the result the way DoCommand and sensors report it.
func (r *Result) Readings() map[string]interface{} {
	out := map[string]interface{}{
		"run_id":        r.RunID,
		"test_name":     r.TestName,
		"outcome":       string(r.Outcome),
		"reason":        r.Reason,
		"steps_per_ev":  r.StepsPerEV,
		"sample_count":  r.Series.Len(),
		"trimmed_count": r.Trimmed,
		"started_at":    r.StartedAt.UTC().Format(time.RFC3339),
		"duration_ms":   r.Duration.Milliseconds(),
	}
	if r.HasMinDiff {
		out["min_luma_diff"] = r.MinLumaDiff
	}
	if r.PlotPath != "" {
		out["plot_path"] = r.PlotPath
	}
	if r.ChartPath != "" {
		out["chart_path"] = r.ChartPath
	}
	return out
}

// SeriesReadings reports the captured per-EV samples.
func (r *Result) SeriesReadings() map[string]interface{} {
	evs := make([]interface{}, len(r.EVs))
	for i, ev := range r.EVs {
		evs[i] = ev
	}
	return map[string]interface{}{
		"run_id":       r.RunID,
		"sample_count": r.RawSeries.Len(),
		"evs":          evs,
		"lumas":        floatsToInterfaces(r.RawSeries.Lumas),
		"reds":         floatsToInterfaces(r.RawSeries.Reds),
		"greens":       floatsToInterfaces(r.RawSeries.Greens),
		"blues":        floatsToInterfaces(r.RawSeries.Blues),
	}
}

func floatsToInterfaces(vals []float64) []interface{} {
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}
