package testutil

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/thesyncim/arf/pkg/arf/internal"
)

// TracedReport is a single report in a recorded stroke trace.
type TracedReport struct {
	// TimeUs is the report time in microseconds since trace start.
	TimeUs int64 `json:"time_us"`

	X float64 `json:"x"`
	Y float64 `json:"y"`

	// InRange is false for the report sent when the pen lifts away.
	InRange bool `json:"in_range"`

	// Kind tags a non-position report (e.g. "buttons"). Empty for positions.
	Kind string `json:"kind,omitempty"`
}

// StrokeTrace is a recorded or synthetic digitizer session.
type StrokeTrace struct {
	// Name is a short identifier for the trace (e.g., "sharp_stop").
	Name string `json:"name"`

	// Description explains what pen motion the trace represents.
	Description string `json:"description"`

	// Reports is the ordered list of reports in the trace.
	Reports []TracedReport `json:"reports"`
}

// LoadTrace reads a stroke trace from a JSON file.
//
// File format:
//
//	{
//	    "name": "trace_name",
//	    "description": "Description of pen motion",
//	    "reports": [
//	        {"time_us": 0, "x": 100.5, "y": 200, "in_range": true},
//	        ...
//	    ]
//	}
func LoadTrace(path string) (*StrokeTrace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace file %s: %w", path, err)
	}

	var trace StrokeTrace
	if err := json.Unmarshal(data, &trace); err != nil {
		return nil, fmt.Errorf("failed to parse trace file %s: %w", path, err)
	}

	for i := 1; i < len(trace.Reports); i++ {
		if trace.Reports[i].TimeUs < trace.Reports[i-1].TimeUs {
			return nil, fmt.Errorf("trace file %s: report %d goes back in time", path, i)
		}
	}

	return &trace, nil
}

// SaveTrace writes the trace as indented JSON.
func (t *StrokeTrace) SaveTrace(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode trace %s: %w", t.Name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write trace file %s: %w", path, err)
	}
	return nil
}

// FromSamples builds a trace from generated samples. Times are taken
// relative to the first sample.
func FromSamples(name, description string, samples []Sample) *StrokeTrace {
	trace := &StrokeTrace{
		Name:        name,
		Description: description,
		Reports:     make([]TracedReport, len(samples)),
	}
	if len(samples) == 0 {
		return trace
	}
	start := samples[0].At
	for i, s := range samples {
		trace.Reports[i] = TracedReport{
			TimeUs:  s.At.Sub(start).Microseconds(),
			X:       s.X,
			Y:       s.Y,
			InRange: s.InRange,
		}
	}
	return trace
}

// ReportProcessor consumes one traced report at its replay time.
type ReportProcessor func(at time.Time, r TracedReport)

// Replay feeds the trace through a processor, advancing the clock to each
// report's time first.
//
// Between reports, tick (if non-nil) is called every tickInterval while the
// clock is advanced, so an output-rate sampler can be driven exactly as it
// would be live.
func (t *StrokeTrace) Replay(clock *internal.MockClock, processor ReportProcessor, tickInterval time.Duration, tick func(at time.Time)) {
	start := clock.Now()
	for _, r := range t.Reports {
		target := start.Add(time.Duration(r.TimeUs) * time.Microsecond)
		if tick != nil && tickInterval > 0 {
			for next := clock.Now().Add(tickInterval); next.Before(target); next = next.Add(tickInterval) {
				clock.AdvanceTo(next)
				tick(next)
			}
		}
		clock.AdvanceTo(target)
		processor(clock.Now(), r)
	}
}

// ErrorResult summarizes the distance between filtered output and a
// reference path.
type ErrorResult struct {
	Mean  float64
	RMS   float64
	P95   float64
	Max   float64
	Count int
}

// TrackingError computes summary statistics over per-sample distances.
// Non-finite distances are counted but excluded from the statistics.
func TrackingError(distances []float64) ErrorResult {
	finite := make([]float64, 0, len(distances))
	for _, d := range distances {
		if !math.IsNaN(d) && !math.IsInf(d, 0) {
			finite = append(finite, d)
		}
	}
	result := ErrorResult{Count: len(distances)}
	if len(finite) == 0 {
		return result
	}

	sort.Float64s(finite)
	result.Mean = stat.Mean(finite, nil)
	result.RMS = floats.Norm(finite, 2) / math.Sqrt(float64(len(finite)))
	result.P95 = stat.Quantile(0.95, stat.Empirical, finite, nil)
	result.Max = floats.Max(finite)
	return result
}
