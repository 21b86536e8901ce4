// Package replay runs recorded or synthetic stroke traces through a Sampler
// on a simulated clock and measures how closely the output tracks the pen.
package replay

import (
	"fmt"
	"sort"
	"time"

	"github.com/thesyncim/arf/pkg/arf"
	"github.com/thesyncim/arf/pkg/arf/internal"
	"github.com/thesyncim/arf/pkg/arf/testutil"
)

// Result summarizes one replay.
type Result struct {
	// Reports is the number of trace reports consumed.
	Reports int
	// Emitted is the number of position reports emitted.
	Emitted int
	// NonFinite counts emitted positions with a NaN or Inf coordinate.
	NonFinite int
	// Redetections counts filter cycles that snapped after a report gap.
	Redetections int
	// Lag is the distance between each emitted position and the most
	// recent raw report.
	Lag testutil.ErrorResult
	// Outputs are the emitted positions in order.
	Outputs []arf.Vec2
}

// Options tune a replay.
type Options struct {
	// Diagnostics, if set, receives every filter cycle.
	Diagnostics arf.DiagnosticsFunc
	// OnEmit, if set, receives every emitted report.
	OnEmit arf.EmitFunc
}

// Run replays trace through a fresh Sampler. Output ticks fire every
// 1/OutputFrequency of simulated time between reports.
func Run(trace *testutil.StrokeTrace, filterConfig arf.FilterConfig, samplerConfig arf.SamplerConfig, opts Options) Result {
	clock := internal.NewMockClock(time.Time{})
	sampler := arf.NewSampler(filterConfig, samplerConfig, clock)

	var result Result
	var target arf.Vec2
	sampler.SetEmitCallback(func(r arf.Report) {
		if opts.OnEmit != nil {
			opts.OnEmit(r)
		}
		pos, ok := r.(arf.PositionReport)
		if !ok {
			return
		}
		result.Emitted++
		result.Outputs = append(result.Outputs, pos.Position)
		if !pos.Position.IsFinite() {
			result.NonFinite++
		}
	})
	sampler.SetDiagnosticsCallback(func(d *arf.Diagnostics) {
		if d.Redetected {
			result.Redetections++
		}
		if opts.Diagnostics != nil {
			opts.Diagnostics(d)
		}
	})

	var lag []float64
	tick := func(time.Time) {
		if pos, ok := sampler.Update(); ok {
			lag = append(lag, pos.Position.Dist(target))
		}
	}

	interval := time.Duration(float64(time.Second) / sampler.SamplerConfig().OutputFrequency)
	trace.Replay(clock, func(_ time.Time, r testutil.TracedReport) {
		result.Reports++
		if r.Kind != "" {
			sampler.Consume(arf.AuxReport{Kind: r.Kind})
			return
		}
		target = arf.Vec2{X: r.X, Y: r.Y}
		sampler.Consume(arf.PositionReport{Position: target, InRange: r.InRange})
	}, interval, tick)

	result.Lag = testutil.TrackingError(lag)
	return result
}

// Generator builds a synthetic trace.
type Generator func() *testutil.StrokeTrace

const reportInterval = 5 * time.Millisecond

var generators = map[string]Generator{
	"line": func() *testutil.StrokeTrace {
		return synthetic("line", "constant velocity diagonal line", func(c *internal.MockClock) []testutil.Sample {
			return testutil.LineStroke(c, 400, reportInterval, 0, 0, 6, 3)
		})
	},
	"jitter": func() *testutil.StrokeTrace {
		return synthetic("jitter", "resting pen with pink sensor noise", func(c *internal.MockClock) []testutil.Sample {
			return testutil.JitterStroke(c, 400, reportInterval, 5000, 5000, 3, 1)
		})
	},
	"circle": func() *testutil.StrokeTrace {
		return synthetic("circle", "steady circle", func(c *internal.MockClock) []testutil.Sample {
			return testutil.CircleStroke(c, 400, reportInterval, 5000, 5000, 800, 0.05)
		})
	},
	"sharp-stop": func() *testutil.StrokeTrace {
		return synthetic("sharp-stop", "fast flick that stops dead", func(c *internal.MockClock) []testutil.Sample {
			return testutil.SharpStopStroke(c, 60, 100, reportInterval, 0, 0, 80)
		})
	},
	"gap": func() *testutil.StrokeTrace {
		return synthetic("gap", "line with a pen lift in the middle", func(c *internal.MockClock) []testutil.Sample {
			return testutil.GapStroke(c, 200, reportInterval, 120*time.Millisecond, 0, 0, 10)
		})
	},
	"hover-exit": func() *testutil.StrokeTrace {
		return synthetic("hover-exit", "line ending with the pen leaving range", func(c *internal.MockClock) []testutil.Sample {
			return testutil.HoverExit(c, testutil.LineStroke(c, 100, reportInterval, 0, 0, 20, 0))
		})
	},
}

func synthetic(name, description string, gen func(*internal.MockClock) []testutil.Sample) *testutil.StrokeTrace {
	return testutil.FromSamples(name, description, gen(internal.NewMockClock(time.Time{})))
}

// Synthetic returns the named synthetic trace.
func Synthetic(name string) (*testutil.StrokeTrace, error) {
	gen, ok := generators[name]
	if !ok {
		return nil, fmt.Errorf("unknown synthetic trace %q (available: %v)", name, SyntheticNames())
	}
	return gen(), nil
}

// SyntheticNames lists the synthetic trace names in sorted order.
func SyntheticNames() []string {
	names := make([]string, 0, len(generators))
	for name := range generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
