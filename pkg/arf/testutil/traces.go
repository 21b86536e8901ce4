// Package testutil provides testing utilities for the arf package.
// It includes synthetic stroke generators for exercising the filter under
// typical pen motion.
//
// Note: This package does not import arf so that arf's own tests can use
// it without an import cycle. Convert Sample to arf.PositionReport in tests.
package testutil

import (
	"math"
	"math/rand"
	"time"

	"github.com/thesyncim/arf/pkg/arf/internal"
)

// Sample is one digitizer report at a point in time.
type Sample struct {
	At      time.Time
	X, Y    float64
	InRange bool
}

// LineStroke generates reports along a straight line at constant velocity.
//
// Parameters:
//   - clock: MockClock for deterministic time control
//   - count: Number of reports to generate
//   - interval: Time between reports
//   - x0, y0: Starting position
//   - dx, dy: Displacement per report
//
// The clock is advanced by interval after each report.
func LineStroke(clock *internal.MockClock, count int, interval time.Duration, x0, y0, dx, dy float64) []Sample {
	samples := make([]Sample, count)
	for i := 0; i < count; i++ {
		samples[i] = Sample{
			At:      clock.Now(),
			X:       x0 + dx*float64(i),
			Y:       y0 + dy*float64(i),
			InRange: true,
		}
		clock.Advance(interval)
	}
	return samples
}

// JitterStroke generates reports from a resting pen with sensor noise.
// Noise is pink (1/f) so it wanders slowly like real hand tremor instead of
// flickering independently on every report.
//
// Parameters:
//   - clock: MockClock for deterministic time control
//   - count: Number of reports to generate
//   - interval: Time between reports
//   - x, y: Resting position
//   - amplitude: Peak noise amplitude in position units
//   - seed: Random seed for reproducible traces
func JitterStroke(clock *internal.MockClock, count int, interval time.Duration, x, y, amplitude float64, seed int64) []Sample {
	rng := rand.New(rand.NewSource(seed))
	nx := newPinkNoise(rng)
	ny := newPinkNoise(rng)

	samples := make([]Sample, count)
	for i := 0; i < count; i++ {
		samples[i] = Sample{
			At:      clock.Now(),
			X:       x + amplitude*nx.next(),
			Y:       y + amplitude*ny.next(),
			InRange: true,
		}
		clock.Advance(interval)
	}
	return samples
}

// CircleStroke generates reports around a circle at constant angular speed.
//
// Parameters:
//   - clock: MockClock for deterministic time control
//   - count: Number of reports to generate
//   - interval: Time between reports
//   - cx, cy: Circle center
//   - radius: Circle radius
//   - radiansPerReport: Angular step per report
func CircleStroke(clock *internal.MockClock, count int, interval time.Duration, cx, cy, radius, radiansPerReport float64) []Sample {
	samples := make([]Sample, count)
	for i := 0; i < count; i++ {
		theta := radiansPerReport * float64(i)
		samples[i] = Sample{
			At:      clock.Now(),
			X:       cx + radius*math.Cos(theta),
			Y:       cy + radius*math.Sin(theta),
			InRange: true,
		}
		clock.Advance(interval)
	}
	return samples
}

// SharpStopStroke generates a constant-velocity line that stops dead.
// The first moving reports travel dx per report along X; the following
// resting reports repeat the final position.
func SharpStopStroke(clock *internal.MockClock, moving, resting int, interval time.Duration, x0, y0, dx float64) []Sample {
	samples := LineStroke(clock, moving, interval, x0, y0, dx, 0)
	last := samples[len(samples)-1]
	for i := 0; i < resting; i++ {
		samples = append(samples, Sample{At: clock.Now(), X: last.X, Y: last.Y, InRange: true})
		clock.Advance(interval)
	}
	return samples
}

// GapStroke generates a line with a pause in the middle of it.
// Useful for testing redetection: the report after the gap arrives gap
// later than the one before it, one displacement step further along.
func GapStroke(clock *internal.MockClock, count int, interval, gap time.Duration, x0, y0, dx float64) []Sample {
	half := count / 2
	samples := LineStroke(clock, half, interval, x0, y0, dx, 0)
	clock.Advance(gap - interval)
	rest := LineStroke(clock, count-half, interval, x0+dx*float64(half), y0, dx, 0)
	return append(samples, rest...)
}

// HoverExit appends a report with InRange unset at the last position, as
// digitizers send when the pen lifts out of detection height.
func HoverExit(clock *internal.MockClock, samples []Sample) []Sample {
	if len(samples) == 0 {
		return samples
	}
	last := samples[len(samples)-1]
	return append(samples, Sample{At: clock.Now(), X: last.X, Y: last.Y})
}

// pinkNoise is a Voss-McCartney pink noise generator in [-1, 1].
type pinkNoise struct {
	rng     *rand.Rand
	rows    [8]float64
	counter uint32
}

func newPinkNoise(rng *rand.Rand) *pinkNoise {
	p := &pinkNoise{rng: rng}
	for i := range p.rows {
		p.rows[i] = rng.Float64()*2 - 1
	}
	return p
}

func (p *pinkNoise) next() float64 {
	p.counter++
	// Row k updates every 2^k samples.
	for k := range p.rows {
		if p.counter&(1<<k) != 0 {
			p.rows[k] = p.rng.Float64()*2 - 1
			break
		}
	}
	var sum float64
	for _, r := range p.rows {
		sum += r
	}
	return sum / float64(len(p.rows))
}
