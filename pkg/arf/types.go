// Package arf implements an adaptive radial smoothing filter for pointing
// digitizers (pen tablets).
//
// Raw position reports arrive at an irregular rate. A KinematicEstimator
// derives velocity, acceleration, jerk, snap and an angle index from them, a
// set of anomaly detectors turns those into confidence signals, and a
// radius-based soft-knee curve pulls the cursor toward the pen only as far as
// the current motion warrants. A Sampler decouples the per-report
// filter step from the output rate by interpolating between filtered points.
//
// None of the types in this package are safe for concurrent use.
package arf

import "math"

// Vec2 is a 2D point or displacement in device position units.
type Vec2 struct {
	X, Y float64
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{v.X + o.X, v.Y + o.Y}
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{v.X - o.X, v.Y - o.Y}
}

// Mul scales v by s.
func (v Vec2) Mul(s float64) Vec2 {
	return Vec2{v.X * s, v.Y * s}
}

// Dot returns the dot product of v and o.
func (v Vec2) Dot(o Vec2) float64 {
	return v.X*o.X + v.Y*o.Y
}

// Mag returns the Euclidean length of v.
func (v Vec2) Mag() float64 {
	return math.Hypot(v.X, v.Y)
}

// Dist returns the Euclidean distance between v and o.
func (v Vec2) Dist(o Vec2) float64 {
	return v.Sub(o).Mag()
}

// Normalize returns the unit vector in the direction of v.
// The zero vector (or anything shorter than 1e-9) normalizes to zero.
func (v Vec2) Normalize() Vec2 {
	m := v.Mag()
	if m < 1e-9 {
		return Vec2{}
	}
	return Vec2{v.X / m, v.Y / m}
}

// Lerp interpolates from v toward o by t. t is not clamped.
func (v Vec2) Lerp(o Vec2, t float64) Vec2 {
	return Vec2{v.X + (o.X-v.X)*t, v.Y + (o.Y-v.Y)*t}
}

// IsFinite reports whether both coordinates are neither NaN nor infinite.
func (v Vec2) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Report is a single message from the digitizer. It is a closed set:
// PositionReport is the only variant that carries smoothable data, every
// other report passes through the sampler untouched.
type Report interface {
	isReport()
}

// PositionReport carries an absolute pen position.
type PositionReport struct {
	// Position is the pen tip position in device units.
	Position Vec2

	// InRange is true while the pen is within detection height of the
	// digitizer surface. Output ticks are suppressed while it is false.
	InRange bool
}

// AuxReport is any non-position message (buttons, tilt, wheel, battery).
// Kind is a free-form tag for logging; Payload is opaque.
type AuxReport struct {
	Kind    string
	Payload []byte
}

func (PositionReport) isReport() {}
func (AuxReport) isReport()      {}

// SamplerState is the lifecycle state of a Sampler.
type SamplerState int

const (
	// StateIdle means no position report has been consumed yet.
	StateIdle SamplerState = iota
	// StateTracking means at least one position has been filtered and
	// output ticks produce interpolated positions.
	StateTracking
)

// String returns a string representation of the SamplerState.
func (s SamplerState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateTracking:
		return "Tracking"
	default:
		return "Unknown"
	}
}
