package arf

import "math"

// PositionHistory is the four most recent raw report positions, newest first.
type PositionHistory struct {
	Current, Prev, Prev2, Prev3 Vec2
}

// push shifts the ring by one and stores p as Current.
func (h *PositionHistory) push(p Vec2) {
	h.Prev3 = h.Prev2
	h.Prev2 = h.Prev
	h.Prev = h.Current
	h.Current = p
}

// Diffs returns the three consecutive displacement vectors, newest first.
func (h PositionHistory) Diffs() (d1, d2, d3 Vec2) {
	return h.Current.Sub(h.Prev), h.Prev.Sub(h.Prev2), h.Prev2.Sub(h.Prev3)
}

// KinematicState holds the raw motion derivatives of the report stream.
//
// All quantities are discrete differences of scaled displacement magnitude,
// in "report divisor" units per report. They are never modified by the
// anomaly detectors; per-cycle overrides live in a separate working set.
type KinematicState struct {
	Velocity     float64
	Acceleration float64
	Jerk         float64
	Snap         float64

	// AngleIndex is the scaled magnitude of 2*d1 - d2 - d3, a curvature
	// proxy that rises when the stroke changes direction abruptly.
	AngleIndex float64

	PrevVelocity     float64
	PrevAcceleration float64
	PrevJerk         float64
	PrevAngleIndex   float64
}

// KinematicEstimator derives a KinematicState from successive raw reports.
// The zero value is ready to use and starts from a history of origin points.
type KinematicEstimator struct {
	History PositionHistory
	State   KinematicState
}

// Estimate pushes pos into the history and returns the updated kinematics.
//
// Every "previous" slot is shifted before the corresponding new value is
// computed, so jerk and snap always difference against the previous cycle.
func (e *KinematicEstimator) Estimate(pos Vec2, cfg FilterConfig) KinematicState {
	e.History.push(pos)
	d1, d2, d3 := e.History.Diffs()

	s := &e.State
	s.PrevVelocity = s.Velocity
	s.Velocity = scaledMagnitude(d1, cfg)

	s.PrevAcceleration = s.Acceleration
	s.Acceleration = s.Velocity - scaledMagnitude(d2, cfg)

	s.PrevJerk = s.Jerk
	s.Jerk = s.Acceleration - s.PrevAcceleration

	s.Snap = s.Jerk - s.PrevJerk

	s.PrevAngleIndex = s.AngleIndex
	s.AngleIndex = scaledMagnitude(d1.Mul(2).Sub(d2).Sub(d3), cfg)

	return *s
}

// scaledMagnitude is sqrt((d.X/XDivisor)^2 + d.Y^2) / ReportDivisor.
func scaledMagnitude(d Vec2, cfg FilterConfig) float64 {
	return math.Hypot(d.X/cfg.XDivisor, d.Y) / cfg.ReportDivisor
}
