package arf

import "time"

// CursorState is the filter's running smoothed position.
type CursorState struct {
	// Cursor is the current filtered position.
	Cursor Vec2
	// HoldCursor and LastCursor are the cursor before the latest step.
	HoldCursor Vec2
	LastCursor Vec2
}

// FilterState is the complete state of one radial filter activation.
// It is a plain value: Step never mutates its input, so a state can be
// snapshotted, compared or replayed freely.
type FilterState struct {
	Estimator KinematicEstimator
	Anomaly   AnomalyState
	Radius    RadiusState
	Cursor    CursorState

	// Primed is false until the first report has been seen.
	Primed bool
}

// Step runs one consume cycle of the radial filter and returns the next
// state, the filtered cursor and the cycle's diagnostics.
//
// cfg must already be normalized (see FilterConfig.Normalize). dt is the
// time since the previous report; a gap of RedetectThreshold or more snaps
// the cursor to target.
//
// The cycle:
//  1. Estimate kinematics from the new report
//  2. Run the anomaly detectors and grounded radius tracker (advanced mode)
//  3. Size the radial knee from working velocity and multiplier
//  4. Advance the cursor toward target by the knee's distance
//  5. Blend toward target by the escape scale
//  6. Replace a non-finite or redetected cursor with target
func Step(s FilterState, cfg FilterConfig, target Vec2, dt time.Duration) (FilterState, Vec2, Diagnostics) {
	if !s.Primed {
		return prime(s, target)
	}

	// 1. Kinematics
	k := s.Estimator.Estimate(target, cfg)
	c := newCycle(k, cfg)
	rawMult := c.accelMult

	// 2. Anomaly overrides
	if cfg.Advanced {
		detectAnomalies(&s.Anomaly, k, &c, s.Radius.GroundDistance, cfg)
		if cfg.GroundedRadius {
			trackGround(&s.Radius, k, &c, s.Cursor.Cursor, target, cfg)
		}
	}

	hold := s.Cursor.Cursor

	// 3. Radial curve
	knee := NewRadialKnee(c.velocity, c.accelMult, cfg)
	direction := target.Sub(hold)
	move := knee.SampleCurve(direction.Mag())

	// 4-5. Move, then escape toward the raw report
	escape := EscapeScale(EscapeInputs{
		Acceleration:   c.acceleration,
		Jerk:           k.Jerk,
		Snap:           k.Snap,
		AngleIndex:     k.AngleIndex,
		PrevAngleIndex: k.PrevAngleIndex,
		HoldVelocity:   c.holdVelocity,
		Doubt:          c.doubt,
	}, cfg)

	cursor := hold.Add(direction.Normalize().Mul(move))
	cursor = cursor.Lerp(target, escape)

	// 6. Recovery
	d := Diagnostics{
		Kinematics:           k,
		Velocity:             c.velocity,
		Acceleration:         c.acceleration,
		AccelMult:            c.accelMult,
		RawAccelMult:         rawMult,
		InnerAdjusted:        knee.InnerAdjusted(),
		OuterAdjusted:        knee.OuterAdjusted(),
		SmoothingCoefficient: knee.SmoothingCoefficient(),
		Move:                 move,
		EscapeScale:          escape,
		SpinScore:            c.spinScore,
		SinceSnap:            s.Anomaly.SinceSnap,
		GroundDistance:       s.Radius.GroundDistance,
		Doubt:                c.doubt,
		Spin:                 c.spun,
		Sustained:            c.sustained,
		Target:               target,
	}
	if !cursor.IsFinite() {
		cursor = target
		d.Recovered = true
	}
	if dt >= cfg.RedetectThreshold {
		cursor = target
		d.Redetected = true
	}
	d.Cursor = cursor

	s.Cursor = CursorState{Cursor: cursor, HoldCursor: hold, LastCursor: hold}
	return s, cursor, d
}

// prime seeds a fresh state from its first report: the history is filled
// with target so the stroke starts at rest, and the cursor starts on it.
func prime(s FilterState, target Vec2) (FilterState, Vec2, Diagnostics) {
	s.Estimator = KinematicEstimator{
		History: PositionHistory{Current: target, Prev: target, Prev2: target, Prev3: target},
	}
	s.Cursor = CursorState{Cursor: target, HoldCursor: target, LastCursor: target}
	s.Primed = true
	return s, target, Diagnostics{
		RawAccelMult: 1,
		AccelMult:    1,
		Redetected:   true,
		Target:       target,
		Cursor:       target,
	}
}

// RadialFilter owns a FilterState and applies Step to each report.
//
// Usage:
//
//	f := arf.NewRadialFilter(arf.DefaultFilterConfig())
//	cursor := f.Filter(report.Position, sinceLastReport)
type RadialFilter struct {
	config        FilterConfig
	state         FilterState
	onDiagnostics DiagnosticsFunc
}

// NewRadialFilter creates a radial filter. The configuration is normalized.
func NewRadialFilter(config FilterConfig) *RadialFilter {
	return &RadialFilter{config: config.Normalize()}
}

// Filter consumes one report and returns the filtered cursor.
func (f *RadialFilter) Filter(target Vec2, dt time.Duration) Vec2 {
	next, cursor, d := Step(f.state, f.config, target, dt)
	f.state = next
	if f.onDiagnostics != nil {
		f.onDiagnostics(&d)
	}
	return cursor
}

// State returns a copy of the current filter state.
func (f *RadialFilter) State() FilterState {
	return f.state
}

// Kinematics returns the raw kinematics of the most recent report.
func (f *RadialFilter) Kinematics() KinematicState {
	return f.state.Estimator.State
}

// Config returns the normalized configuration in use.
func (f *RadialFilter) Config() FilterConfig {
	return f.config
}

// SetConfig replaces the configuration. It takes effect on the next report.
func (f *RadialFilter) SetConfig(config FilterConfig) {
	f.config = config.Normalize()
}

// SetDiagnosticsCallback registers a per-cycle diagnostics hook.
// Pass nil to disable.
func (f *RadialFilter) SetDiagnosticsCallback(fn DiagnosticsFunc) {
	f.onDiagnostics = fn
}

// Reset discards all state. The next report primes the filter again.
func (f *RadialFilter) Reset() {
	f.state = FilterState{}
}
