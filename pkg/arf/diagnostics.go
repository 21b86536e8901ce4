package arf

// Diagnostics describes one filter cycle. It replaces free-form console
// output with values tests and telemetry can read directly.
type Diagnostics struct {
	// Kinematics are the raw derivatives of this report.
	Kinematics KinematicState

	// Velocity, Acceleration and AccelMult are the working values after
	// anomaly overrides.
	Velocity     float64
	Acceleration float64
	AccelMult    float64

	// RawAccelMult is the multiplier before any override.
	RawAccelMult float64

	InnerAdjusted        float64
	OuterAdjusted        float64
	SmoothingCoefficient float64

	// Move is the radial distance the cursor advanced toward the report.
	Move float64

	// EscapeScale is the blend toward the raw report in [0, 1].
	EscapeScale float64

	SpinScore      float64
	SinceSnap      int
	GroundDistance float64

	Doubt     bool
	Spin      bool
	Sustained bool

	// Redetected is set when the report gap reached RedetectThreshold.
	Redetected bool
	// Recovered is set when a non-finite cursor was replaced by the report.
	Recovered bool

	Target Vec2
	Cursor Vec2
}

// DiagnosticsFunc receives per-cycle diagnostics. It runs synchronously on
// the consume path and must not retain the pointer.
type DiagnosticsFunc func(d *Diagnostics)
