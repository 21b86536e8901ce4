package arf

import "time"

// EMAWeights are the interpolation blend weights used by the sampler.
// A weight of 1 applies the interpolated point directly, lower values add
// an exponential moving average on top of the interpolation.
type EMAWeights struct {
	// Normal is used when output acceleration is near zero.
	Normal float64
	// Decel is approached under sharp deceleration.
	Decel float64
	// Accel is approached under sharp acceleration.
	Accel float64
}

// FilterConfig holds all tunable parameters of the adaptive radial filter.
//
// Values outside the documented ranges are never rejected; Normalize clamps
// them. A FilterConfig is treated as immutable for the duration of one
// consume/update cycle.
type FilterConfig struct {
	// Type selects the per-report smoothing strategy.
	Type FilterType

	// XDivisor scales horizontal distance before magnitudes are taken,
	// compensating for digitizers with non-square resolution.
	// Range: [0.01, 100]. Default: 1
	XDivisor float64

	// ReportDivisor normalizes per-report distance into velocity units.
	// Range: [0.01, 1e6]. Default: 7.5
	ReportDivisor float64

	// OuterRadius is the distance at which the cursor stops being smoothed
	// and trails the pen rigidly. Range: [0, 1e6]. Default: 500
	OuterRadius float64

	// InnerRadius is the dead zone. Inside it the cursor does not move.
	// Range: [0, 1e6]. Default: 500
	InnerRadius float64

	// SmoothingCoefficient controls smoothing between inner and outer radius.
	// Range: [0.0001, 1]. Default: 0.0001
	SmoothingCoefficient float64

	// SoftKneeScale softens the transition at the outer radius. Values at
	// or below 1e-4 give a hard clamp. Range: [0, 100]. Default: 1
	SoftKneeScale float64

	// SmoothingLeak lets a fraction of motion keep being smoothed past the
	// outer radius. Range: [0.01, 1]. Default: 0.01
	SmoothingLeak float64

	// VelocityDivisor is the velocity at which radii reach full size.
	// Range: [0.01, 1e6]. Default: 20
	VelocityDivisor float64

	// MinimumRadiusMultiplier floors the radius scale factor.
	// Range: [0, 1]. Default: 0
	MinimumRadiusMultiplier float64

	// RadialMultPower is the exponent applied to velocity/VelocityDivisor.
	// Range: [1, 1e6]. Default: 25
	RadialMultPower float64

	// MinimumSmoothingDivisor divides smoothing at zero velocity.
	// Range: [2, 1e6]. Default: 25
	MinimumSmoothingDivisor float64

	// RawAccelThreshold is the (scaled) deceleration below which the cursor
	// is blended toward the raw report. Range: [-1e6, 1000]. Default: -1.5
	RawAccelThreshold float64

	// AccelMultPower is the exponent applied to the acceleration multiplier
	// when sizing radii. Range: [1, 100]. Default: 9
	AccelMultPower float64

	// Advanced enables the anomaly detectors and angle-index escape.
	Advanced bool

	// RawVelocityThreshold is the velocity regarded as "fast" by the anomaly
	// detectors. Range: [0.01, 1e6]. Default: 7.5
	RawVelocityThreshold float64

	// AngleIndexConfidence scales velocity when testing angle-index spikes.
	// Range: [0.1, 1e6]. Default: 4.5
	AngleIndexConfidence float64

	// AngleIndexDecelConfidence scales the angle-index rise that triggers an
	// escape. Range: [0.1, 1e6]. Default: 9
	AngleIndexDecelConfidence float64

	// AccelMultVelocityOverride sets the width of the acceleration
	// multiplier ramps. Ignored (replaced by VelocityDivisor) unless Advanced.
	// Range: [0.1, 1e6]. Default: 10
	AccelMultVelocityOverride float64

	// SpinCheckConfidence scales the spin detector threshold.
	// Range: [0.1, 1e4]. Default: 1
	SpinCheckConfidence float64

	// GroundedRadius enables the grounded anchor tracker (Advanced only).
	GroundedRadius bool

	// CompressAccelMult log-compresses the rising multiplier ramp by the
	// previous velocity.
	CompressAccelMult bool

	// AccelMultCompression is the compression constant for the rising ramp.
	// Range: [0.01, 1e6]. Default: 2
	AccelMultCompression float64

	// Escape and anomaly tuning knobs. These have no documented range and
	// are passed through unchanged.
	DecelLerpMargin     float64 // default 1
	AngleLerpMargin     float64 // default 1
	SnapAccelThreshold  float64 // default 1
	SnapJerkThreshold   float64 // default 1
	SnapSnapThreshold   float64 // default 1
	AngleIndexFloor     float64 // default 1
	JerkEscapeThreshold float64 // default -2
	JerkEscapeMargin    float64 // default 1
	SnapEscapeThreshold float64 // default -4
	SnapEscapeMargin    float64 // default 1
	SnapAccelRatio      float64 // default 0.35
	SnapVelocityRatio   float64 // default 0.25

	// Weights are the sampler's EMA blend weights. Range: [0, 1] each.
	Weights EMAWeights

	// DecelWeightFloor is the normalized deceleration at which Weights.Decel
	// is fully applied. Default: -1
	DecelWeightFloor float64

	// AccelWeightCompression flattens the acceleration weight ramp at high
	// velocity. Range: [0.01, 1e6]. Default: 5
	AccelWeightCompression float64

	// RedetectThreshold is the report gap treated as the pen leaving and
	// re-entering detection. The cursor snaps to the report.
	// Default: 50ms
	RedetectThreshold time.Duration

	// MMScale converts device units to millimeters (per axis). Display only.
	MMScale Vec2
}

// DefaultFilterConfig returns the default tuning.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		Type:                      FilterRadial,
		XDivisor:                  1,
		ReportDivisor:             7.5,
		OuterRadius:               500,
		InnerRadius:               500,
		SmoothingCoefficient:      0.0001,
		SoftKneeScale:             1,
		SmoothingLeak:             0.01,
		VelocityDivisor:           20,
		MinimumRadiusMultiplier:   0,
		RadialMultPower:           25,
		MinimumSmoothingDivisor:   25,
		RawAccelThreshold:         -1.5,
		AccelMultPower:            9,
		Advanced:                  true,
		RawVelocityThreshold:      7.5,
		AngleIndexConfidence:      4.5,
		AngleIndexDecelConfidence: 9,
		AccelMultVelocityOverride: 10,
		SpinCheckConfidence:       1,
		GroundedRadius:            true,
		CompressAccelMult:         true,
		AccelMultCompression:      2,
		DecelLerpMargin:           1,
		AngleLerpMargin:           1,
		SnapAccelThreshold:        1,
		SnapJerkThreshold:         1,
		SnapSnapThreshold:         1,
		AngleIndexFloor:           1,
		JerkEscapeThreshold:       -2,
		JerkEscapeMargin:          1,
		SnapEscapeThreshold:       -4,
		SnapEscapeMargin:          1,
		SnapAccelRatio:            0.35,
		SnapVelocityRatio:         0.25,
		Weights:                   EMAWeights{Normal: 1, Decel: 1, Accel: 1},
		DecelWeightFloor:          -1,
		AccelWeightCompression:    5,
		RedetectThreshold:         50 * time.Millisecond,
		MMScale:                   Vec2{1, 1},
	}
}

// Normalize returns a copy of c with every ranged field clamped into its
// documented range. When Advanced is off, AccelMultVelocityOverride is
// replaced by VelocityDivisor.
func (c FilterConfig) Normalize() FilterConfig {
	c.XDivisor = clamp(c.XDivisor, 0.01, 100)
	c.ReportDivisor = clamp(c.ReportDivisor, 0.01, 1e6)
	c.OuterRadius = clamp(c.OuterRadius, 0, 1e6)
	c.InnerRadius = clamp(c.InnerRadius, 0, 1e6)
	c.SmoothingCoefficient = clamp(c.SmoothingCoefficient, 0.0001, 1)
	c.SoftKneeScale = clamp(c.SoftKneeScale, 0, 100)
	c.SmoothingLeak = clamp(c.SmoothingLeak, 0.01, 1)
	c.VelocityDivisor = clamp(c.VelocityDivisor, 0.01, 1e6)
	c.MinimumRadiusMultiplier = clamp(c.MinimumRadiusMultiplier, 0, 1)
	c.RadialMultPower = clamp(c.RadialMultPower, 1, 1e6)
	c.MinimumSmoothingDivisor = clamp(c.MinimumSmoothingDivisor, 2, 1e6)
	c.RawAccelThreshold = clamp(c.RawAccelThreshold, -1e6, 1000)
	c.AccelMultPower = clamp(c.AccelMultPower, 1, 100)
	c.RawVelocityThreshold = clamp(c.RawVelocityThreshold, 0.01, 1e6)
	c.AngleIndexConfidence = clamp(c.AngleIndexConfidence, 0.1, 1e6)
	c.AngleIndexDecelConfidence = clamp(c.AngleIndexDecelConfidence, 0.1, 1e6)
	c.AccelMultVelocityOverride = clamp(c.AccelMultVelocityOverride, 0.1, 1e6)
	if !c.Advanced {
		c.AccelMultVelocityOverride = c.VelocityDivisor
	}
	c.SpinCheckConfidence = clamp(c.SpinCheckConfidence, 0.1, 1e4)
	c.AccelMultCompression = clamp(c.AccelMultCompression, 0.01, 1e6)
	c.Weights.Normal = clamp(c.Weights.Normal, 0, 1)
	c.Weights.Decel = clamp(c.Weights.Decel, 0, 1)
	c.Weights.Accel = clamp(c.Weights.Accel, 0, 1)
	c.AccelWeightCompression = clamp(c.AccelWeightCompression, 0.01, 1e6)
	if c.RedetectThreshold <= 0 {
		c.RedetectThreshold = 50 * time.Millisecond
	}
	if c.MMScale.X <= 0 || !isFinite(c.MMScale.X) {
		c.MMScale.X = 1
	}
	if c.MMScale.Y <= 0 || !isFinite(c.MMScale.Y) {
		c.MMScale.Y = 1
	}
	if !c.Type.valid() {
		c.Type = FilterRadial
	}
	return c
}

// SamplerConfig configures the dual-rate sampler.
type SamplerConfig struct {
	// OutputFrequency is the output tick rate in Hz.
	// Default: 1000
	OutputFrequency float64

	// InitialReportInterval seeds the report interval average.
	// Default: 5ms
	InitialReportInterval time.Duration

	// StaleGapThreshold is the largest report gap folded into the interval
	// average. Longer gaps leave the average untouched.
	// Default: 150ms
	StaleGapThreshold time.Duration

	// ProximityTimeout bounds how long after the last report the pen is
	// still considered in range.
	// Default: 100ms
	ProximityTimeout time.Duration
}

// DefaultSamplerConfig returns the default sampler configuration.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		OutputFrequency:       1000,
		InitialReportInterval: 5 * time.Millisecond,
		StaleGapThreshold:     150 * time.Millisecond,
		ProximityTimeout:      100 * time.Millisecond,
	}
}

// Normalize returns a copy of c with invalid fields replaced by defaults.
func (c SamplerConfig) Normalize() SamplerConfig {
	d := DefaultSamplerConfig()
	if c.OutputFrequency < 1 || !isFinite(c.OutputFrequency) {
		c.OutputFrequency = d.OutputFrequency
	}
	if c.InitialReportInterval <= 0 {
		c.InitialReportInterval = d.InitialReportInterval
	}
	if c.StaleGapThreshold <= 0 {
		c.StaleGapThreshold = d.StaleGapThreshold
	}
	if c.ProximityTimeout <= 0 {
		c.ProximityTimeout = d.ProximityTimeout
	}
	return c
}
