package arf

import "math"

// EscapeInputs are the per-cycle signals the escape blend reads.
type EscapeInputs struct {
	// Acceleration is the working acceleration after anomaly overrides.
	Acceleration float64
	Jerk         float64
	Snap         float64

	AngleIndex     float64
	PrevAngleIndex float64

	// HoldVelocity is the raw velocity of the report.
	HoldVelocity float64

	// Doubt suppresses the jerk and snap ramps.
	Doubt bool
}

// EscapeScale returns the blend factor in [0, 1] that pulls the radial
// cursor toward the raw report. The largest of the triggered ramps wins:
//   - scaled deceleration below RawAccelThreshold
//   - angle-index rise beyond HoldVelocity*AngleIndexDecelConfidence
//     (advanced mode only)
//   - jerk or snap below their escape thresholds (unless in doubt)
func EscapeScale(in EscapeInputs, cfg FilterConfig) float64 {
	var scale float64

	decel := in.Acceleration * cfg.VelocityDivisor / 6
	if decel < cfg.RawAccelThreshold {
		scale = Smootherstep(decel, cfg.RawAccelThreshold, cfg.RawAccelThreshold-cfg.DecelLerpMargin*cfg.VelocityDivisor/6)
	}

	if cfg.Advanced {
		rise := in.AngleIndex - in.PrevAngleIndex
		edge := in.HoldVelocity * cfg.AngleIndexDecelConfidence
		if rise > edge {
			scale = math.Max(scale, Smootherstep(rise, edge, edge+cfg.AngleLerpMargin*cfg.RawVelocityThreshold/6))
		}
	}

	if !in.Doubt {
		if in.Jerk < cfg.JerkEscapeThreshold {
			scale = math.Max(scale, Smootherstep(in.Jerk, cfg.JerkEscapeThreshold, cfg.JerkEscapeThreshold-cfg.JerkEscapeMargin))
		}
		if in.Snap < cfg.SnapEscapeThreshold {
			scale = math.Max(scale, Smootherstep(in.Snap, cfg.SnapEscapeThreshold, cfg.SnapEscapeThreshold-cfg.SnapEscapeMargin))
		}
	}

	return clamp(scale, 0, 1)
}
