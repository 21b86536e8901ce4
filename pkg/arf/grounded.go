package arf

import "math"

// accelTopThreshold is the multiplier at or above which acceleration is
// considered pinned at its maximum.
const accelTopThreshold = 1.99

// RadiusState tracks the grounded anchor used while radii are pinned at
// their maximum size.
type RadiusState struct {
	// GroundedPoint is the cursor position captured when the radius last
	// reached maximum.
	GroundedPoint Vec2

	// GroundDistance is the distance from the current report to
	// GroundedPoint, or zero when the radius is not at maximum.
	GroundDistance float64

	// GroundCount counts consecutive cycles at maximum radius.
	GroundCount int

	// SinceAccelTop counts consecutive cycles with the multiplier pinned.
	SinceAccelTop int
}

// trackGround updates the grounded radius state for this report. When the
// report has wandered beyond the outer radius of the anchor, the radius is
// irrelevant and the cycle is forced into escape.
func trackGround(r *RadiusState, k KinematicState, c *cycle, cursor, target Vec2, cfg FilterConfig) {
	effective := c.holdVelocity2 * math.Pow(c.accelMult, cfg.AccelMultPower)
	atMax := effective >= cfg.VelocityDivisor

	if atMax {
		r.GroundCount++
	} else {
		r.GroundCount = 0
		r.GroundDistance = 0
	}

	if c.accelMult < accelTopThreshold {
		r.SinceAccelTop = 0
	} else {
		r.SinceAccelTop++
	}

	if atMax {
		rawv := cfg.RawVelocityThreshold
		fresh := c.velocity > rawv && k.PrevVelocity > rawv &&
			(spikeDetected(k, c.acceleration, c.velocity, cfg) || r.SinceAccelTop > 0)
		if r.GroundCount <= 1 || fresh {
			r.GroundedPoint = cursor
		}
		r.GroundDistance = target.Dist(r.GroundedPoint)
	}

	if r.GroundDistance > cfg.OuterRadius {
		c.forceEscape(cfg)
	}
}
