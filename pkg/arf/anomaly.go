package arf

import "math"

const (
	// velocityHistoryLen is the depth of the spin detector's velocity ring.
	velocityHistoryLen = 10

	// spinScoreThreshold is the spin score above which sustained motion is
	// treated as a spin.
	spinScoreThreshold = 8

	// spinSnapQuietCycles is how many cycles must pass without a snap before
	// spin suppression may fire.
	spinSnapQuietCycles = 30
)

// VelocityHistory is a fixed ring of the most recent raw velocities.
// The zero value is an empty ring; unfilled slots read as zero.
type VelocityHistory struct {
	data [velocityHistoryLen]float64
	pos  int
}

// Push stores v, overwriting the oldest entry.
func (h *VelocityHistory) Push(v float64) {
	h.data[h.pos] = v
	h.pos = (h.pos + 1) % velocityHistoryLen
}

// Values returns the ring contents, oldest first.
func (h VelocityHistory) Values() []float64 {
	out := make([]float64, 0, velocityHistoryLen)
	out = append(out, h.data[h.pos:]...)
	return append(out, h.data[:h.pos]...)
}

// SpinScore sums clamp((v/(threshold*confidence))^5, 0, 1) over the ring.
// A ring full of velocities above threshold*confidence scores 10.
func (h VelocityHistory) SpinScore(threshold, confidence float64) float64 {
	ref := threshold * confidence
	var score float64
	for _, v := range h.data {
		score += clamp(math.Pow(v/ref, 5), 0, 1)
	}
	return score
}

// AnomalyState is the cross-cycle state of the spin and snap detectors.
type AnomalyState struct {
	Velocities VelocityHistory

	// SinceSnap counts cycles since the last snap-like motion.
	SinceSnap int
}

// cycle is the per-report working set. The anomaly detectors override these
// values to steer radius sizing and escape; they never reach KinematicState.
type cycle struct {
	velocity     float64
	acceleration float64
	accelMult    float64

	// holdVelocity is the raw velocity of this report.
	holdVelocity float64
	// holdVelocity2 is the velocity after the spike override.
	holdVelocity2 float64

	// doubt is set when a spike already inflated the multiplier, which
	// suppresses the jerk and snap escapes.
	doubt bool

	spinScore float64
	spun      bool
	sustained bool
}

func newCycle(k KinematicState, cfg FilterConfig) cycle {
	return cycle{
		velocity:      k.Velocity,
		acceleration:  k.Acceleration,
		accelMult:     AccelMultiplier(k.Acceleration, k.PrevVelocity, cfg),
		holdVelocity:  k.Velocity,
		holdVelocity2: k.Velocity,
	}
}

// spikeDetected reports a simultaneous acceleration, jerk and snap spike, or
// an angle-index spike relative to velocity v.
func spikeDetected(k KinematicState, accel, v float64, cfg FilterConfig) bool {
	u := cfg.RawVelocityThreshold / 6
	if accel > cfg.SnapAccelThreshold*u && k.Jerk > cfg.SnapJerkThreshold*u && k.Snap > cfg.SnapSnapThreshold*u {
		return true
	}
	return k.AngleIndex > math.Max(cfg.AngleIndexFloor*u, cfg.AngleIndexConfidence*v)
}

// forceEscape is the extreme override used when smoothing should get out of
// the way: zero velocity collapses the radii and the large deceleration
// drives the escape blend.
func (c *cycle) forceEscape(cfg FilterConfig) {
	c.velocity = 0
	c.acceleration = -10 * cfg.RawAccelThreshold
}

// detectAnomalies runs the snap, spike, sustained-velocity and spin
// detectors in order. groundDistance is the grounded distance carried over
// from the previous cycle.
func detectAnomalies(a *AnomalyState, k KinematicState, c *cycle, groundDistance float64, cfg FilterConfig) {
	rawv := cfg.RawVelocityThreshold

	// 1. Snap detection resets the spin guard.
	a.SinceSnap++
	c.doubt = false
	if (math.Abs(k.AngleIndex) > 2*c.velocity || c.acceleration/c.velocity > cfg.SnapAccelRatio) &&
		c.velocity/rawv > cfg.SnapVelocityRatio {
		a.SinceSnap = 0
	}

	// 2. Spin score over the most recent velocities.
	a.Velocities.Push(k.Velocity)
	c.spinScore = a.Velocities.SpinScore(rawv, cfg.SpinCheckConfidence)

	// 3. Spike override inflates velocity so radii collapse to zero.
	if spikeDetected(k, c.acceleration, c.velocity, cfg) {
		c.velocity *= 10 * cfg.VelocityDivisor
		c.accelMult = 2
		c.doubt = true
	}
	c.holdVelocity2 = c.velocity

	// 4. Sustained high velocity while the cursor is near its anchor.
	if groundDistance < cfg.OuterRadius && c.velocity > rawv && k.PrevVelocity > rawv {
		c.velocity *= 10 * cfg.VelocityDivisor
		c.accelMult = 2
		c.sustained = true
	}

	// 5. Spin suppression.
	if c.spinScore > spinScoreThreshold && a.SinceSnap > spinSnapQuietCycles {
		c.forceEscape(cfg)
		c.spun = true
	}
}
