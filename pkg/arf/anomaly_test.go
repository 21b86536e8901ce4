package arf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVelocityHistory_RingOrder(t *testing.T) {
	var h VelocityHistory
	for i := 1; i <= 12; i++ {
		h.Push(float64(i))
	}
	assert.Equal(t, []float64{3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, h.Values())
}

func TestVelocityHistory_SpinScore(t *testing.T) {
	var h VelocityHistory
	assert.Equal(t, 0.0, h.SpinScore(7.5, 1))

	for i := 0; i < 4; i++ {
		h.Push(100)
	}
	assert.Equal(t, 4.0, h.SpinScore(7.5, 1))

	for i := 0; i < velocityHistoryLen; i++ {
		h.Push(7.5)
	}
	assert.Equal(t, 10.0, h.SpinScore(7.5, 1))

	// Half the reference velocity scores 1/32 per slot.
	for i := 0; i < velocityHistoryLen; i++ {
		h.Push(3.75)
	}
	assert.InDelta(t, 10.0/32, h.SpinScore(7.5, 1), 1e-12)
}

func TestDetectAnomalies_SnapResetsSinceSnap(t *testing.T) {
	cfg := DefaultFilterConfig()
	a := AnomalyState{SinceSnap: 20}

	// Sharp acceleration at speed counts as a snap.
	k := KinematicState{Velocity: 4, Acceleration: 3, PrevVelocity: 1}
	c := newCycle(k, cfg)
	detectAnomalies(&a, k, &c, 0, cfg)
	assert.Equal(t, 0, a.SinceSnap)

	// Steady slow motion does not.
	k = KinematicState{Velocity: 1, PrevVelocity: 1}
	c = newCycle(k, cfg)
	detectAnomalies(&a, k, &c, 0, cfg)
	assert.Equal(t, 1, a.SinceSnap)
}

func TestDetectAnomalies_SpikeSetsDoubt(t *testing.T) {
	cfg := DefaultFilterConfig()
	var a AnomalyState

	k := KinematicState{Velocity: 3, Acceleration: 3, Jerk: 3, Snap: 3}
	c := newCycle(k, cfg)
	detectAnomalies(&a, k, &c, 0, cfg)

	assert.True(t, c.doubt)
	assert.Equal(t, 2.0, c.accelMult)
	assert.Equal(t, 3*10*cfg.VelocityDivisor, c.velocity)
	assert.Equal(t, c.velocity, c.holdVelocity2)
	assert.Equal(t, 3.0, c.holdVelocity)
}

func TestDetectAnomalies_AngleIndexSpike(t *testing.T) {
	cfg := DefaultFilterConfig()
	var a AnomalyState

	// AngleIndexConfidence 4.5 at velocity 1 puts the edge at 4.5.
	k := KinematicState{Velocity: 1, PrevVelocity: 1, AngleIndex: 5}
	c := newCycle(k, cfg)
	detectAnomalies(&a, k, &c, 0, cfg)
	assert.True(t, c.doubt)

	k.AngleIndex = 4
	c = newCycle(k, cfg)
	detectAnomalies(&a, k, &c, 0, cfg)
	assert.False(t, c.doubt)
}

func TestDetectAnomalies_SustainedVelocity(t *testing.T) {
	cfg := DefaultFilterConfig()
	var a AnomalyState

	k := KinematicState{Velocity: 8, PrevVelocity: 8}
	c := newCycle(k, cfg)
	detectAnomalies(&a, k, &c, 0, cfg)
	assert.True(t, c.sustained)
	assert.Equal(t, 2.0, c.accelMult)

	// Far from the grounded anchor the override does not apply.
	c = newCycle(k, cfg)
	detectAnomalies(&a, k, &c, cfg.OuterRadius+1, cfg)
	assert.False(t, c.sustained)
}

func TestDetectAnomalies_SpinNeedsQuietSnap(t *testing.T) {
	cfg := DefaultFilterConfig()
	var a AnomalyState
	k := KinematicState{Velocity: 8, PrevVelocity: 8}

	for i := 1; i <= spinSnapQuietCycles; i++ {
		c := newCycle(k, cfg)
		detectAnomalies(&a, k, &c, 0, cfg)
		require.False(t, c.spun, "cycle %d", i)
	}

	c := newCycle(k, cfg)
	detectAnomalies(&a, k, &c, 0, cfg)
	assert.True(t, c.spun)
	assert.Equal(t, 0.0, c.velocity)
	assert.Equal(t, -10*cfg.RawAccelThreshold, c.acceleration)
}

func TestTrackGround_ForcesEscapeBeyondOuterRadius(t *testing.T) {
	cfg := DefaultFilterConfig()
	r := RadiusState{}

	// Fast enough that the radius is at maximum.
	k := KinematicState{Velocity: 30, PrevVelocity: 30}
	c := newCycle(k, cfg)
	trackGround(&r, k, &c, Vec2{}, Vec2{100, 0}, cfg)
	assert.Equal(t, 1, r.GroundCount)
	assert.Equal(t, Vec2{}, r.GroundedPoint)
	assert.Equal(t, 100.0, r.GroundDistance)
	assert.Equal(t, 30.0, c.velocity)

	c = newCycle(k, cfg)
	trackGround(&r, k, &c, Vec2{100, 0}, Vec2{600, 0}, cfg)
	assert.Equal(t, 2, r.GroundCount)
	assert.Equal(t, 600.0, r.GroundDistance)
	assert.Equal(t, 0.0, c.velocity)
	assert.Equal(t, -10*cfg.RawAccelThreshold, c.acceleration)
}

func TestTrackGround_ReAnchor(t *testing.T) {
	cfg := DefaultFilterConfig()
	fast := KinematicState{Velocity: 30, PrevVelocity: 30}

	tests := []struct {
		name         string
		k            KinematicState
		accelMult    float64
		wantAnchor   Vec2
		wantSinceTop int
	}{
		{"multiplier pinned", fast, 2, Vec2{20, 0}, 2},
		{"multiplier below top", fast, 1.5, Vec2{}, 0},
		{"angle spike", KinematicState{Velocity: 30, PrevVelocity: 30, AngleIndex: 200}, 1.5, Vec2{20, 0}, 0},
		{"previous report slow", KinematicState{Velocity: 30, PrevVelocity: 1}, 2, Vec2{}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Already grounded at the origin for a few cycles.
			r := RadiusState{GroundCount: 3}
			for _, cursor := range []Vec2{{10, 0}, {20, 0}} {
				c := newCycle(tt.k, cfg)
				c.accelMult = tt.accelMult
				trackGround(&r, tt.k, &c, cursor, Vec2{25, 0}, cfg)
			}

			assert.Equal(t, 5, r.GroundCount)
			assert.Equal(t, tt.wantSinceTop, r.SinceAccelTop)
			assert.Equal(t, tt.wantAnchor, r.GroundedPoint)
			assert.Equal(t, Vec2{25, 0}.Dist(tt.wantAnchor), r.GroundDistance)
		})
	}
}

func TestTrackGround_SinceAccelTopResets(t *testing.T) {
	cfg := DefaultFilterConfig()
	k := KinematicState{Velocity: 30, PrevVelocity: 30}
	r := RadiusState{}

	for _, mult := range []float64{2, 2, 2} {
		c := newCycle(k, cfg)
		c.accelMult = mult
		trackGround(&r, k, &c, Vec2{}, Vec2{}, cfg)
	}
	assert.Equal(t, 3, r.SinceAccelTop)

	c := newCycle(k, cfg)
	c.accelMult = 1.98
	trackGround(&r, k, &c, Vec2{}, Vec2{}, cfg)
	assert.Equal(t, 0, r.SinceAccelTop)
	assert.Equal(t, 4, r.GroundCount)
}

func TestTrackGround_SlowMotionClearsGround(t *testing.T) {
	cfg := DefaultFilterConfig()
	r := RadiusState{GroundCount: 5, GroundDistance: 42}

	k := KinematicState{Velocity: 1, PrevVelocity: 1}
	c := newCycle(k, cfg)
	trackGround(&r, k, &c, Vec2{}, Vec2{10, 0}, cfg)

	assert.Equal(t, 0, r.GroundCount)
	assert.Equal(t, 0.0, r.GroundDistance)
	assert.Equal(t, 1.0, c.velocity)
}
