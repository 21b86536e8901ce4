package arf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccelMultiplier_ZeroAccelIsNeutral(t *testing.T) {
	cfg := DefaultFilterConfig()
	assert.Equal(t, 1.0, AccelMultiplier(0, 0, cfg))
	assert.Equal(t, 1.0, AccelMultiplier(0, 50, cfg))
}

func TestAccelMultiplier_Saturates(t *testing.T) {
	cfg := DefaultFilterConfig()
	assert.Equal(t, 0.0, AccelMultiplier(-100, 10, cfg), "hard deceleration")
	assert.Equal(t, 2.0, AccelMultiplier(1e6, 10, cfg), "hard acceleration")
}

func TestAccelMultiplier_CompressionFlattensFastStrokes(t *testing.T) {
	cfg := DefaultFilterConfig()
	accel := 0.5

	slow := AccelMultiplier(accel, 0, cfg)
	fast := AccelMultiplier(accel, 40, cfg)
	assert.Greater(t, slow, fast)
	assert.Greater(t, fast, 1.0)

	cfg.CompressAccelMult = false
	assert.Equal(t, AccelMultiplier(accel, 0, cfg), AccelMultiplier(accel, 40, cfg))
}

func TestAccelMultiplier_BasicModeUsesVelocityDivisor(t *testing.T) {
	cfg := DefaultFilterConfig()
	cfg.Advanced = false
	cfg.CompressAccelMult = false
	cfg.VelocityDivisor = 6
	cfg = cfg.Normalize()

	// K = 1, so accel -0.5 sits halfway down the falling ramp.
	assert.InDelta(t, 0.5, AccelMultiplier(-0.5, 0, cfg), 1e-12)
	assert.InDelta(t, 1.5, AccelMultiplier(0.5, 0, cfg), 1e-12)
}

func TestAccelMultiplier_Bounded(t *testing.T) {
	cfg := DefaultFilterConfig()
	for _, accel := range []float64{-1e9, -50, -1, -0.01, 0, 0.01, 1, 50, 1e9} {
		for _, pv := range []float64{0, 0.5, 7.5, 1e3, 1e9} {
			m := AccelMultiplier(accel, pv, cfg)
			assert.GreaterOrEqual(t, m, 0.0)
			assert.LessOrEqual(t, m, 2.0)
		}
	}
}
