package arf

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reportInterval = 5 * time.Millisecond

// deadZoneConfig keeps the full 500 unit radius for any motion above rest.
func deadZoneConfig() FilterConfig {
	cfg := DefaultFilterConfig()
	cfg.Advanced = false
	cfg.VelocityDivisor = 0.01
	return cfg
}

func TestRadialFilter_FirstReportPrimes(t *testing.T) {
	f := NewRadialFilter(DefaultFilterConfig())

	var diag Diagnostics
	f.SetDiagnosticsCallback(func(d *Diagnostics) { diag = *d })

	got := f.Filter(Vec2{12, 34}, 0)
	assert.Equal(t, Vec2{12, 34}, got)
	assert.True(t, f.State().Primed)
	assert.True(t, diag.Redetected)
	assert.Equal(t, KinematicState{}, f.Kinematics())
}

func TestRadialFilter_DeadZoneHoldsCursor(t *testing.T) {
	f := NewRadialFilter(deadZoneConfig())
	origin := Vec2{100, 100}
	require.Equal(t, origin, f.Filter(origin, reportInterval))

	for i := 0; i < 100; i++ {
		target := origin
		if i%2 == 0 {
			target = Vec2{103, 100}
		}
		got := f.Filter(target, reportInterval)
		require.Equal(t, origin, got, "report %d", i)
	}
}

func TestRadialFilter_RedetectSnapsToTarget(t *testing.T) {
	f := NewRadialFilter(deadZoneConfig())
	f.Filter(Vec2{0, 0}, reportInterval)
	f.Filter(Vec2{3, 0}, reportInterval)

	var diag Diagnostics
	f.SetDiagnosticsCallback(func(d *Diagnostics) { diag = *d })

	// Still inside the dead zone, but the gap forces a snap.
	got := f.Filter(Vec2{6, 0}, 50*time.Millisecond)
	assert.Equal(t, Vec2{6, 0}, got)
	assert.True(t, diag.Redetected)

	got = f.Filter(Vec2{9, 0}, 49*time.Millisecond)
	assert.Equal(t, Vec2{6, 0}, got)
	assert.False(t, diag.Redetected)
}

func TestRadialFilter_FiniteUnderHostileInput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	f := NewRadialFilter(DefaultFilterConfig())

	pos := Vec2{}
	for i := 0; i < 5000; i++ {
		switch rng.Intn(6) {
		case 0:
			// Stationary report.
		case 1:
			pos = Vec2{rng.Float64() * 1e6, rng.Float64() * 1e6}
		case 2:
			pos = Vec2{}
		default:
			pos = pos.Add(Vec2{rng.NormFloat64() * 20, rng.NormFloat64() * 20})
		}
		dt := time.Duration(rng.Intn(8)+1) * time.Millisecond
		got := f.Filter(pos, dt)
		require.True(t, got.IsFinite(), "report %d produced %v", i, got)
	}
}

func TestRadialFilter_RecoversFromNonFiniteTarget(t *testing.T) {
	f := NewRadialFilter(DefaultFilterConfig())
	f.Filter(Vec2{0, 0}, reportInterval)

	var diag Diagnostics
	f.SetDiagnosticsCallback(func(d *Diagnostics) { diag = *d })

	f.Filter(Vec2{math.NaN(), 0}, reportInterval)
	assert.True(t, diag.Recovered)

	// The poisoned cursor is replaced by the next report.
	got := f.Filter(Vec2{10, 0}, reportInterval)
	assert.True(t, diag.Recovered)
	assert.Equal(t, Vec2{10, 0}, got)
	for i := 2; i < 8; i++ {
		got = f.Filter(Vec2{10 * float64(i), 0}, reportInterval)
		require.True(t, got.IsFinite(), "report %d", i)
	}

	f.Reset()
	assert.Equal(t, Vec2{5, 5}, f.Filter(Vec2{5, 5}, reportInterval))
}

func TestRadialFilter_DecelerationEscapesPartway(t *testing.T) {
	cfg := DefaultFilterConfig()
	cfg.Advanced = false
	cfg.MinimumRadiusMultiplier = 1 // cursor only moves via escape
	cfg.JerkEscapeThreshold = -1e9
	cfg.SnapEscapeThreshold = -1e9

	prevEscape := 0.0
	for _, step := range []float64{56, 54, 52, 50} {
		f := NewRadialFilter(cfg)
		var diag Diagnostics
		f.SetDiagnosticsCallback(func(d *Diagnostics) { diag = *d })

		f.Filter(Vec2{}, reportInterval)
		for i := 1; i <= 3; i++ {
			require.Equal(t, Vec2{}, f.Filter(Vec2{60 * float64(i), 0}, reportInterval))
		}

		target := Vec2{180 + step, 0}
		got := f.Filter(target, reportInterval)

		assert.Greater(t, diag.EscapeScale, prevEscape, "step %v", step)
		assert.Less(t, diag.EscapeScale, 1.0, "step %v", step)
		assert.Greater(t, got.X, 0.0)
		assert.Less(t, got.X, target.X)
		assert.InDelta(t, diag.EscapeScale*target.X, got.X, 1e-9)
		prevEscape = diag.EscapeScale
	}

	// Hard enough deceleration lands on the report.
	f := NewRadialFilter(cfg)
	f.Filter(Vec2{}, reportInterval)
	for i := 1; i <= 3; i++ {
		f.Filter(Vec2{60 * float64(i), 0}, reportInterval)
	}
	assert.Equal(t, Vec2{220, 0}, f.Filter(Vec2{220, 0}, reportInterval))
}

func TestRadialFilter_SpinSuppression(t *testing.T) {
	f := NewRadialFilter(DefaultFilterConfig())
	var diags []Diagnostics
	f.SetDiagnosticsCallback(func(d *Diagnostics) { diags = append(diags, *d) })

	// Constant 60 units per report is velocity 8, just above the raw
	// velocity threshold, with no acceleration, jerk or snap after the start.
	for i := 0; i <= 40; i++ {
		f.Filter(Vec2{60 * float64(i), 0}, reportInterval)
	}
	require.Len(t, diags, 41)

	for i := 1; i <= 31; i++ {
		assert.False(t, diags[i].Spin, "cycle %d", i)
	}
	for i := 32; i <= 40; i++ {
		assert.True(t, diags[i].Spin, "cycle %d", i)
		assert.Equal(t, 0.0, diags[i].Velocity, "cycle %d", i)
		assert.InDelta(t, 8, diags[i].Kinematics.Velocity, 1e-9, "raw kinematics are untouched")
	}
}

func TestRadialFilter_TracksOnceRadiiShrink(t *testing.T) {
	f := NewRadialFilter(deadZoneConfig())
	f.Filter(Vec2{}, reportInterval)

	// Slow 10 unit steps stay inside the dead zone.
	pos := Vec2{}
	for i := 0; i < 40; i++ {
		pos = pos.Add(Vec2{10, 0})
		require.Equal(t, Vec2{}, f.Filter(pos, reportInterval), "report %d", i)
	}

	// Same motion with radii scaled away: the cursor follows within 10.
	cfg := deadZoneConfig()
	cfg.VelocityDivisor = 1e6
	f.SetConfig(cfg)
	for i := 0; i < 20; i++ {
		pos = pos.Add(Vec2{10, 0})
		got := f.Filter(pos, reportInterval)
		assert.Less(t, got.Dist(pos), 10.0, "report %d", i)
	}
}

func TestStep_DoesNotMutateInput(t *testing.T) {
	cfg := DefaultFilterConfig()
	s, _, _ := Step(FilterState{}, cfg, Vec2{1, 1}, reportInterval)
	s, _, _ = Step(s, cfg, Vec2{20, 1}, reportInterval)

	snapshot := s
	next, _, _ := Step(s, cfg, Vec2{50, 3}, reportInterval)
	assert.Equal(t, snapshot, s)
	assert.NotEqual(t, s, next)

	// Replaying the same input from the same state is deterministic.
	again, _, _ := Step(s, cfg, Vec2{50, 3}, reportInterval)
	assert.Equal(t, next, again)
}

func TestRadialFilter_RadiiBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	f := NewRadialFilter(DefaultFilterConfig())
	var diag Diagnostics
	f.SetDiagnosticsCallback(func(d *Diagnostics) { diag = *d })

	pos := Vec2{}
	for i := 0; i < 2000; i++ {
		pos = pos.Add(Vec2{rng.NormFloat64() * 40, rng.NormFloat64() * 40})
		f.Filter(pos, reportInterval)
		require.GreaterOrEqual(t, diag.OuterAdjusted, diag.InnerAdjusted)
		require.GreaterOrEqual(t, diag.AccelMult, 0.0)
		require.LessOrEqual(t, diag.AccelMult, 2.0)
		require.GreaterOrEqual(t, diag.EscapeScale, 0.0)
		require.LessOrEqual(t, diag.EscapeScale, 1.0)
	}
}
