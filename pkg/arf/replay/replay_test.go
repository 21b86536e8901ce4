package replay

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/arf/pkg/arf"
	"github.com/thesyncim/arf/pkg/arf/testutil"
)

func TestSynthetic_AllNamesBuild(t *testing.T) {
	names := SyntheticNames()
	assert.Equal(t, []string{"circle", "gap", "hover-exit", "jitter", "line", "sharp-stop"}, names)
	for _, name := range names {
		trace, err := Synthetic(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, trace.Name)
		assert.NotEmpty(t, trace.Reports)
	}

	_, err := Synthetic("zigzag")
	assert.ErrorContains(t, err, "unknown synthetic trace")
}

func TestRun_LerpLagBoundedByStep(t *testing.T) {
	trace, err := Synthetic("line")
	require.NoError(t, err)

	fc := arf.DefaultFilterConfig()
	fc.Type = arf.FilterLerp
	result := Run(trace, fc, arf.DefaultSamplerConfig(), Options{})

	assert.Equal(t, len(trace.Reports), result.Reports)
	assert.Greater(t, result.Emitted, result.Reports)
	assert.Zero(t, result.NonFinite)
	assert.LessOrEqual(t, result.Lag.Max, math.Hypot(6, 3)+1e-9)
	assert.Greater(t, result.Lag.Count, 0)
}

func TestRun_RedetectAfterGap(t *testing.T) {
	trace, err := Synthetic("gap")
	require.NoError(t, err)

	var snapped []arf.Vec2
	result := Run(trace, arf.DefaultFilterConfig(), arf.DefaultSamplerConfig(), Options{
		Diagnostics: func(d *arf.Diagnostics) {
			if d.Redetected {
				snapped = append(snapped, d.Cursor)
			}
		},
	})

	// The first report primes the filter; the report after the gap snaps.
	assert.Equal(t, 2, result.Redetections)
	require.Len(t, snapped, 2)
	assert.Equal(t, arf.Vec2{X: 1000, Y: 0}, snapped[1])
}

func TestRun_AllTracesStayFinite(t *testing.T) {
	for _, ft := range []arf.FilterType{arf.FilterRadial, arf.FilterLerp, arf.FilterDecelLerp, arf.FilterDecelEMA, arf.FilterDirectionStabilizer} {
		for _, name := range SyntheticNames() {
			trace, err := Synthetic(name)
			require.NoError(t, err)

			fc := arf.DefaultFilterConfig()
			fc.Type = ft
			result := Run(trace, fc, arf.DefaultSamplerConfig(), Options{})
			assert.Zero(t, result.NonFinite, "%s/%s", ft, name)
			assert.False(t, math.IsNaN(result.Lag.Mean), "%s/%s", ft, name)
		}
	}
}

func TestRun_AuxReportsPassThrough(t *testing.T) {
	trace := &testutil.StrokeTrace{Reports: []testutil.TracedReport{
		{TimeUs: 0, X: 1, Y: 1, InRange: true},
		{TimeUs: 1000, Kind: "buttons"},
	}}

	var aux []arf.AuxReport
	result := Run(trace, arf.DefaultFilterConfig(), arf.DefaultSamplerConfig(), Options{
		OnEmit: func(r arf.Report) {
			if a, ok := r.(arf.AuxReport); ok {
				aux = append(aux, a)
			}
		},
	})

	assert.Equal(t, 2, result.Reports)
	assert.Equal(t, []arf.AuxReport{{Kind: "buttons"}}, aux)
}

func TestPlotPath(t *testing.T) {
	trace, err := Synthetic("circle")
	require.NoError(t, err)
	result := Run(trace, arf.DefaultFilterConfig(), arf.DefaultSamplerConfig(), Options{})

	for _, ext := range []string{"png", "svg"} {
		path := filepath.Join(t.TempDir(), "circle."+ext)
		require.NoError(t, PlotPath(trace, result, path))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}

	assert.Error(t, PlotPath(trace, result, filepath.Join(t.TempDir(), "circle.nope")))
}
