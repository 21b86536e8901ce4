package arf

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// FilterType selects the per-report smoothing strategy run inside the
// dual-rate sampler.
type FilterType int

const (
	// FilterRadial is the adaptive radial filter with EMA interpolation.
	FilterRadial FilterType = iota

	// FilterLerp passes reports through and linearly interpolates between
	// them on output ticks.
	FilterLerp

	// FilterDecelLerp interpolates with alpha^p, where p shrinks under
	// deceleration so the output reaches the newest report sooner.
	FilterDecelLerp

	// FilterDecelEMA applies a per-report EMA whose weight rises toward
	// Weights.Decel under deceleration. No interpolation.
	FilterDecelEMA

	// FilterDirectionStabilizer bends each displacement toward the previous
	// direction when velocity drops along a line. No interpolation.
	FilterDirectionStabilizer

	filterTypeCount
)

var filterTypeNames = [...]string{
	FilterRadial:              "radial",
	FilterLerp:                "lerp",
	FilterDecelLerp:           "decel-lerp",
	FilterDecelEMA:            "decel-ema",
	FilterDirectionStabilizer: "direction",
}

// String returns the configuration name of the filter type.
func (t FilterType) String() string {
	if t.valid() {
		return filterTypeNames[t]
	}
	return "unknown"
}

func (t FilterType) valid() bool {
	return t >= 0 && t < filterTypeCount
}

// ParseFilterType parses a configuration name produced by String.
func ParseFilterType(s string) (FilterType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range filterTypeNames {
		if n == name {
			return FilterType(i), nil
		}
	}
	return FilterRadial, fmt.Errorf("unknown filter type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t FilterType) MarshalText() ([]byte, error) {
	if !t.valid() {
		return nil, fmt.Errorf("invalid filter type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *FilterType) UnmarshalText(b []byte) error {
	v, err := ParseFilterType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// positionFilter is the per-report half of the dual-rate sampler.
// Each variant decides where the sampler interpolates toward and how.
type positionFilter interface {
	// Filter consumes a report position and returns the point the update
	// phase interpolates toward.
	Filter(target Vec2, dt time.Duration) Vec2

	// Weight returns the EMA weight for the coming update phases, given the
	// acceleration of the filtered output.
	Weight(outputAccel float64) float64

	// Shape maps linear interpolation progress in [0, 1] onto the
	// variant's curve.
	Shape(alpha float64) float64

	SetConfig(config FilterConfig)
	SetDiagnosticsCallback(fn DiagnosticsFunc)
	Reset()
}

// newPositionFilter creates the variant selected by config.Type.
func newPositionFilter(config FilterConfig) positionFilter {
	switch config.Type {
	case FilterLerp:
		return &lerpAdapter{}
	case FilterDecelLerp:
		return &decelLerpAdapter{}
	case FilterDecelEMA:
		return &decelEMAAdapter{filter: NewDecelEMAFilter(config.Weights)}
	case FilterDirectionStabilizer:
		return &directionAdapter{filter: &DirectionStabilizer{}}
	default: // FilterRadial
		return &radialAdapter{filter: NewRadialFilter(config)}
	}
}

// radialAdapter adapts RadialFilter to positionFilter.
type radialAdapter struct {
	filter *RadialFilter
}

func (r *radialAdapter) Filter(target Vec2, dt time.Duration) Vec2 {
	return r.filter.Filter(target, dt)
}

// Weight blends Decel→Normal under output deceleration, using raw
// acceleration normalized by raw velocity, and Normal→Accel otherwise, with
// the acceleration log-compressed by velocity.
func (r *radialAdapter) Weight(outputAccel float64) float64 {
	cfg := r.filter.Config()
	k := r.filter.Kinematics()
	w := cfg.Weights
	if outputAccel < 0 {
		return ClampedLerp(w.Decel, w.Normal, Smootherstep(k.Acceleration/k.Velocity, cfg.DecelWeightFloor, 0))
	}
	f := cfg.AccelWeightCompression
	return ClampedLerp(w.Normal, w.Accel, Smootherstep(k.Acceleration/math.Log(math.Pow(k.Velocity/f+1, f)+1), 0, 1))
}

func (r *radialAdapter) Shape(alpha float64) float64 { return alpha }
func (r *radialAdapter) SetConfig(config FilterConfig) { r.filter.SetConfig(config) }
func (r *radialAdapter) SetDiagnosticsCallback(fn DiagnosticsFunc) { r.filter.SetDiagnosticsCallback(fn) }
func (r *radialAdapter) Reset() { r.filter.Reset() }

// lerpAdapter is the pure interpolation variant.
type lerpAdapter struct{}

func (lerpAdapter) Filter(target Vec2, _ time.Duration) Vec2 { return target }
func (lerpAdapter) Weight(float64) float64 { return 1 }
func (lerpAdapter) Shape(alpha float64) float64 { return alpha }
func (lerpAdapter) SetConfig(FilterConfig) {}
func (lerpAdapter) SetDiagnosticsCallback(DiagnosticsFunc) {}
func (lerpAdapter) Reset() {}

// decelLerpAdapter interpolates with alpha^pow, pow = clamp(1 + a/v, 0, 1)
// over raw report velocity. Hard deceleration drives pow to 0 so the output
// lands on the newest report immediately.
type decelLerpAdapter struct {
	last     Vec2
	primed   bool
	velocity float64
	pow      float64
}

func (d *decelLerpAdapter) Filter(target Vec2, _ time.Duration) Vec2 {
	if !d.primed {
		d.last, d.primed, d.pow = target, true, 1
		return target
	}
	lastVelocity := d.velocity
	d.velocity = target.Dist(d.last)
	d.last = target
	accel := d.velocity - lastVelocity
	if d.velocity != 0 {
		d.pow = clamp(1+accel/d.velocity, 0, 1)
	} else {
		d.pow = 1
	}
	return target
}

func (d *decelLerpAdapter) Weight(float64) float64 { return 1 }

func (d *decelLerpAdapter) Shape(alpha float64) float64 {
	return math.Pow(alpha, d.pow)
}

func (d *decelLerpAdapter) SetConfig(FilterConfig) {}
func (d *decelLerpAdapter) SetDiagnosticsCallback(DiagnosticsFunc) {}
func (d *decelLerpAdapter) Reset() { *d = decelLerpAdapter{} }

// decelEMAAdapter runs DecelEMAFilter per report and emits without
// interpolation.
type decelEMAAdapter struct {
	filter *DecelEMAFilter
}

func (d *decelEMAAdapter) Filter(target Vec2, _ time.Duration) Vec2 { return d.filter.Filter(target) }
func (d *decelEMAAdapter) Weight(float64) float64 { return 1 }
func (d *decelEMAAdapter) Shape(float64) float64 { return 1 }
func (d *decelEMAAdapter) SetConfig(config FilterConfig) { d.filter.weights = config.Weights }
func (d *decelEMAAdapter) SetDiagnosticsCallback(DiagnosticsFunc) {}
func (d *decelEMAAdapter) Reset() { d.filter.Reset() }

// directionAdapter runs DirectionStabilizer per report and emits without
// interpolation.
type directionAdapter struct {
	filter *DirectionStabilizer
}

func (d *directionAdapter) Filter(target Vec2, _ time.Duration) Vec2 { return d.filter.Filter(target) }
func (d *directionAdapter) Weight(float64) float64 { return 1 }
func (d *directionAdapter) Shape(float64) float64 { return 1 }
func (d *directionAdapter) SetConfig(FilterConfig) {}
func (d *directionAdapter) SetDiagnosticsCallback(DiagnosticsFunc) {}
func (d *directionAdapter) Reset() { d.filter.Reset() }

// DecelEMAFilter is a synchronous exponential moving average whose weight
// moves from Weights.Normal toward Weights.Decel as the stroke decelerates.
// A stationary pen passes through unchanged.
type DecelEMAFilter struct {
	weights EMAWeights
	raw     [3]Vec2 // newest first
	ema     Vec2
	seen    int
}

// NewDecelEMAFilter creates a DecelEMAFilter.
func NewDecelEMAFilter(weights EMAWeights) *DecelEMAFilter {
	return &DecelEMAFilter{weights: weights}
}

// Filter consumes one report and returns the smoothed position.
func (f *DecelEMAFilter) Filter(target Vec2) Vec2 {
	if f.seen == 0 {
		f.raw = [3]Vec2{target, target, target}
		f.ema = target
		f.seen++
		return target
	}
	f.raw[2], f.raw[1], f.raw[0] = f.raw[1], f.raw[0], target

	velocity := f.raw[0].Dist(f.raw[1])
	var accel float64
	if velocity != 0 {
		accel = velocity - f.raw[1].Dist(f.raw[2])
	}
	weight := ClampedLerp(f.weights.Decel, f.weights.Normal, Smootherstep(accel/velocity, -1, 0))

	if !f.ema.IsFinite() {
		f.ema = target
	}
	f.ema = f.ema.Add(target.Sub(f.ema).Mul(weight))
	if !f.ema.IsFinite() {
		f.ema = target
	}
	if velocity == 0 {
		return target
	}
	return f.ema
}

// Reset discards all state.
func (f *DecelEMAFilter) Reset() {
	*f = DecelEMAFilter{weights: f.weights}
}

// DirectionStabilizer damps wobble along a line at low speed. When the pen
// slows down and the new displacement is close to collinear with the
// previous one (including a reversal), it is bent partway toward the
// previous direction while keeping its length.
type DirectionStabilizer struct {
	prev      Vec2
	direction Vec2
	velocity  float64
	primed    bool
}

// Filter consumes one report and returns the stabilized position.
func (s *DirectionStabilizer) Filter(target Vec2) Vec2 {
	if !s.primed {
		s.prev, s.primed = target, true
		return target
	}
	prevDirection := s.direction
	lastVelocity := s.velocity
	origin := s.prev

	s.direction = target.Sub(origin)
	s.velocity = s.direction.Mag()
	s.prev = target

	if lastVelocity == 0 || s.velocity == 0 {
		return target
	}

	alignment := math.Abs(s.direction.Normalize().Dot(prevDirection.Normalize()))
	scale := Smootherstep(s.velocity/lastVelocity, 1, 0) * (1 - Smootherstep(alignment, 1, 0))
	bent := prevDirection.Normalize().Mul(s.velocity)
	s.direction = s.direction.Lerp(bent, 0.5*scale)
	return origin.Add(s.direction)
}

// Reset discards all state.
func (s *DirectionStabilizer) Reset() {
	*s = DirectionStabilizer{}
}
