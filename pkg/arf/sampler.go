package arf

import (
	"time"

	"github.com/thesyncim/arf/pkg/arf/internal"
)

// reportAverageGain is the EMA gain of the report interval average.
const reportAverageGain = 0.1

// EmitFunc receives every report the sampler emits: smoothed positions and
// passed-through auxiliary reports.
type EmitFunc func(r Report)

// Sampler is the dual-rate sampler. Consume runs the per-report filter
// at device rate; Update interpolates between the two most recent filtered
// points at output rate.
//
// Consume and Update must not be called concurrently. Callers that drive
// them from different goroutines (a reader and a ticker) must serialize
// them, as pipeline.Pipeline does.
type Sampler struct {
	config       SamplerConfig
	filterConfig FilterConfig
	clock        internal.Clock
	stopwatch    *internal.Stopwatch
	filter       positionFilter
	state        SamplerState

	// avgMs is the EMA of the report interval in milliseconds.
	avgMs float64

	lastPosition Vec2
	currPosition Vec2
	calc1        Vec2
	calc2        Vec2

	// Output kinematics: magnitude of the filtered displacement.
	velocity     float64
	lastVelocity float64
	accel        float64
	weight       float64

	inRange bool

	onEmit        EmitFunc
	onDiagnostics DiagnosticsFunc
}

// NewSampler creates a sampler running the filter variant selected by
// filterConfig.Type. Both configurations are normalized.
// If clock is nil, a MonotonicClock is used.
func NewSampler(filterConfig FilterConfig, config SamplerConfig, clock internal.Clock) *Sampler {
	if clock == nil {
		clock = internal.MonotonicClock{}
	}
	filterConfig = filterConfig.Normalize()
	config = config.Normalize()
	return &Sampler{
		config:       config,
		filterConfig: filterConfig,
		clock:        clock,
		stopwatch:    internal.NewStopwatch(clock),
		filter:       newPositionFilter(filterConfig),
		avgMs:        durationMs(config.InitialReportInterval),
		weight:       1,
	}
}

// Consume processes one report from the digitizer.
//
// Non-position reports are emitted unchanged. Position reports run the
// filter, refresh the interpolation endpoints and immediately run an update
// phase. Reports with InRange unset only mark the pen as out of range. The
// first position after the pen was out of range restarts interpolation from
// that position instead of sweeping from the previous stroke.
func (s *Sampler) Consume(r Report) {
	pos, ok := r.(PositionReport)
	if !ok {
		s.emit(r)
		return
	}

	dt := s.stopwatch.Restart()
	if dt < s.config.StaleGapThreshold {
		s.avgMs += (durationMs(dt) - s.avgMs) * reportAverageGain
	}

	// A pen re-entering range starts a new stroke.
	if !(s.inRange && dt < s.config.ProximityTimeout) {
		s.state = StateIdle
	}
	s.inRange = pos.InRange
	if !pos.InRange {
		return
	}

	filtered := s.filter.Filter(pos.Position, dt)
	if s.state == StateIdle {
		s.currPosition = filtered
		s.calc1, s.calc2 = filtered, filtered
		s.velocity = 0
	}
	s.lastPosition = s.currPosition
	s.currPosition = filtered

	s.lastVelocity = s.velocity
	s.velocity = s.currPosition.Dist(s.lastPosition)
	s.accel = s.velocity - s.lastVelocity
	s.weight = s.filter.Weight(s.accel)

	if !s.calc1.IsFinite() {
		s.calc1 = s.currPosition
	}
	s.state = StateTracking

	s.Update()
}

// Update runs one output tick. It returns the emitted position and true, or
// false when the sampler is idle or the pen is out of range.
//
// alpha is the elapsed time since the last report in units of the average
// report interval (scaled by OutputFrequency/1000), so the output reaches
// the newest filtered point about one report interval after it arrived.
func (s *Sampler) Update() (PositionReport, bool) {
	if s.state != StateTracking || !s.PenInRange() {
		return PositionReport{}, false
	}

	alpha := 1.0
	if s.avgMs > 0 {
		alpha = clamp(s.stopwatch.Elapsed().Seconds()*s.config.OutputFrequency/s.avgMs, 0, 1)
	}
	alpha = s.filter.Shape(alpha)

	s.calc2 = s.lastPosition.Lerp(s.currPosition, alpha)
	s.calc1 = s.calc1.Add(s.calc2.Sub(s.calc1).Mul(s.weight))
	if !s.calc1.IsFinite() {
		s.calc1 = s.calc2
	}

	out := s.calc1
	if s.velocity == 0 {
		// Stationary: drop any residual EMA drift.
		s.calc1, s.calc2 = s.currPosition, s.currPosition
		out = s.currPosition
	}

	r := PositionReport{Position: out, InRange: true}
	s.emit(r)
	return r, true
}

// PenInRange reports whether the last position report was in range and
// arrived within ProximityTimeout.
func (s *Sampler) PenInRange() bool {
	return s.inRange && s.stopwatch.Elapsed() < s.config.ProximityTimeout
}

// State returns the sampler's lifecycle state.
func (s *Sampler) State() SamplerState {
	return s.state
}

// ReportInterval returns the current average report interval.
func (s *Sampler) ReportInterval() time.Duration {
	return time.Duration(s.avgMs * float64(time.Millisecond))
}

// Weight returns the EMA weight applied on the current update phases.
func (s *Sampler) Weight() float64 {
	return s.weight
}

// FilterConfig returns the normalized filter configuration.
func (s *Sampler) FilterConfig() FilterConfig {
	return s.filterConfig
}

// SamplerConfig returns the normalized sampler configuration.
func (s *Sampler) SamplerConfig() SamplerConfig {
	return s.config
}

// SetFilterConfig applies a new filter configuration between cycles.
// Changing the filter type replaces the filter and returns the sampler to
// Idle; other changes keep all state.
func (s *Sampler) SetFilterConfig(config FilterConfig) {
	config = config.Normalize()
	if config.Type != s.filterConfig.Type {
		s.filter = newPositionFilter(config)
		s.filter.SetDiagnosticsCallback(s.onDiagnostics)
		s.state = StateIdle
	} else {
		s.filter.SetConfig(config)
	}
	s.filterConfig = config
}

// SetSamplerConfig applies a new sampler configuration between cycles.
// The report interval average is kept.
func (s *Sampler) SetSamplerConfig(config SamplerConfig) {
	s.config = config.Normalize()
}

// SetEmitCallback registers the emit hook. Pass nil to disable.
func (s *Sampler) SetEmitCallback(fn EmitFunc) {
	s.onEmit = fn
}

// SetDiagnosticsCallback registers a per-report diagnostics hook. Only the
// radial variant produces diagnostics. Pass nil to disable.
func (s *Sampler) SetDiagnosticsCallback(fn DiagnosticsFunc) {
	s.onDiagnostics = fn
	s.filter.SetDiagnosticsCallback(fn)
}

// Reset returns the sampler to Idle and discards all filter state.
func (s *Sampler) Reset() {
	s.filter.Reset()
	s.state = StateIdle
	s.avgMs = durationMs(s.config.InitialReportInterval)
	s.lastPosition, s.currPosition = Vec2{}, Vec2{}
	s.calc1, s.calc2 = Vec2{}, Vec2{}
	s.velocity, s.lastVelocity, s.accel = 0, 0, 0
	s.weight = 1
	s.inRange = false
	s.stopwatch.Restart()
}

func (s *Sampler) emit(r Report) {
	if s.onEmit != nil {
		s.onEmit(r)
	}
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
