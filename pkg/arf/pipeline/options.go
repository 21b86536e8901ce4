package pipeline

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/thesyncim/arf/pkg/arf"
	"github.com/thesyncim/arf/pkg/arf/internal"
)

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		p.logger = logger
		return nil
	}
}

// WithSink sets the function receiving every emitted report. It runs on the
// pipeline goroutine and must not block for long.
func WithSink(fn arf.EmitFunc) Option {
	return func(p *Pipeline) error {
		p.sink = fn
		return nil
	}
}

// WithDiagnostics sets a per-cycle diagnostics callback. It runs on the
// pipeline goroutine and must not retain the pointer.
func WithDiagnostics(fn arf.DiagnosticsFunc) Option {
	return func(p *Pipeline) error {
		p.diagnostics = fn
		return nil
	}
}

// TickFunc is called after every output tick. emitted reports whether the
// tick produced a position, which is false while the pen is out of range or
// no stroke has started.
type TickFunc func(emitted bool)

// WithTickHook sets a function called on the pipeline goroutine after each
// output tick.
func WithTickHook(fn TickFunc) Option {
	return func(p *Pipeline) error {
		p.tickHook = fn
		return nil
	}
}

// WithBufferSize sets the capacity of the report queue.
// Default: 256
func WithBufferSize(n int) Option {
	return func(p *Pipeline) error {
		if n <= 0 {
			return errors.New("buffer size must be positive")
		}
		p.bufferSize = n
		return nil
	}
}

// WithStatsInterval sets how often statistics are logged. Zero disables
// stats logging.
// Default: 10 seconds
func WithStatsInterval(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d < 0 {
			return errors.New("stats interval must not be negative")
		}
		p.statsInterval = d
		return nil
	}
}

// WithReportRateWindow sets the report rate measurement window.
// Default: 1 second
func WithReportRateWindow(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d <= 0 {
			return errors.New("report rate window must be positive")
		}
		p.rateWindow = d
		return nil
	}
}

// WithClock sets the time source used by the sampler.
// Default: internal.MonotonicClock
func WithClock(clock internal.Clock) Option {
	return func(p *Pipeline) error {
		if clock == nil {
			return errors.New("clock must not be nil")
		}
		p.clock = clock
		return nil
	}
}
