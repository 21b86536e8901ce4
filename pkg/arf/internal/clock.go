// Package internal provides the time sources behind the sampler's two rates.
package internal

import (
	"sync"
	"time"
)

// Clock supplies the timestamps the sampler measures report intervals and
// output-tick progress against.
type Clock interface {
	// Now returns the current time. Successive calls must not go backwards.
	Now() time.Time
}

// MonotonicClock reads time.Now, which carries a monotonic reading, so
// intervals are immune to wall-clock steps.
type MonotonicClock struct{}

// Now returns the current system time.
func (MonotonicClock) Now() time.Time {
	return time.Now()
}

// MockClock is a manually driven Clock for replaying report traces.
//
// The sampler only ever reads Now: one Consume restarts its stopwatch and
// each Update measures alpha from the time since. A test or replay moves the
// clock to a report's timestamp, consumes it, then steps through the output
// ticks in between. MockClock is safe for concurrent use, so a pipeline
// goroutine can read it while a test advances it.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewMockClock creates a MockClock at t, or at 2001-09-09 when t is zero.
func NewMockClock(t time.Time) *MockClock {
	if t.IsZero() {
		t = time.Unix(1000000000, 0)
	}
	return &MockClock{current: t}
}

// Now returns the clock's current time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Advance moves the clock forward by d. A negative d panics, since the
// stopwatch would report a negative report interval.
func (m *MockClock) Advance(d time.Duration) {
	if d < 0 {
		panic("MockClock.Advance: duration must be non-negative")
	}
	m.mu.Lock()
	m.current = m.current.Add(d)
	m.mu.Unlock()
}

// AdvanceTo moves the clock forward to t, typically the timestamp of the
// next traced report. A t at or before the current time leaves the clock
// unchanged.
func (m *MockClock) AdvanceTo(t time.Time) {
	m.mu.Lock()
	if t.After(m.current) {
		m.current = t
	}
	m.mu.Unlock()
}

// Stopwatch measures intervals against a Clock.
//
// The zero value is not usable; create one with NewStopwatch. A fresh
// stopwatch starts counting from its construction time, so the first Restart
// reports the time since creation.
type Stopwatch struct {
	clock Clock
	start time.Time
}

// NewStopwatch creates a stopwatch started at clock.Now().
// If clock is nil, MonotonicClock is used.
func NewStopwatch(clock Clock) *Stopwatch {
	if clock == nil {
		clock = MonotonicClock{}
	}
	return &Stopwatch{clock: clock, start: clock.Now()}
}

// Restart returns the time elapsed since the previous restart (or creation)
// and begins a new interval.
func (s *Stopwatch) Restart() time.Duration {
	now := s.clock.Now()
	d := now.Sub(s.start)
	s.start = now
	return d
}

// Elapsed returns the time since the last restart without resetting.
func (s *Stopwatch) Elapsed() time.Duration {
	return s.clock.Now().Sub(s.start)
}
