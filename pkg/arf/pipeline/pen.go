package pipeline

import (
	"sync/atomic"
	"time"
)

// penState tracks the arrival time of the most recent position report.
// The pipeline goroutine writes it on every report while Stats reads it
// from any goroutine, so it is stored in an atomic.Value.
type penState struct {
	lastReport atomic.Value // stores time.Time
}

func newPenState(now time.Time) *penState {
	s := &penState{}
	s.lastReport.Store(now)
	return s
}

// UpdateLastReport stores t as the last report arrival time.
func (s *penState) UpdateLastReport(t time.Time) {
	s.lastReport.Store(t)
}

// LastReport returns the arrival time of the most recent report, or the
// pipeline creation time before any report.
func (s *penState) LastReport() time.Time {
	return s.lastReport.Load().(time.Time)
}

// Idle reports whether no report has arrived for longer than timeout.
func (s *penState) Idle(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastReport()) > timeout
}
