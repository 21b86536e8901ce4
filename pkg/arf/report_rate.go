package arf

import "time"

// ReportRateConfig configures the sliding window report rate measurement.
type ReportRateConfig struct {
	// WindowSize is the duration of the sliding window.
	// Default: 1 second
	WindowSize time.Duration
}

// DefaultReportRateConfig returns the default report rate configuration.
func DefaultReportRateConfig() ReportRateConfig {
	return ReportRateConfig{
		WindowSize: time.Second,
	}
}

// ReportRate tracks the digitizer report rate over a sliding time window.
//
// Usage:
//
//	r := NewReportRate(DefaultReportRateConfig())
//	r.Update(now)
//	if hz, ok := r.Rate(now); ok {
//	    log.Printf("digitizer at %.0f Hz", hz)
//	}
type ReportRate struct {
	windowSize time.Duration
	samples    []time.Time
}

// NewReportRate creates a report rate tracker.
func NewReportRate(config ReportRateConfig) *ReportRate {
	windowSize := config.WindowSize
	if windowSize <= 0 {
		windowSize = time.Second
	}
	return &ReportRate{
		windowSize: windowSize,
		samples:    make([]time.Time, 0, 1024), // typical digitizers report at 100-1000 Hz
	}
}

// Update records a report arrival.
// Samples older than the window are dropped first.
func (r *ReportRate) Update(now time.Time) {
	r.removeExpired(now)
	r.samples = append(r.samples, now)
}

// Rate returns the report rate in Hz.
// Returns (0, false) with fewer than two samples in the window or when they
// span less than 1ms.
//
// The rate is computed as: (count - 1) / span.Seconds()
func (r *ReportRate) Rate(now time.Time) (hz float64, ok bool) {
	r.removeExpired(now)
	if len(r.samples) < 2 {
		return 0, false
	}
	span := r.samples[len(r.samples)-1].Sub(r.samples[0])
	if span < time.Millisecond {
		return 0, false
	}
	return float64(len(r.samples)-1) / span.Seconds(), true
}

// Reset clears all samples.
func (r *ReportRate) Reset() {
	r.samples = r.samples[:0]
}

// removeExpired drops samples older than windowSize before now.
func (r *ReportRate) removeExpired(now time.Time) {
	cutoff := now.Add(-r.windowSize)
	expired := 0
	for _, t := range r.samples {
		if !t.Before(cutoff) {
			break
		}
		expired++
	}
	if expired > 0 {
		r.samples = append(r.samples[:0], r.samples[expired:]...)
	}
}
