// Package pipeline runs a Sampler against a live report source.
//
// The Sampler is single-threaded. Pipeline owns it on one goroutine that
// consumes queued reports at device rate and runs output ticks at the
// configured OutputFrequency, so callers can submit reports from any
// goroutine.
package pipeline

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thesyncim/arf/pkg/arf"
	"github.com/thesyncim/arf/pkg/arf/internal"
)

var (
	// ErrClosed is returned when submitting to a closed pipeline.
	ErrClosed = errors.New("pipeline closed")
	// ErrBufferFull is returned by Submit when the report queue is full.
	ErrBufferFull = errors.New("pipeline buffer full")
)

// Stats is a snapshot of pipeline counters.
type Stats struct {
	// Received counts reports accepted into the queue.
	Received uint64
	// Dropped counts reports rejected because the queue was full.
	Dropped uint64
	// Discarded counts accepted reports left unconsumed when the context
	// was canceled. Close consumes the queue instead.
	Discarded uint64
	// Emitted counts reports delivered to the sink.
	Emitted uint64
	// ReportRate is the measured position report rate in Hz, or 0 before
	// enough reports have arrived.
	ReportRate float64
	// LastReport is the arrival time of the most recent position report.
	LastReport time.Time
}

type configUpdate struct {
	filter  arf.FilterConfig
	sampler arf.SamplerConfig
}

// Pipeline feeds reports through a Sampler on a dedicated goroutine.
//
// Usage:
//
//	p, err := pipeline.New(arf.DefaultFilterConfig(), arf.DefaultSamplerConfig(),
//	    pipeline.WithSink(func(r arf.Report) { ... }),
//	)
//	if err != nil {
//	    return err
//	}
//	p.Start(ctx)
//	defer p.Close()
//	p.Submit(arf.PositionReport{Position: arf.Vec2{X: x, Y: y}, InRange: true})
type Pipeline struct {
	id      string
	sampler *arf.Sampler
	clock   internal.Clock
	logger  *zap.Logger
	pen     *penState

	sink          arf.EmitFunc
	diagnostics   arf.DiagnosticsFunc
	tickHook      TickFunc
	bufferSize    int
	statsInterval time.Duration
	rateWindow    time.Duration

	reports chan arf.Report
	configs chan configUpdate

	received  atomic.Uint64
	dropped   atomic.Uint64
	discarded atomic.Uint64
	emitted   atomic.Uint64
	rateBits atomic.Uint64 // math.Float64bits of the report rate

	// Lifecycle. Submitters hold sendMu for reading while they may send;
	// run takes it for writing once it stops, so no report can be queued
	// after the final drain.
	sendMu    sync.RWMutex
	stopped   bool // guarded by sendMu
	stopping  chan struct{}
	closed    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	startOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a pipeline. It does not start processing until Start.
func New(filterConfig arf.FilterConfig, samplerConfig arf.SamplerConfig, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		id:            uuid.NewString(),
		clock:         internal.MonotonicClock{},
		logger:        zap.NewNop(),
		bufferSize:    256,
		statsInterval: 10 * time.Second,
		rateWindow:    time.Second,
		stopping:      make(chan struct{}),
		closed:        make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	p.logger = p.logger.With(zap.String("pipeline", p.id))
	p.pen = newPenState(p.clock.Now())
	p.reports = make(chan arf.Report, p.bufferSize)
	p.configs = make(chan configUpdate)

	p.sampler = arf.NewSampler(filterConfig, samplerConfig, p.clock)
	p.sampler.SetEmitCallback(p.emit)
	if p.diagnostics != nil || p.logger.Core().Enabled(zap.DebugLevel) {
		p.sampler.SetDiagnosticsCallback(p.onDiagnostics)
	}
	return p, nil
}

// ID returns the pipeline's unique identifier.
func (p *Pipeline) ID() string {
	return p.id
}

// Start launches the processing goroutine. Later calls are no-ops.
// Processing stops when ctx is done or Close is called.
func (p *Pipeline) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.wg.Add(1)
		go p.run(ctx)
	})
}

// Close stops processing and waits for the goroutine to exit. Reports
// already queued are consumed before it returns.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
	p.wg.Wait()
	return nil
}

// Submit queues a report without blocking.
func (p *Pipeline) Submit(r arf.Report) error {
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()
	if p.isClosed() {
		return ErrClosed
	}
	select {
	case p.reports <- r:
		p.received.Add(1)
		return nil
	default:
		p.dropped.Add(1)
		return ErrBufferFull
	}
}

// SubmitWait queues a report, waiting for room until ctx is done.
func (p *Pipeline) SubmitWait(ctx context.Context, r arf.Report) error {
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()
	if p.isClosed() {
		return ErrClosed
	}
	select {
	case p.reports <- r:
		p.received.Add(1)
		return nil
	case <-p.closed:
		return ErrClosed
	case <-p.stopping:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetConfig applies new configurations between cycles. It blocks until the
// pipeline goroutine picks them up.
func (p *Pipeline) SetConfig(ctx context.Context, filterConfig arf.FilterConfig, samplerConfig arf.SamplerConfig) error {
	select {
	case p.configs <- configUpdate{filter: filterConfig, sampler: samplerConfig}:
		return nil
	case <-p.closed:
		return ErrClosed
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Received:   p.received.Load(),
		Dropped:    p.dropped.Load(),
		Discarded:  p.discarded.Load(),
		Emitted:    p.emitted.Load(),
		ReportRate: math.Float64frombits(p.rateBits.Load()),
		LastReport: p.pen.LastReport(),
	}
}

// isClosed must be called with sendMu held.
func (p *Pipeline) isClosed() bool {
	if p.stopped {
		return true
	}
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// stop waits for in-flight submits and refuses new ones. Reports queued
// before it returns are still in the channel.
func (p *Pipeline) stop() {
	close(p.stopping)
	p.sendMu.Lock()
	p.stopped = true
	p.sendMu.Unlock()
}

func (p *Pipeline) run(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.done)

	rate := arf.NewReportRate(arf.ReportRateConfig{WindowSize: p.rateWindow})

	interval := outputInterval(p.sampler.SamplerConfig())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var statsC <-chan time.Time
	if p.statsInterval > 0 {
		statsTicker := time.NewTicker(p.statsInterval)
		defer statsTicker.Stop()
		statsC = statsTicker.C
	}

	p.logger.Info("pipeline started",
		zap.Stringer("filter", p.sampler.FilterConfig().Type),
		zap.Float64("output_hz", p.sampler.SamplerConfig().OutputFrequency))

	for {
		select {
		case <-p.closed:
			p.stop()
			p.drain(rate)
			p.logger.Info("pipeline stopped", zap.Uint64("emitted", p.emitted.Load()))
			return

		case <-ctx.Done():
			p.stop()
			p.discard()
			p.logger.Info("pipeline stopped",
				zap.Error(ctx.Err()),
				zap.Uint64("discarded", p.discarded.Load()))
			return

		case r := <-p.reports:
			p.consume(r, rate)

		case <-ticker.C:
			_, emitted := p.sampler.Update()
			if p.tickHook != nil {
				p.tickHook(emitted)
			}

		case u := <-p.configs:
			p.sampler.SetFilterConfig(u.filter)
			p.sampler.SetSamplerConfig(u.sampler)
			if next := outputInterval(p.sampler.SamplerConfig()); next != interval {
				interval = next
				ticker.Reset(interval)
			}
			p.logger.Info("configuration updated",
				zap.Stringer("filter", p.sampler.FilterConfig().Type),
				zap.Stringer("state", p.sampler.State()))

		case <-statsC:
			s := p.Stats()
			if p.pen.Idle(p.clock.Now(), p.statsInterval) {
				rate.Reset()
				p.rateBits.Store(0)
			}
			p.logger.Info("pipeline stats",
				zap.Uint64("received", s.Received),
				zap.Uint64("dropped", s.Dropped),
				zap.Uint64("emitted", s.Emitted),
				zap.Float64("report_hz", s.ReportRate),
				zap.Duration("report_interval", p.sampler.ReportInterval()))
		}
	}
}

// drain consumes reports queued before Close.
func (p *Pipeline) drain(rate *arf.ReportRate) {
	for {
		select {
		case r := <-p.reports:
			p.consume(r, rate)
		default:
			return
		}
	}
}

// discard empties the queue without consuming.
func (p *Pipeline) discard() {
	for {
		select {
		case <-p.reports:
			p.discarded.Add(1)
		default:
			return
		}
	}
}

func (p *Pipeline) consume(r arf.Report, rate *arf.ReportRate) {
	if _, ok := r.(arf.PositionReport); ok {
		now := p.clock.Now()
		p.pen.UpdateLastReport(now)
		rate.Update(now)
		if hz, ok := rate.Rate(now); ok {
			p.rateBits.Store(math.Float64bits(hz))
		}
	}
	p.sampler.Consume(r)
}

func (p *Pipeline) emit(r arf.Report) {
	p.emitted.Add(1)
	if p.sink != nil {
		p.sink(r)
	}
}

func (p *Pipeline) onDiagnostics(d *arf.Diagnostics) {
	if ce := p.logger.Check(zap.DebugLevel, "filter cycle"); ce != nil {
		ce.Write(
			zap.Float64("velocity", d.Velocity),
			zap.Float64("accel_mult", d.AccelMult),
			zap.Float64("inner", d.InnerAdjusted),
			zap.Float64("outer", d.OuterAdjusted),
			zap.Float64("escape", d.EscapeScale),
			zap.Bool("spin", d.Spin),
			zap.Bool("doubt", d.Doubt),
			zap.Bool("redetected", d.Redetected),
		)
	}
	if p.diagnostics != nil {
		p.diagnostics(d)
	}
}

func outputInterval(c arf.SamplerConfig) time.Duration {
	d := time.Duration(float64(time.Second) / c.OutputFrequency)
	if d <= 0 {
		d = time.Millisecond
	}
	return d
}
