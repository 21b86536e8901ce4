package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/thesyncim/arf/pkg/arf"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder collects emitted reports from the pipeline goroutine.
type recorder struct {
	mu      sync.Mutex
	reports []arf.Report
}

func (r *recorder) sink(rep arf.Report) {
	r.mu.Lock()
	r.reports = append(r.reports, rep)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []arf.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]arf.Report(nil), r.reports...)
}

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts = append([]Option{WithLogger(zaptest.NewLogger(t)), WithSink(rec.sink)}, opts...)
	p, err := New(arf.DefaultFilterConfig(), arf.DefaultSamplerConfig(), opts...)
	require.NoError(t, err)
	return p, rec
}

func pos(x, y float64) arf.PositionReport {
	return arf.PositionReport{Position: arf.Vec2{X: x, Y: y}, InRange: true}
}

// ===== Construction Tests =====

func TestNew_Defaults(t *testing.T) {
	p, err := New(arf.DefaultFilterConfig(), arf.DefaultSamplerConfig())
	require.NoError(t, err)
	defer p.Close()

	assert.NotEmpty(t, p.ID())
	assert.Equal(t, 256, p.bufferSize)
	assert.Equal(t, 10*time.Second, p.statsInterval)
	assert.Equal(t, time.Second, p.rateWindow)
	assert.Equal(t, Stats{LastReport: p.pen.LastReport()}, p.Stats())
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name    string
		opt     Option
		errText string
	}{
		{"nil logger", WithLogger(nil), "logger"},
		{"zero buffer", WithBufferSize(0), "buffer size"},
		{"negative stats interval", WithStatsInterval(-time.Second), "stats interval"},
		{"zero rate window", WithReportRateWindow(0), "report rate window"},
		{"nil clock", WithClock(nil), "clock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(arf.DefaultFilterConfig(), arf.DefaultSamplerConfig(), tt.opt)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestNew_UniqueIDs(t *testing.T) {
	a, _ := newTestPipeline(t)
	b, _ := newTestPipeline(t)
	defer a.Close()
	defer b.Close()
	assert.NotEqual(t, a.ID(), b.ID())
}

// ===== Processing Tests =====

func TestPipeline_FirstReportEmittedExactly(t *testing.T) {
	p, rec := newTestPipeline(t)
	p.Start(context.Background())
	defer p.Close()

	require.NoError(t, p.Submit(pos(120, 80)))

	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, time.Second, time.Millisecond)
	first, ok := rec.snapshot()[0].(arf.PositionReport)
	require.True(t, ok)
	assert.Equal(t, arf.Vec2{X: 120, Y: 80}, first.Position)
}

func TestPipeline_OutputTicksBetweenReports(t *testing.T) {
	p, _ := newTestPipeline(t)
	p.Start(context.Background())
	defer p.Close()

	require.NoError(t, p.Submit(pos(10, 10)))

	// A single report keeps the pen in range for the proximity timeout,
	// during which every output tick emits.
	require.Eventually(t, func() bool { return p.Stats().Emitted > 5 }, time.Second, time.Millisecond)
}

func TestPipeline_AuxPassThrough(t *testing.T) {
	p, rec := newTestPipeline(t)
	p.Start(context.Background())
	defer p.Close()

	aux := arf.AuxReport{Kind: "buttons", Payload: []byte{1}}
	require.NoError(t, p.Submit(aux))

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, aux, rec.snapshot()[0])
}

func TestPipeline_CloseDrainsQueue(t *testing.T) {
	p, rec := newTestPipeline(t)
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(arf.AuxReport{Kind: "wheel"}))
	}
	p.Start(context.Background())
	require.NoError(t, p.Close())

	assert.Len(t, rec.snapshot(), 10)
	s := p.Stats()
	assert.Equal(t, uint64(10), s.Received)
	assert.Equal(t, uint64(10), s.Emitted)
}

func TestPipeline_Diagnostics(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	p, _ := newTestPipeline(t, WithDiagnostics(func(d *arf.Diagnostics) {
		mu.Lock()
		calls++
		mu.Unlock()
	}))
	p.Start(context.Background())
	defer p.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(pos(float64(i*10), 0)))
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls > 0
	}, time.Second, time.Millisecond)
}

func TestPipeline_ReportRate(t *testing.T) {
	p, _ := newTestPipeline(t)
	p.Start(context.Background())
	defer p.Close()

	before := time.Now()
	for i := 0; i < 20; i++ {
		require.NoError(t, p.Submit(pos(float64(i), 0)))
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return p.Stats().ReportRate > 0 }, time.Second, time.Millisecond)
	assert.False(t, p.Stats().LastReport.Before(before))
}

func TestPipeline_TickHookSeesPenLeaveRange(t *testing.T) {
	var mu sync.Mutex
	var ticks []bool
	lastTick := func() (emitted, ok bool) {
		mu.Lock()
		defer mu.Unlock()
		if len(ticks) == 0 {
			return false, false
		}
		return ticks[len(ticks)-1], true
	}

	p, _ := newTestPipeline(t, WithTickHook(func(emitted bool) {
		mu.Lock()
		ticks = append(ticks, emitted)
		mu.Unlock()
	}))
	p.Start(context.Background())
	defer p.Close()

	require.NoError(t, p.Submit(pos(10, 10)))
	require.Eventually(t, func() bool {
		emitted, ok := lastTick()
		return ok && emitted
	}, time.Second, time.Millisecond)

	require.NoError(t, p.Submit(arf.PositionReport{Position: arf.Vec2{X: 10, Y: 10}}))
	require.Eventually(t, func() bool {
		emitted, ok := lastTick()
		return ok && !emitted
	}, time.Second, time.Millisecond)
}

// ===== Backpressure Tests =====

func TestSubmit_BufferFull(t *testing.T) {
	p, _ := newTestPipeline(t, WithBufferSize(1))
	defer p.Close()

	require.NoError(t, p.Submit(pos(1, 1)))
	assert.ErrorIs(t, p.Submit(pos(2, 2)), ErrBufferFull)

	s := p.Stats()
	assert.Equal(t, uint64(1), s.Received)
	assert.Equal(t, uint64(1), s.Dropped)
}

func TestSubmitWait_ContextDeadline(t *testing.T) {
	p, _ := newTestPipeline(t, WithBufferSize(1))
	defer p.Close()

	require.NoError(t, p.Submit(pos(1, 1)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.SubmitWait(ctx, pos(2, 2)), context.DeadlineExceeded)
}

func TestSubmitWait_UnblocksWhenConsumed(t *testing.T) {
	p, rec := newTestPipeline(t, WithBufferSize(1))
	require.NoError(t, p.Submit(arf.AuxReport{Kind: "a"}))

	errc := make(chan error, 1)
	go func() {
		errc <- p.SubmitWait(context.Background(), arf.AuxReport{Kind: "b"})
	}()

	p.Start(context.Background())
	require.NoError(t, <-errc)
	require.NoError(t, p.Close())
	assert.Len(t, rec.snapshot(), 2)
}

// ===== Lifecycle Tests =====

func TestClose_BeforeStart(t *testing.T) {
	p, _ := newTestPipeline(t)
	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
}

func TestClose_StopsGoroutine(t *testing.T) {
	p, _ := newTestPipeline(t)
	p.Start(context.Background())
	p.Start(context.Background())

	done := make(chan struct{})
	go func() {
		assert.NoError(t, p.Close())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close() timed out")
	}

	assert.ErrorIs(t, p.Submit(pos(1, 1)), ErrClosed)
	assert.ErrorIs(t, p.SubmitWait(context.Background(), pos(1, 1)), ErrClosed)
	assert.ErrorIs(t, p.SetConfig(context.Background(), arf.DefaultFilterConfig(), arf.DefaultSamplerConfig()), ErrClosed)
}

func TestContextCancel_StopsPipeline(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	require.Eventually(t, func() bool {
		return p.Submit(pos(1, 1)) == ErrClosed
	}, time.Second, time.Millisecond)
	assert.NoError(t, p.Close())
}

// hammer submits aux reports from several goroutines until the pipeline
// refuses them.
func hammer(p *Pipeline) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if err := p.Submit(arf.AuxReport{Kind: "buttons"}); errors.Is(err, ErrClosed) {
					return
				}
			}
		}()
	}
	return &wg
}

func TestClose_AcceptedReportsAllConsumed(t *testing.T) {
	p, err := New(arf.DefaultFilterConfig(), arf.DefaultSamplerConfig(), WithBufferSize(4))
	require.NoError(t, err)
	p.Start(context.Background())

	wg := hammer(p)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, p.Close())
	wg.Wait()

	s := p.Stats()
	assert.Greater(t, s.Received, uint64(0))
	assert.Equal(t, s.Received, s.Emitted)
	assert.Zero(t, s.Discarded)
	assert.Empty(t, p.reports)
}

func TestContextCancel_AccountsForQueuedReports(t *testing.T) {
	p, err := New(arf.DefaultFilterConfig(), arf.DefaultSamplerConfig(), WithBufferSize(4))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	wg := hammer(p)
	time.Sleep(20 * time.Millisecond)
	cancel()
	wg.Wait()
	require.NoError(t, p.Close())

	s := p.Stats()
	assert.Equal(t, s.Received, s.Emitted+s.Discarded)
	assert.Empty(t, p.reports)
}

// ===== Configuration Tests =====

func TestSetConfig_AppliesBetweenCycles(t *testing.T) {
	p, rec := newTestPipeline(t)
	p.Start(context.Background())
	defer p.Close()

	fc := arf.DefaultFilterConfig()
	fc.Type = arf.FilterLerp
	sc := arf.DefaultSamplerConfig()
	sc.OutputFrequency = 500
	require.NoError(t, p.SetConfig(context.Background(), fc, sc))

	require.NoError(t, p.Submit(pos(3, 4)))
	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, time.Second, time.Millisecond)
	require.NoError(t, p.Close())

	assert.Equal(t, arf.FilterLerp, p.sampler.FilterConfig().Type)
	assert.Equal(t, 500.0, p.sampler.SamplerConfig().OutputFrequency)
}

func TestOutputInterval(t *testing.T) {
	assert.Equal(t, time.Millisecond, outputInterval(arf.SamplerConfig{OutputFrequency: 1000}))
	assert.Equal(t, 4*time.Millisecond, outputInterval(arf.SamplerConfig{OutputFrequency: 250}))
}

func TestPenState_Idle(t *testing.T) {
	start := time.Unix(100, 0)
	s := newPenState(start)
	assert.Equal(t, start, s.LastReport())
	assert.False(t, s.Idle(start.Add(time.Second), time.Second))
	assert.True(t, s.Idle(start.Add(time.Second+1), time.Second))

	s.UpdateLastReport(start.Add(5 * time.Second))
	assert.False(t, s.Idle(start.Add(5500*time.Millisecond), time.Second))
}

