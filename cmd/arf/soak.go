package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // Enable pprof endpoints
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thesyncim/arf/pkg/arf"
)

// soakHeapLimitMB fails a soak run whose heap grows past it.
const soakHeapLimitMB = 100

// SoakResult contains the results of a soak run.
type SoakResult struct {
	Duration     time.Duration
	Reports      int
	Emitted      int
	PeakHeapMB   float64
	GCCycles     uint32
	NonFinite    int
	Redetections int
	Status       string
}

type soakOptions struct {
	duration       time.Duration
	reportInterval time.Duration
	statusInterval time.Duration
	seed           int64
}

func newSoakCmd(a *app) *cobra.Command {
	opts := soakOptions{}
	var pprofPort int

	cmd := &cobra.Command{
		Use:   "soak",
		Short: "Run the sampler against synthetic input for a long time",
		Long: `Drive the sampler in real time with synthetic pen motion, including
flicks, pen lifts and report gaps, and check that every output stays finite
and memory stays bounded.

Exposes pprof for live profiling:

  curl http://localhost:6060/debug/pprof/heap > heap.pprof`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.logger.Named("soak")
			if pprofPort > 0 {
				go func() {
					addr := fmt.Sprintf("localhost:%d", pprofPort)
					if err := http.ListenAndServe(addr, nil); err != nil {
						logger.Warn("pprof server failed", zap.Error(err))
					}
				}()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			filterConfig, err := a.cfg.Filter.ToFilterConfig()
			if err != nil {
				return err
			}
			result := runSoak(ctx, filterConfig, a.cfg.Sampler.ToSamplerConfig(), opts, logger)
			printSoakSummary(cmd.OutOrStdout(), result)
			if result.Status != "PASS" {
				return errors.New("soak failed")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&opts.duration, "duration", time.Hour, "test duration")
	cmd.Flags().DurationVar(&opts.reportInterval, "report-interval", 5*time.Millisecond, "simulated digitizer report interval")
	cmd.Flags().DurationVar(&opts.statusInterval, "status-interval", time.Minute, "status log interval")
	cmd.Flags().Int64Var(&opts.seed, "seed", 1, "random seed for the synthetic motion")
	cmd.Flags().IntVar(&pprofPort, "pprof-port", 6060, "port for the pprof HTTP server (0 disables)")
	return cmd
}

// motion generates an endless synthetic stroke: circles of varying speed
// with occasional flicks, pen lifts and stalls.
type motion struct {
	rng    *rand.Rand
	theta  float64
	speed  float64
	center arf.Vec2
	lifted int
}

func newMotion(seed int64) *motion {
	return &motion{rng: rand.New(rand.NewSource(seed)), speed: 0.02, center: arf.Vec2{X: 8000, Y: 5000}}
}

// next returns the next report and whether it should be delayed past the
// redetect threshold.
func (m *motion) next() (arf.PositionReport, bool) {
	if m.lifted > 0 {
		m.lifted--
		return arf.PositionReport{Position: m.point(), InRange: false}, false
	}
	switch r := m.rng.Float64(); {
	case r < 0.002:
		m.lifted = 20 + m.rng.Intn(50)
	case r < 0.004:
		return arf.PositionReport{Position: m.point(), InRange: true}, true
	case r < 0.02:
		m.speed = 0.002 + m.rng.Float64()*0.2
	}
	m.theta += m.speed
	return arf.PositionReport{Position: m.point(), InRange: true}, false
}

func (m *motion) point() arf.Vec2 {
	radius := 2000 + 500*math.Sin(m.theta*0.1)
	return arf.Vec2{
		X: m.center.X + radius*math.Cos(m.theta),
		Y: m.center.Y + radius*math.Sin(m.theta),
	}
}

func runSoak(ctx context.Context, filterConfig arf.FilterConfig, samplerConfig arf.SamplerConfig, opts soakOptions, logger *zap.Logger) SoakResult {
	sampler := arf.NewSampler(filterConfig, samplerConfig, nil)
	result := SoakResult{Status: "PASS"}

	start := time.Now()
	sampler.SetEmitCallback(func(r arf.Report) {
		pos, ok := r.(arf.PositionReport)
		if !ok {
			return
		}
		result.Emitted++
		if !pos.Position.IsFinite() {
			result.NonFinite++
			result.Status = "FAIL"
			logger.Error("non-finite output", zap.Duration("elapsed", time.Since(start)))
		}
	})
	sampler.SetDiagnosticsCallback(func(d *arf.Diagnostics) {
		if d.Redetected {
			result.Redetections++
		}
	})

	if opts.reportInterval <= 0 {
		opts.reportInterval = 5 * time.Millisecond
	}
	reportTicker := time.NewTicker(opts.reportInterval)
	defer reportTicker.Stop()
	outputTicker := time.NewTicker(time.Duration(float64(time.Second) / sampler.SamplerConfig().OutputFrequency))
	defer outputTicker.Stop()

	var statusC <-chan time.Time
	if opts.statusInterval > 0 {
		statusTicker := time.NewTicker(opts.statusInterval)
		defer statusTicker.Stop()
		statusC = statusTicker.C
	}
	deadline := time.NewTimer(opts.duration)
	defer deadline.Stop()

	m := newMotion(opts.seed)
	var stallUntil time.Time
	var memStats runtime.MemStats

	logger.Info("soak started", zap.Duration("duration", opts.duration), zap.Stringer("filter", filterConfig.Type))
	for {
		select {
		case <-ctx.Done():
			result.Duration = time.Since(start)
			return result

		case <-deadline.C:
			result.Duration = time.Since(start)
			return result

		case now := <-reportTicker.C:
			if now.Before(stallUntil) {
				continue
			}
			report, stall := m.next()
			if stall {
				stallUntil = now.Add(filterConfig.RedetectThreshold + opts.reportInterval)
			}
			sampler.Consume(report)
			result.Reports++

		case <-outputTicker.C:
			sampler.Update()

		case <-statusC:
			runtime.ReadMemStats(&memStats)
			heapMB := float64(memStats.HeapAlloc) / (1024 * 1024)
			if heapMB > result.PeakHeapMB {
				result.PeakHeapMB = heapMB
			}
			result.GCCycles = memStats.NumGC
			logger.Info("soak status",
				zap.Duration("elapsed", time.Since(start).Round(time.Second)),
				zap.Int("reports", result.Reports),
				zap.Int("emitted", result.Emitted),
				zap.Float64("heap_mb", heapMB),
				zap.Uint32("gc", memStats.NumGC))
			if heapMB > soakHeapLimitMB {
				logger.Error("memory limit exceeded", zap.Float64("heap_mb", heapMB))
				result.Status = "FAIL"
			}
		}
	}
}

func printSoakSummary(w io.Writer, result SoakResult) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Soak Test Complete\n")
	fmt.Fprintf(w, "==================\n")
	fmt.Fprintf(w, "Duration:        %v\n", result.Duration.Round(time.Second))
	fmt.Fprintf(w, "Reports:         %d\n", result.Reports)
	fmt.Fprintf(w, "Emitted:         %d\n", result.Emitted)
	fmt.Fprintf(w, "Redetections:    %d\n", result.Redetections)
	fmt.Fprintf(w, "Peak HeapAlloc:  %.2f MB\n", result.PeakHeapMB)
	fmt.Fprintf(w, "GC cycles:       %d\n", result.GCCycles)
	fmt.Fprintf(w, "Status:          %s\n", result.Status)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Pass Criteria:\n")
	fmt.Fprintf(w, "  - Outputs finite:       %s\n", checkMark(result.NonFinite == 0))
	fmt.Fprintf(w, "  - Peak memory < %d MB: %s\n", soakHeapLimitMB, checkMark(result.PeakHeapMB < soakHeapLimitMB))
}

func checkMark(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}
