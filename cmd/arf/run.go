package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thesyncim/arf/internal/config"
	"github.com/thesyncim/arf/internal/source"
	"github.com/thesyncim/arf/pkg/arf"
	"github.com/thesyncim/arf/pkg/arf/pipeline"
	"github.com/thesyncim/arf/pkg/arf/telemetry"
)

func newRunCmd(a *app) *cobra.Command {
	var graph, stress bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Filter a live report stream",
		Long: `Read reports from the configured source (serial port, file or stdin),
filter them and write the output positions to stdout as "x y" lines.

With --graph the kinematics graph stream is written instead: one v/a/j/s
frame per report, then d for every output tick while the pen is in range and
i otherwise. --stress adds a t after each d so the plotter redraws at the
full output rate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if stress && !graph {
				return errors.New("--stress requires --graph")
			}
			return runPipeline(ctx, a, cmd.OutOrStdout(), runOptions{graph: graph, stress: stress, watch: watch})
		},
	}
	cmd.Flags().BoolVar(&graph, "graph", false, "write the kinematics graph stream instead of positions")
	cmd.Flags().BoolVar(&stress, "stress", false, "with --graph, request a redraw on every emitted output tick")
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the configuration file when it changes")
	return cmd
}

// lineSink writes emitted positions as text lines.
type lineSink struct {
	mu  sync.Mutex
	w   *bufio.Writer
	buf []byte
}

func newLineSink(w io.Writer) *lineSink {
	return &lineSink{w: bufio.NewWriter(w)}
}

func (s *lineSink) emit(r arf.Report) {
	pos, ok := r.(arf.PositionReport)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = strconv.AppendFloat(s.buf[:0], pos.Position.X, 'f', 3, 64)
	s.buf = append(s.buf, ' ')
	s.buf = strconv.AppendFloat(s.buf, pos.Position.Y, 'f', 3, 64)
	s.buf = append(s.buf, '\n')
	_, _ = s.w.Write(s.buf)
	_ = s.w.Flush()
}

type runOptions struct {
	graph  bool
	stress bool
	watch  bool
}

// graphOptions wires a pipeline to write the graph stream to g.
func graphOptions(g *telemetry.GraphWriter, stress bool) []pipeline.Option {
	return []pipeline.Option{
		pipeline.WithDiagnostics(g.Observe),
		pipeline.WithTickHook(func(emitted bool) {
			g.Render(emitted)
			if stress && emitted {
				g.Stress()
			}
		}),
	}
}

func runPipeline(ctx context.Context, a *app, out io.Writer, ro runOptions) error {
	logger := a.logger.Named("run")

	filterConfig, err := a.cfg.Filter.ToFilterConfig()
	if err != nil {
		return err
	}
	samplerConfig := a.cfg.Sampler.ToSamplerConfig()

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithBufferSize(a.cfg.Pipeline.BufferSize),
		pipeline.WithStatsInterval(time.Duration(a.cfg.Pipeline.StatsIntervalMs) * time.Millisecond),
	}
	if ms := a.cfg.Pipeline.ReportRateWindowMs; ms > 0 {
		opts = append(opts, pipeline.WithReportRateWindow(time.Duration(ms)*time.Millisecond))
	}
	if ro.graph {
		g := telemetry.NewGraphWriter(out)
		opts = append(opts, graphOptions(g, ro.stress)...)
		defer func() {
			if err := g.Err(); err != nil {
				logger.Warn("graph output incomplete", zap.Error(err))
			}
		}()
	} else {
		opts = append(opts, pipeline.WithSink(newLineSink(out).emit))
	}

	p, err := pipeline.New(filterConfig, samplerConfig, opts...)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.Start(ctx)
	defer p.Close()

	if ro.watch {
		go func() {
			err := config.Watch(ctx, a.configPath, 0, func(cfg *config.Config, err error) {
				if err != nil {
					logger.Warn("configuration reload failed, keeping current settings", zap.Error(err))
					return
				}
				fc, err := cfg.Filter.ToFilterConfig()
				if err != nil {
					logger.Warn("invalid filter configuration", zap.Error(err))
					return
				}
				if err := p.SetConfig(ctx, fc, cfg.Sampler.ToSamplerConfig()); err != nil {
					logger.Warn("failed to apply configuration", zap.Error(err))
				}
			})
			if err != nil {
				logger.Warn("configuration watch stopped", zap.Error(err))
			}
		}()
	}

	rc, err := source.Open(a.cfg.Source)
	if err != nil {
		return err
	}
	defer rc.Close()
	go func() {
		// Unblock a pending read when shutting down.
		<-ctx.Done()
		rc.Close()
	}()

	logger.Info("reading reports", zap.String("source", a.cfg.Source.Kind), zap.Stringer("filter", filterConfig.Type))
	n, err := source.Pump(ctx, rc, p.SubmitWait, logger)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("source stopped after %d reports: %w", n, err)
	}

	stats := p.Stats()
	logger.Info("input finished",
		zap.Int("reports", n),
		zap.Uint64("emitted", stats.Emitted),
		zap.Uint64("dropped", stats.Dropped))
	return nil
}
