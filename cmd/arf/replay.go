package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thesyncim/arf/pkg/arf"
	"github.com/thesyncim/arf/pkg/arf/replay"
	"github.com/thesyncim/arf/pkg/arf/telemetry"
	"github.com/thesyncim/arf/pkg/arf/testutil"
)

func newReplayCmd(a *app) *cobra.Command {
	var tracePath, synthetic, filterType, graphPath, plotPath string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a stroke trace and report tracking lag",
		Example: `  arf replay --trace strokes/flick.json
  arf replay --synthetic circle --filter decel-lerp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			trace, err := loadTrace(tracePath, synthetic)
			if err != nil {
				return err
			}

			filterConfig, err := a.cfg.Filter.ToFilterConfig()
			if err != nil {
				return err
			}
			if filterType != "" {
				if filterConfig.Type, err = arf.ParseFilterType(filterType); err != nil {
					return err
				}
			}

			var opts replay.Options
			if graphPath != "" {
				f, err := os.Create(graphPath)
				if err != nil {
					return fmt.Errorf("failed to create graph file: %w", err)
				}
				defer f.Close()
				g := telemetry.NewGraphWriter(f)
				opts.Diagnostics = g.Observe
				defer func() {
					if err := g.Err(); err != nil {
						a.logger.Warn("graph output incomplete", zap.Error(err))
					}
				}()
			}

			result := replay.Run(trace, filterConfig, a.cfg.Sampler.ToSamplerConfig(), opts)
			printReplay(cmd.OutOrStdout(), trace, filterConfig.Type, result)
			if plotPath != "" {
				if err := replay.PlotPath(trace, result, plotPath); err != nil {
					return err
				}
			}
			if result.NonFinite > 0 {
				return fmt.Errorf("%d non-finite outputs", result.NonFinite)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tracePath, "trace", "", "trace JSON file to replay")
	cmd.Flags().StringVar(&synthetic, "synthetic", "", "synthetic trace name ("+strings.Join(replay.SyntheticNames(), ", ")+")")
	cmd.Flags().StringVar(&filterType, "filter", "", "override the configured filter type")
	cmd.Flags().StringVar(&graphPath, "graph", "", "write the kinematics graph stream to this file")
	cmd.Flags().StringVar(&plotPath, "plot", "", "save a raw vs filtered path plot (png, svg or pdf)")
	return cmd
}

func loadTrace(path, synthetic string) (*testutil.StrokeTrace, error) {
	switch {
	case path != "" && synthetic != "":
		return nil, errors.New("--trace and --synthetic are mutually exclusive")
	case path != "":
		return testutil.LoadTrace(path)
	case synthetic != "":
		return replay.Synthetic(synthetic)
	default:
		return nil, errors.New("one of --trace or --synthetic is required")
	}
}

func printReplay(w io.Writer, trace *testutil.StrokeTrace, ft arf.FilterType, r replay.Result) {
	fmt.Fprintf(w, "Trace:        %s\n", trace.Name)
	if trace.Description != "" {
		fmt.Fprintf(w, "Description:  %s\n", trace.Description)
	}
	fmt.Fprintf(w, "Filter:       %s\n", ft)
	fmt.Fprintf(w, "Reports:      %d\n", r.Reports)
	fmt.Fprintf(w, "Emitted:      %d\n", r.Emitted)
	fmt.Fprintf(w, "Redetections: %d\n", r.Redetections)
	fmt.Fprintf(w, "Lag mean:     %.3f\n", r.Lag.Mean)
	fmt.Fprintf(w, "Lag RMS:      %.3f\n", r.Lag.RMS)
	fmt.Fprintf(w, "Lag p95:      %.3f\n", r.Lag.P95)
	fmt.Fprintf(w, "Lag max:      %.3f\n", r.Lag.Max)
	fmt.Fprintf(w, "Non-finite:   %d\n", r.NonFinite)
}

func newTraceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Work with stroke trace files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "generate <name> <output.json>",
		Short: "Write a synthetic trace to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			trace, err := replay.Synthetic(args[0])
			if err != nil {
				return err
			}
			if err := trace.SaveTrace(args[1]); err != nil {
				return err
			}
			a.logger.Info("trace written", zap.String("name", trace.Name), zap.String("path", args[1]), zap.Int("reports", len(trace.Reports)))
			return nil
		},
	})
	return cmd
}
