package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thesyncim/arf/internal/config"
	"github.com/thesyncim/arf/internal/observability"
)

// app is the state shared by all subcommands, filled in by the root
// command's PersistentPreRunE.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "arf.toml"
	}
	return filepath.Join(dir, "arf", "arf.toml")
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:           "arf",
		Short:         "Adaptive radial filter for pen digitizers",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(a.configPath)
			if err != nil {
				observability.InitializeLogger(config.DefaultConfig().Logger)
				return err
			}
			a.cfg = cfg
			observability.InitializeLogger(cfg.Logger)
			a.logger = observability.GetLogger()
			a.logger.Debug("configuration loaded",
				zap.String("path", a.configPath),
				zap.String("version", Version))
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultConfigPath(), "config file (created with defaults if missing)")
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	root.AddCommand(
		newRunCmd(a),
		newReplayCmd(a),
		newTraceCmd(a),
		newSoakCmd(a),
		newConfigCmd(a),
	)
	return root, a
}

func execute(args []string) error {
	root, _ := newRootCmd()
	root.SetArgs(args)
	defer observability.Sync()

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
