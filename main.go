package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/justlatex/jlatex/internal/config"
	"github.com/justlatex/jlatex/internal/filter"
	"github.com/justlatex/jlatex/pkg/logger"
	"github.com/justlatex/jlatex/pkg/metrics"
)

var (
	configPath string
	logLevel   string
	debug      bool
)

func main() {
	root := &cobra.Command{
		Use:           "jlatex",
		Short:         "Render LaTeX fragments in a pandoc tree as compiled SVG images",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "explicit jlconfig.toml path (skips the two-location search)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging plus a run-metrics dump on stderr")

	root.AddCommand(filterCmd())

	if err := root.Execute(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(filter.ExitCodeFor(err))
	}
}

// filterCmd is the one subcommand the host invokes: pandoc AST in on stdin,
// rewritten AST out on stdout.
func filterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filter",
		Short: "Read a pandoc JSON tree on stdin, write the rewritten tree on stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			switch {
			case debug:
				logger.Init("debug")
			case logLevel != "":
				logger.Init(logLevel)
			default:
				logger.Init(cfg.LogLevel)
			}
			logger.Debugf("engine=%s dvisvgm=%s level=%s", cfg.Tex.Engine, cfg.Dvisvgm.Path, logger.LevelString())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = filter.Run(ctx, cfg, os.Stdin, os.Stdout)
			if debug {
				if derr := metrics.Dump(os.Stderr); derr != nil {
					logger.Warnf("metrics dump failed: %v", derr)
				}
			}
			if err != nil {
				return fmt.Errorf("filter: %w", err)
			}
			return nil
		},
	}
}
