package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rileyhilliard/gorgon/internal/config"
	"github.com/rileyhilliard/gorgon/internal/logger"
	"github.com/rileyhilliard/gorgon/internal/topology"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Global flags
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gorgon",
	Short: "Poll sensors through crabs into an octopus hub",
	Long: `gorgon collects telemetry in three layers.

Sensors produce single readings, crabs poll an ordered list of sensors into
their own bounded history, and the hub (the octopus) polls every registered
crab once per cycle into a merged history. The bell renders one crab's
readings against warning and critical thresholds.

Crabs and their sensors are defined in .gorgon.yaml. Without a config file
gorgon runs a single local crab with cpu and memory sensors.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .gorgon.yaml, searched upward)")
	rootCmd.PersistentFlags().BoolVar(&machineMode, "json", false, "machine-readable JSON output")
}

// Execute runs the root command and exits non-zero on failure.
// SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		reportError(os.Stdout, os.Stderr, err)
		os.Exit(1)
	}
}

// reportError renders err as a JSON envelope in machine mode, otherwise as text.
func reportError(stdout, stderr io.Writer, err error) {
	if machineMode {
		_ = WriteJSONFromError(stdout, err)
		return
	}
	fmt.Fprintln(stderr, err.Error())
}

// loadConfig finds, loads and validates the config. The path is empty when
// the built-in defaults are used.
func loadConfig() (*config.Config, string, error) {
	cfg, path, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, "", err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// openStack loads the config and builds the pipeline. Callers must Close the stack.
func openStack(opts ...topology.Option) (*config.Config, *topology.Stack, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	log := logger.NewEnvLogger("gorgon")
	if path != "" {
		log.Debug("using config %s", path)
	} else {
		log.Debug("no config file found, using defaults")
	}

	stack, err := topology.Build(cfg, append([]topology.Option{topology.WithLogger(log)}, opts...)...)
	if err != nil {
		return nil, nil, err
	}
	return cfg, stack, nil
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
