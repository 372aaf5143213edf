package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/rileyhilliard/gorgon/internal/bell"
	"github.com/rileyhilliard/gorgon/internal/errors"
	"github.com/rileyhilliard/gorgon/internal/hub"
	"github.com/rileyhilliard/gorgon/internal/logger"
	"github.com/rileyhilliard/gorgon/internal/topology"
	"github.com/rileyhilliard/gorgon/internal/util"
	"github.com/spf13/cobra"
)

// BellOptions holds options for the bell command.
type BellOptions struct {
	Crab       string        // empty uses bell.crab from the config
	Iterations int           // negative uses bell.iterations from the config
	Interval   time.Duration // zero uses bell.interval, then the crab interval
}

type bellPoll struct {
	Index    int           `json:"index"`
	Crab     string        `json:"crab"`
	Statuses []bell.Status `json:"statuses"`
	Worst    bell.Level    `json:"worst"`
	Missing  bool          `json:"missing,omitempty"`
}

var bellOpts BellOptions

var bellCmd = &cobra.Command{
	Use:   "bell [crab]",
	Short: "Poll one crab through the hub and flag readings over threshold",
	Long: `Poll the hub a fixed number of times and print one status line per poll
for a single crab. Each metric is colored by its threshold: OK, WARN or CRIT.

The crab, iteration count, interval and thresholds default to the 'bell'
section of .gorgon.yaml.

Examples:
  gorgon bell
  gorgon bell local_system --iterations 10 --interval 1s
  gorgon bell --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := bellOpts
		if len(args) == 1 {
			opts.Crab = args[0]
		}
		if !cmd.Flags().Changed("iterations") {
			opts.Iterations = -1
		}
		return bellCommand(cmd.Context(), cmd.OutOrStdout(), opts)
	},
}

func init() {
	bellCmd.Flags().IntVarP(&bellOpts.Iterations, "iterations", "n", 0, "number of polls (default from config)")
	bellCmd.Flags().DurationVar(&bellOpts.Interval, "interval", 0, "wait between polls (default from config, then crab interval)")
	rootCmd.AddCommand(bellCmd)
}

func bellCommand(ctx context.Context, w io.Writer, opts BellOptions, extra ...topology.Option) error {
	cfg, stack, err := openStack(extra...)
	if err != nil {
		return err
	}
	defer stack.Close()

	crab := opts.Crab
	if crab == "" {
		crab = cfg.Bell.Crab
	}
	iterations := opts.Iterations
	if iterations < 0 {
		iterations = cfg.Bell.Iterations
	}
	if iterations < 1 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Bell needs at least one iteration (got %d)", iterations),
			"Use --iterations 1 or more, or set bell.iterations in .gorgon.yaml.")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = cfg.Bell.Interval
	}

	b := bell.New(stack.Hub, crab,
		bell.WithMetrics(stack.BellMetrics...),
		bell.WithLogger(logger.NewEnvLogger("bell")),
	)

	if machineMode {
		return bellJSON(ctx, w, b, stack.Hub, iterations, interval)
	}
	return b.Run(ctx, w, iterations, interval)
}

// bellJSON runs the same polling loop as Bell.Run but collects the statuses.
func bellJSON(ctx context.Context, w io.Writer, b *bell.Bell, src bell.Source, iterations int, interval time.Duration) error {
	effective, err := b.Interval(interval)
	if err != nil {
		return err
	}

	var polls []bellPoll
	for i := 1; i <= iterations; i++ {
		snaps, err := src.CollectOnce(ctx)
		if err != nil {
			var cycleErr *hub.CycleError
			if !stderrors.As(err, &cycleErr) {
				return err
			}
		}

		snap, ok := snaps[b.Crab()]
		statuses := b.Evaluate(snap)
		polls = append(polls, bellPoll{
			Index:    i,
			Crab:     b.Crab(),
			Statuses: statuses,
			Worst:    bell.Worst(statuses),
			Missing:  !ok,
		})

		if i < iterations && !util.Sleep(ctx, effective) {
			break
		}
	}
	return WriteJSONSuccess(w, polls)
}
