package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rileyhilliard/gorgon/internal/errors"
	"github.com/rileyhilliard/gorgon/internal/hub"
	"github.com/rileyhilliard/gorgon/internal/telemetry"
	"github.com/rileyhilliard/gorgon/internal/topology"
	"github.com/rileyhilliard/gorgon/internal/ui"
	"github.com/rileyhilliard/gorgon/internal/util"
	"github.com/spf13/cobra"
)

// CollectOptions holds options for the collect command.
type CollectOptions struct {
	Count    int           // number of cycles
	Crab     string        // poll this crab directly instead of the hub
	Interval time.Duration // wait between cycles
}

// crabSnapshot is one crab's values in JSON output.
type crabSnapshot struct {
	Crab   string             `json:"crab"`
	Values *telemetry.Snapshot `json:"values,omitempty"` // nil when the crab failed
	Error  string             `json:"error,omitempty"`
}

// collectCycle is one cycle in JSON output.
type collectCycle struct {
	Index int            `json:"index"`
	Crabs []crabSnapshot `json:"crabs"`
}

type collectResult struct {
	Cycles   []collectCycle     `json:"cycles"`
	Buffered int                `json:"buffered"`
	Capacity int                `json:"capacity"`
	Records  []telemetry.Record `json:"records"`
}

var collectOpts CollectOptions

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one or more collection cycles and print the snapshots",
	Long: `Run collection cycles and print every crab's snapshot.

By default each cycle goes through the hub, which polls every registered
crab in order and keeps a merged history. With --crab a single crab is
polled directly and only its own buffer is used.

Examples:
  gorgon collect
  gorgon collect --count 5 --interval 2s
  gorgon collect --crab local_system --count 3
  gorgon collect --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return collectCommand(cmd.Context(), cmd.OutOrStdout(), collectOpts)
	},
}

func init() {
	collectCmd.Flags().IntVarP(&collectOpts.Count, "count", "n", 1, "number of cycles to run")
	collectCmd.Flags().StringVar(&collectOpts.Crab, "crab", "", "poll one crab directly, bypassing the hub")
	collectCmd.Flags().DurationVar(&collectOpts.Interval, "interval", 0, "wait between cycles (e.g., 2s)")
	rootCmd.AddCommand(collectCmd)
}

func collectCommand(ctx context.Context, w io.Writer, opts CollectOptions, extra ...topology.Option) error {
	if opts.Count < 1 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("--count must be at least 1 (got %d)", opts.Count),
			"Use --count 1 or more.")
	}
	if opts.Interval < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("--interval can't be negative (got %s)", opts.Interval),
			"Use a duration like 2s, or leave it out.")
	}

	_, stack, err := openStack(extra...)
	if err != nil {
		return err
	}
	defer stack.Close()

	if opts.Crab != "" {
		return collectCrab(ctx, w, stack, opts)
	}
	return collectHub(ctx, w, stack, opts)
}

func collectHub(ctx context.Context, w io.Writer, stack *topology.Stack, opts CollectOptions) error {
	names := stack.Hub.Names()
	result := collectResult{Capacity: stack.Hub.BufferSize()}

	if !machineMode {
		fmt.Fprintf(w, "Collecting from %d %s through the hub...\n\n",
			len(names), util.Pluralize(len(names), "crab", "crabs"))
	}

	for i := 1; i <= opts.Count; i++ {
		snaps, err := stack.Hub.CollectOnce(ctx)

		failures := map[string]string{}
		if err != nil {
			var cycleErr *hub.CycleError
			if !stderrors.As(err, &cycleErr) {
				return err
			}
			for _, f := range cycleErr.Failures {
				failures[f.Crab] = errorMessage(f.Err)
			}
		}

		cycle := collectCycle{Index: i}
		for _, name := range names {
			if msg, failed := failures[name]; failed {
				cycle.Crabs = append(cycle.Crabs, crabSnapshot{Crab: name, Error: msg})
				continue
			}
			snap := snaps[name]
			cycle.Crabs = append(cycle.Crabs, crabSnapshot{Crab: name, Values: &snap})
		}
		result.Cycles = append(result.Cycles, cycle)

		if !machineMode {
			writeCycle(w, cycle)
		}

		if i < opts.Count && !util.Sleep(ctx, opts.Interval) {
			break
		}
	}

	result.Records = stack.Hub.Buffer()
	result.Buffered = len(result.Records)

	if machineMode {
		return WriteJSONSuccess(w, result)
	}
	fmt.Fprintf(w, "\nHub buffered records: %d (capacity %d)\n", result.Buffered, result.Capacity)
	return nil
}

func collectCrab(ctx context.Context, w io.Writer, stack *topology.Stack, opts CollectOptions) error {
	if _, err := stack.Hub.Lookup(opts.Crab); err != nil {
		return err
	}
	crab, _ := stack.Crab(opts.Crab)
	result := collectResult{Capacity: crab.BufferSize()}

	if !machineMode {
		fmt.Fprintf(w, "Collecting from crab '%s' directly...\n\n", crab.Name())
	}

	for i := 1; i <= opts.Count; i++ {
		snap, err := crab.CollectOnce(ctx)
		if err != nil {
			return err
		}

		cycle := collectCycle{Index: i, Crabs: []crabSnapshot{{Crab: crab.Name(), Values: &snap}}}
		result.Cycles = append(result.Cycles, cycle)
		if !machineMode {
			writeCycle(w, cycle)
		}

		if i < opts.Count && !util.Sleep(ctx, opts.Interval) {
			break
		}
	}

	result.Records = crab.Buffer()
	result.Buffered = len(result.Records)

	if machineMode {
		return WriteJSONSuccess(w, result)
	}
	fmt.Fprintf(w, "\nCrab '%s' buffered records: %d (capacity %d)\n", crab.Name(), result.Buffered, result.Capacity)
	return nil
}

func writeCycle(w io.Writer, cycle collectCycle) {
	width := 0
	for _, c := range cycle.Crabs {
		width = max(width, len(c.Crab))
	}
	for _, c := range cycle.Crabs {
		if c.Error != "" {
			fmt.Fprintf(w, "[%d] %-*s  %s %s\n", cycle.Index, width, c.Crab, ui.SymbolFail, c.Error)
			continue
		}
		fmt.Fprintf(w, "[%d] %-*s  %s\n", cycle.Index, width, c.Crab, formatValues(*c.Values))
	}
}

// formatValues renders a snapshot as "cpu:  42.0   memory:  55.0".
func formatValues(snap telemetry.Snapshot) string {
	if snap.Len() == 0 {
		return "(no sensors)"
	}
	parts := make([]string, 0, snap.Len())
	for _, r := range snap.Readings() {
		parts = append(parts, fmt.Sprintf("%s: %5.1f", r.Name, r.Value))
	}
	return strings.Join(parts, "   ")
}

// errorMessage returns the headline of a structured error.
func errorMessage(err error) string {
	var gErr *errors.Error
	if stderrors.As(err, &gErr) {
		return gErr.Message
	}
	return err.Error()
}
