package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rileyhilliard/gorgon/internal/agent"
	"github.com/rileyhilliard/gorgon/internal/telemetry"
	"github.com/rileyhilliard/gorgon/internal/topology"
	"github.com/spf13/cobra"
)

type agentResult struct {
	Crab     string             `json:"crab"`
	Cycles   int                `json:"cycles"`
	Capacity int                `json:"capacity"`
	Records  []telemetry.Record `json:"records"`
}

var agentCmd = &cobra.Command{
	Use:   "agent <crab>",
	Short: "Run one crab's polling loop until interrupted",
	Long: `Run a single crab on its own, polling its sensors every crab interval
until Ctrl+C. The hub is not involved: readings go only to the crab's buffer.

A sensor failure stops the loop and exits non-zero.

Examples:
  gorgon agent local_system
  gorgon agent gpu-box --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return agentCommand(cmd.Context(), cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

func agentCommand(ctx context.Context, w io.Writer, name string, extra ...topology.Option) error {
	var (
		mu     sync.Mutex
		cycles int
	)
	hook := func(r telemetry.Record) {
		mu.Lock()
		defer mu.Unlock()
		cycles++
		if !machineMode {
			fmt.Fprintf(w, "[%d] %s  %s\n", cycles, r.Timestamp.Format("15:04:05"), formatValues(r.Values))
		}
	}

	opts := append([]topology.Option{topology.WithCrabOptions(agent.WithCycleHook(hook))}, extra...)
	_, stack, err := openStack(opts...)
	if err != nil {
		return err
	}
	defer stack.Close()

	if _, err := stack.Hub.Lookup(name); err != nil {
		return err
	}
	crab, _ := stack.Crab(name)

	if !machineMode {
		fmt.Fprintf(w, "Starting crab '%s' (%d sensors, every %s). Press Ctrl+C to stop.\n\n",
			crab.Name(), len(crab.Sensors()), crab.Interval())
	}

	runErr := crab.Run(ctx)

	mu.Lock()
	total := cycles
	mu.Unlock()

	if runErr != nil {
		return runErr
	}

	if machineMode {
		return WriteJSONSuccess(w, agentResult{
			Crab:     crab.Name(),
			Cycles:   total,
			Capacity: crab.BufferSize(),
			Records:  crab.Buffer(),
		})
	}
	fmt.Fprintf(w, "\nStopped crab '%s' after %d cycles (%d buffered).\n", crab.Name(), total, len(crab.Buffer()))
	return nil
}
