package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/gorgon/internal/dashboard"
	"github.com/rileyhilliard/gorgon/internal/errors"
	"github.com/rileyhilliard/gorgon/internal/hub"
	"github.com/rileyhilliard/gorgon/internal/util"
	"github.com/spf13/cobra"
)

var (
	watchIntervalFlag time.Duration
	watchCrabsFlag    string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of every crab",
	Long: `Open a terminal dashboard that runs one hub cycle per interval and shows
each crab's latest readings, threshold levels and a sparkline of its history.

Keys: r refreshes now, ? toggles help, q quits.

Examples:
  gorgon watch
  gorgon watch --interval 1s
  gorgon watch --crabs local_system,gpu-box`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchCommand(cmd.Context(), watchIntervalFlag, watchCrabsFlag)
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchIntervalFlag, "interval", 0, "refresh interval (default: hub.interval, then 2s)")
	watchCmd.Flags().StringVar(&watchCrabsFlag, "crabs", "", "comma-separated crabs to show (default: all)")
	rootCmd.AddCommand(watchCmd)
}

func watchCommand(ctx context.Context, interval time.Duration, crabsFilter string) error {
	if machineMode {
		return errors.New(errors.ErrConfig,
			"watch doesn't support --json",
			"Use 'gorgon collect --json' for machine-readable snapshots.")
	}
	if !isTerminal(os.Stdout) {
		return errors.New(errors.ErrConfig,
			"watch needs an interactive terminal",
			"Use 'gorgon collect --count N' when piping output.")
	}

	cfg, stack, err := openStack()
	if err != nil {
		return err
	}
	defer stack.Close()

	if err := filterCrabs(stack.Hub, crabsFilter); err != nil {
		return err
	}

	if interval <= 0 {
		interval = cfg.Hub.Interval
	}

	model := dashboard.NewModel(stack.Hub, interval, dashboard.WithMetrics(stack.BellMetrics))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if err != nil && ctx.Err() != nil {
		// Ctrl+C from outside the program.
		return nil
	}
	return err
}

// filterCrabs unregisters every crab not named in the comma-separated filter.
func filterCrabs(h *hub.Hub, filter string) error {
	if strings.TrimSpace(filter) == "" {
		return nil
	}

	keep := make(map[string]bool)
	for _, name := range strings.Split(filter, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			keep[name] = true
		}
	}

	names := h.Names()
	for name := range keep {
		if _, err := h.Lookup(name); err != nil {
			return err
		}
	}
	for _, name := range names {
		if !keep[name] {
			h.Unregister(name)
		}
	}

	if h.Len() == 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("No crabs match '%s'", filter),
			fmt.Sprintf("Available crabs: %s", util.JoinOrNone(names)))
	}
	return nil
}
