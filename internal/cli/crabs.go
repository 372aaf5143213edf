package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rileyhilliard/gorgon/internal/topology"
	"github.com/rileyhilliard/gorgon/internal/ui"
	"github.com/spf13/cobra"
)

// crabInfo describes one configured crab with its effective settings.
type crabInfo struct {
	Name     string   `json:"name"`
	Host     string   `json:"host,omitempty"`
	Interval string   `json:"interval"`
	Buffer   int      `json:"buffer"`
	Sensors  []string `json:"sensors"`
}

type crabsResult struct {
	Policy string     `json:"policy"`
	Buffer int        `json:"hub_buffer"`
	Crabs  []crabInfo `json:"crabs"`
}

var crabsCmd = &cobra.Command{
	Use:     "crabs",
	Aliases: []string{"ls"},
	Short:   "List configured crabs and their sensors",
	Long: `List every crab the hub would register, in polling order, with the
interval, buffer size and sensors each one ends up with after defaults.

Examples:
  gorgon crabs
  gorgon crabs --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return crabsCommand(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(crabsCmd)
}

func crabsCommand(w io.Writer, extra ...topology.Option) error {
	cfg, stack, err := openStack(extra...)
	if err != nil {
		return err
	}
	defer stack.Close()

	result := crabsResult{
		Policy: stack.Hub.Policy().String(),
		Buffer: stack.Hub.BufferSize(),
	}
	for _, crab := range stack.Crabs {
		info := crabInfo{
			Name:     crab.Name(),
			Interval: crab.Interval().String(),
			Buffer:   crab.BufferSize(),
		}
		if cc, ok := cfg.Crab(crab.Name()); ok {
			info.Host = cc.Host
		}
		for _, s := range crab.Sensors() {
			info.Sensors = append(info.Sensors, s.Name())
		}
		result.Crabs = append(result.Crabs, info)
	}

	if machineMode {
		return WriteJSONSuccess(w, result)
	}

	columns := []ui.TableColumn{
		{Title: "NAME"},
		{Title: "HOST"},
		{Title: "INTERVAL"},
		{Title: "BUFFER"},
		{Title: "SENSORS"},
	}
	rows := make([][]string, 0, len(result.Crabs))
	for _, c := range result.Crabs {
		host := c.Host
		if host == "" {
			host = "(local)"
		}
		rows = append(rows, []string{c.Name, host, c.Interval, strconv.Itoa(c.Buffer), strings.Join(c.Sensors, ", ")})
	}

	fmt.Fprintln(w, ui.RenderTable(columns, rows))
	fmt.Fprintf(w, "\nHub: policy %s, buffer %d\n", result.Policy, result.Buffer)
	return nil
}
