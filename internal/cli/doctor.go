package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/gorgon/internal/doctor"
	"github.com/rileyhilliard/gorgon/internal/topology"
	"github.com/rileyhilliard/gorgon/internal/ui"
	"github.com/spf13/cobra"
)

// DoctorOutput represents the JSON output for doctor command.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput represents a category of check results.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput summarizes the check results.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	AllClear bool `json:"all_clear"`
}

var doctorTimeoutFlag time.Duration

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose config, SSH and sensor problems",
	Long: `Run diagnostic checks and print a report.

Checks the config file, SSH prerequisites and every remote host (only when
remote crabs are configured), then polls each crab once outside the hub.

Examples:
  gorgon doctor
  gorgon doctor --timeout 30s
  gorgon doctor --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorCommand(cmd.Context(), cmd.OutOrStdout(), doctorTimeoutFlag)
	},
}

func init() {
	doctorCmd.Flags().DurationVar(&doctorTimeoutFlag, "timeout", doctor.DefaultTimeout, "time limit for each check")
	rootCmd.AddCommand(doctorCmd)
}

// doctorCommand implements the doctor command logic.
func doctorCommand(ctx context.Context, w io.Writer, timeout time.Duration, extra ...topology.Option) error {
	checks := []doctor.Check{
		&doctor.ConfigFileCheck{ConfigPath: cfgFile},
		&doctor.ConfigValidCheck{ConfigPath: cfgFile},
	}

	// A config that doesn't load is already reported by the checks above.
	cfg, stack, err := openStack(extra...)
	if err == nil {
		defer stack.Close()

		if hosts := stack.RemoteHosts(); len(hosts) > 0 {
			checks = append(checks,
				&doctor.SSHAgentCheck{},
				&doctor.KnownHostsCheck{Path: cfg.SSH.KnownHosts},
			)
			for _, host := range hosts {
				runner, _ := stack.Runner(host)
				checks = append(checks, &doctor.HostCheck{Host: host, Runner: runner})
			}
		}
		for _, crab := range stack.Crabs {
			checks = append(checks, &doctor.CrabCheck{Crab: crab, Slow: crab.Interval()})
		}
	}

	results := doctor.RunAll(ctx, checks, timeout)

	if machineMode {
		return WriteJSONSuccess(w, doctorJSON(results))
	}
	writeDoctorText(w, results)
	return nil
}

func doctorJSON(results []doctor.CheckResult) DoctorOutput {
	output := DoctorOutput{Categories: []CategoryOutput{}}
	for _, group := range doctor.GroupByCategory(results) {
		output.Categories = append(output.Categories, CategoryOutput{
			Name:    group[0].Category,
			Results: group,
		})
	}

	counts := doctor.CountByStatus(results)
	output.Summary = SummaryOutput{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		AllClear: !doctor.HasIssues(results),
	}
	return output
}

// writeDoctorText outputs results in human-readable format.
func writeDoctorText(w io.Writer, results []doctor.CheckResult) {
	successStyle := lipgloss.NewStyle().Foreground(ui.ColorSuccess)
	errorStyle := lipgloss.NewStyle().Foreground(ui.ColorError)
	warnStyle := lipgloss.NewStyle().Foreground(ui.ColorWarning)
	mutedStyle := lipgloss.NewStyle().Foreground(ui.ColorMuted)
	headerStyle := lipgloss.NewStyle().Bold(true)

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("gorgon Diagnostic Report"))
	fmt.Fprintln(w)

	for _, group := range doctor.GroupByCategory(results) {
		fmt.Fprintln(w, headerStyle.Render(group[0].Category))
		for _, result := range group {
			symbol, style := ui.SymbolSuccess, successStyle
			switch result.Status {
			case doctor.StatusWarn:
				symbol, style = ui.SymbolWarn, warnStyle
			case doctor.StatusFail:
				symbol, style = ui.SymbolFail, errorStyle
			}

			fmt.Fprintf(w, "  %s %s\n", style.Render(symbol), result.Message)
			if result.Suggestion != "" && result.Status != doctor.StatusPass {
				for _, line := range strings.Split(result.Suggestion, "\n") {
					fmt.Fprintf(w, "    %s\n", mutedStyle.Render(strings.TrimSpace(line)))
				}
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("━", 60))
	fmt.Fprintln(w)

	summary := doctor.Summary(results)
	if doctor.HasIssues(results) {
		fmt.Fprintf(w, "%s %s\n", errorStyle.Render(ui.SymbolFail), summary)
	} else {
		fmt.Fprintf(w, "%s %s\n", successStyle.Render(ui.SymbolSuccess), summary)
	}
	fmt.Fprintln(w)
}
