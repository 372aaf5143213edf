package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/gorgon/internal/bell"
	"github.com/rileyhilliard/gorgon/internal/telemetry"
	"github.com/rileyhilliard/gorgon/internal/ui"
	"github.com/rileyhilliard/gorgon/internal/util"
)

// Card layout
const (
	labelWidth = 8
	barWidth   = 20
	minWidth   = 60
)

func (m Model) render() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	names := m.src.Names()
	if len(names) == 0 {
		b.WriteString(m.style(ui.ColorMuted).Render("No crabs registered."))
		b.WriteString("\n")
	}
	for _, name := range names {
		b.WriteString(m.renderCard(name))
		b.WriteString("\n")
	}

	if m.cycleErr != "" {
		b.WriteString(m.style(ui.ColorError).Render(ui.SymbolFail + " " + m.cycleErr))
		b.WriteString("\n\n")
	}

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderHeader() string {
	title := m.renderer.NewStyle().Bold(true).Render("gorgon watch")
	crabs := len(m.src.Names())

	status := "waiting for first cycle"
	if !m.lastUpdate.IsZero() {
		status = fmt.Sprintf("updated %s, %d %s", m.lastUpdate.Format("15:04:05"),
			m.cycles, util.Pluralize(m.cycles, "cycle", "cycles"))
	}
	if m.collecting {
		status += " (collecting)"
	}

	return fmt.Sprintf("%s  %s  %s", title,
		m.style(ui.ColorMuted).Render(fmt.Sprintf("%d %s, every %s", crabs, util.Pluralize(crabs, "crab", "crabs"), m.interval)),
		m.style(ui.ColorMuted).Render(status))
}

func (m Model) renderCard(name string) string {
	var b strings.Builder

	snap, ok := m.latest[name]
	failure := m.failures[name]

	symbol, color := ui.SymbolPending, ui.ColorMuted
	switch {
	case failure != "":
		symbol, color = ui.SymbolFail, ui.ColorError
	case ok:
		switch m.worst(snap) {
		case bell.Crit:
			symbol, color = ui.SymbolFail, ui.ColorError
		case bell.Warn:
			symbol, color = ui.SymbolWarn, ui.ColorWarning
		default:
			symbol, color = ui.SymbolSuccess, ui.ColorSuccess
		}
	}

	b.WriteString(m.style(color).Render(symbol) + " " + m.renderer.NewStyle().Bold(true).Render(name))
	b.WriteString("\n")

	if failure != "" {
		b.WriteString("  " + m.style(ui.ColorError).Render(failure) + "\n")
		return m.frame(b.String())
	}
	if !ok {
		b.WriteString("  " + m.style(ui.ColorMuted).Render("no data yet") + "\n")
		return m.frame(b.String())
	}

	history := m.src.History(name)
	for _, r := range snap.Readings() {
		b.WriteString("  " + m.renderReading(r, history) + "\n")
	}
	return m.frame(b.String())
}

func (m Model) renderReading(r telemetry.Reading, history []telemetry.Record) string {
	label := r.Name
	metric, known := m.metric(r.Name)
	if known {
		label = metric.Label
	}

	series := seriesOf(history, r.Name)
	value := fmt.Sprintf("%6.1f", r.Value)
	if !known {
		spark := ui.Sparkline(series, historyWidth, 0, 0)
		return fmt.Sprintf("%-*s %s  %s", labelWidth, label, value, m.style(ui.ColorSecondary).Render(spark))
	}

	level := metric.Thresholds.Classify(r.Value)
	color := levelColor(level)
	bar := m.style(color).Render(ui.Bar(r.Value, barWidth))
	spark := m.style(color).Render(ui.Sparkline(series, historyWidth, 0, 100))
	return fmt.Sprintf("%-*s %s %s%% %s  %s", labelWidth, label, bar, value,
		m.style(color).Render(fmt.Sprintf("%-4s", level)), spark)
}

func (m Model) frame(content string) string {
	width := m.width - 2
	if width < minWidth {
		width = minWidth
	}
	return m.renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ui.ColorMuted).
		Padding(0, 1).
		Width(width).
		Render(strings.TrimRight(content, "\n"))
}

func (m Model) metric(key string) (bell.Metric, bool) {
	for _, mt := range m.metrics {
		if mt.Key == key {
			return mt, true
		}
	}
	return bell.Metric{}, false
}

func (m Model) worst(snap telemetry.Snapshot) bell.Level {
	level := bell.OK
	for _, mt := range m.metrics {
		if v, ok := snap.Get(mt.Key); ok {
			level = max(level, mt.Thresholds.Classify(v))
		}
	}
	return level
}

func (m Model) style(c lipgloss.Color) lipgloss.Style {
	return m.renderer.NewStyle().Foreground(c)
}

func levelColor(l bell.Level) lipgloss.Color {
	switch l {
	case bell.Crit:
		return ui.ColorError
	case bell.Warn:
		return ui.ColorWarning
	default:
		return ui.ColorSuccess
	}
}

// seriesOf extracts the values of key from the hub history, oldest first.
func seriesOf(history []telemetry.Record, key string) []float64 {
	series := make([]float64, 0, len(history))
	for _, r := range history {
		if v, ok := r.Values.Get(key); ok {
			series = append(series, v)
		}
	}
	return series
}

func firstLine(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), ui.SymbolFail))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
