// Package dashboard is the Bubble Tea model behind "gorgon watch": it runs
// one hub cycle per tick and renders a card per crab with the latest values
// and a sparkline of the hub history.
package dashboard

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/gorgon/internal/bell"
	"github.com/rileyhilliard/gorgon/internal/hub"
	"github.com/rileyhilliard/gorgon/internal/telemetry"
)

// Defaults for NewModel.
const (
	DefaultInterval = 2 * time.Second
	DefaultTimeout  = 30 * time.Second
	historyWidth    = 30
)

// Source is the part of the hub the dashboard needs.
type Source interface {
	Names() []string
	CollectOnce(ctx context.Context) (map[string]telemetry.Snapshot, error)
	History(name string) []telemetry.Record
}

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	src      Source
	metrics  []bell.Metric
	interval time.Duration
	timeout  time.Duration
	renderer *lipgloss.Renderer

	keys keyMap
	help help.Model

	latest     map[string]telemetry.Snapshot
	failures   map[string]string // last error per crab
	cycleErr   string            // error of a cycle that committed nothing
	lastUpdate time.Time
	cycles     int
	collecting bool
	quitting   bool
	width      int
	height     int
}

// Option configures a Model.
type Option func(*Model)

// WithMetrics sets the thresholds used to color known keys.
func WithMetrics(metrics []bell.Metric) Option {
	return func(m *Model) { m.metrics = metrics }
}

// WithTimeout bounds each hub cycle.
func WithTimeout(d time.Duration) Option {
	return func(m *Model) { m.timeout = d }
}

// WithRenderer sets the lipgloss renderer.
func WithRenderer(r *lipgloss.Renderer) Option {
	return func(m *Model) { m.renderer = r }
}

// tickMsg signals a periodic refresh.
type tickMsg time.Time

// cycleMsg carries the outcome of one hub cycle.
type cycleMsg struct {
	snaps map[string]telemetry.Snapshot
	err   error
	time  time.Time
}

// NewModel creates a dashboard polling src every interval.
// A non-positive interval uses DefaultInterval.
func NewModel(src Source, interval time.Duration, opts ...Option) Model {
	if interval <= 0 {
		interval = DefaultInterval
	}
	m := Model{
		src:      src,
		metrics:  bell.DefaultMetrics(),
		interval: interval,
		timeout:  DefaultTimeout,
		renderer: lipgloss.DefaultRenderer(),
		keys:     defaultKeys,
		help:     help.New(),
		latest:   make(map[string]telemetry.Snapshot),
		failures: make(map[string]string),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init triggers the first cycle and starts the tick timer.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.collectCmd(), m.tickCmd())
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m.startCycle()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tickMsg:
		next, cmd := m.startCycle()
		return next, tea.Batch(cmd, m.tickCmd())

	case cycleMsg:
		m.applyCycle(msg)
	}

	return m, nil
}

// startCycle runs one hub cycle unless one is already in flight.
func (m Model) startCycle() (Model, tea.Cmd) {
	if m.collecting {
		return m, nil
	}
	m.collecting = true
	return m, m.collectCmd()
}

func (m *Model) applyCycle(msg cycleMsg) {
	m.collecting = false
	m.lastUpdate = msg.time
	m.cycles++

	var cycleErr *hub.CycleError
	switch {
	case msg.err == nil:
		m.cycleErr = ""
		m.failures = make(map[string]string)
	case stderrors.As(msg.err, &cycleErr):
		m.cycleErr = ""
		m.failures = make(map[string]string, len(cycleErr.Failures))
		for _, f := range cycleErr.Failures {
			m.failures[f.Crab] = firstLine(f.Err.Error())
		}
	default:
		// Nothing was committed; keep the previous values on screen.
		m.cycleErr = firstLine(msg.err.Error())
		return
	}

	for name, snap := range msg.snaps {
		m.latest[name] = snap
	}
	for name := range m.failures {
		delete(m.latest, name)
	}
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.render()
}

// tickCmd returns a command that sends a tick after the refresh interval.
func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// collectCmd runs one hub cycle off the update loop.
func (m Model) collectCmd() tea.Cmd {
	src, timeout := m.src, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		snaps, err := src.CollectOnce(ctx)
		return cycleMsg{snaps: snaps, err: err, time: time.Now()}
	}
}
