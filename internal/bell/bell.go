// Package bell turns the snapshots of one crab into threshold status lines.
package bell

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/gorgon/internal/hub"
	"github.com/rileyhilliard/gorgon/internal/logger"
	"github.com/rileyhilliard/gorgon/internal/telemetry"
	"github.com/rileyhilliard/gorgon/internal/ui"
	"github.com/rileyhilliard/gorgon/internal/util"
)

// DefaultInterval is used when neither the caller nor the crab sets one.
const DefaultInterval = 2 * time.Second

// Source is the part of the hub the bell polls.
type Source interface {
	Lookup(name string) (hub.Agent, error)
	CollectOnce(ctx context.Context) (map[string]telemetry.Snapshot, error)
}

// Status is one evaluated metric.
type Status struct {
	Key   string  `json:"key"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Level Level   `json:"level"`
}

// Bell watches one crab through a hub.
type Bell struct {
	src      Source
	crab     string
	metrics  []Metric
	renderer *lipgloss.Renderer
	log      logger.Logger
}

// Option configures a Bell.
type Option func(*Bell)

// WithMetrics replaces the reported metrics.
func WithMetrics(metrics ...Metric) Option {
	return func(b *Bell) { b.metrics = metrics }
}

// WithRenderer sets the lipgloss renderer used to color levels.
func WithRenderer(r *lipgloss.Renderer) Option {
	return func(b *Bell) { b.renderer = r }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Bell) { b.log = l }
}

// New creates a bell for crab, polled through src.
func New(src Source, crab string, opts ...Option) *Bell {
	b := &Bell{
		src:      src,
		crab:     crab,
		metrics:  DefaultMetrics(),
		renderer: lipgloss.DefaultRenderer(),
		log:      logger.Noop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Crab returns the watched crab name.
func (b *Bell) Crab() string { return b.crab }

// Evaluate classifies every metric of snap. Missing keys read as 0.
func (b *Bell) Evaluate(snap telemetry.Snapshot) []Status {
	out := make([]Status, len(b.metrics))
	for i, m := range b.metrics {
		v := snap.Value(m.Key)
		out[i] = Status{Key: m.Key, Label: m.Label, Value: v, Level: m.Thresholds.Classify(v)}
	}
	return out
}

// Worst returns the highest level among statuses.
func Worst(statuses []Status) Level {
	worst := OK
	for _, s := range statuses {
		if s.Level > worst {
			worst = s.Level
		}
	}
	return worst
}

// FormatSnapshot renders one status line, e.g.
// "[1] CPU:  42.0% (OK  )   MEM:  55.0% (OK  )".
func (b *Bell) FormatSnapshot(snap telemetry.Snapshot, index int) string {
	statuses := b.Evaluate(snap)
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		level := b.levelStyle(s.Level).Render(fmt.Sprintf("%-4s", s.Level))
		parts[i] = fmt.Sprintf("%s: %5.1f%% (%s)", s.Label, s.Value, level)
	}
	return fmt.Sprintf("[%d] %s", index, strings.Join(parts, "   "))
}

func (b *Bell) levelStyle(l Level) lipgloss.Style {
	style := b.renderer.NewStyle()
	switch l {
	case Crit:
		return style.Foreground(ui.ColorError).Bold(true)
	case Warn:
		return style.Foreground(ui.ColorWarning)
	default:
		return style.Foreground(ui.ColorSuccess)
	}
}

// Interval picks the effective poll interval: the given one when positive,
// else the crab's own, else DefaultInterval.
func (b *Bell) Interval(interval time.Duration) (time.Duration, error) {
	a, err := b.src.Lookup(b.crab)
	if err != nil {
		return 0, err
	}
	if interval > 0 {
		return interval, nil
	}
	if d, ok := hub.IntervalOf(a); ok {
		return d, nil
	}
	return DefaultInterval, nil
}

// Run polls the hub iterations times and writes one line per cycle to w.
// The crab must be registered. A partially failed cycle is reported with
// zero values for the missing crab; any other cycle error stops the run.
// Cancelling ctx ends the session early without an error.
func (b *Bell) Run(ctx context.Context, w io.Writer, iterations int, interval time.Duration) error {
	effective, err := b.Interval(interval)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Starting bell for crab '%s' (%d %s, every %s)...\n\n",
		b.crab, iterations, util.Pluralize(iterations, "poll", "polls"), effective)

	for i := 1; i <= iterations; i++ {
		snaps, err := b.src.CollectOnce(ctx)
		if err != nil {
			var cycleErr *hub.CycleError
			if !stderrors.As(err, &cycleErr) {
				return err
			}
			b.log.Warn("cycle %s: %v", cycleErr.Cycle, cycleErr)
		}

		fmt.Fprintln(w, b.FormatSnapshot(snaps[b.crab], i))

		if i < iterations && !util.Sleep(ctx, effective) {
			fmt.Fprintln(w, "\nBell session interrupted.")
			return nil
		}
	}

	fmt.Fprintln(w, "\nBell session finished.")
	return nil
}
