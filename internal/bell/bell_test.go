package bell

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rileyhilliard/gorgon/internal/agent"
	"github.com/rileyhilliard/gorgon/internal/errors"
	"github.com/rileyhilliard/gorgon/internal/hub"
	"github.com/rileyhilliard/gorgon/internal/sensor"
	"github.com/rileyhilliard/gorgon/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plainRenderer() *lipgloss.Renderer {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.Ascii)
	return r
}

func snapshot(cpu, mem float64) telemetry.Snapshot {
	return telemetry.NewSnapshot(
		telemetry.Reading{Name: "cpu", Value: cpu},
		telemetry.Reading{Name: "memory", Value: mem},
	)
}

func newTestHub(t *testing.T, crabs ...*agent.Agent) *hub.Hub {
	t.Helper()
	h, err := hub.New()
	require.NoError(t, err)
	for _, c := range crabs {
		require.NoError(t, h.Register(c))
	}
	return h
}

func TestClassify(t *testing.T) {
	th := Thresholds{Warn: 70, Crit: 90}

	tests := []struct {
		v    float64
		want Level
	}{
		{0, OK},
		{69.9, OK},
		{70, Warn},
		{89.99, Warn},
		{90, Crit},
		{150, Crit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Classify(tt.v), "value %v", tt.v)
	}
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, Thresholds{Warn: 70, Crit: 90}.Validate())
	assert.NoError(t, Thresholds{Warn: 90, Crit: 90}.Validate())
	assert.Error(t, Thresholds{Warn: 95, Crit: 90}.Validate())
	assert.Error(t, Thresholds{Warn: math.NaN(), Crit: 90}.Validate())
	assert.Error(t, Thresholds{Warn: 1, Crit: math.Inf(1)}.Validate())
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "OK", OK.String())
	assert.Equal(t, "WARN", Warn.String())
	assert.Equal(t, "CRIT", Crit.String())

	text, err := Crit.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "CRIT", string(text))
}

func TestFormatSnapshot(t *testing.T) {
	b := New(newTestHub(t), "local", WithRenderer(plainRenderer()))

	tests := []struct {
		name  string
		snap  telemetry.Snapshot
		index int
		want  string
	}{
		{"all ok", snapshot(42, 55), 1, "[1] CPU:  42.0% (OK  )   MEM:  55.0% (OK  )"},
		{"warn and crit", snapshot(75, 96), 2, "[2] CPU:  75.0% (WARN)   MEM:  96.0% (CRIT)"},
		{"full scale", snapshot(100, 80), 3, "[3] CPU: 100.0% (CRIT)   MEM:  80.0% (WARN)"},
		{"missing keys read zero", telemetry.Snapshot{}, 4, "[4] CPU:   0.0% (OK  )   MEM:   0.0% (OK  )"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.FormatSnapshot(tt.snap, tt.index))
		})
	}
}

func TestFormatSnapshotColors(t *testing.T) {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.ANSI)
	b := New(newTestHub(t), "local", WithRenderer(r))

	line := b.FormatSnapshot(snapshot(95, 10), 1)
	assert.Contains(t, line, "\x1b[", "levels are colorized")
	assert.Contains(t, line, "CRIT")
}

func TestCustomMetrics(t *testing.T) {
	b := New(newTestHub(t), "local",
		WithRenderer(plainRenderer()),
		WithMetrics(Metric{Key: "load", Label: "LOAD", Thresholds: Thresholds{Warn: 2, Crit: 4}}))

	snap := telemetry.NewSnapshot(telemetry.Reading{Name: "load", Value: 3})
	assert.Equal(t, "[1] LOAD:   3.0% (WARN)", b.FormatSnapshot(snap, 1))

	statuses := b.Evaluate(snap)
	require.Len(t, statuses, 1)
	assert.Equal(t, Warn, Worst(statuses))
}

func TestWorst(t *testing.T) {
	assert.Equal(t, OK, Worst(nil))
	assert.Equal(t, Crit, Worst([]Status{{Level: Warn}, {Level: Crit}, {Level: OK}}))
}

func TestRun(t *testing.T) {
	crab, err := agent.New("local", []sensor.Sensor{sensor.Fixed("cpu", 42), sensor.Fixed("memory", 55)},
		agent.WithInterval(time.Millisecond))
	require.NoError(t, err)
	h := newTestHub(t, crab)

	var out bytes.Buffer
	b := New(h, "local", WithRenderer(plainRenderer()))
	require.NoError(t, b.Run(context.Background(), &out, 3, 0))

	text := out.String()
	assert.Contains(t, text, "Starting bell for crab 'local'")
	assert.Contains(t, text, "[1] CPU:  42.0% (OK  )   MEM:  55.0% (OK  )")
	assert.Contains(t, text, "[3] CPU:  42.0% (OK  )")
	assert.NotContains(t, text, "[4]")
	assert.True(t, strings.HasSuffix(text, "Bell session finished.\n"))
	assert.Len(t, h.Buffer(), 3)
}

func TestRunUnregisteredCrab(t *testing.T) {
	var out bytes.Buffer
	b := New(newTestHub(t), "ghost")

	err := b.Run(context.Background(), &out, 3, time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRegistry))
	assert.Empty(t, out.String(), "nothing is printed for an unknown crab")
}

func TestRunStopsOnAbortedCycle(t *testing.T) {
	broken, err := agent.New("local", []sensor.Sensor{sensor.Func("cpu", func(ctx context.Context) (float64, error) {
		return 0, stderrors.New("sensor offline")
	})})
	require.NoError(t, err)

	var out bytes.Buffer
	err = New(newTestHub(t, broken), "local").Run(context.Background(), &out, 3, time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrHub))
}

func TestRunPartialCycleShowsZeros(t *testing.T) {
	broken, err := agent.New("local", []sensor.Sensor{sensor.Func("cpu", func(ctx context.Context) (float64, error) {
		return 0, stderrors.New("sensor offline")
	})})
	require.NoError(t, err)

	h, err := hub.New(hub.WithFailurePolicy(hub.Partial))
	require.NoError(t, err)
	require.NoError(t, h.Register(broken))

	var out bytes.Buffer
	b := New(h, "local", WithRenderer(plainRenderer()))
	require.NoError(t, b.Run(context.Background(), &out, 1, time.Millisecond))
	assert.Contains(t, out.String(), "[1] CPU:   0.0% (OK  )")
}

func TestRunCancelled(t *testing.T) {
	crab, err := agent.New("local", []sensor.Sensor{sensor.Fixed("cpu", 1)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	b := New(newTestHub(t, crab), "local", WithRenderer(plainRenderer()))

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, &out, 10, time.Hour) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestInterval(t *testing.T) {
	crab, err := agent.New("local", nil, agent.WithInterval(7*time.Second))
	require.NoError(t, err)
	b := New(newTestHub(t, crab), "local")

	d, err := b.Interval(0)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, d)

	d, err = b.Interval(time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)
}

// bare implements hub.Agent without an interval.
type bare struct{}

func (bare) Name() string { return "bare" }
func (bare) CollectOnce(ctx context.Context) (telemetry.Snapshot, error) {
	return telemetry.Snapshot{}, nil
}

func TestIntervalDefault(t *testing.T) {
	h, err := hub.New()
	require.NoError(t, err)
	require.NoError(t, h.Register(bare{}))

	d, err := New(h, "bare").Interval(0)
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, d)
}
