package sensor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner answers commands from a fixed table.
type fakeRunner struct {
	outputs map[string]string
	err     error
	calls   []string
}

func (r *fakeRunner) Run(ctx context.Context, command string) ([]byte, error) {
	r.calls = append(r.calls, command)
	if r.err != nil {
		return nil, r.err
	}
	out, ok := r.outputs[command]
	if !ok {
		return nil, errors.New("unexpected command: " + command)
	}
	return []byte(out), nil
}

func TestFixed(t *testing.T) {
	s := Fixed("cpu", 42)
	assert.Equal(t, "cpu", s.Name())

	v, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)
}

func TestFixedHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Fixed("cpu", 1).Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFunc(t *testing.T) {
	calls := 0
	s := Func("counter", func(ctx context.Context) (float64, error) {
		calls++
		return float64(calls), nil
	})

	assert.Equal(t, "counter", s.Name())
	v1, _ := s.Read(context.Background())
	v2, _ := s.Read(context.Background())
	assert.Equal(t, 1.0, v1)
	assert.Equal(t, 2.0, v2)
}

func TestCPUSensor(t *testing.T) {
	var gotWindow time.Duration
	s := &cpuSensor{
		window: DefaultCPUWindow,
		percent: func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error) {
			gotWindow = interval
			assert.False(t, percpu)
			return []float64{37.5}, nil
		},
	}

	assert.Equal(t, NameCPU, s.Name())
	v, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 37.5, v)
	assert.Equal(t, DefaultCPUWindow, gotWindow)
}

func TestCPUSensorErrors(t *testing.T) {
	tests := []struct {
		name string
		pcts []float64
		err  error
	}{
		{"sampling fails", nil, errors.New("no /proc")},
		{"empty result", []float64{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &cpuSensor{
				percent: func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error) {
					return tt.pcts, tt.err
				},
			}
			_, err := s.Read(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestMemorySensor(t *testing.T) {
	s := &memorySensor{
		virtual: func(ctx context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{UsedPercent: 55}, nil
		},
	}

	assert.Equal(t, NameMemory, s.Name())
	v, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 55.0, v)

	s.virtual = func(ctx context.Context) (*mem.VirtualMemoryStat, error) {
		return nil, errors.New("boom")
	}
	_, err = s.Read(context.Background())
	assert.ErrorContains(t, err, "boom")
}

func TestStockConstructors(t *testing.T) {
	assert.Equal(t, NameCPU, CPU().Name())
	assert.Equal(t, NameMemory, Memory().Name())
}

func TestCommandSensor(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"cut -d' ' -f1 /proc/loadavg":  "0.42\n",
		"df --output=pcent / | tail -1": " 73%\n",
		"echo nope":                     "nope\n",
		"report status":                 "status: infinity 12\n",
	}}

	v, err := Command("load", runner, "cut -d' ' -f1 /proc/loadavg").Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.42, v)

	v, err = Command("disk", runner, "df --output=pcent / | tail -1").Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 73.0, v)

	v, err = Command("status", runner, "report status").Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12.0, v, "words that parse as Inf are skipped")

	_, err = Command("bad", runner, "echo nope").Read(context.Background())
	assert.ErrorContains(t, err, "no number")

	runner.err = errors.New("exit status 1")
	_, err = Command("load", runner, "cut -d' ' -f1 /proc/loadavg").Read(context.Background())
	assert.ErrorContains(t, err, "exit status 1")
}

func TestLocalRunner(t *testing.T) {
	out, err := LocalRunner{}.Run(context.Background(), "echo 12.5")
	require.NoError(t, err)
	assert.Equal(t, "12.5\n", string(out))

	_, err = LocalRunner{}.Run(context.Background(), "echo oops >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oops")
}

func TestCommandSensorStalledCommand(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	started := time.Now()
	_, err := Command("slow", LocalRunner{}, "sleep 5; echo 1").Read(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 2*time.Second)
}

func TestLocalRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := LocalRunner{}.Run(ctx, "sleep 5")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
