package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// DefaultCPUWindow is how long the CPU sensor samples utilization for.
const DefaultCPUWindow = 100 * time.Millisecond

// cpuSensor reports system-wide CPU utilization of the local host in percent.
type cpuSensor struct {
	window  time.Duration
	percent func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
}

// CPU returns the local CPU utilization sensor, named "cpu".
// Each read blocks for DefaultCPUWindow while utilization is sampled.
func CPU() Sensor {
	return &cpuSensor{window: DefaultCPUWindow, percent: cpu.PercentWithContext}
}

func (s *cpuSensor) Name() string { return NameCPU }

func (s *cpuSensor) Read(ctx context.Context) (float64, error) {
	pcts, err := s.percent(ctx, s.window, false)
	if err != nil {
		return 0, fmt.Errorf("sample cpu: %w", err)
	}
	if len(pcts) == 0 {
		return 0, fmt.Errorf("sample cpu: no data")
	}
	return pcts[0], nil
}

// memorySensor reports used memory of the local host in percent.
type memorySensor struct {
	virtual func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// Memory returns the local memory utilization sensor, named "memory".
func Memory() Sensor {
	return &memorySensor{virtual: mem.VirtualMemoryWithContext}
}

func (s *memorySensor) Name() string { return NameMemory }

func (s *memorySensor) Read(ctx context.Context) (float64, error) {
	vm, err := s.virtual(ctx)
	if err != nil {
		return 0, fmt.Errorf("sample memory: %w", err)
	}
	if vm == nil {
		return 0, fmt.Errorf("sample memory: no data")
	}
	return vm.UsedPercent, nil
}
