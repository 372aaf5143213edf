// Package sensor defines the leaf probes of the pipeline (rhopalia).
//
// A Sensor has an immutable name and produces one float reading on demand.
// Sensors hold no pipeline state; a read may look at live system state but
// must honor its context and never block indefinitely.
package sensor

import "context"

// Stock sensor names used as snapshot keys.
const (
	NameCPU    = "cpu"
	NameMemory = "memory"
)

// Sensor produces a single scalar reading on demand.
type Sensor interface {
	Name() string
	Read(ctx context.Context) (float64, error)
}

type funcSensor struct {
	name string
	fn   func(ctx context.Context) (float64, error)
}

// Func adapts a function into a Sensor.
func Func(name string, fn func(ctx context.Context) (float64, error)) Sensor {
	return &funcSensor{name: name, fn: fn}
}

func (s *funcSensor) Name() string { return s.name }

func (s *funcSensor) Read(ctx context.Context) (float64, error) {
	return s.fn(ctx)
}

type fixedSensor struct {
	name  string
	value float64
}

// Fixed returns a sensor that always reads value.
func Fixed(name string, value float64) Sensor {
	return &fixedSensor{name: name, value: value}
}

func (s *fixedSensor) Name() string { return s.name }

func (s *fixedSensor) Read(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.value, nil
}
