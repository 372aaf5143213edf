package sensor

import (
	"context"
	"fmt"
)

// commandSensor runs a shell command and reads the first number it prints.
type commandSensor struct {
	name    string
	runner  Runner
	command string
}

// Command returns a sensor whose reading is the first number printed by command.
func Command(name string, runner Runner, command string) Sensor {
	return &commandSensor{name: name, runner: runner, command: command}
}

func (s *commandSensor) Name() string { return s.name }

func (s *commandSensor) Read(ctx context.Context) (float64, error) {
	out, err := s.runner.Run(ctx, s.command)
	if err != nil {
		return 0, err
	}
	v, err := ParseFirstFloat(string(out))
	if err != nil {
		return 0, fmt.Errorf("output of %q: %w", s.command, err)
	}
	return v, nil
}
