package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rileyhilliard/gorgon/internal/topology"
	"github.com/stretchr/testify/require"
)

// twoCrabs has a healthy crab A with fixed readings and a crab B whose
// single command sensor is answered by the test runner.
const twoCrabs = `version: 1
hub:
  failure_policy: partial
crabs:
  - name: A
    sensors:
      - kind: fixed
        name: cpu
        value: 42
      - kind: fixed
        name: memory
        value: 55
  - name: B
    interval: 1h
    sensors:
      - kind: command
        name: probe
        command: read-probe
bell:
  crab: A
  iterations: 2
  interval: 1ms
`

// useConfig writes content to a temp .gorgon.yaml and points --config at it.
func useConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".gorgon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	prev := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = prev })
	return path
}

// useMachineMode turns on --json for the duration of the test.
func useMachineMode(t *testing.T) {
	t.Helper()
	prev := machineMode
	machineMode = true
	t.Cleanup(func() { machineMode = prev })
}

// runnerFunc adapts a function to sensor.Runner.
type runnerFunc func(ctx context.Context, command string) ([]byte, error)

func (f runnerFunc) Run(ctx context.Context, command string) ([]byte, error) { return f(ctx, command) }

func probeAnswers(out string) topology.Option {
	return topology.WithLocalRunner(runnerFunc(func(_ context.Context, command string) ([]byte, error) {
		if strings.Contains(command, "read-probe") {
			return []byte(out), nil
		}
		return nil, fmt.Errorf("unexpected command %q", command)
	}))
}

// answerAll answers every command with out.
func answerAll(out string) runnerFunc {
	return func(context.Context, string) ([]byte, error) { return []byte(out), nil }
}

func probeFails() topology.Option {
	return topology.WithLocalRunner(runnerFunc(func(context.Context, string) ([]byte, error) {
		return nil, fmt.Errorf("probe offline")
	}))
}
