package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rileyhilliard/gorgon/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBellUsesConfigDefaults(t *testing.T) {
	useConfig(t, twoCrabs)

	var buf bytes.Buffer
	err := bellCommand(context.Background(), &buf, BellOptions{Iterations: -1}, probeAnswers("1"))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Starting bell for crab 'A' (2 polls, every 1ms)")
	assert.Contains(t, out, "[1] CPU:  42.0%")
	assert.Contains(t, out, "[2] CPU:  42.0%")
	assert.Contains(t, out, "MEM:  55.0%")
	assert.NotContains(t, out, "[3]")
	assert.Contains(t, out, "Bell session finished.")
}

func TestBellFlagsOverrideConfig(t *testing.T) {
	useConfig(t, twoCrabs)

	var buf bytes.Buffer
	err := bellCommand(context.Background(), &buf, BellOptions{Crab: "A", Iterations: 1}, probeFails())
	require.NoError(t, err, "a partial cycle still reports the healthy crab")
	assert.Contains(t, buf.String(), "(1 poll, every 1ms)")
}

func TestBellErrors(t *testing.T) {
	useConfig(t, twoCrabs)

	t.Run("unknown crab", func(t *testing.T) {
		err := bellCommand(context.Background(), &bytes.Buffer{}, BellOptions{Crab: "C", Iterations: 1})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrRegistry))
	})

	t.Run("zero iterations", func(t *testing.T) {
		err := bellCommand(context.Background(), &bytes.Buffer{}, BellOptions{Iterations: 0})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrConfig))
		assert.Contains(t, err.Error(), "at least one iteration")
	})
}

func TestBellJSON(t *testing.T) {
	useConfig(t, twoCrabs)
	useMachineMode(t)

	var buf bytes.Buffer
	err := bellCommand(context.Background(), &buf, BellOptions{Iterations: -1}, probeAnswers("1"))
	require.NoError(t, err)

	var env struct {
		Success bool `json:"success"`
		Data    []struct {
			Index    int    `json:"index"`
			Crab     string `json:"crab"`
			Worst    string `json:"worst"`
			Statuses []struct {
				Key   string  `json:"key"`
				Label string  `json:"label"`
				Value float64 `json:"value"`
				Level string  `json:"level"`
			} `json:"statuses"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))

	assert.True(t, env.Success)
	require.Len(t, env.Data, 2)
	assert.Equal(t, 2, env.Data[1].Index)
	assert.Equal(t, "A", env.Data[0].Crab)
	assert.Equal(t, "OK", env.Data[0].Worst)
	require.Len(t, env.Data[0].Statuses, 2)
	assert.Equal(t, "cpu", env.Data[0].Statuses[0].Key)
	assert.Equal(t, 42.0, env.Data[0].Statuses[0].Value)
	assert.Equal(t, "MEM", env.Data[0].Statuses[1].Label)
}
