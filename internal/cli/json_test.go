package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/rileyhilliard/gorgon/internal/errors"
	"github.com/rileyhilliard/gorgon/internal/hub"
	"github.com/rileyhilliard/gorgon/pkg/sshutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineMode_DefaultValue(t *testing.T) {
	oldMode := machineMode
	defer func() { machineMode = oldMode }()

	machineMode = false
	assert.False(t, MachineMode())

	machineMode = true
	assert.True(t, MachineMode())
}

func TestWriteJSONSuccess_BasicData(t *testing.T) {
	var buf bytes.Buffer

	err := WriteJSONSuccess(&buf, map[string]string{"key": "value"})
	require.NoError(t, err)

	var env JSONEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))

	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
	dataMap, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "value", dataMap["key"])
}

func TestWriteJSONError(t *testing.T) {
	var buf bytes.Buffer

	err := WriteJSONError(&buf, ErrCodeCrabNotFound, "Crab 'x' is not registered", "Did you mean y?", nil)
	require.NoError(t, err)

	var env JSONEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))

	assert.False(t, env.Success)
	assert.Nil(t, env.Data)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeCrabNotFound, env.Error.Code)
	assert.Equal(t, "Did you mean y?", env.Error.Suggestion)
}

func TestErrorToJSON(t *testing.T) {
	partial := errors.WrapWithCode(&hub.CycleError{
		Cycle: "cycle-1",
		Failures: []hub.CrabFailure{
			{Crab: "B", Err: fmt.Errorf("probe offline")},
		},
	}, errors.ErrHub, "Hub cycle partially failed: 1 of 2 crabs skipped", "")

	tests := []struct {
		name     string
		err      error
		wantCode string
		wantMsg  string
	}{
		{
			name:     "config not found",
			err:      errors.New(errors.ErrConfig, "Config file not found: x.yaml", "Run 'gorgon init'"),
			wantCode: ErrCodeConfigNotFound,
			wantMsg:  "Config file not found: x.yaml",
		},
		{
			name:     "config invalid",
			err:      errors.New(errors.ErrConfig, "Crab 'A' is defined more than once", ""),
			wantCode: ErrCodeConfigInvalid,
		},
		{
			name:     "registry",
			err:      errors.New(errors.ErrRegistry, "Crab 'x' is not registered", ""),
			wantCode: ErrCodeCrabNotFound,
		},
		{
			name:     "agent",
			err:      errors.New(errors.ErrAgent, "Crab '' needs a name", ""),
			wantCode: ErrCodeCrabInvalid,
		},
		{
			name:     "sensor",
			err:      errors.WrapWithCode(fmt.Errorf("boom"), errors.ErrSensor, "Sensor 'cpu' on crab 'A' failed", ""),
			wantCode: ErrCodeSensorFailed,
		},
		{
			name:     "aborted cycle",
			err:      errors.New(errors.ErrHub, "Hub cycle aborted: crab 'A' failed", ""),
			wantCode: ErrCodeCycleAborted,
		},
		{
			name:     "partial cycle",
			err:      partial,
			wantCode: ErrCodeCyclePartial,
			wantMsg:  "Hub cycle partially failed: 1 of 2 crabs skipped",
		},
		{
			name:     "ssh",
			err:      errors.New(errors.ErrSSH, "Can't reach web-1", ""),
			wantCode: ErrCodeSSHConnectionFail,
		},
		{
			name:     "host key mismatch",
			err:      errors.WrapWithCode(&sshutil.HostKeyMismatchError{Hostname: "web-1", ReceivedType: "ssh-ed25519"}, errors.ErrSSH, "Can't reach web-1", ""),
			wantCode: ErrCodeSSHHostKey,
		},
		{
			name:     "plain error",
			err:      fmt.Errorf("something else"),
			wantCode: ErrCodeUnknown,
			wantMsg:  "something else",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ErrorToJSON(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, got.Message)
			}
		})
	}

	assert.Nil(t, ErrorToJSON(nil))
}

func TestErrorToJSON_PartialDetails(t *testing.T) {
	err := errors.WrapWithCode(&hub.CycleError{
		Cycle: "cycle-7",
		Failures: []hub.CrabFailure{
			{Crab: "B", Err: fmt.Errorf("x")},
			{Crab: "C", Err: fmt.Errorf("y")},
		},
	}, errors.ErrHub, "Hub cycle partially failed", "")

	var buf bytes.Buffer
	require.NoError(t, WriteJSONFromError(&buf, err))

	var env struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Details struct {
				Cycle string   `json:"cycle"`
				Crabs []string `json:"crabs"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))

	assert.False(t, env.Success)
	assert.Equal(t, ErrCodeCyclePartial, env.Error.Code)
	assert.Equal(t, "cycle-7", env.Error.Details.Cycle)
	assert.Equal(t, []string{"B", "C"}, env.Error.Details.Crabs)
}

func TestReportError(t *testing.T) {
	err := errors.New(errors.ErrConfig, "Config file not found: x.yaml", "Run 'gorgon init'")

	t.Run("text goes to stderr", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		reportError(&stdout, &stderr, err)
		assert.Empty(t, stdout.String())
		assert.Contains(t, stderr.String(), "Config file not found: x.yaml")
		assert.Contains(t, stderr.String(), "Run 'gorgon init'")
	})

	t.Run("json goes to stdout", func(t *testing.T) {
		useMachineMode(t)
		var stdout, stderr bytes.Buffer
		reportError(&stdout, &stderr, err)
		assert.Empty(t, stderr.String())
		assert.Contains(t, stdout.String(), `"code": "CONFIG_NOT_FOUND"`)
	})
}
