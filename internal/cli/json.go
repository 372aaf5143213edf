package cli

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"strings"

	"github.com/rileyhilliard/gorgon/internal/errors"
	"github.com/rileyhilliard/gorgon/internal/hub"
	"github.com/rileyhilliard/gorgon/pkg/sshutil"
)

// Machine mode flag - when true, outputs JSON and suppresses human-friendly decorations
var machineMode bool

// MachineMode returns true if machine-readable output is enabled
func MachineMode() bool {
	return machineMode
}

// JSONEnvelope wraps command output in a consistent structure for machine parsing.
// All --json output should use this envelope.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError provides structured error information for machine parsing.
type JSONError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// Error codes for machine-readable output.
const (
	ErrCodeConfigNotFound    = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid     = "CONFIG_INVALID"
	ErrCodeCrabNotFound      = "CRAB_NOT_FOUND"
	ErrCodeCrabInvalid       = "CRAB_INVALID"
	ErrCodeSensorFailed      = "SENSOR_FAILED"
	ErrCodeCycleAborted      = "CYCLE_ABORTED"
	ErrCodeCyclePartial      = "CYCLE_PARTIAL"
	ErrCodeSSHHostKey        = "SSH_HOST_KEY"
	ErrCodeSSHConnectionFail = "SSH_CONNECTION_FAILED"
	ErrCodeCommandFailed     = "COMMAND_FAILED"
	ErrCodeUnknown           = "UNKNOWN"
)

// WriteJSONSuccess writes a successful response with data to the writer.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	return writeJSONEnvelope(w, JSONEnvelope{
		Success: true,
		Data:    data,
	})
}

// WriteJSONError writes an error response to the writer.
func WriteJSONError(w io.Writer, code, message, suggestion string, details interface{}) error {
	return writeJSONEnvelope(w, JSONEnvelope{
		Success: false,
		Error: &JSONError{
			Code:       code,
			Message:    message,
			Suggestion: suggestion,
			Details:    details,
		},
	})
}

// WriteJSONFromError converts a Go error to a JSON error response.
func WriteJSONFromError(w io.Writer, err error) error {
	return writeJSONEnvelope(w, JSONEnvelope{
		Success: false,
		Error:   ErrorToJSON(err),
	})
}

// writeJSONEnvelope writes the envelope with consistent formatting.
func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// ErrorToJSON converts a Go error to a JSONError with appropriate code mapping.
func ErrorToJSON(err error) *JSONError {
	if err == nil {
		return nil
	}

	var mismatch *sshutil.HostKeyMismatchError
	if stderrors.As(err, &mismatch) {
		return &JSONError{
			Code:       ErrCodeSSHHostKey,
			Message:    mismatch.Error(),
			Suggestion: mismatch.Suggestion(),
			Details:    map[string]interface{}{"host": mismatch.Hostname},
		}
	}

	var gErr *errors.Error
	if stderrors.As(err, &gErr) {
		jsonErr := &JSONError{
			Code:       mapErrorCode(gErr.Code, gErr.Message),
			Message:    gErr.Message,
			Suggestion: gErr.Suggestion,
		}
		var cycleErr *hub.CycleError
		if stderrors.As(err, &cycleErr) {
			jsonErr.Code = ErrCodeCyclePartial
			jsonErr.Details = map[string]interface{}{
				"cycle": cycleErr.Cycle,
				"crabs": cycleErr.Crabs(),
			}
		}
		return jsonErr
	}

	return &JSONError{
		Code:    ErrCodeUnknown,
		Message: err.Error(),
	}
}

// mapErrorCode maps internal error codes to machine-readable codes.
func mapErrorCode(internalCode, message string) string {
	switch internalCode {
	case errors.ErrConfig:
		// Distinguish between not found and invalid
		msgLower := strings.ToLower(message)
		if strings.Contains(msgLower, "not found") {
			return ErrCodeConfigNotFound
		}
		return ErrCodeConfigInvalid
	case errors.ErrRegistry:
		return ErrCodeCrabNotFound
	case errors.ErrAgent:
		return ErrCodeCrabInvalid
	case errors.ErrSensor:
		return ErrCodeSensorFailed
	case errors.ErrHub:
		return ErrCodeCycleAborted
	case errors.ErrSSH:
		return ErrCodeSSHConnectionFail
	case errors.ErrExec:
		return ErrCodeCommandFailed
	}
	return ErrCodeUnknown
}
