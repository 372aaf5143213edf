package sensor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const waitDelay = 500 * time.Millisecond

// Runner executes a shell command and returns its standard output.
// A non-zero exit status is an error.
type Runner interface {
	Run(ctx context.Context, command string) ([]byte, error)
}

// LocalRunner runs commands on this machine through sh -c.
type LocalRunner struct {
	// Shell defaults to "sh".
	Shell string
}

// Run implements Runner.
func (r LocalRunner) Run(ctx context.Context, command string) ([]byte, error) {
	shell := r.Shell
	if shell == "" {
		shell = "sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Do not wait on grandchildren holding the output pipes after a kill.
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", command, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", command, err)
	}
	return stdout.Bytes(), nil
}
