package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/gorgon/internal/errors"
	"github.com/rileyhilliard/gorgon/internal/telemetry"
	"github.com/rileyhilliard/gorgon/pkg/sshutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status   CheckStatus
		expected string
	}{
		{StatusPass, "pass"},
		{StatusWarn, "warn"},
		{StatusFail, "fail"},
		{CheckStatus(99), "unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.status.String())
			text, err := tc.status.MarshalText()
			require.NoError(t, err)
			assert.Equal(t, tc.expected, string(text))
		})
	}

	var st CheckStatus
	require.NoError(t, st.UnmarshalText([]byte("warn")))
	assert.Equal(t, StatusWarn, st)
	assert.Error(t, st.UnmarshalText([]byte("meh")))
}

// mockCheck is a test implementation of Check.
type mockCheck struct {
	name     string
	category string
	result   CheckResult
	sawCtx   context.Context
}

func (m *mockCheck) Name() string     { return m.name }
func (m *mockCheck) Category() string { return m.category }
func (m *mockCheck) Run(ctx context.Context) CheckResult {
	m.sawCtx = ctx
	return m.result
}

func TestRunAll(t *testing.T) {
	first := &mockCheck{name: "one", category: CategoryCrabs, result: pass("fine")}
	second := &mockCheck{name: "two", category: CategoryConfig, result: fail("fix it", "broken")}

	results := RunAll(context.Background(), []Check{first, second}, time.Minute)

	require.Len(t, results, 2)
	assert.Equal(t, "one", results[0].Name)
	assert.Equal(t, CategoryCrabs, results[0].Category)
	assert.Equal(t, StatusPass, results[0].Status)
	assert.Equal(t, "two", results[1].Name)
	assert.Equal(t, "fix it", results[1].Suggestion)

	deadline, ok := first.sawCtx.Deadline()
	require.True(t, ok, "each check gets a deadline")
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
	assert.Error(t, first.sawCtx.Err(), "the check context is released after Run")
}

func TestGroupByCategory(t *testing.T) {
	results := []CheckResult{
		{Name: "c1", Category: CategoryCrabs},
		{Name: "x", Category: "EXTRA"},
		{Name: "cfg", Category: CategoryConfig},
		{Name: "c2", Category: CategoryCrabs},
	}

	groups := GroupByCategory(results)
	require.Len(t, groups, 3)
	assert.Equal(t, "cfg", groups[0][0].Name)
	assert.Len(t, groups[1], 2)
	assert.Equal(t, "c1", groups[1][0].Name)
	assert.Equal(t, "EXTRA", groups[2][0].Category)
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "Everything looks good", Summary([]CheckResult{{Status: StatusPass}}))
	assert.Equal(t, "1 issue found", Summary([]CheckResult{{Status: StatusWarn}, {Status: StatusPass}}))
	assert.Equal(t, "2 issues found", Summary([]CheckResult{{Status: StatusFail}, {Status: StatusWarn}}))

	assert.False(t, HasFailures([]CheckResult{{Status: StatusWarn}}))
	assert.True(t, HasIssues([]CheckResult{{Status: StatusWarn}}))
	assert.True(t, HasFailures([]CheckResult{{Status: StatusPass}, {Status: StatusFail}}))
	assert.Equal(t, 2, CountByStatus([]CheckResult{{Status: StatusPass}, {Status: StatusPass}})[StatusPass])
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestConfigChecks(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", `version: 1
crabs:
  - name: A
    sensors:
      - kind: fixed
        name: cpu
        value: 1
`)
	bad := writeFile(t, dir, "bad.yaml", `version: 1
crabs:
  - name: A
    sensors:
      - kind: cpuu
`)
	broken := writeFile(t, dir, "broken.yaml", "crabs: [")

	tests := []struct {
		name   string
		check  Check
		status CheckStatus
		msg    string
	}{
		{name: "file found", check: &ConfigFileCheck{ConfigPath: good}, status: StatusPass, msg: "Config file: good.yaml"},
		{name: "explicit file missing", check: &ConfigFileCheck{ConfigPath: filepath.Join(dir, "nope.yaml")}, status: StatusFail, msg: "Error finding config"},
		{name: "valid", check: &ConfigValidCheck{ConfigPath: good}, status: StatusPass, msg: "1 crab with 1 sensor, policy abort"},
		{name: "invalid", check: &ConfigValidCheck{ConfigPath: bad}, status: StatusFail, msg: "Invalid config"},
		{name: "unparsable", check: &ConfigValidCheck{ConfigPath: broken}, status: StatusFail, msg: "Failed to load config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.check.Run(context.Background())
			assert.Equal(t, tt.status, r.Status, r.Message)
			assert.Contains(t, r.Message, tt.msg)
			if tt.status != StatusPass {
				assert.NotEmpty(t, r.Suggestion)
			}
		})
	}
}

func TestSSHAgentCheck(t *testing.T) {
	t.Run("no agent", func(t *testing.T) {
		t.Setenv("SSH_AUTH_SOCK", "")
		r := (&SSHAgentCheck{}).Run(context.Background())
		assert.Equal(t, StatusWarn, r.Status)
	})

	t.Run("dead socket", func(t *testing.T) {
		r := (&SSHAgentCheck{Socket: filepath.Join(t.TempDir(), "agent.sock")}).Run(context.Background())
		assert.Equal(t, StatusFail, r.Status)
		assert.Contains(t, r.Message, "not accessible")
	})
}

func TestKnownHostsCheck(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "known_hosts", "")

	assert.Equal(t, StatusPass, (&KnownHostsCheck{Path: file}).Run(context.Background()).Status)
	assert.Equal(t, StatusWarn, (&KnownHostsCheck{Path: filepath.Join(dir, "missing")}).Run(context.Background()).Status)
	assert.Equal(t, StatusFail, (&KnownHostsCheck{Path: dir}).Run(context.Background()).Status)
}

type fakeRunner struct {
	out string
	err error
}

func (r fakeRunner) Run(context.Context, string) ([]byte, error) {
	return []byte(r.out), r.err
}

func TestHostCheck(t *testing.T) {
	tests := []struct {
		name   string
		runner fakeRunner
		status CheckStatus
		msg    string
		hint   string
	}{
		{name: "linux", runner: fakeRunner{out: "Linux\n"}, status: StatusPass, msg: "web: connected (linux)"},
		{name: "darwin", runner: fakeRunner{out: "Darwin\n"}, status: StatusPass, msg: "connected (darwin)"},
		{name: "unknown platform", runner: fakeRunner{out: "Plan9\n"}, status: StatusWarn, msg: "unrecognized platform"},
		{
			name:   "ssh error",
			runner: fakeRunner{err: errors.New(errors.ErrSSH, "Can't connect to web", "Check that web is up")},
			status: StatusFail,
			msg:    "web: Can't connect to web",
			hint:   "Check that web is up",
		},
		{
			name:   "host key mismatch",
			runner: fakeRunner{err: fmt.Errorf("dial: %w", &sshutil.HostKeyMismatchError{Hostname: "web", ReceivedType: "ssh-ed25519", KnownHosts: "~/.ssh/known_hosts"})},
			status: StatusFail,
			msg:    "host key mismatch",
			hint:   "ssh-keygen -R web",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := &HostCheck{Host: "web", Runner: tt.runner}
			assert.Equal(t, "host_web", check.Name())

			r := check.Run(context.Background())
			assert.Equal(t, tt.status, r.Status)
			assert.Contains(t, r.Message, tt.msg)
			if tt.hint != "" {
				assert.Contains(t, r.Suggestion, tt.hint)
			}
		})
	}
}

type fakePoller struct {
	snap  telemetry.Snapshot
	err   error
	delay time.Duration
}

func (p fakePoller) Name() string { return "A" }
func (p fakePoller) CollectOnce(context.Context) (telemetry.Snapshot, error) {
	time.Sleep(p.delay)
	return p.snap, p.err
}

func TestCrabCheck(t *testing.T) {
	snap := telemetry.NewSnapshot(telemetry.Reading{Name: "cpu", Value: 1}, telemetry.Reading{Name: "memory", Value: 2})

	r := (&CrabCheck{Crab: fakePoller{snap: snap}}).Run(context.Background())
	assert.Equal(t, StatusPass, r.Status)
	assert.Contains(t, r.Message, "A: 2 readings in")

	r = (&CrabCheck{Crab: fakePoller{snap: snap, delay: 20 * time.Millisecond}, Slow: time.Millisecond}).Run(context.Background())
	assert.Equal(t, StatusWarn, r.Status)
	assert.Contains(t, r.Message, "(slow)")

	sensorErr := errors.WrapWithCode(fmt.Errorf("boom"), errors.ErrSensor, "Sensor 'cpu' on crab 'A' failed", "")
	r = (&CrabCheck{Crab: fakePoller{err: sensorErr}}).Run(context.Background())
	assert.Equal(t, StatusFail, r.Status)
	assert.Equal(t, "A: Sensor 'cpu' on crab 'A' failed", r.Message)
	assert.Contains(t, r.Suggestion, "gorgon collect --crab A")
}
