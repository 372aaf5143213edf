package doctor

import (
	"context"
	stderrors "errors"
	"net"
	"os"

	"github.com/rileyhilliard/gorgon/internal/config"
	"github.com/rileyhilliard/gorgon/internal/sensor"
	"github.com/rileyhilliard/gorgon/internal/util"
	"github.com/rileyhilliard/gorgon/pkg/sshutil"
	"golang.org/x/crypto/ssh/agent"
)

// SSHAgentCheck verifies the SSH agent is reachable and holds keys.
// A missing agent is a warning since key files also work.
type SSHAgentCheck struct {
	// Socket defaults to $SSH_AUTH_SOCK.
	Socket string
}

func (c *SSHAgentCheck) Name() string     { return "ssh_agent" }
func (c *SSHAgentCheck) Category() string { return CategorySSH }

func (c *SSHAgentCheck) Run(ctx context.Context) CheckResult {
	socket := c.Socket
	if socket == "" {
		socket = os.Getenv("SSH_AUTH_SOCK")
	}
	if socket == "" {
		return warn("Start one with: eval $(ssh-agent) && ssh-add",
			"SSH agent not running, falling back to key files")
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socket)
	if err != nil {
		return fail("Fix: eval $(ssh-agent) && ssh-add",
			"SSH agent socket not accessible")
	}
	defer conn.Close()

	keys, err := agent.NewClient(conn).List()
	if err != nil {
		return fail("Check SSH agent: ssh-add -l", "Cannot query SSH agent: %v", err)
	}
	if len(keys) == 0 {
		return warn("Add a key with: ssh-add", "SSH agent running but no keys loaded")
	}
	return pass("SSH agent running with %d %s loaded", len(keys), util.Pluralize(len(keys), "key", "keys"))
}

// KnownHostsCheck verifies the known_hosts file used for host key checks.
type KnownHostsCheck struct {
	Path string
}

func (c *KnownHostsCheck) Name() string     { return "known_hosts" }
func (c *KnownHostsCheck) Category() string { return CategorySSH }

func (c *KnownHostsCheck) Run(context.Context) CheckResult {
	path := config.ExpandTilde(c.Path)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return warn("Connect once with ssh, or run: ssh-keyscan <host> >> "+c.Path,
			"%s does not exist yet; unknown hosts will be rejected", c.Path)
	}
	if err != nil {
		return fail("Check the permissions of "+c.Path, "Cannot read %s: %v", c.Path, err)
	}
	if info.IsDir() {
		return fail("Point ssh.known_hosts at a file", "%s is a directory", c.Path)
	}
	return pass("Known hosts: %s", c.Path)
}

// HostCheck connects to a remote host and detects its platform, the same
// first step remote sensors take.
type HostCheck struct {
	Host   string
	Runner sensor.Runner
}

func (c *HostCheck) Name() string     { return "host_" + c.Host }
func (c *HostCheck) Category() string { return CategoryHosts }

func (c *HostCheck) Run(ctx context.Context) CheckResult {
	platform, err := sensor.DetectPlatform(ctx, c.Runner)
	if err != nil {
		var mismatch *sshutil.HostKeyMismatchError
		if stderrors.As(err, &mismatch) {
			return fail(mismatch.Suggestion(), "%s: host key mismatch", c.Host)
		}
		if ctx.Err() != nil {
			return fail("Host may be offline or blocked by firewall", "%s: timed out", c.Host)
		}
		return fail(suggestion(err, "Check that the host is reachable: ssh "+c.Host),
			"%s: %s", c.Host, headline(err))
	}
	if platform == sensor.PlatformUnknown {
		return warn("cpu and memory sensors read it like linux; results may be wrong",
			"%s: unrecognized platform", c.Host)
	}
	return pass("%s: connected (%s)", c.Host, platform)
}
