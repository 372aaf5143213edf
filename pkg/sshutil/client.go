// Package sshutil connects to remote hosts over SSH so sensors can sample
// them. Connection settings come from ~/.ssh/config; auth uses the ssh agent
// and the usual key files; host keys are checked against known_hosts.
package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/rileyhilliard/gorgon/internal/errors"
	"github.com/rileyhilliard/gorgon/internal/logger"
	"golang.org/x/crypto/ssh"
)

// DefaultTimeout bounds the TCP connect and the SSH handshake.
const DefaultTimeout = 10 * time.Second

// Dialer opens SSH connections. The zero value uses ~/.ssh/config,
// ~/.ssh/known_hosts, the ssh agent and the default key files.
type Dialer struct {
	Timeout time.Duration

	// ConfigPath and KnownHostsPath default to the files under ~/.ssh.
	ConfigPath     string
	KnownHostsPath string

	// InsecureIgnoreHostKey disables known_hosts verification.
	InsecureIgnoreHostKey bool

	// Auth and HostKeyCallback replace the resolved defaults when set.
	Auth            []ssh.AuthMethod
	HostKeyCallback ssh.HostKeyCallback

	Logger logger.Logger
}

// Client is one SSH connection to a host.
type Client struct {
	conn *ssh.Client
	// closers are released with the connection (the agent socket).
	closers []func() error

	Host    string // host or alias as given to Dial
	Address string // resolved host:port
}

// Dial connects to host with a zero Dialer and the given timeout.
// host may be an ssh config alias, a hostname, user@host or host:port.
func Dial(host string, timeout time.Duration) (*Client, error) {
	d := &Dialer{Timeout: timeout}
	return d.Dial(context.Background(), host)
}

// Dial connects to host. Errors carry the SSH code.
func (d *Dialer) Dial(ctx context.Context, host string) (*Client, error) {
	log := d.Logger
	if log == nil {
		log = logger.Noop()
	}

	configPath := d.ConfigPath
	if configPath == "" {
		configPath = DefaultConfigPath()
	}
	s := resolveSettings(host, configPath)
	if s.matchLine > 0 && !s.fromConfig {
		log.Warn("host %q not found in %s; entries after the Match block at line %d are not read",
			host, configPath, s.matchLine)
	}

	clientConfig, closers, encrypted, err := d.clientConfig(s)
	if err != nil {
		return nil, err
	}
	release := func() {
		for _, c := range closers {
			c()
		}
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	clientConfig.Timeout = timeout

	address := s.address()
	netDialer := net.Dialer{Timeout: timeout}
	conn, err := netDialer.DialContext(ctx, "tcp", address)
	if err != nil {
		release()
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach '%s' at %s", host, address),
			suggestionForDialError(err))
	}

	// Bound the handshake; the deadline is cleared once it completes.
	_ = conn.SetDeadline(time.Now().Add(timeout))
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, clientConfig)
	if err != nil {
		conn.Close()
		release()

		var mismatch *HostKeyMismatchError
		if stderrors.As(err, &mismatch) {
			return nil, errors.New(errors.ErrSSH, mismatch.Error(), mismatch.Suggestion())
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", host),
			suggestionForHandshakeError(err, encrypted))
	}
	_ = conn.SetDeadline(time.Time{})

	log.Debug("connected to %s (%s) as %s", host, address, s.user)
	return &Client{
		conn:    ssh.NewClient(sshConn, chans, reqs),
		closers: closers,
		Host:    host,
		Address: address,
	}, nil
}

// clientConfig resolves auth and host key checking for s.
func (d *Dialer) clientConfig(s *settings) (*ssh.ClientConfig, []func() error, []string, error) {
	var closers []func() error
	var encrypted []string

	methods := d.Auth
	if len(methods) == 0 {
		if method, conn := agentAuth(); method != nil {
			methods = append(methods, method)
			closers = append(closers, conn.Close)
		}
		var keys []ssh.AuthMethod
		keys, encrypted = keyFileAuths(s.identityFile)
		methods = append(methods, keys...)
	}

	if len(methods) == 0 {
		if len(encrypted) > 0 {
			return nil, nil, nil, errors.New(errors.ErrSSH,
				fmt.Sprintf("Found SSH key(s) but they're encrypted: %s", strings.Join(encrypted, ", ")),
				addKeysSuggestion(encrypted))
		}
		return nil, nil, nil, errors.New(errors.ErrSSH,
			"No SSH auth methods available",
			"Check your keys are loaded: ssh-add -l")
	}

	hostKeyCallback := d.HostKeyCallback
	switch {
	case hostKeyCallback != nil:
	case d.InsecureIgnoreHostKey:
		hostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // explicitly requested
	default:
		path := d.KnownHostsPath
		if path == "" {
			path = filepath.Join(homeDir(), ".ssh", "known_hosts")
		}
		cb, err := knownHostsCallback(path)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, nil, nil, errors.WrapWithCode(err, errors.ErrSSH,
				"Couldn't load known_hosts",
				fmt.Sprintf("Check that %s is readable", path))
		}
		hostKeyCallback = cb
	}

	return &ssh.ClientConfig{
		User:            s.user,
		Auth:            methods,
		HostKeyCallback: hostKeyCallback,
	}, closers, encrypted, nil
}

// Run executes command in a new session and returns its stdout. A non-zero
// exit status is an EXEC error that includes stderr. Cancelling ctx closes
// the session and returns ctx.Err().
func (c *Client) Run(ctx context.Context, command string) ([]byte, error) {
	session, err := c.conn.NewSession()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Failed to open a session on '%s'", c.Host),
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		session.Close()
		return nil, ctx.Err()
	case err = <-done:
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if stderrors.As(err, &exitErr) {
			msg := fmt.Sprintf("'%s' exited with status %d on '%s'", command, exitErr.ExitStatus(), c.Host)
			if detail := strings.TrimSpace(stderr.String()); detail != "" {
				msg += ": " + detail
			}
			return nil, errors.New(errors.ErrExec, msg,
				"Check that the command exists on the remote host.")
		}
		return nil, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to execute '%s' on '%s'", command, c.Host),
			"Connection may have been closed. Try reconnecting.")
	}
	return stdout.Bytes(), nil
}

// Close closes the connection.
func (c *Client) Close() error {
	var errs []error
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !stderrors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	for _, closer := range c.closers {
		if err := closer(); err != nil && !stderrors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return stderrors.Join(errs...)
}
