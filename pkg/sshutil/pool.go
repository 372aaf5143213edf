package sshutil

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/rileyhilliard/gorgon/internal/errors"
)

// Pool shares one connection per host between sensors. Connections are
// opened on first use; a failed dial is retried on the next use.
type Pool struct {
	dial func(ctx context.Context, host string) (*Client, error)

	mu      sync.Mutex
	clients map[string]*Client
	closed  bool
}

// NewPool returns a pool dialing with d.
func NewPool(d *Dialer) *Pool {
	if d == nil {
		d = &Dialer{}
	}
	return &Pool{dial: d.Dial, clients: make(map[string]*Client)}
}

// Get returns the connection for host, dialing it if needed.
func (p *Pool) Get(ctx context.Context, host string) (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, stderrors.New("ssh pool is closed")
	}
	if c, ok := p.clients[host]; ok {
		return c, nil
	}

	c, err := p.dial(ctx, host)
	if err != nil {
		return nil, err
	}
	p.clients[host] = c
	return c, nil
}

// Drop closes and forgets the connection for host so the next Get redials.
func (p *Pool) Drop(host string) error {
	p.mu.Lock()
	c, ok := p.clients[host]
	delete(p.clients, host)
	p.mu.Unlock()

	if !ok {
		return nil
	}
	return c.Close()
}

// Runner returns a command runner bound to host. The connection is opened
// lazily by the first command.
func (p *Pool) Runner(host string) *HostRunner {
	return &HostRunner{pool: p, host: host}
}

// Hosts returns the hosts with an open connection.
func (p *Pool) Hosts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	hosts := make([]string, 0, len(p.clients))
	for h := range p.clients {
		hosts = append(hosts, h)
	}
	return hosts
}

// Close closes every connection. The pool cannot be used afterwards.
func (p *Pool) Close() error {
	p.mu.Lock()
	clients := p.clients
	p.clients = make(map[string]*Client)
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for _, c := range clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// HostRunner runs commands on one host through a Pool.
type HostRunner struct {
	pool *Pool
	host string
}

// Host returns the target host.
func (r *HostRunner) Host() string { return r.host }

// Run executes command on the host.
func (r *HostRunner) Run(ctx context.Context, command string) ([]byte, error) {
	c, err := r.pool.Get(ctx, r.host)
	if err != nil {
		return nil, err
	}
	out, err := c.Run(ctx, command)
	if err != nil && errors.IsCode(err, errors.ErrSSH) {
		// The session could not be opened, so the connection is likely dead.
		_ = r.pool.Drop(r.host)
	}
	return out, err
}
