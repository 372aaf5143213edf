package sshutil

import (
	"context"
	stderrors "errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakePool(fail map[string]bool) (*Pool, *[]string) {
	var dialed []string
	p := &Pool{
		clients: make(map[string]*Client),
		dial: func(ctx context.Context, host string) (*Client, error) {
			dialed = append(dialed, host)
			if fail[host] {
				return nil, stderrors.New("unreachable")
			}
			return &Client{Host: host}, nil
		},
	}
	return p, &dialed
}

func TestPoolReusesConnections(t *testing.T) {
	p, dialed := fakePool(nil)

	a1, err := p.Get(context.Background(), "a")
	require.NoError(t, err)
	a2, err := p.Get(context.Background(), "a")
	require.NoError(t, err)
	_, err = p.Get(context.Background(), "b")
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.Equal(t, []string{"a", "b"}, *dialed)

	hosts := p.Hosts()
	sort.Strings(hosts)
	assert.Equal(t, []string{"a", "b"}, hosts)
}

func TestPoolRetriesFailedDial(t *testing.T) {
	fail := map[string]bool{"a": true}
	p, dialed := fakePool(fail)

	_, err := p.Get(context.Background(), "a")
	require.Error(t, err)

	fail["a"] = false
	_, err = p.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a"}, *dialed)
}

func TestPoolDrop(t *testing.T) {
	p, dialed := fakePool(nil)

	_, err := p.Get(context.Background(), "a")
	require.NoError(t, err)
	require.NoError(t, p.Drop("a"))
	require.NoError(t, p.Drop("never-dialed"))

	_, err = p.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Len(t, *dialed, 2)
}

func TestPoolClose(t *testing.T) {
	p, _ := fakePool(nil)

	_, err := p.Get(context.Background(), "a")
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.Empty(t, p.Hosts())

	_, err = p.Get(context.Background(), "a")
	assert.ErrorContains(t, err, "closed")
}

func TestHostRunner(t *testing.T) {
	addr, hostKey := startTestServer(t)
	p := NewPool(testDialer(t, hostKey))
	defer p.Close()

	r := p.Runner(addr)
	assert.Equal(t, addr, r.Host())

	out, err := r.Run(context.Background(), "echo 42")
	require.NoError(t, err)
	assert.Equal(t, "42\n", string(out))

	_, err = r.Run(context.Background(), "fail")
	require.Error(t, err)
	// Command failures keep the connection.
	assert.Equal(t, []string{addr}, p.Hosts())
}
