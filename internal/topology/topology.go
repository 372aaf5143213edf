// Package topology wires a validated config into a running pipeline: a hub
// with one registered crab per config entry, each owning its sensors.
package topology

import (
	"fmt"

	"github.com/rileyhilliard/gorgon/internal/agent"
	"github.com/rileyhilliard/gorgon/internal/bell"
	"github.com/rileyhilliard/gorgon/internal/config"
	"github.com/rileyhilliard/gorgon/internal/errors"
	"github.com/rileyhilliard/gorgon/internal/hub"
	"github.com/rileyhilliard/gorgon/internal/logger"
	"github.com/rileyhilliard/gorgon/internal/sensor"
	"github.com/rileyhilliard/gorgon/pkg/sshutil"
)

// Stack is the assembled pipeline.
type Stack struct {
	Hub   *hub.Hub
	Crabs []*agent.Agent

	// BellMetrics are the metrics the bell reports, in display order.
	BellMetrics []bell.Metric

	pool    *sshutil.Pool
	remotes []*remoteHost
}

// Crab returns the registered crab with the given name.
func (s *Stack) Crab(name string) (*agent.Agent, bool) {
	for _, c := range s.Crabs {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// RemoteHosts returns the distinct SSH hosts of remote crabs in config order.
func (s *Stack) RemoteHosts() []string {
	hosts := make([]string, len(s.remotes))
	for i, rh := range s.remotes {
		hosts[i] = rh.host
	}
	return hosts
}

// Runner returns the runner the remote sensors of host use.
func (s *Stack) Runner(host string) (sensor.Runner, bool) {
	for _, rh := range s.remotes {
		if rh.host == host {
			return rh.runner, true
		}
	}
	return nil, false
}

// Close releases the SSH connections opened by remote sensors.
func (s *Stack) Close() error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

type options struct {
	log       logger.Logger
	observers hub.Observers
	hubOpts   []hub.Option
	crabOpts  []agent.Option
	dialer    *sshutil.Dialer
	local     sensor.Runner
	remote    func(host string) sensor.Runner
	cpu       func() sensor.Sensor
	memory    func() sensor.Sensor
}

// Option configures Build.
type Option func(*options)

// WithLogger sets the logger handed to the hub, the crabs and the SSH dialer.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithObserver adds a hub observer. May be given more than once.
func WithObserver(obs hub.Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// WithHubOptions appends extra hub options after the configured ones.
func WithHubOptions(opts ...hub.Option) Option {
	return func(o *options) { o.hubOpts = append(o.hubOpts, opts...) }
}

// WithCrabOptions appends extra agent options to every crab.
func WithCrabOptions(opts ...agent.Option) Option {
	return func(o *options) { o.crabOpts = append(o.crabOpts, opts...) }
}

// WithDialer replaces the SSH dialer derived from the config.
func WithDialer(d *sshutil.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithLocalRunner sets the runner used by command sensors of local crabs.
func WithLocalRunner(r sensor.Runner) Option {
	return func(o *options) { o.local = r }
}

// WithRemoteRunner replaces the SSH pool as the source of runners for remote crabs.
func WithRemoteRunner(fn func(host string) sensor.Runner) Option {
	return func(o *options) { o.remote = fn }
}

// WithSystemSensors replaces the local cpu and memory sensors.
func WithSystemSensors(cpu, memory func() sensor.Sensor) Option {
	return func(o *options) {
		o.cpu = cpu
		o.memory = memory
	}
}

// Build turns cfg into a Stack. cfg must already be validated; Build still
// returns structured errors for anything the agent or hub rejects.
func Build(cfg *config.Config, opts ...Option) (*Stack, error) {
	o := &options{
		log:    logger.Noop(),
		local:  sensor.LocalRunner{},
		cpu:    sensor.CPU,
		memory: sensor.Memory,
	}
	for _, opt := range opts {
		opt(o)
	}

	policy, err := hub.ParseFailurePolicy(cfg.Hub.FailurePolicy)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Unknown hub failure policy '%s'", cfg.Hub.FailurePolicy),
			"Use 'abort' or 'partial'.")
	}

	hubOpts := []hub.Option{
		hub.WithFailurePolicy(policy),
		hub.WithParallel(cfg.Hub.Parallel),
		hub.WithLogger(o.log),
	}
	if cfg.Hub.BufferSize != nil {
		hubOpts = append(hubOpts, hub.WithBufferSize(*cfg.Hub.BufferSize))
	}
	if len(o.observers) > 0 {
		hubOpts = append(hubOpts, hub.WithObserver(o.observers))
	}
	hubOpts = append(hubOpts, o.hubOpts...)

	h, err := hub.New(hubOpts...)
	if err != nil {
		return nil, err
	}

	stack := &Stack{
		Hub:         h,
		BellMetrics: cfg.Bell.BellMetrics(),
	}

	remote := o.remote
	if remote == nil && hasRemote(cfg.Crabs) {
		d := o.dialer
		if d == nil {
			d = &sshutil.Dialer{
				Timeout:        cfg.SSH.Timeout,
				ConfigPath:     cfg.SSH.Config,
				KnownHostsPath: cfg.SSH.KnownHosts,
				Logger:         o.log,
			}
		}
		stack.pool = sshutil.NewPool(d)
		remote = func(host string) sensor.Runner { return stack.pool.Runner(host) }
	}

	hosts := make(map[string]*remoteHost)
	for _, cc := range cfg.Crabs {
		var rh *remoteHost
		if cc.Remote() {
			rh = hosts[cc.Host]
			if rh == nil {
				rh = newRemoteHost(cc.Host, remote(cc.Host), o.log)
				hosts[cc.Host] = rh
				stack.remotes = append(stack.remotes, rh)
			}
		}

		sensors := make([]sensor.Sensor, 0, len(cc.Sensors))
		for _, sc := range cc.Sensors {
			s, err := buildSensor(sc, rh, o)
			if err != nil {
				_ = stack.Close()
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					fmt.Sprintf("Can't build sensors for crab '%s'", cc.Name),
					"Check the crab's 'sensors' list in .gorgon.yaml.")
			}
			sensors = append(sensors, s)
		}

		crab, err := agent.New(cc.Name, sensors, append(crabOptions(cc, o.log), o.crabOpts...)...)
		if err != nil {
			_ = stack.Close()
			return nil, err
		}
		if err := h.Register(crab); err != nil {
			_ = stack.Close()
			return nil, err
		}
		stack.Crabs = append(stack.Crabs, crab)
		o.log.Debug("registered crab %s (%d sensors, host %q)", cc.Name, len(sensors), cc.Host)
	}

	return stack, nil
}

func crabOptions(cc config.CrabConfig, log logger.Logger) []agent.Option {
	opts := []agent.Option{agent.WithLogger(log)}
	if cc.BufferSize != nil {
		opts = append(opts, agent.WithBufferSize(*cc.BufferSize))
	}
	// Zero keeps the agent default.
	if cc.Interval > 0 {
		opts = append(opts, agent.WithInterval(cc.Interval))
	}
	if cc.ReadTimeout > 0 {
		opts = append(opts, agent.WithReadTimeout(cc.ReadTimeout))
	}
	return opts
}

// buildSensor constructs one sensor. rh is nil for local crabs.
func buildSensor(sc config.SensorConfig, rh *remoteHost, o *options) (sensor.Sensor, error) {
	name := sc.SensorName()

	switch sc.Kind {
	case config.KindCPU:
		if rh != nil {
			return rh.sensor(name, config.KindCPU), nil
		}
		return rename(o.cpu(), name), nil
	case config.KindMemory:
		if rh != nil {
			return rh.sensor(name, config.KindMemory), nil
		}
		return rename(o.memory(), name), nil
	case config.KindCommand:
		if rh != nil {
			return sensor.Command(name, rh.runner, sc.Command), nil
		}
		return sensor.Command(name, o.local, sc.Command), nil
	case config.KindFixed:
		return sensor.Fixed(name, sc.Value), nil
	}
	return nil, fmt.Errorf("unknown sensor kind %q", sc.Kind)
}

// rename gives a stock sensor a configured name.
func rename(s sensor.Sensor, name string) sensor.Sensor {
	if s.Name() == name {
		return s
	}
	return sensor.Func(name, s.Read)
}

func hasRemote(crabs []config.CrabConfig) bool {
	for _, c := range crabs {
		if c.Remote() {
			return true
		}
	}
	return false
}
