// Package agent implements a crab: a named poller that reads an ordered set
// of sensors, assembles the readings into a snapshot and keeps a bounded
// history of the snapshots it produced.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rileyhilliard/gorgon/internal/errors"
	"github.com/rileyhilliard/gorgon/internal/logger"
	"github.com/rileyhilliard/gorgon/internal/sensor"
	"github.com/rileyhilliard/gorgon/internal/telemetry"
	"github.com/rileyhilliard/gorgon/internal/util"
)

// Defaults for a crab.
const (
	DefaultBufferSize  = 100
	DefaultInterval    = 5 * time.Second
	DefaultReadTimeout = 10 * time.Second
)

// Agent polls its sensors and buffers the resulting snapshots.
// CollectOnce calls are serialized, so an agent can be polled by its own
// Run loop and by a hub at the same time.
type Agent struct {
	name        string
	sensors     []sensor.Sensor
	interval    time.Duration
	readTimeout time.Duration
	clock       func() time.Time
	log         logger.Logger
	onCycle     func(telemetry.Record)

	buffer *telemetry.Buffer
	mu     sync.Mutex
}

type options struct {
	bufferSize  int
	interval    time.Duration
	readTimeout time.Duration
	clock       func() time.Time
	log         logger.Logger
	onCycle     func(telemetry.Record)
}

// Option configures an Agent.
type Option func(*options)

// WithBufferSize sets how many snapshots the agent keeps. Must be at least 1.
func WithBufferSize(n int) Option {
	return func(o *options) { o.bufferSize = n }
}

// WithInterval sets the pause between cycles in Run. Zero polls back to back.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithReadTimeout bounds each sensor read. Defaults to DefaultReadTimeout;
// zero removes the bound.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) { o.readTimeout = d }
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithCycleHook registers fn to be called with every buffered record.
func WithCycleHook(fn func(telemetry.Record)) Option {
	return func(o *options) { o.onCycle = fn }
}

// New creates an agent named name reading sensors in the given order.
func New(name string, sensors []sensor.Sensor, opts ...Option) (*Agent, error) {
	o := options{
		bufferSize:  DefaultBufferSize,
		interval:    DefaultInterval,
		readTimeout: DefaultReadTimeout,
		clock:       time.Now,
		log:         logger.Noop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if name == "" {
		return nil, errors.New(errors.ErrAgent,
			"Crab name is empty",
			"Give every crab a unique, non-empty name.")
	}
	if o.bufferSize < 1 {
		return nil, errors.New(errors.ErrAgent,
			fmt.Sprintf("Crab '%s' has buffer size %d", name, o.bufferSize),
			"buffer_size must be at least 1.")
	}
	if o.interval < 0 {
		return nil, errors.New(errors.ErrAgent,
			fmt.Sprintf("Crab '%s' has negative interval %s", name, o.interval),
			"Use an interval of 0 or more.")
	}
	for i, s := range sensors {
		if s == nil {
			return nil, errors.New(errors.ErrAgent,
				fmt.Sprintf("Crab '%s' has a nil sensor at position %d", name, i),
				"")
		}
	}

	buffer, err := telemetry.NewBuffer(o.bufferSize)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrAgent,
			fmt.Sprintf("Couldn't create buffer for crab '%s'", name), "")
	}

	list := make([]sensor.Sensor, len(sensors))
	copy(list, sensors)

	return &Agent{
		name:        name,
		sensors:     list,
		interval:    o.interval,
		readTimeout: o.readTimeout,
		clock:       o.clock,
		log:         o.log,
		onCycle:     o.onCycle,
		buffer:      buffer,
	}, nil
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// Interval returns the pause between cycles in Run.
func (a *Agent) Interval() time.Duration { return a.interval }

// ReadTimeout returns the bound on each sensor read, zero for none.
func (a *Agent) ReadTimeout() time.Duration { return a.readTimeout }

// Sensors returns the sensors in read order.
func (a *Agent) Sensors() []sensor.Sensor {
	out := make([]sensor.Sensor, len(a.sensors))
	copy(out, a.sensors)
	return out
}

// BufferSize returns the history capacity.
func (a *Agent) BufferSize() int { return a.buffer.Cap() }

// CollectOnce reads every sensor in order and buffers the snapshot.
// If any read fails the cycle is dropped: nothing is buffered and the
// error, coded SENSOR, is returned.
func (a *Agent) CollectOnce(ctx context.Context) (telemetry.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	readings := make([]telemetry.Reading, 0, len(a.sensors))
	for _, s := range a.sensors {
		v, err := a.read(ctx, s)
		if err != nil {
			a.log.Debug("crab %s: sensor %s failed: %v", a.name, s.Name(), err)
			return telemetry.Snapshot{}, errors.WrapWithCode(err, errors.ErrSensor,
				fmt.Sprintf("Sensor '%s' on crab '%s' failed", s.Name(), a.name),
				"")
		}
		readings = append(readings, telemetry.Reading{Name: s.Name(), Value: v})
	}

	snap := telemetry.NewSnapshot(readings...)
	record := telemetry.Record{Timestamp: a.clock(), Values: snap}
	if a.buffer.Push(record) {
		a.log.Debug("crab %s: buffer full, evicted oldest record", a.name)
	}
	if a.onCycle != nil {
		a.onCycle(record)
	}
	return snap, nil
}

func (a *Agent) read(ctx context.Context, s sensor.Sensor) (float64, error) {
	if a.readTimeout <= 0 {
		return s.Read(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, a.readTimeout)
	defer cancel()
	return s.Read(ctx)
}

// Buffer returns a copy of the buffered records, oldest first.
func (a *Agent) Buffer() []telemetry.Record {
	return a.buffer.Records()
}

// Last returns up to n of the most recent records, oldest first.
func (a *Agent) Last(n int) []telemetry.Record {
	return a.buffer.Last(n)
}

// Run collects, then waits for the interval, until ctx is cancelled.
// Cancellation interrupts the wait but never a cycle in progress, so
// shutdown can take up to the read timeout per sensor. It returns nil. A
// failed cycle stops the loop and its error is returned.
func (a *Agent) Run(ctx context.Context) error {
	a.log.Info("crab %s: polling %d sensor(s) every %s", a.name, len(a.sensors), a.interval)

	cycleCtx := context.WithoutCancel(ctx)
	for ctx.Err() == nil {
		if _, err := a.CollectOnce(cycleCtx); err != nil {
			a.log.Error("crab %s: stopping: %v", a.name, err)
			return err
		}
		if !util.Sleep(ctx, a.interval) {
			break
		}
	}
	return nil
}
