// Package hub implements the octopus: a registry of crabs that polls every
// registered crab in one cycle, merges the snapshots under a shared
// timestamp and keeps its own bounded history of per-crab records.
package hub

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rileyhilliard/gorgon/internal/errors"
	"github.com/rileyhilliard/gorgon/internal/logger"
	"github.com/rileyhilliard/gorgon/internal/telemetry"
	"github.com/rileyhilliard/gorgon/internal/util"
)

// DefaultBufferSize is the hub history capacity.
const DefaultBufferSize = 1000

// Agent is what the hub needs from a crab.
type Agent interface {
	Name() string
	CollectOnce(ctx context.Context) (telemetry.Snapshot, error)
}

// intervaler is implemented by agents that have their own poll interval.
type intervaler interface {
	Interval() time.Duration
}

// IntervalOf returns a's own poll interval if it has one.
func IntervalOf(a Agent) (time.Duration, bool) {
	if iv, ok := a.(intervaler); ok {
		return iv.Interval(), true
	}
	return 0, false
}

// FailurePolicy decides what a cycle does when a crab fails.
type FailurePolicy int

const (
	// Abort stops the cycle at the first failure and commits nothing.
	Abort FailurePolicy = iota
	// Partial skips failing crabs and commits the rest.
	Partial
)

func (p FailurePolicy) String() string {
	switch p {
	case Abort:
		return "abort"
	case Partial:
		return "partial"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

// ParseFailurePolicy converts "abort" or "partial" to a FailurePolicy.
// An empty string is Abort.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return Abort, nil
	case "partial":
		return Partial, nil
	}
	return Abort, fmt.Errorf("unknown failure policy %q (want abort or partial)", s)
}

// Hub owns a registry of agents and the merged history buffer.
type Hub struct {
	regMu  sync.RWMutex
	order  []string
	agents map[string]Agent

	// cycleMu serializes cycles so records of two cycles never interleave.
	cycleMu sync.Mutex

	buffer   *telemetry.Buffer
	policy   FailurePolicy
	parallel int
	clock    func() time.Time
	newID    func() string
	log      logger.Logger
	observer Observer
}

type options struct {
	bufferSize int
	policy     FailurePolicy
	parallel   int
	clock      func() time.Time
	newID      func() string
	log        logger.Logger
	observer   Observer
}

// Option configures a Hub.
type Option func(*options)

// WithBufferSize sets how many records the hub keeps. Must be at least 1.
func WithBufferSize(n int) Option {
	return func(o *options) { o.bufferSize = n }
}

// WithFailurePolicy sets the cycle failure policy. Defaults to Abort.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithParallel polls up to n crabs at once. n <= 1 polls sequentially.
func WithParallel(n int) Option {
	return func(o *options) { o.parallel = n }
}

// WithClock replaces time.Now for cycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithIDGenerator replaces the random cycle id source.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithObserver receives a report after every cycle.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// New creates an empty hub.
func New(opts ...Option) (*Hub, error) {
	o := options{
		bufferSize: DefaultBufferSize,
		policy:     Abort,
		clock:      time.Now,
		newID:      uuid.NewString,
		log:        logger.Noop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.policy != Abort && o.policy != Partial {
		return nil, errors.New(errors.ErrHub,
			fmt.Sprintf("Unknown failure policy %s", o.policy),
			"Use abort or partial.")
	}
	buffer, err := telemetry.NewBuffer(o.bufferSize)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrHub,
			fmt.Sprintf("Hub has buffer size %d", o.bufferSize),
			"buffer_size must be at least 1.")
	}

	return &Hub{
		agents:   make(map[string]Agent),
		buffer:   buffer,
		policy:   o.policy,
		parallel: o.parallel,
		clock:    o.clock,
		newID:    o.newID,
		log:      o.log,
		observer: o.observer,
	}, nil
}

// Policy returns the failure policy.
func (h *Hub) Policy() FailurePolicy { return h.policy }

// BufferSize returns the history capacity.
func (h *Hub) BufferSize() int { return h.buffer.Cap() }

// Register adds a under its name. Registering a name that is already
// present replaces the old agent in its original position.
func (h *Hub) Register(a Agent) error {
	if a == nil {
		return errors.New(errors.ErrRegistry, "Can't register a nil crab", "")
	}
	name := a.Name()
	if name == "" {
		return errors.New(errors.ErrRegistry,
			"Can't register a crab without a name",
			"Give every crab a unique, non-empty name.")
	}

	h.regMu.Lock()
	defer h.regMu.Unlock()

	if _, exists := h.agents[name]; exists {
		h.log.Debug("replacing crab %s", name)
	} else {
		h.order = append(h.order, name)
	}
	h.agents[name] = a
	return nil
}

// Unregister removes the agent named name. Unknown names are ignored.
func (h *Hub) Unregister(name string) {
	h.regMu.Lock()
	defer h.regMu.Unlock()

	if _, exists := h.agents[name]; !exists {
		return
	}
	delete(h.agents, name)
	for i, n := range h.order {
		if n == name {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Names returns the registered names in registration order.
func (h *Hub) Names() []string {
	h.regMu.RLock()
	defer h.regMu.RUnlock()
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// Len returns the number of registered agents.
func (h *Hub) Len() int {
	h.regMu.RLock()
	defer h.regMu.RUnlock()
	return len(h.order)
}

// Lookup returns the agent registered as name. Unknown names are a
// REGISTRY error that suggests close matches.
func (h *Hub) Lookup(name string) (Agent, error) {
	h.regMu.RLock()
	a, ok := h.agents[name]
	names := append([]string(nil), h.order...)
	h.regMu.RUnlock()

	if ok {
		return a, nil
	}

	suggestion := "Registered crabs: " + util.JoinOrNone(names)
	if similar := util.SuggestSimilar(name, names, 3); len(similar) > 0 {
		suggestion = "Did you mean " + strings.Join(similar, " or ") + "?"
	}
	return nil, errors.New(errors.ErrRegistry,
		fmt.Sprintf("Crab '%s' is not registered", name),
		suggestion)
}

type entry struct {
	name  string
	agent Agent
}

// entries snapshots the registry in order so a cycle is unaffected by
// concurrent registration.
func (h *Hub) entries() []entry {
	h.regMu.RLock()
	defer h.regMu.RUnlock()
	out := make([]entry, len(h.order))
	for i, name := range h.order {
		out[i] = entry{name: name, agent: h.agents[name]}
	}
	return out
}

// Buffer returns a copy of the hub history, oldest first.
func (h *Hub) Buffer() []telemetry.Record {
	return h.buffer.Records()
}

// Last returns up to n of the most recent hub records, oldest first.
func (h *Hub) Last(n int) []telemetry.Record {
	return h.buffer.Last(n)
}

// History returns the buffered records of one crab, oldest first.
func (h *Hub) History(name string) []telemetry.Record {
	var out []telemetry.Record
	for _, r := range h.buffer.Records() {
		if r.Crab == name {
			out = append(out, r)
		}
	}
	return out
}
