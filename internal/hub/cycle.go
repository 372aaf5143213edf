package hub

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/gorgon/internal/errors"
	"github.com/rileyhilliard/gorgon/internal/telemetry"
	"github.com/rileyhilliard/gorgon/internal/util"
	"golang.org/x/sync/errgroup"
)

// CrabFailure is one crab that failed during a cycle.
type CrabFailure struct {
	Crab string
	Err  error
}

// CycleError lists the crabs skipped by a Partial cycle.
type CycleError struct {
	Cycle    string
	Failures []CrabFailure
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Crab, firstLine(f.Err))
	}
	return fmt.Sprintf("%d %s failed: %s",
		len(e.Failures), util.Pluralize(len(e.Failures), "crab", "crabs"), strings.Join(parts, "; "))
}

// Unwrap exposes every crab error to errors.Is and errors.As.
func (e *CycleError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Crabs returns the names of the failed crabs in registry order.
func (e *CycleError) Crabs() []string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Crab
	}
	return names
}

// result is the outcome of polling one crab.
type result struct {
	snap   telemetry.Snapshot
	err    error
	polled bool
}

// CollectOnce polls every registered crab once. All records of a cycle share
// one timestamp and cycle id and are committed to the hub buffer in registry
// order once the cycle is complete.
//
// Under Abort the first failure stops the cycle: nothing is committed, the
// map is nil and the error is coded HUB. Under Partial failing crabs are left
// out of the map and the buffer, and the error wraps a *CycleError.
func (h *Hub) CollectOnce(ctx context.Context) (map[string]telemetry.Snapshot, error) {
	h.cycleMu.Lock()
	defer h.cycleMu.Unlock()

	entries := h.entries()
	ts := h.clock()
	id := h.newID()
	started := time.Now()

	results := make([]result, len(entries))
	if h.parallel > 1 && len(entries) > 1 {
		h.pollParallel(ctx, entries, results)
	} else {
		h.pollSequential(ctx, entries, results)
	}

	stats := CycleStats{
		Cycle:     id,
		Timestamp: ts,
		Crabs:     len(entries),
	}

	var failures []CrabFailure
	for i, r := range results {
		if r.err != nil {
			failures = append(failures, CrabFailure{Crab: entries[i].name, Err: r.err})
		}
	}

	if len(failures) > 0 && h.policy == Abort {
		first := failures[0]
		stats.Failed = []string{first.Crab}
		stats.Duration = time.Since(started)
		stats.BufferLen = h.buffer.Len()
		err := errors.WrapWithCode(first.Err, errors.ErrHub,
			fmt.Sprintf("Hub cycle aborted: crab '%s' failed", first.Crab),
			"No records were kept for this cycle.")
		stats.Err = err
		h.log.Warn("cycle %s aborted by crab %s", id, first.Crab)
		h.notify(stats)
		return nil, err
	}

	out := make(map[string]telemetry.Snapshot, len(entries)-len(failures))
	records := make([]telemetry.Record, 0, len(entries)-len(failures))
	for i, r := range results {
		if r.err != nil || !r.polled {
			continue
		}
		out[entries[i].name] = r.snap
		records = append(records, telemetry.Record{
			Timestamp: ts,
			Crab:      entries[i].name,
			Cycle:     id,
			Values:    r.snap,
		})
	}

	stats.Evicted = h.buffer.PushAll(records)
	stats.Committed = len(records)
	stats.Records = records
	stats.BufferLen = h.buffer.Len()
	stats.Duration = time.Since(started)

	var err error
	if len(failures) > 0 {
		cycleErr := &CycleError{Cycle: id, Failures: failures}
		stats.Failed = cycleErr.Crabs()
		err = errors.WrapWithCode(cycleErr, errors.ErrHub,
			fmt.Sprintf("Hub cycle partially failed: %d of %d crabs skipped", len(failures), len(entries)),
			"")
		stats.Err = err
		h.log.Warn("cycle %s: %v", id, cycleErr)
	}

	h.log.Debug("cycle %s: %d record(s) committed, %d evicted", id, stats.Committed, stats.Evicted)
	h.notify(stats)
	return out, err
}

func (h *Hub) pollSequential(ctx context.Context, entries []entry, results []result) {
	for i, e := range entries {
		snap, err := e.agent.CollectOnce(ctx)
		results[i] = result{snap: snap, err: err, polled: true}
		if err != nil && h.policy == Abort {
			return
		}
	}
}

// pollParallel polls with at most h.parallel crabs in flight. Under Abort
// the first failure cancels the crabs not yet finished.
func (h *Hub) pollParallel(ctx context.Context, entries []entry, results []result) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.parallel)

	for i, e := range entries {
		g.Go(func() error {
			if h.policy == Abort && gctx.Err() != nil {
				return nil
			}
			snap, err := e.agent.CollectOnce(gctx)
			results[i] = result{snap: snap, err: err, polled: true}
			if err != nil && h.policy == Abort {
				return &crabError{name: e.name, err: err}
			}
			return nil
		})
	}

	var ce *crabError
	if !stderrors.As(g.Wait(), &ce) {
		return
	}

	// Report only the crab that tripped the abort; siblings that failed
	// because they were cancelled are not the cause.
	for i, e := range entries {
		if e.name != ce.name {
			results[i].err = nil
			results[i].polled = false
		}
	}
}

type crabError struct {
	name string
	err  error
}

func (e *crabError) Error() string { return e.name + ": " + e.err.Error() }
func (e *crabError) Unwrap() error { return e.err }

// CollectCrab polls one registered crab through the hub and records the
// result in the hub history.
func (h *Hub) CollectCrab(ctx context.Context, name string) (telemetry.Snapshot, error) {
	a, err := h.Lookup(name)
	if err != nil {
		return telemetry.Snapshot{}, err
	}

	h.cycleMu.Lock()
	defer h.cycleMu.Unlock()

	ts := h.clock()
	id := h.newID()
	started := time.Now()
	stats := CycleStats{Cycle: id, Timestamp: ts, Crabs: 1}

	snap, err := a.CollectOnce(ctx)
	if err != nil {
		err = errors.WrapWithCode(err, errors.ErrHub,
			fmt.Sprintf("Polling crab '%s' failed", name), "")
		stats.Failed = []string{name}
		stats.Err = err
		stats.Duration = time.Since(started)
		stats.BufferLen = h.buffer.Len()
		h.notify(stats)
		return telemetry.Snapshot{}, err
	}

	record := telemetry.Record{Timestamp: ts, Crab: name, Cycle: id, Values: snap}
	if h.buffer.Push(record) {
		stats.Evicted = 1
	}
	stats.Committed = 1
	stats.Records = []telemetry.Record{record}
	stats.BufferLen = h.buffer.Len()
	stats.Duration = time.Since(started)
	h.notify(stats)
	return snap, nil
}

// Run runs a cycle, then waits for interval, until ctx is cancelled.
// Cancellation interrupts the wait but never a cycle in progress, and
// returns nil. An aborted cycle stops the loop and its error is returned;
// partial failures are logged and the loop continues.
func (h *Hub) Run(ctx context.Context, interval time.Duration) error {
	if interval < 0 {
		return errors.New(errors.ErrHub,
			fmt.Sprintf("Negative hub interval %s", interval),
			"Use an interval of 0 or more.")
	}
	h.log.Info("polling %d crab(s) every %s (%s)", h.Len(), interval, h.policy)

	cycleCtx := context.WithoutCancel(ctx)
	for ctx.Err() == nil {
		if _, err := h.CollectOnce(cycleCtx); err != nil {
			var cycleErr *CycleError
			if !stderrors.As(err, &cycleErr) {
				h.log.Error("stopping: %v", firstLine(err))
				return err
			}
		}
		if !util.Sleep(ctx, interval) {
			break
		}
	}
	return nil
}

func (h *Hub) notify(stats CycleStats) {
	if h.observer != nil {
		h.observer.CycleFinished(stats)
	}
}

// firstLine trims a multi-line structured error to its headline.
func firstLine(err error) string {
	msg := strings.TrimSpace(err.Error())
	msg = strings.TrimPrefix(msg, "✗ ")
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}
