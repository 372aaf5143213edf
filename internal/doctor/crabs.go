package doctor

import (
	"context"
	"time"

	"github.com/rileyhilliard/gorgon/internal/telemetry"
)

// Poller is the part of a crab a trial poll needs.
type Poller interface {
	Name() string
	CollectOnce(ctx context.Context) (telemetry.Snapshot, error)
}

// CrabCheck polls a crab once and reports how long it took.
type CrabCheck struct {
	Crab Poller
	// Slow turns a successful poll into a warning when it takes longer.
	Slow time.Duration
}

func (c *CrabCheck) Name() string     { return "crab_" + c.Crab.Name() }
func (c *CrabCheck) Category() string { return CategoryCrabs }

func (c *CrabCheck) Run(ctx context.Context) CheckResult {
	started := time.Now()
	snap, err := c.Crab.CollectOnce(ctx)
	took := time.Since(started).Round(time.Millisecond)
	if err != nil {
		return fail(suggestion(err, "Run 'gorgon collect --crab "+c.Crab.Name()+"' for details"),
			"%s: %s", c.Crab.Name(), headline(err))
	}
	if c.Slow > 0 && took > c.Slow {
		return warn("Raise the crab's read_timeout or interval if cycles overlap",
			"%s: %d readings in %s (slow)", c.Crab.Name(), snap.Len(), took)
	}
	return pass("%s: %d readings in %s", c.Crab.Name(), snap.Len(), took)
}
