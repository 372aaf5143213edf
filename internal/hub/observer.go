package hub

import (
	"time"

	"github.com/rileyhilliard/gorgon/internal/telemetry"
)

// CycleStats describes one finished hub cycle.
type CycleStats struct {
	Cycle     string
	Timestamp time.Time
	Duration  time.Duration
	// Crabs is the number of crabs the cycle polled or meant to poll.
	Crabs int
	// Failed lists failing crabs in registry order.
	Failed []string
	// Committed and Evicted count hub buffer records.
	Committed int
	Evicted   int
	BufferLen int
	// Records are the records committed by the cycle, in registry order.
	Records []telemetry.Record
	Err     error
}

// Observer is told about every finished cycle, failed ones included.
// It is called with the cycle lock held, so it must not start another cycle.
type Observer interface {
	CycleFinished(CycleStats)
}

// ObserverFunc adapts a function into an Observer.
type ObserverFunc func(CycleStats)

// CycleFinished implements Observer.
func (f ObserverFunc) CycleFinished(s CycleStats) { f(s) }

// Observers fans a report out to several observers in order.
type Observers []Observer

// CycleFinished implements Observer.
func (o Observers) CycleFinished(s CycleStats) {
	for _, obs := range o {
		obs.CycleFinished(s)
	}
}
