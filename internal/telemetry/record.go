package telemetry

import "time"

// Record is one buffered history entry. Crab and Cycle are only set on
// records kept by the hub; a crab's own records leave them empty.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Crab      string    `json:"crab,omitempty"`
	Cycle     string    `json:"cycle,omitempty"`
	Values    Snapshot  `json:"values"`
}
