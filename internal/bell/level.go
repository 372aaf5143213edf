package bell

import (
	"fmt"
	"math"
)

// Level is the severity of one reading.
type Level int

const (
	OK Level = iota
	Warn
	Crit
)

func (l Level) String() string {
	switch l {
	case OK:
		return "OK"
	case Warn:
		return "WARN"
	case Crit:
		return "CRIT"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// MarshalText renders the level name in JSON output.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Thresholds are inclusive lower bounds of the warning and critical levels.
type Thresholds struct {
	Warn float64 `yaml:"warn" mapstructure:"warn" json:"warn"`
	Crit float64 `yaml:"crit" mapstructure:"crit" json:"crit"`
}

// Classify returns Crit when v >= Crit, Warn when v >= Warn, otherwise OK.
func (t Thresholds) Classify(v float64) Level {
	if v >= t.Crit {
		return Crit
	}
	if v >= t.Warn {
		return Warn
	}
	return OK
}

// Validate checks that both bounds are finite and warn does not exceed crit.
func (t Thresholds) Validate() error {
	if math.IsNaN(t.Warn) || math.IsInf(t.Warn, 0) || math.IsNaN(t.Crit) || math.IsInf(t.Crit, 0) {
		return fmt.Errorf("thresholds must be finite (warn %v, crit %v)", t.Warn, t.Crit)
	}
	if t.Warn > t.Crit {
		return fmt.Errorf("warn %.1f is above crit %.1f", t.Warn, t.Crit)
	}
	return nil
}

// Metric is one snapshot key the bell reports on.
type Metric struct {
	Key        string
	Label      string
	Thresholds Thresholds
}

// Defaults for the stock sensors.
var (
	DefaultCPUThresholds    = Thresholds{Warn: 70, Crit: 90}
	DefaultMemoryThresholds = Thresholds{Warn: 80, Crit: 95}
)

// DefaultMetrics reports cpu and memory with the default thresholds.
func DefaultMetrics() []Metric {
	return []Metric{
		{Key: "cpu", Label: "CPU", Thresholds: DefaultCPUThresholds},
		{Key: "memory", Label: "MEM", Thresholds: DefaultMemoryThresholds},
	}
}
