package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Reading is a single named value, the unit a Snapshot is assembled from.
type Reading struct {
	Name  string
	Value float64
}

// Snapshot is a read-only, insertion-ordered mapping from name to reading.
// The zero value is an empty snapshot.
type Snapshot struct {
	names  []string
	values map[string]float64
}

// NewSnapshot builds a snapshot from readings in order. A repeated name keeps
// the position of its first occurrence and the value of its last one.
func NewSnapshot(readings ...Reading) Snapshot {
	s := Snapshot{
		names:  make([]string, 0, len(readings)),
		values: make(map[string]float64, len(readings)),
	}
	for _, r := range readings {
		if _, seen := s.values[r.Name]; !seen {
			s.names = append(s.names, r.Name)
		}
		s.values[r.Name] = r.Value
	}
	return s
}

// Get returns the value for name and whether it was present.
func (s Snapshot) Get(name string) (float64, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Value returns the value for name, or 0 if absent.
func (s Snapshot) Value(name string) float64 {
	return s.values[name]
}

// Len returns the number of distinct names.
func (s Snapshot) Len() int {
	return len(s.names)
}

// Names returns the names in insertion order.
func (s Snapshot) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Readings returns the snapshot as ordered readings.
func (s Snapshot) Readings() []Reading {
	out := make([]Reading, len(s.names))
	for i, name := range s.names {
		out[i] = Reading{Name: name, Value: s.values[name]}
	}
	return out
}

// MarshalJSON encodes the snapshot as a JSON object preserving insertion order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		v := s.values[name]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("reading %q has unsupported value %v", name, v)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
