// Package telemetry holds the values that flow through the collection pipeline.
//
// A Snapshot is one poll cycle's readings keyed by sensor (or crab) name, in
// insertion order. A Record is a timestamped Snapshot kept in history, and a
// Buffer is the bounded, oldest-first history that crabs and the hub own.
package telemetry
