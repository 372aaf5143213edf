// Package metrics exports hub cycle statistics and the latest crab readings
// as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rileyhilliard/gorgon/internal/hub"
	"github.com/rileyhilliard/gorgon/internal/telemetry"
)

const namespace = "gorgon"

// Collector holds the gorgon metrics registered on one registry.
// It implements hub.Observer.
type Collector struct {
	registry *prometheus.Registry

	cycles        prometheus.Counter
	cycleFailures prometheus.Counter
	crabFailures  *prometheus.CounterVec
	bufferRecords prometheus.Gauge
	evictions     prometheus.Counter
	cycleDuration prometheus.Histogram
	readings      *prometheus.GaugeVec
	lastCycle     prometheus.Gauge
}

// New creates the collectors and registers them on reg. A nil reg gets a
// fresh registry.
func New(reg *prometheus.Registry) (*Collector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: reg,
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_cycles_total",
			Help:      "Total number of hub collection cycles.",
		}),
		cycleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_cycle_failures_total",
			Help:      "Hub cycles in which at least one crab failed.",
		}),
		crabFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crab_failures_total",
			Help:      "Failed polls per crab.",
		}, []string{"crab"}),
		bufferRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hub_buffer_records",
			Help:      "Records currently held in the hub buffer.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_evictions_total",
			Help:      "Records evicted from the full hub buffer.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "hub_cycle_duration_seconds",
			Help:      "Wall time of hub collection cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
		readings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "crab_reading",
			Help:      "Latest committed reading per crab and sensor.",
		}, []string{"crab", "sensor"}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hub_last_cycle_timestamp_seconds",
			Help:      "Unix time of the last hub cycle.",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.cycles, c.cycleFailures, c.crabFailures, c.bufferRecords,
		c.evictions, c.cycleDuration, c.readings, c.lastCycle,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Registry returns the registry the collectors live on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// CycleFinished implements hub.Observer.
func (c *Collector) CycleFinished(s hub.CycleStats) {
	c.cycles.Inc()
	if len(s.Failed) > 0 {
		c.cycleFailures.Inc()
	}
	for _, crab := range s.Failed {
		c.crabFailures.WithLabelValues(crab).Inc()
	}
	c.evictions.Add(float64(s.Evicted))
	c.bufferRecords.Set(float64(s.BufferLen))
	c.cycleDuration.Observe(s.Duration.Seconds())
	if !s.Timestamp.IsZero() {
		c.lastCycle.Set(float64(s.Timestamp.Unix()) + float64(s.Timestamp.Nanosecond())/float64(time.Second))
	}
	c.RecordReadings(s.Records)
}

// RecordReadings publishes the values of committed records as gauges.
func (c *Collector) RecordReadings(records []telemetry.Record) {
	for _, r := range records {
		for _, reading := range r.Values.Readings() {
			c.readings.WithLabelValues(r.Crab, reading.Name).Set(reading.Value)
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
