// Package metrics exposes Prometheus collectors for scans, polls, cycles and
// emitted events.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"raywatch/internal/domain"
)

// Collectors implements discovery.Observer, service.Recorder and
// service.Sink.
type Collectors struct {
	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	units          prometheus.Gauge
	polls          *prometheus.CounterVec
	scanReplies    prometheus.Gauge
	scanMatched    prometheus.Gauge
	scanErrors     *prometheus.CounterVec
	events         *prometheus.CounterVec
	lastCycleEpoch prometheus.Gauge
}

// New creates the collectors. NewRegistry registers them for serving.
func New() *Collectors {
	return &Collectors{
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raywatch_cycles_total",
				Help: "Poll cycles run, by result",
			},
			[]string{"result"},
		),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "raywatch_cycle_duration_seconds",
			Help:    "Wall time of one poll cycle",
			Buckets: []float64{0.5, 1, 2, 3, 5, 10, 20, 30, 60},
		}),
		units: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raywatch_units",
			Help: "Units polled in the last cycle, scanned or fallback",
		}),
		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raywatch_unit_polls_total",
				Help: "Login and fetch attempts, by result",
			},
			[]string{"result"},
		),
		scanReplies: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raywatch_scan_replies",
			Help: "Hosts that answered the last ARP scan",
		}),
		scanMatched: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raywatch_scan_matched",
			Help: "Hosts of the last ARP scan classified as chargers",
		}),
		scanErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raywatch_scan_errors_total",
				Help: "Failed scans, by kind",
			},
			[]string{"kind"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raywatch_events_total",
				Help: "Events emitted, by type",
			},
			[]string{"event"},
		),
		lastCycleEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raywatch_last_cycle_timestamp_seconds",
			Help: "Unix time the last cycle finished",
		}),
	}
}

// Describe implements prometheus.Collector
func (c *Collectors) Describe(ch chan<- *prometheus.Desc) {
	for _, col := range c.all() {
		col.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (c *Collectors) Collect(ch chan<- prometheus.Metric) {
	for _, col := range c.all() {
		col.Collect(ch)
	}
}

func (c *Collectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.cycles,
		c.cycleDuration,
		c.units,
		c.polls,
		c.scanReplies,
		c.scanMatched,
		c.scanErrors,
		c.events,
		c.lastCycleEpoch,
	}
}

// ObserveScan records the counts of a successful scan
func (c *Collectors) ObserveScan(replies, matched int) {
	c.scanReplies.Set(float64(replies))
	c.scanMatched.Set(float64(matched))
}

// ObserveScanError counts a failed scan
func (c *Collectors) ObserveScanError(kind string) {
	c.scanErrors.WithLabelValues(kind).Inc()
}

// ObserveCycle records a finished cycle
func (c *Collectors) ObserveCycle(result string, elapsed time.Duration) {
	c.cycles.WithLabelValues(result).Inc()
	c.cycleDuration.Observe(elapsed.Seconds())
	c.lastCycleEpoch.SetToCurrentTime()
}

// ObservePoll counts one unit poll
func (c *Collectors) ObservePoll(result string) {
	c.polls.WithLabelValues(result).Inc()
}

// SetUnits records how many units the current cycle polls
func (c *Collectors) SetUnits(n int) {
	c.units.Set(float64(n))
}

// Emit counts an event on its way to the output stream
func (c *Collectors) Emit(_ context.Context, ev domain.Event) error {
	c.events.WithLabelValues(string(ev.Type)).Inc()
	return nil
}

// NewRegistry returns a registry holding c plus the Go runtime and process
// collectors.
func NewRegistry(c *Collectors) (*prometheus.Registry, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(c); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	return registry, nil
}

// Handler exposes the Prometheus registry.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
