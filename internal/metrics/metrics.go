// Package metrics exposes the sentinel's Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors updated by the decision pipeline.
type Metrics struct {
	registry *prometheus.Registry

	PacketsProcessed prometheus.Counter
	Verdicts         *prometheus.CounterVec
	ProcessingErrors prometheus.Counter
	SinkErrors       prometheus.Counter
	DroppedPackets   prometheus.Counter
	DroppedVerdicts  prometheus.Counter
	DecisionLatency  prometheus.Histogram
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PacketsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netsentry",
			Name:      "packets_processed_total",
			Help:      "Packet records taken off the capture queue.",
		}),
		Verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netsentry",
			Name:      "verdicts_total",
			Help:      "Verdicts emitted, by kind and by the signal that produced them.",
		}, []string{"kind", "source"}),
		ProcessingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netsentry",
			Name:      "processing_errors_total",
			Help:      "Packets whose decision failed and was skipped.",
		}),
		SinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netsentry",
			Name:      "sink_errors_total",
			Help:      "Verdicts that at least one sink failed to persist.",
		}),
		DroppedPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netsentry",
			Name:      "dropped_packets_total",
			Help:      "Packet records dropped because the capture queue was full.",
		}),
		DroppedVerdicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netsentry",
			Name:      "dropped_verdicts_total",
			Help:      "Verdicts discarded because the ClickHouse retry buffer was full.",
		}),
		DecisionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "netsentry",
			Name:      "decision_latency_seconds",
			Help:      "Time spent deciding one packet, including sinks.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}
	m.registry.MustRegister(
		m.PacketsProcessed,
		m.Verdicts,
		m.ProcessingErrors,
		m.SinkErrors,
		m.DroppedPackets,
		m.DroppedVerdicts,
		m.DecisionLatency,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
