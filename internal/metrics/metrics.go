// Package metrics provides Prometheus metrics for the matscan ingestion
// pipeline: processing verdicts, blocklist activity, batched writes, and
// selector output.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "matscan"

	subsystemProcess   = "process"
	subsystemBlocklist = "blocklist"
	subsystemStore     = "store"
	subsystemSelector  = "selector"
)

// Rejection reasons recorded on ResponsesRejected.
const (
	ReasonNotStatus   = "not_status"
	ReasonBlocklisted = "blocklisted"
	ReasonPromoted    = "promoted"
)

// Metrics holds all pipeline collectors, registered on a private registry.
type Metrics struct {
	ResponsesAccepted prometheus.Counter
	ResponsesRejected *prometheus.CounterVec

	Promotions    prometheus.Counter
	BlocklistSize prometheus.Gauge

	BatchedUpdates prometheus.Counter

	SelectedTargets  *prometheus.CounterVec
	SkippedDocuments *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all pipeline metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		ResponsesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProcess,
			Name:      "accepted_total",
			Help:      "Probe responses normalized and accepted for storage",
		}),
		ResponsesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProcess,
			Name:      "rejected_total",
			Help:      "Probe responses rejected, by reason",
		}, []string{"reason"}),
		Promotions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemBlocklist,
			Name:      "promotions_total",
			Help:      "Addresses promoted to the blocklist",
		}),
		BlocklistSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemBlocklist,
			Name:      "size",
			Help:      "Current number of blocklisted addresses",
		}),
		BatchedUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemStore,
			Name:      "batched_updates_total",
			Help:      "Update requests handed to the write batcher",
		}),
		SelectedTargets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemSelector,
			Name:      "targets_total",
			Help:      "Targets produced by the selection passes",
		}, []string{"selector"}),
		SkippedDocuments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemSelector,
			Name:      "skipped_total",
			Help:      "Stored documents skipped as malformed during selection",
		}, []string{"selector"}),
		registry: registry,
	}

	registry.MustRegister(
		m.ResponsesAccepted,
		m.ResponsesRejected,
		m.Promotions,
		m.BlocklistSize,
		m.BatchedUpdates,
		m.SelectedTargets,
		m.SkippedDocuments,
	)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
