// Package metrics exposes the relay's Prometheus instruments.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "robotrelay"

// Sync cycle outcomes used as the "result" label.
const (
	ResultSynced       = "synced"
	ResultNoop         = "noop"
	ResultUnreachable  = "unreachable"
	ResultUnconfigured = "unconfigured"
	ResultFailed       = "failed"
)

type Metrics struct {
	SamplesIngested prometheus.Counter
	IngestFailures  prometheus.Counter
	SyncCycles      *prometheus.CounterVec
	RowsSynced      prometheus.Counter
	PendingRows     prometheus.Gauge
	QueriesServed   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers every instrument on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		SamplesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_ingested_total",
			Help:      "Samples written to the local store.",
		}),
		IngestFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_failures_total",
			Help:      "Samples lost because the local write failed.",
		}),
		SyncCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_cycles_total",
			Help:      "Sync cycles by outcome.",
		}, []string{"result"}),
		RowsSynced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_synced_total",
			Help:      "Samples written to the cloud store and marked synced.",
		}),
		PendingRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_rows",
			Help:      "Unsynced samples after the last sync cycle.",
		}),
		QueriesServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_served_total",
			Help:      "History queries by the store that answered them.",
		}, []string{"source"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.SamplesIngested,
		m.IngestFailures,
		m.SyncCycles,
		m.RowsSynced,
		m.PendingRows,
		m.QueriesServed,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
