package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// TrailMetrics aggregates the ledger-level counters exported by the node.
type TrailMetrics struct {
	seriesCreated prometheus.Counter
	copiesMinted  *prometheus.CounterVec
	transfers     prometheus.Counter
	callFailures  *prometheus.CounterVec
}

var (
	trailOnce     sync.Once
	trailRegistry *TrailMetrics
)

// Trail returns the process-wide ledger metrics, registering the collectors on
// first use.
func Trail() *TrailMetrics {
	trailOnce.Do(func() {
		trailRegistry = &TrailMetrics{
			seriesCreated: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "trail_series_created_total",
				Help: "Count of trail series registered on the ledger.",
			}),
			copiesMinted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "trail_copies_minted_total",
				Help: "Count of issued trail copies by mint path.",
			}, []string{"path"}),
			transfers: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "trail_transfers_total",
				Help: "Count of completed copy ownership transfers.",
			}),
			callFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "trail_call_failures_total",
				Help: "Count of rejected ledger calls by method.",
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			trailRegistry.seriesCreated,
			trailRegistry.copiesMinted,
			trailRegistry.transfers,
			trailRegistry.callFailures,
		)
	})
	return trailRegistry
}

// ObserveSeriesCreated records a successful series registration.
func (m *TrailMetrics) ObserveSeriesCreated() {
	if m == nil {
		return
	}
	m.seriesCreated.Inc()
}

// ObserveCopyMinted records an issued copy on the given mint path
// ("creator" or "buy").
func (m *TrailMetrics) ObserveCopyMinted(path string) {
	if m == nil {
		return
	}
	if path == "" {
		path = "unknown"
	}
	m.copiesMinted.WithLabelValues(path).Inc()
}

// ObserveTransfer records a completed ownership move.
func (m *TrailMetrics) ObserveTransfer() {
	if m == nil {
		return
	}
	m.transfers.Inc()
}

// ObserveCallFailure records a rejected ledger call.
func (m *TrailMetrics) ObserveCallFailure(method string) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	m.callFailures.WithLabelValues(method).Inc()
}
