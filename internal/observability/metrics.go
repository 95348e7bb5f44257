// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ledger metrics
	OperationsTotal  *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec
	LedgerSequence   prometheus.Gauge
	MintSupply       *prometheus.GaugeVec

	// Journal metrics
	JournalWrites      prometheus.Counter
	JournalWriteErrors prometheus.Counter
	SupplyPointErrors  prometheus.Counter

	// Event metrics
	EventsPublished  *prometheus.CounterVec
	WSSubscribers    prometheus.Gauge
	WSDroppedEvents  prometheus.Counter
	SideEffectErrors *prometheus.CounterVec

	// Replay metrics
	ReceiptsReplayed prometheus.Counter
	AuditFailures    prometheus.Counter

	seqMu   sync.Mutex
	lastSeq uint64
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "token_ledger"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		OperationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Total number of ledger operations by kind and result code",
		}, []string{"kind", "result"}),
		OperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operation_latency_seconds",
			Help:      "Ledger operation latency in seconds, journal write included",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		LedgerSequence: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "sequence",
			Help:      "Last committed receipt sequence",
		}),
		MintSupply: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "mint_supply",
			Help:      "Current supply per mint in base units",
		}, []string{"mint"}),

		JournalWrites: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "writes_total",
			Help:      "Total number of receipts written to the journal",
		}),
		JournalWriteErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "write_errors_total",
			Help:      "Total number of journal writes that failed after retries",
		}),
		SupplyPointErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "supply_point_errors_total",
			Help:      "Total number of supply points that could not be stored",
		}),

		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of receipt events published by sink",
		}, []string{"sink"}),
		WSSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "ws_subscribers",
			Help:      "Current number of websocket receipt subscribers",
		}),
		WSDroppedEvents: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "ws_dropped_total",
			Help:      "Total number of receipts dropped for slow websocket subscribers",
		}),
		SideEffectErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "side_effect_errors_total",
			Help:      "Total number of failed post-commit side effects by sink",
		}, []string{"sink"}),

		ReceiptsReplayed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "receipts_total",
			Help:      "Total number of receipts replayed from the journal",
		}),
		AuditFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "audit_failures_total",
			Help:      "Total number of mints failing the supply audit",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide metrics registered with the default registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = NewMetrics("", nil)
	})
	return defaultMetrics
}

// RecordOperation records one ledger operation. result is "ok" or an error code.
func (m *Metrics) RecordOperation(kind, result string, seconds float64) {
	m.OperationsTotal.WithLabelValues(kind, result).Inc()
	m.OperationLatency.WithLabelValues(kind).Observe(seconds)
}

// RecordCommit raises the sequence gauge to seq and, for supply-changing
// operations, sets the supply gauge of mint. The sequence gauge never moves back.
func (m *Metrics) RecordCommit(seq uint64, mint string, supply uint64, supplyChanged bool) {
	m.seqMu.Lock()
	if seq > m.lastSeq {
		m.lastSeq = seq
		m.LedgerSequence.Set(float64(seq))
	}
	m.seqMu.Unlock()
	if supplyChanged {
		m.MintSupply.WithLabelValues(mint).Set(float64(supply))
	}
}

// RecordJournalWrite records a journal write outcome.
func (m *Metrics) RecordJournalWrite(err error) {
	if err != nil {
		m.JournalWriteErrors.Inc()
		return
	}
	m.JournalWrites.Inc()
}

// RecordPublished records a delivered event for sink.
func (m *Metrics) RecordPublished(sink string) {
	m.EventsPublished.WithLabelValues(sink).Inc()
}

// RecordSideEffectError records a failed post-commit side effect.
func (m *Metrics) RecordSideEffectError(sink string) {
	m.SideEffectErrors.WithLabelValues(sink).Inc()
}
