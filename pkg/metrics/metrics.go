package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Domain metrics
	InvoicesCreated        prometheus.Counter
	InvoicesCanceled       *prometheus.CounterVec
	ChainIntegrityFailures prometheus.Counter
	FileCleanupFailures    prometheus.Counter
	FileImportsPurged      prometheus.Counter

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisLatency    *prometheus.HistogramVec
}

// NewMetrics creates all application metrics and registers them with reg.
// A nil reg registers with the default prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		InvoicesCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_created_total",
			Help:      "Total number of invoices issued",
		}),
		InvoicesCanceled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_canceled_total",
			Help:      "Total number of cancelled invoices by replacement kind",
		}, []string{"replacement"}),
		ChainIntegrityFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_chain_integrity_failures_total",
			Help:      "Total number of cyclic or broken invoice chains met while resolving",
		}),
		FileCleanupFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_cleanup_failures_total",
			Help:      "Total number of stored files that could not be removed after a delete",
		}),
		FileImportsPurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_imports_purged_total",
			Help:      "Total number of file imports removed by the purge worker",
		}),

		OutboxEventsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),

		RedisOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redis_operations_total",
			Help:      "Total number of Redis operations",
		}, []string{"operation", "status"}),
		RedisLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "redis_operation_duration_seconds",
			Help:      "Duration of Redis operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		}, []string{"operation"}),
	}
}

// The helpers below are safe on a nil *Metrics so tests and tools can run
// without a registry.

func (m *Metrics) InvoiceCreated() {
	if m != nil {
		m.InvoicesCreated.Inc()
	}
}

func (m *Metrics) InvoiceCanceled(replacement string) {
	if m != nil {
		m.InvoicesCanceled.WithLabelValues(replacement).Inc()
	}
}

func (m *Metrics) ChainIntegrityFailed() {
	if m != nil {
		m.ChainIntegrityFailures.Inc()
	}
}

func (m *Metrics) FileCleanupFailed(files int) {
	if m != nil {
		m.FileCleanupFailures.Add(float64(files))
	}
}

func (m *Metrics) FileImportPurged() {
	if m != nil {
		m.FileImportsPurged.Inc()
	}
}
