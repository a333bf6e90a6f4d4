package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts the number of requests served by the
	// counters server.
	//
	// Example usage:
	// metrics.RequestsTotal.WithLabelValues("add", "OK").Inc()
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "counters_requests_total",
			Help: "Number of requests served by the counters server.",
		},
		[]string{"type", "status"},
	)

	// RequestHandlerDuration is a histogram that tracks the latency of each
	// request handler.
	RequestHandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "counters_request_handler_duration",
			Help: "A histogram of latencies for each request handler.",
		},
		[]string{"path"},
	)

	// BackendRequestDuration is a histogram that tracks the latency of
	// requests from a counters backend to its storage or remote peer.
	//
	// Example usage:
	// metrics.BackendRequestDuration.WithLabelValues("redis", "PFADD", "OK").Observe(d)
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "counters_backend_request_duration",
			Help: "A histogram of request latency to the counters backend.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1,
				2.5, 5, 10, 30},
		},
		[]string{"backend", "op", "status"},
	)

	// JournalMessagesTotal counts the journal messages handled by the batch
	// processor, per object type.
	JournalMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "counters_journal_messages_total",
			Help: "Number of journal messages processed, by object type.",
		},
		[]string{"type"},
	)

	// JournalDecodeErrorsTotal counts the journal messages that could not
	// be decoded.
	JournalDecodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "counters_journal_decode_errors_total",
			Help: "Number of journal messages that failed to decode, by object type.",
		},
		[]string{"type"},
	)

	// JournalBatchesTotal counts the batches handed to the batch processor.
	JournalBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "counters_journal_batches_total",
			Help: "Number of journal batches processed.",
		},
		[]string{"status"},
	)

	// DistinctEstimate exposes the last exported count of each collection.
	DistinctEstimate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "counters_distinct_estimate",
			Help: "Estimated number of distinct keys per collection.",
		},
		[]string{"collection"},
	)

	// HistoryExportsTotal counts the snapshots taken by the history
	// exporter.
	HistoryExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "counters_history_exports_total",
			Help: "Number of counter snapshots exported.",
		},
		[]string{"status"},
	)
)
