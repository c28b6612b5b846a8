package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tpch_docstore_records_total",
			Help: "Input records read, by collection and outcome (parsed, skipped)",
		},
		[]string{"collection", "outcome"},
	)

	DocumentsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tpch_docstore_documents_written_total",
			Help: "Documents inserted by collection reloads",
		},
		[]string{"collection"},
	)

	OrphanOrders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tpch_docstore_orphan_orders",
			Help: "Orders left out of the denormalized collection by the last nest run",
		},
	)

	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tpch_docstore_queries_total",
			Help: "Query engine calls by query and status",
		},
		[]string{"query", "status"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tpch_docstore_query_duration_seconds",
			Help:    "Duration of query engine calls",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"query"},
	)
)

func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
