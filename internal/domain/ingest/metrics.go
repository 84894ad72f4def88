package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	kmlFeaturesExtracted = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "productores_kml_features_extracted",
		Help:    "Polygon features extracted per uploaded KML",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})

	reconcileIssuesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "productores_reconcile_issues_total",
			Help: "Bucket/ledger mismatches found by reconciliation",
		},
		[]string{"type"},
	)

	ingestOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "productores_ingest_operations_total",
			Help: "Ingestion workflow outcomes",
		},
		[]string{"op", "result"},
	)
)

func observeOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ingestOperationsTotal.WithLabelValues(op, result).Inc()
}
