package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var operationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "productores_storage_operations_total",
		Help: "Object storage calls by backend, operation and result",
	},
	[]string{"backend", "op", "result"},
)

func observe(backend, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	operationsTotal.WithLabelValues(backend, op, result).Inc()
}
