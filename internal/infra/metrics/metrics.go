package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service counters. Register once in main; the /metrics
// endpoint serves the default registry.
type Metrics struct {
	Scans      *prometheus.CounterVec
	BulkLoads  prometheus.Counter
	RowsLoaded prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Scans: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stocktake_scans_total",
			Help: "Scan attempts by terminal outcome.",
		}, []string{"outcome"}),
		BulkLoads: factory.NewCounter(prometheus.CounterOpts{
			Name: "stocktake_bulk_loads_total",
			Help: "Completed warehouse bulk reloads.",
		}),
		RowsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "stocktake_bulk_rows_loaded_total",
			Help: "Product rows inserted by bulk reloads.",
		}),
	}
}
