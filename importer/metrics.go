package importer

import (
	"github.com/prometheus/client_golang/prometheus"
)

var TaskResults = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rszfile",
	Subsystem: "importer",
	Name:      "task_results",
}, []string{"game", "result"})

var DeduplicatedRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rszfile",
	Subsystem: "importer",
	Name:      "deduplicated_requests",
}, []string{"game"})

var CacheWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rszfile",
	Subsystem: "importer",
	Name:      "cache_writes",
}, []string{"game", "result"})

var TaskDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "rszfile",
	Subsystem: "importer",
	Name:      "task_duration_seconds",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
}, []string{"game"})

// Register registers the importer metrics with r.
func Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{TaskResults, DeduplicatedRequests, CacheWrites, TaskDuration} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
