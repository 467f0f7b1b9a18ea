package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lots"

var (
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Write operations by name and outcome",
	}, []string{"op", "status"})
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Write operation latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
	ConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "parcel_conflicts_total",
		Help:      "Creation attempts rejected because a parcel already backs a lot",
	}, []string{"op"})

	GroupRecomputeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "groups",
		Name:      "recompute_total",
		Help:      "Group footprint recomputations",
	})
	GroupRecomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "groups",
		Name:      "recompute_duration_seconds",
		Help:      "Group footprint recomputation latency",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})
	GroupMembers = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "groups",
		Name:      "members",
		Help:      "Members per recomputed group",
		Buckets:   []float64{0, 1, 2, 3, 5, 10, 25, 50},
	})
	GroupsPrunedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "groups",
		Name:      "pruned_total",
		Help:      "Groups deleted after losing their last member",
	})

	LotsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "create",
		Name:      "lots_total",
		Help:      "Lots created by source",
	}, []string{"source"})
	OverlapCheckFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "create",
		Name:      "overlap_check_failures_total",
		Help:      "Overlap checks that errored and were treated as no overlap",
	})

	ExportCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "export",
		Name:      "cache_hits_total",
		Help:      "Export responses served from cache",
	}, []string{"format"})
	ExportCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "export",
		Name:      "cache_misses_total",
		Help:      "Export responses rendered from the database",
	}, []string{"format"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// LotHooks reports lots service events to Prometheus.
type LotHooks struct{}

func (LotHooks) ObserveOperation(name, status string, dur time.Duration) {
	OperationsTotal.WithLabelValues(name, status).Inc()
	OperationDuration.WithLabelValues(name).Observe(dur.Seconds())
}

func (LotHooks) IncConflict(name string) {
	ConflictsTotal.WithLabelValues(name).Inc()
}

func (LotHooks) GroupRecomputed(members int, dur time.Duration) {
	GroupRecomputeTotal.Inc()
	GroupRecomputeDuration.Observe(dur.Seconds())
	GroupMembers.Observe(float64(members))
}

func (LotHooks) GroupPruned() {
	GroupsPrunedTotal.Inc()
}

func (LotHooks) LotsCreated(source string, n int) {
	LotsCreatedTotal.WithLabelValues(source).Add(float64(n))
}

func (LotHooks) OverlapCheckFailed() {
	OverlapCheckFailuresTotal.Inc()
}

// ExportCacheObserver counts export cache lookups.
type ExportCacheObserver struct{}

func (ExportCacheObserver) Hit(format string)  { ExportCacheHits.WithLabelValues(format).Inc() }
func (ExportCacheObserver) Miss(format string) { ExportCacheMisses.WithLabelValues(format).Inc() }
