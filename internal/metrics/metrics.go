// Package metrics holds the Prometheus collectors for the POS backend and the
// HTTP middleware that feeds the request ones.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pos",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	RequestInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pos",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being served.",
	})

	// SalesCommitted counts sales persisted, by payment method.
	SalesCommitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: "sales",
			Name:      "committed_total",
			Help:      "Total sales committed.",
		},
		[]string{"payment_method"},
	)

	// SalesRejected counts sale commits refused, by reason.
	SalesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: "sales",
			Name:      "rejected_total",
			Help:      "Total sale commits rejected.",
		},
		[]string{"reason"}, // "validation" | "inventory_not_found" | "not_in_inventory" | "insufficient_stock" | "storage"
	)

	// CommitConflicts counts optimistic version conflicts retried by the
	// document store.
	CommitConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: "inventory",
		Name:      "commit_conflicts_total",
		Help:      "Inventory version conflicts encountered while committing sales.",
	})

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: "dashboard_cache",
			Name:      "lookups_total",
			Help:      "Dashboard cache lookups by result.",
		},
		[]string{"result"}, // "hit" | "miss" | "error"
	)

	SideEffectFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: "sales",
			Name:      "side_effect_failures_total",
			Help:      "Best-effort post-commit side effects that failed.",
		},
		[]string{"effect"}, // "receipt" | "cache_invalidate"
	)
)

var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	Registry.MustRegister(
		RequestDuration,
		RequestInFlight,
		SalesCommitted,
		SalesRejected,
		CommitConflicts,
		CacheLookups,
		SideEffectFailures,
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records duration and in-flight count per chi route pattern, so
// path parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		RequestInFlight.Inc()
		defer RequestInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
