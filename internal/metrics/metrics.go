// Package metrics exposes prometheus collectors for the service. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry        *prometheus.Registry
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	operations      *prometheus.CounterVec
	sessionsClosed  *prometheus.CounterVec
	queueAdvanced   prometheus.Counter
	claimsExpired   prometheus.Counter
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	eventsDelivered *prometheus.CounterVec
	eventsDropped   prometheus.Counter
	lockFailures    prometheus.Counter
	sweepDuration   prometheus.Histogram
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gym_http_requests_total",
			Help: "Total count of HTTP requests processed by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gym_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gym_access_operations_total",
			Help: "Coordinator operations by name and outcome kind.",
		}, []string{"operation", "result"}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gym_sessions_closed_total",
			Help: "Usage sessions closed, by member release or sweeper.",
		}, []string{"reason"}),
		queueAdvanced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gym_queue_notified_total",
			Help: "Queue heads moved to NOTIFIED.",
		}),
		claimsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gym_queue_claims_expired_total",
			Help: "NOTIFIED entries expired by the sweeper.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gym_queue_cache_hits_total",
			Help: "Total queue cache hits observed.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gym_queue_cache_misses_total",
			Help: "Total queue cache misses observed.",
		}),
		eventsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gym_events_delivered_total",
			Help: "Notification deliveries by sink and result.",
		}, []string{"sink", "result"}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gym_events_dropped_total",
			Help: "Notifications dropped because the dispatch queue was full.",
		}),
		lockFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gym_lock_failures_total",
			Help: "Equipment lock acquisitions that failed or timed out.",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gym_sweep_duration_seconds",
			Help:    "Histogram of expiry sweep pass durations.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.operations,
		m.sessionsClosed,
		m.queueAdvanced,
		m.claimsExpired,
		m.cacheHits,
		m.cacheMisses,
		m.eventsDelivered,
		m.eventsDropped,
		m.lockFailures,
		m.sweepDuration,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTP(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Operation counts a coordinator call. result is "ok" or an error kind.
func (m *Metrics) Operation(op, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) SessionClosed(auto bool) {
	if m == nil {
		return
	}
	reason := "released"
	if auto {
		reason = "auto_released"
	}
	m.sessionsClosed.WithLabelValues(reason).Inc()
}

func (m *Metrics) QueueAdvanced() {
	if m == nil {
		return
	}
	m.queueAdvanced.Inc()
}

func (m *Metrics) ClaimExpired() {
	if m == nil {
		return
	}
	m.claimsExpired.Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) EventDelivered(sink string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.eventsDelivered.WithLabelValues(sink, result).Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

func (m *Metrics) LockFailed() {
	if m == nil {
		return
	}
	m.lockFailures.Inc()
}

func (m *Metrics) SweepCompleted(d time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
}
