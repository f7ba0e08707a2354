// Package metrics records engine counters in Prometheus.  A nil *Recorder
// is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "squares"

// Recorder owns the collectors of the service.
type Recorder struct {
	claims        *prometheus.CounterVec
	claimedCells  prometheus.Counter
	confirmed     prometheus.Counter
	released      *prometheus.CounterVec
	locks         prometheus.Counter
	notifications *prometheus.CounterVec
	feeds         prometheus.Gauge
	sweeps        prometheus.Histogram
	httpRequests  *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on a fresh registry, together with the Go
// and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg; g is used by Handler.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Recorder {
	r := &Recorder{
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_total",
			Help:      "Claim requests by outcome.",
		}, []string{"outcome"}),
		claimedCells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "squares_reserved_total",
			Help:      "Squares moved from AVAILABLE to RESERVED.",
		}),
		confirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "squares_confirmed_total",
			Help:      "Squares moved from RESERVED to CONFIRMED.",
		}),
		released: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "squares_released_total",
			Help:      "Squares moved from RESERVED back to AVAILABLE.",
		}, []string{"reason"}),
		locks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grids_locked_total",
			Help:      "Grids locked with numbers assigned.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_queued_total",
			Help:      "Notification events handed to the broker.",
		}, []string{"type"}),
		feeds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_subscribers",
			Help:      "Open live feed connections.",
		}),
		sweeps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of expiry sweeps.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		gatherer: g,
	}
	reg.MustRegister(r.claims, r.claimedCells, r.confirmed, r.released, r.locks,
		r.notifications, r.feeds, r.sweeps, r.httpRequests)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil || r.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

func (r *Recorder) ClaimAccepted(cells int) {
	if r == nil {
		return
	}
	r.claims.WithLabelValues("accepted").Inc()
	r.claimedCells.Add(float64(cells))
}

func (r *Recorder) ClaimRejected(outcome string) {
	if r == nil {
		return
	}
	r.claims.WithLabelValues(outcome).Inc()
}

func (r *Recorder) SquaresConfirmed(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.confirmed.Add(float64(n))
}

// SquaresReleased counts released squares; reason is "expired", "manual"
// or "removed".
func (r *Recorder) SquaresReleased(reason string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.released.WithLabelValues(reason).Add(float64(n))
}

func (r *Recorder) GridLocked() {
	if r == nil {
		return
	}
	r.locks.Inc()
}

func (r *Recorder) NotificationsQueued(eventType string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.notifications.WithLabelValues(eventType).Add(float64(n))
}

func (r *Recorder) FeedOpened() {
	if r == nil {
		return
	}
	r.feeds.Inc()
}

func (r *Recorder) FeedClosed() {
	if r == nil {
		return
	}
	r.feeds.Dec()
}

func (r *Recorder) SweepCompleted(d time.Duration) {
	if r == nil {
		return
	}
	r.sweeps.Observe(d.Seconds())
}

// RecordHTTPRequest tracks request latency by route template.
func (r *Recorder) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
