package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "user_service"

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AuthOperationsTotal *prometheus.CounterVec
	RefreshReuseTotal   prometheus.Counter

	SweepRunsTotal   *prometheus.CounterVec
	SweptTokensTotal prometheus.Counter
	EventsPublished  *prometheus.CounterVec
}

func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_operations_total",
				Help:      "Session operations by outcome",
			},
			[]string{"operation", "result"},
		),
		RefreshReuseTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_token_reuse_total",
				Help:      "Refresh tokens presented again after rotation",
			},
		),
		SweepRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_sweep_runs_total",
				Help:      "Expired refresh token sweeps by outcome",
			},
			[]string{"result"},
		),
		SweptTokensTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_tokens_swept_total",
				Help:      "Expired refresh tokens removed by the sweeper",
			},
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Notification events handed to the broker",
			},
			[]string{"purpose", "result"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthOperationsTotal,
		m.RefreshReuseTotal,
		m.SweepRunsTotal,
		m.SweptTokensTotal,
		m.EventsPublished,
	)

	return m
}

func (m *Metrics) AuthOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.AuthOperationsTotal.WithLabelValues(operation, result(err)).Inc()
}

func (m *Metrics) RefreshReuse() {
	if m == nil {
		return
	}
	m.RefreshReuseTotal.Inc()
}

func (m *Metrics) Sweep(removed int64, err error) {
	if m == nil {
		return
	}
	m.SweepRunsTotal.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.SweptTokensTotal.Add(float64(removed))
	}
}

func (m *Metrics) EventPublished(purpose string, err error) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(purpose, result(err)).Inc()
}

// * Middleware records request count and latency per chi route pattern, so
// path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
