// Package metrics exposes Prometheus counters for the authentication flows
// and HTTP request instrumentation.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "leadsauth"

// Result labels
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultReuse   = "reuse"
	ResultRace    = "race"
)

// Metrics содержит счетчики подсистемы аутентификации.
// Все методы безопасны для nil получателя.
type Metrics struct {
	logins         *prometheus.CounterVec
	refreshes      *prometheus.CounterVec
	logouts        prometheus.Counter
	ledgerFailures *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New создает и регистрирует метрики в reg
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Credential authentications by flow and result.",
		}, []string{"flow", "result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_rotations_total",
			Help:      "Refresh token rotations by result.",
		}, []string{"result"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logouts_total",
			Help:      "Completed logouts.",
		}),
		ledgerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_write_failures_total",
			Help:      "Refresh token ledger write failures by operation.",
		}, []string{"op"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	collectors := []prometheus.Collector{
		m.logins, m.refreshes, m.logouts, m.ledgerFailures, m.httpRequests, m.httpDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// ObserveLogin учитывает попытку входа; flow: register, login, admin_login
func (m *Metrics) ObserveLogin(flow, result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(flow, result).Inc()
}

// ObserveRefresh учитывает попытку ротации
func (m *Metrics) ObserveRefresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

// ObserveLogout учитывает выход
func (m *Metrics) ObserveLogout() {
	if m == nil {
		return
	}
	m.logouts.Inc()
}

// ObserveLedgerFailure учитывает сбой записи в журнал
func (m *Metrics) ObserveLedgerFailure(op string) {
	if m == nil {
		return
	}
	m.ledgerFailures.WithLabelValues(op).Inc()
}

// Middleware измеряет HTTP запросы. Маршрут берется из шаблона chi,
// чтобы идентификаторы в путях не раздували кардинальность.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// LoginCounter returns the login counter for flow and result.
func (m *Metrics) LoginCounter(flow, result string) prometheus.Counter {
	return m.logins.WithLabelValues(flow, result)
}

// RefreshCounter returns the rotation counter for result.
func (m *Metrics) RefreshCounter(result string) prometheus.Counter {
	return m.refreshes.WithLabelValues(result)
}

// LedgerFailureCounter returns the ledger failure counter for op.
func (m *Metrics) LedgerFailureCounter(op string) prometheus.Counter {
	return m.ledgerFailures.WithLabelValues(op)
}
