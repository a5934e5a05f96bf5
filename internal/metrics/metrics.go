// Package metrics Prometheus метрики providerhub.
// Методы безопасны на nil *Metrics, поэтому в тестах сервисов метрики можно не передавать.
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

const namespace = "providerhub"

// Результаты загрузки токена
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics набор коллекторов с собственным registry
type Metrics struct {
	registry *prometheus.Registry

	tokenUploads        *prometheus.CounterVec
	pendingTokensStored prometheus.Counter
	deepLinks           *prometheus.CounterVec
	duplicateOrders     prometheus.Counter
	notificationsStored prometheus.Counter
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

// New создаёт и регистрирует коллекторы
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tokenUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "token_uploads_total",
			Help:      "Push token upload attempts by result.",
		}, []string{"result"}),
		pendingTokensStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "pending_tokens_stored_total",
			Help:      "Tokens stored locally for a later retry.",
		}),
		deepLinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "deeplinks_total",
			Help:      "Handled payment deep links by outcome.",
		}, []string{"outcome"}),
		duplicateOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "duplicate_orders_suppressed_total",
			Help:      "Deep links dropped because the order id was already processed.",
		}),
		notificationsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "notifications_stored_total",
			Help:      "Inbound push messages stored.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.tokenUploads,
		m.pendingTokensStored,
		m.deepLinks,
		m.duplicateOrders,
		m.notificationsStored,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry для тестов и дополнительных коллекторов
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler отдаёт /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TokenUpload учитывает попытку загрузки токена
func (m *Metrics) TokenUpload(err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.tokenUploads.WithLabelValues(result).Inc()
}

// PendingTokenStored токен сохранён локально
func (m *Metrics) PendingTokenStored() {
	if m == nil {
		return
	}
	m.pendingTokensStored.Inc()
}

// DeepLink учитывает обработанный deep link (success/cancelled/failed)
func (m *Metrics) DeepLink(outcome string) {
	if m == nil {
		return
	}
	m.deepLinks.WithLabelValues(outcome).Inc()
}

// DuplicateOrder deep link отброшен дедупликацией
func (m *Metrics) DuplicateOrder() {
	if m == nil {
		return
	}
	m.duplicateOrders.Inc()
}

// NotificationStored входящее уведомление сохранено
func (m *Metrics) NotificationStored() {
	if m == nil {
		return
	}
	m.notificationsStored.Inc()
}

// HTTPMiddleware считает запросы по шаблону chi-маршрута
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
