package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/shestoi/providerhub/internal/metrics"
	platformhealth "github.com/shestoi/providerhub/platform/health/http"
	"github.com/shestoi/providerhub/platform/observability"
)

// RouterConfig зависимости роутера помимо обработчиков
type RouterConfig struct {
	ServiceName   string
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
	HealthChecks  map[string]platformhealth.Check
	HealthTimeout time.Duration
}

// NewRouter собирает chi роутер providerhub
func NewRouter(h *Handler, cfg RouterConfig) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	if cfg.Logger != nil {
		router.Use(observability.HTTPMiddleware(cfg.ServiceName, cfg.Logger))
	}
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.HTTPMiddleware)
	}

	router.Route("/session", func(r chi.Router) {
		r.Post("/login", h.PostSessionLogin)
		r.Post("/logout", h.PostSessionLogout)
	})

	router.Route("/push/token", func(r chi.Router) {
		r.Post("/", h.PostPushToken)
		r.Post("/retry", h.PostPushTokenRetry)
	})

	router.Post("/deeplinks", h.PostDeepLinks)

	router.Route("/payments", func(r chi.Router) {
		r.Get("/result", h.GetPaymentResult)
		r.Delete("/result", h.DeletePaymentResult)
		r.Get("/events", h.GetPaymentEvents)
		r.Post("/checkout", h.PostCheckout)
	})

	timeout := cfg.HealthTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	router.Get("/health", platformhealth.Handler(timeout, cfg.HealthChecks))

	if cfg.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	return router
}
