package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/shestoi/providerhub/internal/deeplink"
	"github.com/shestoi/providerhub/internal/service"
	"github.com/shestoi/providerhub/platform/observability"
)

// Handler HTTP обработчики, через которые оболочка приложения управляет flow токена и оплаты
type Handler struct {
	logger   *zap.Logger
	tokens   *service.TokenService
	payments *deeplink.Handler

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewHandler создаёт Handler
func NewHandler(logger *zap.Logger, tokens *service.TokenService, payments *deeplink.Handler) *Handler {
	return &Handler{
		logger:   logger,
		tokens:   tokens,
		payments: payments,
		stopped:  make(chan struct{}),
	}
}

// StopStreams завершает открытые SSE потоки; вызывается при shutdown HTTP сервера
func (h *Handler) StopStreams() {
	h.stopOnce.Do(func() { close(h.stopped) })
}

// LoginRequest тело POST /session/login
type LoginRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// TokenRequest тело POST /push/token
type TokenRequest struct {
	Token string `json:"token"`
}

// DeepLinkRequest тело POST /deeplinks
type DeepLinkRequest struct {
	URI string `json:"uri"`
}

// CheckoutRequest тело POST /payments/checkout
type CheckoutRequest struct {
	ApprovalURL string `json:"approval_url"`
}

// TaskResponse ответ 202 на операции, продолжающиеся в фоне
type TaskResponse struct {
	Status string `json:"status"`
	Task   string `json:"task"`
}

// PostSessionLogin POST /session/login
func (h *Handler) PostSessionLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	future, err := h.tokens.Login(r.Context(), req.UserID, req.Username)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, TaskResponse{Status: "accepted", Task: future.Name()})
}

// PostSessionLogout POST /session/logout; также очищает обработанные заказы
func (h *Handler) PostSessionLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.tokens.Logout(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.payments.ClearProcessedOrders(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostPushToken POST /push/token
func (h *Handler) PostPushToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Token == "" {
		h.fail(w, r, service.ErrEmptyToken)
		return
	}

	future := h.tokens.ReceiveToken(req.Token)
	writeJSON(w, http.StatusAccepted, TaskResponse{Status: "accepted", Task: future.Name()})
}

// PostPushTokenRetry POST /push/token/retry
func (h *Handler) PostPushTokenRetry(w http.ResponseWriter, r *http.Request) {
	future, err := h.tokens.RetryPending(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, TaskResponse{Status: "accepted", Task: future.Name()})
}

// PostDeepLinks POST /deeplinks
func (h *Handler) PostDeepLinks(w http.ResponseWriter, r *http.Request) {
	var req DeepLinkRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.URI == "" {
		writeError(w, http.StatusBadRequest, "uri is required")
		return
	}

	if err := h.payments.HandleDeepLink(r.Context(), req.URI); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPaymentResult GET /payments/result; 204 если результата нет
func (h *Handler) GetPaymentResult(w http.ResponseWriter, r *http.Request) {
	result, ok := h.payments.Hub().Latest()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// DeletePaymentResult DELETE /payments/result
func (h *Handler) DeletePaymentResult(w http.ResponseWriter, r *http.Request) {
	h.payments.ClearResult()
	w.WriteHeader(http.StatusNoContent)
}

// PostCheckout POST /payments/checkout: 303 на approval URL провайдера, оболочка открывает его во внешнем браузере
func (h *Handler) PostCheckout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := url.Parse(req.ApprovalURL)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		writeError(w, http.StatusBadRequest, "approval_url must be an absolute https URL")
		return
	}

	http.Redirect(w, r, u.String(), http.StatusSeeOther)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// fail переводит ошибку сервиса в HTTP статус и человекочитаемое сообщение
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrUserIDRequired):
		writeError(w, http.StatusBadRequest, "user_id is required")
	case errors.Is(err, service.ErrEmptyToken):
		writeError(w, http.StatusBadRequest, "token is required")
	case errors.Is(err, service.ErrNotSignedIn):
		writeError(w, http.StatusConflict, "no user is signed in")
	default:
		observability.LoggerFromContext(r.Context(), h.logger).Error("request failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
		)
		writeError(w, http.StatusServiceUnavailable, "storage is temporarily unavailable, try again later")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
