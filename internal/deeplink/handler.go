// Package deeplink обрабатывает возврат из web-flow оплаты через custom URI scheme
// (myapp://paypal-return?status=&orderId=&error=).
package deeplink

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/shestoi/providerhub/internal/metrics"
	"github.com/shestoi/providerhub/internal/repository"
)

const (
	DefaultScheme = "myapp"
	DefaultHost   = "paypal-return"

	statusUnknown = "unknown"
	msgNoOrderID  = "no orderId"
)

// Config адрес возврата из оплаты
type Config struct {
	Scheme string
	Host   string
}

// Handler классифицирует deep link оплаты и публикует результат в ResultHub.
// Повторная доставка с тем же orderId отбрасывается целиком.
type Handler struct {
	logger    *zap.Logger
	cfg       Config
	processed repository.ProcessedOrdersStore
	hub       *ResultHub
	metrics   *metrics.Metrics
}

// NewHandler создаёт Handler; пустые поля cfg заменяются на myapp://paypal-return. m может быть nil.
func NewHandler(logger *zap.Logger, cfg Config, processed repository.ProcessedOrdersStore, hub *ResultHub, m *metrics.Metrics) *Handler {
	if cfg.Scheme == "" {
		cfg.Scheme = DefaultScheme
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	return &Handler{
		logger:    logger,
		cfg:       cfg,
		processed: processed,
		hub:       hub,
		metrics:   m,
	}
}

// Hub возвращает hub результатов
func (h *Handler) Hub() *ResultHub { return h.hub }

// HandleDeepLink обрабатывает URI. Чужие и некорректные URI игнорируются без ошибки.
// Ошибка возвращается только если недоступно хранилище обработанных заказов,
// в этом случае результат не публикуется.
func (h *Handler) HandleDeepLink(ctx context.Context, rawURI string) error {
	u, err := url.Parse(rawURI)
	if err != nil {
		h.logger.Debug("ignore malformed deep link", zap.Error(err))
		return nil
	}
	// url.Parse приводит схему к нижнему регистру, host сравнивается как есть
	if u.Scheme != h.cfg.Scheme || u.Host != h.cfg.Host {
		h.logger.Debug("ignore foreign deep link", zap.String("scheme", u.Scheme), zap.String("host", u.Host))
		return nil
	}

	q := u.Query()
	status := q.Get("status")
	orderID := q.Get("orderId")
	errParam := q.Get("error")

	if orderID != "" {
		added, err := h.processed.MarkIfAbsent(ctx, orderID)
		if err != nil {
			h.logger.Error("failed to check processed order",
				zap.Error(err),
				zap.String("order_id", orderID),
			)
			return fmt.Errorf("mark order processed: %w", err)
		}
		if !added {
			h.metrics.DuplicateOrder()
			h.logger.Info("duplicate payment deep link dropped", zap.String("order_id", orderID))
			return nil
		}
	}

	result := PaymentResult{Status: status}
	if result.Status == "" {
		result.Status = statusUnknown
	}
	if orderID != "" {
		id := orderID
		result.OrderID = &id
	}
	h.hub.Publish(result)

	event := classify(status, orderID, errParam)
	h.metrics.DeepLink(string(event.Outcome))
	h.logger.Info("payment deep link handled",
		zap.String("status", status),
		zap.String("order_id", orderID),
		zap.String("outcome", string(event.Outcome)),
	)
	h.hub.Dispatch(event)
	return nil
}

// ClearResult сбрасывает опубликованный результат
func (h *Handler) ClearResult() {
	h.hub.Clear()
}

// ClearProcessedOrders очищает множество обработанных заказов
func (h *Handler) ClearProcessedOrders(ctx context.Context) error {
	if err := h.processed.Clear(ctx); err != nil {
		return fmt.Errorf("clear processed orders: %w", err)
	}
	return nil
}

// Subscribe подписывает listener на итоги оплаты
func (h *Handler) Subscribe(l Listener) func() {
	return h.hub.Subscribe(l)
}

func classify(status, orderID, errParam string) Event {
	switch status {
	case "success", "approved":
		if orderID == "" {
			return Event{Outcome: OutcomeFailed, Message: msgNoOrderID}
		}
		return Event{Outcome: OutcomeSuccess, OrderID: orderID}
	case "cancelled", "cancel":
		return Event{Outcome: OutcomeCancelled}
	default:
		msg := errParam
		if msg == "" {
			msg = "payment failed with status: " + status
		}
		return Event{Outcome: OutcomeFailed, Message: msg}
	}
}
