package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shestoi/providerhub/internal/deeplink"
	"github.com/shestoi/providerhub/platform/observability"
)

const sseHeartbeat = 15 * time.Second

// GetPaymentEvents GET /payments/events: SSE поток.
//   result  текущий PaymentResult (null после очистки), первым приходит последний известный;
//   outcome итог обработки deep link.
func (h *Handler) GetPaymentEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming is not supported")
		return
	}

	clientID := uuid.NewString()
	log := observability.LoggerFromContext(r.Context(), h.logger).With(zap.String("sse_client", clientID))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	results, stopWatch := h.payments.Hub().Watch()
	defer stopWatch()

	outcomes := make(chan deeplink.Event, 16)
	unsubscribe := h.payments.Subscribe(eventSink{ch: outcomes, log: log})
	defer unsubscribe()

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()
	log.Debug("sse client connected")

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug("sse client disconnected")
			return
		case <-h.stopped:
			return
		case res, open := <-results:
			if !open {
				return
			}
			if err := writeEvent(w, "result", res); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-outcomes:
			if err := writeEvent(w, "outcome", ev); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

// eventSink пересылает итоги в канал SSE клиента; медленный клиент теряет события, а не блокирует dispatch
type eventSink struct {
	ch  chan<- deeplink.Event
	log *zap.Logger
}

func (s eventSink) OnPaymentSuccess(orderID string) {
	s.push(deeplink.Event{Outcome: deeplink.OutcomeSuccess, OrderID: orderID})
}

func (s eventSink) OnPaymentCancelled() {
	s.push(deeplink.Event{Outcome: deeplink.OutcomeCancelled})
}

func (s eventSink) OnPaymentFailed(message string) {
	s.push(deeplink.Event{Outcome: deeplink.OutcomeFailed, Message: message})
}

func (s eventSink) push(e deeplink.Event) {
	select {
	case s.ch <- e:
	default:
		s.log.Warn("sse client too slow, outcome dropped", zap.String("outcome", string(e.Outcome)))
	}
}
