package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shestoi/providerhub/internal/service"
)

// TokenReceiver принимает обновлённый registration token
type TokenReceiver interface {
	OnNewTokenReceived(ctx context.Context, token string) error
}

// InboundHandler сохраняет входящее push-сообщение
type InboundHandler interface {
	HandleInbound(ctx context.Context, msg service.InboundMessage) error
}

// TokenRefreshedEvent событие push.token.refreshed
type TokenRefreshedEvent struct {
	EventID    string
	Token      string
	OccurredAt time.Time
}

// MessageReceivedEvent событие push.message.received
type MessageReceivedEvent struct {
	MessageID string
	UserID    string
	Title     string
	Body      string
	Type      string
	Data      map[string]string
	SentAt    time.Time
}

// NewTokenRefreshedHandler обрабатывает обновления токена.
// Ошибки загрузки превращаются сервисом в pending токен, поэтому наружу отдаётся только ParseError.
func NewTokenRefreshedHandler(logger *zap.Logger, receiver TokenReceiver) HandlerFunc {
	return func(ctx context.Context, m kafka.Message) error {
		event, err := parseTokenRefreshed(m.Value)
		if err != nil {
			return err
		}

		if err := receiver.OnNewTokenReceived(ctx, event.Token); err != nil {
			logger.Warn("token refresh not uploaded, kept pending",
				zap.Error(err),
				zap.String("event_id", event.EventID),
			)
		}
		return nil
	}
}

// NewMessageReceivedHandler сохраняет входящие сообщения; ошибка хранилища ретраится consumer'ом
func NewMessageReceivedHandler(handler InboundHandler) HandlerFunc {
	return func(ctx context.Context, m kafka.Message) error {
		event, err := parseMessageReceived(m.Value)
		if err != nil {
			return err
		}

		return handler.HandleInbound(ctx, service.InboundMessage{
			MessageID:  event.MessageID,
			UserID:     event.UserID,
			Title:      event.Title,
			Body:       event.Body,
			Type:       event.Type,
			Data:       event.Data,
			ReceivedAt: event.SentAt,
		})
	}
}

func decodePayload(value []byte) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(value, &payload); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("invalid json: %v", err)}
	}
	if payload == nil {
		return nil, &ParseError{Message: "payload must be a json object"}
	}
	return payload, nil
}

func parseTokenRefreshed(value []byte) (TokenRefreshedEvent, error) {
	payload, err := decodePayload(value)
	if err != nil {
		return TokenRefreshedEvent{}, err
	}

	event := TokenRefreshedEvent{}
	if v, ok := payload["event_id"].(string); ok {
		event.EventID = v
	}
	if v, ok := payload["occurred_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			event.OccurredAt = t
		}
	}
	v, ok := payload["token"].(string)
	if !ok || v == "" {
		return event, &ParseError{Field: "token", Message: "token is required"}
	}
	event.Token = v
	return event, nil
}

func parseMessageReceived(value []byte) (MessageReceivedEvent, error) {
	payload, err := decodePayload(value)
	if err != nil {
		return MessageReceivedEvent{}, err
	}

	event := MessageReceivedEvent{Data: map[string]string{}}
	if v, ok := payload["message_id"].(string); ok {
		event.MessageID = v
	}
	if v, ok := payload["user_id"].(string); ok {
		event.UserID = v
	}
	if v, ok := payload["title"].(string); ok {
		event.Title = v
	}
	if v, ok := payload["body"].(string); ok {
		event.Body = v
	}
	if v, ok := payload["type"].(string); ok {
		event.Type = v
	}
	if v, ok := payload["sent_at"].(string); ok {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return event, &ParseError{Field: "sent_at", Message: "sent_at must be RFC3339"}
		}
		event.SentAt = t
	}

	if raw, exists := payload["data"]; exists && raw != nil {
		data, ok := raw.(map[string]any)
		if !ok {
			return event, &ParseError{Field: "data", Message: "data must be an object"}
		}
		for k, v := range data {
			s, ok := v.(string)
			if !ok {
				return event, &ParseError{Field: "data." + k, Message: "data values must be strings"}
			}
			event.Data[k] = s
		}
	}

	// type часто дублируется в data, как приходит от провайдера
	if event.Type == "" {
		event.Type = event.Data["type"]
	}

	if event.Title == "" && event.Body == "" && len(event.Data) == 0 {
		return event, &ParseError{Message: "empty push message"}
	}
	return event, nil
}
