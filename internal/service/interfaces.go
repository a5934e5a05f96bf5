package service

import (
	"context"
	"errors"
	"time"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=TokenSource --dir=. --output=./mocks --outpkg=mocks

// TokenSource источник текущего registration token push-провайдера
type TokenSource interface {
	// CurrentToken возвращает текущий токен устройства; ошибка = токен не получен
	CurrentToken(ctx context.Context) (string, error)
}

// InboundMessage входящее push-сообщение (из Kafka топика push.message.received)
type InboundMessage struct {
	// MessageID идентификатор сообщения у провайдера; повтор с тем же id не создаёт новую запись
	MessageID string
	// UserID получатель; пустой = текущий пользователь сессии
	UserID     string
	Title      string
	Body       string
	Type       string
	Data       map[string]string
	ReceivedAt time.Time
}

var (
	// ErrUserIDRequired операция требует идентификатор пользователя
	ErrUserIDRequired = errors.New("user id is required")
	// ErrEmptyToken передан пустой push token
	ErrEmptyToken = errors.New("push token is empty")
	// ErrNotSignedIn в сессии нет пользователя
	ErrNotSignedIn = errors.New("no signed-in user")
)
