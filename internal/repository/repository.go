package repository

import (
	"context"
	"errors"
	"time"
)

// UserPushToken связь пользователя с registration token push-провайдера.
// Одна строка на пользователя.
type UserPushToken struct {
	UserID    string
	Token     string
	UpdatedAt time.Time
}

// Notification входящее push-сообщение, сохранённое для пользователя
type Notification struct {
	ID     string
	UserID string
	Title  string
	Body   string
	Type   string
	// Data исходный key/value payload сообщения, хранится как JSON объект
	Data      map[string]string
	CreatedAt time.Time
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=TokenRepository --dir=. --output=./mocks --outpkg=mocks

// TokenRepository хранилище связей user_id -> token (таблица user_push_tokens)
type TokenRepository interface {
	// UpsertToken атомарно создаёт или обновляет связь пользователя с токеном, выставляя updated_at
	UpsertToken(ctx context.Context, userID, token string) error

	// GetByUserID возвращает связь пользователя.
	// Возвращает ErrNotFound, если связи нет
	GetByUserID(ctx context.Context, userID string) (UserPushToken, error)
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=NotificationRepository --dir=. --output=./mocks --outpkg=mocks

// NotificationRepository хранилище входящих уведомлений (таблица notifications)
type NotificationRepository interface {
	// Save сохраняет уведомление
	Save(ctx context.Context, n Notification) error
}

// Ключи локального хранилища сессии
const (
	SessionKeyUserID       = "user_id"
	SessionKeyUsername     = "username"
	SessionKeyPendingToken = "pending_fcm_token"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=SessionRepository --dir=. --output=./mocks --outpkg=mocks

// SessionRepository key-value хранилище сессии устройства в рамках одного preference scope.
// Ключи и значения строковые, схемы нет.
type SessionRepository interface {
	// Get возвращает значение по ключу.
	// Возвращает ErrNotFound, если ключа нет
	Get(ctx context.Context, key string) (string, error)

	// Set записывает значение (перезаписывает предыдущее)
	Set(ctx context.Context, key, value string) error

	// Delete удаляет ключи; отсутствующие ключи не являются ошибкой
	Delete(ctx context.Context, keys ...string) error
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=ProcessedOrdersStore --dir=. --output=./mocks --outpkg=mocks

// ProcessedOrdersStore множество order id, для которых результат оплаты уже обработан
type ProcessedOrdersStore interface {
	// MarkIfAbsent атомарно добавляет orderID.
	// Возвращает true, если orderID добавлен сейчас, и false, если он уже был
	MarkIfAbsent(ctx context.Context, orderID string) (bool, error)

	// Clear очищает множество
	Clear(ctx context.Context) error
}

// ErrNotFound возвращается, когда запись не найдена в хранилище
var ErrNotFound = errors.New("not found")
