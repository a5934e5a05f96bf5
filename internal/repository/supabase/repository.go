// Package supabase реализует репозитории поверх Supabase PostgREST.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shestoi/providerhub/internal/client/supabase"
	"github.com/shestoi/providerhub/internal/repository"
)

const (
	tableUserPushTokens = "user_push_tokens"
	tableNotifications  = "notifications"

	// codeNoRows PostgREST: Single() не нашёл строк
	codeNoRows = "PGRST116"
)

type tokenRow struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	UpdatedAt time.Time `json:"updated_at"`
}

type notificationRow struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Type      string            `json:"type"`
	Data      map[string]string `json:"data"`
	CreatedAt time.Time         `json:"created_at"`
}

// TokenRepository реализует repository.TokenRepository через PostgREST upsert
type TokenRepository struct {
	client *supabase.Client
	now    func() time.Time
}

// NewTokenRepository создаёт репозиторий токенов
func NewTokenRepository(client *supabase.Client) *TokenRepository {
	return &TokenRepository{client: client, now: time.Now}
}

// UpsertToken один POST с resolution=merge-duplicates по user_id
func (r *TokenRepository) UpsertToken(ctx context.Context, userID, token string) error {
	row := tokenRow{UserID: userID, Token: token, UpdatedAt: r.now().UTC()}

	resp, err := r.client.From(tableUserPushTokens).Upsert("user_id").ExecuteInsert(ctx, row)
	if err != nil {
		return fmt.Errorf("upsert push token: %w", err)
	}
	if err := resp.Error(); err != nil {
		return fmt.Errorf("upsert push token: %w", err)
	}
	return nil
}

// GetByUserID читает связь пользователя
func (r *TokenRepository) GetByUserID(ctx context.Context, userID string) (repository.UserPushToken, error) {
	resp, err := r.client.From(tableUserPushTokens).
		Select("user_id,token,updated_at").
		Eq("user_id", userID).
		Single().
		Execute(ctx)
	if err != nil {
		return repository.UserPushToken{}, fmt.Errorf("get push token: %w", err)
	}
	if err := resp.Error(); err != nil {
		var sErr *supabase.Error
		if errors.As(err, &sErr) && sErr.Code == codeNoRows {
			return repository.UserPushToken{}, repository.ErrNotFound
		}
		return repository.UserPushToken{}, fmt.Errorf("get push token: %w", err)
	}

	var row tokenRow
	if err := resp.JSON(&row); err != nil {
		return repository.UserPushToken{}, fmt.Errorf("decode push token: %w", err)
	}
	return repository.UserPushToken{UserID: row.UserID, Token: row.Token, UpdatedAt: row.UpdatedAt}, nil
}

// NotificationRepository реализует repository.NotificationRepository через PostgREST
type NotificationRepository struct {
	client *supabase.Client
}

// NewNotificationRepository создаёт репозиторий уведомлений
func NewNotificationRepository(client *supabase.Client) *NotificationRepository {
	return &NotificationRepository{client: client}
}

// Save вставляет уведомление; повтор с тем же id сливается с существующей строкой
func (r *NotificationRepository) Save(ctx context.Context, n repository.Notification) error {
	data := n.Data
	if data == nil {
		data = map[string]string{}
	}
	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	row := notificationRow{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Body:      n.Body,
		Type:      n.Type,
		Data:      data,
		CreatedAt: createdAt,
	}

	resp, err := r.client.From(tableNotifications).Upsert("id").ExecuteInsert(ctx, row)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	if err := resp.Error(); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}
