package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shestoi/providerhub/internal/repository"
)

// NotificationRepository реализует repository.NotificationRepository используя PostgreSQL
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository создаёт новый PostgreSQL репозиторий уведомлений
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Save вставляет уведомление. Повтор с тем же id (redelivery из Kafka) игнорируется.
func (r *NotificationRepository) Save(ctx context.Context, n repository.Notification) error {
	data := n.Data
	if data == nil {
		data = map[string]string{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal notification data: %w", err)
	}

	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO notifications (id, user_id, title, body, type, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		n.ID, n.UserID, n.Title, n.Body, n.Type, payload, createdAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListByUserID возвращает уведомления пользователя, новые первыми
func (r *NotificationRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]repository.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, title, body, type, data, created_at
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]repository.Notification, 0)
	for rows.Next() {
		var (
			n   repository.Notification
			raw []byte
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Type, &raw, &n.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &n.Data); err != nil {
			return nil, fmt.Errorf("unmarshal notification data: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
