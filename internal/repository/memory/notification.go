package memory

import (
	"context"
	"sync"

	"github.com/shestoi/providerhub/internal/repository"
)

// NotificationRepository реализует repository.NotificationRepository в памяти
type NotificationRepository struct {
	mu    sync.RWMutex
	items []repository.Notification
	ids   map[string]struct{}
}

// NewNotificationRepository создаёт пустой in-memory репозиторий уведомлений
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{ids: make(map[string]struct{})}
}

// Save добавляет уведомление; повтор с тем же ID игнорируется, как ON CONFLICT (id) DO NOTHING.
// Data копируется, чтобы вызывающий мог переиспользовать map
func (r *NotificationRepository) Save(ctx context.Context, n repository.Notification) error {
	data := make(map[string]string, len(n.Data))
	for k, v := range n.Data {
		data[k] = v
	}
	n.Data = data

	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID != "" {
		if _, ok := r.ids[n.ID]; ok {
			return nil
		}
		r.ids[n.ID] = struct{}{}
	}
	r.items = append(r.items, n)
	return nil
}

// ListByUserID возвращает уведомления пользователя в порядке сохранения
func (r *NotificationRepository) ListByUserID(ctx context.Context, userID string) []repository.Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]repository.Notification, 0)
	for _, n := range r.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}
