package memory

import (
	"context"
	"sync"

	"github.com/shestoi/providerhub/internal/repository"
)

// SessionRepository реализует repository.SessionRepository в памяти
type SessionRepository struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewSessionRepository создаёт пустое хранилище сессии
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{values: make(map[string]string)}
}

// Get возвращает значение или repository.ErrNotFound
func (r *SessionRepository) Get(ctx context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.values[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

// Set записывает значение
func (r *SessionRepository) Set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	return nil
}

// Delete удаляет ключи
func (r *SessionRepository) Delete(ctx context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		delete(r.values, k)
	}
	return nil
}
