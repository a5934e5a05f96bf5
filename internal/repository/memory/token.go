package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shestoi/providerhub/internal/repository"
)

// TokenRepository реализует repository.TokenRepository в памяти.
// Используется для local окружения и тестов.
type TokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]repository.UserPushToken // ключ = userID
	now    func() time.Time
}

// NewTokenRepository создаёт пустой in-memory репозиторий токенов
func NewTokenRepository() *TokenRepository {
	return &TokenRepository{
		tokens: make(map[string]repository.UserPushToken),
		now:    time.Now,
	}
}

// UpsertToken создаёт или перезаписывает связь под одним lock'ом
func (r *TokenRepository) UpsertToken(ctx context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[userID] = repository.UserPushToken{
		UserID:    userID,
		Token:     token,
		UpdatedAt: r.now().UTC(),
	}
	return nil
}

// GetByUserID возвращает связь пользователя или repository.ErrNotFound
func (r *TokenRepository) GetByUserID(ctx context.Context, userID string) (repository.UserPushToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[userID]
	if !ok {
		return repository.UserPushToken{}, repository.ErrNotFound
	}
	return t, nil
}

// Len количество сохранённых связей
func (r *TokenRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}
