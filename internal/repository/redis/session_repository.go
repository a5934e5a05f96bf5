package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shestoi/providerhub/internal/repository"
)

// SessionRepository реализует repository.SessionRepository поверх Redis hash.
// Все ключи одного preference scope живут в hash prefs:<scope>.
type SessionRepository struct {
	client *redis.Client
	logger *zap.Logger
	key    string
}

// NewSessionRepository создаёт session repository для preference scope
func NewSessionRepository(client *redis.Client, scope string, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		client: client,
		logger: logger,
		key:    prefsKey(scope),
	}
}

func prefsKey(scope string) string {
	return fmt.Sprintf("prefs:%s", scope)
}

// Get читает поле hash; отсутствующее поле = repository.ErrNotFound
func (r *SessionRepository) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.HGet(ctx, r.key, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", repository.ErrNotFound
		}
		r.logger.Error("failed to read session field from redis",
			zap.Error(err),
			zap.String("hash", r.key),
			zap.String("field", key),
		)
		return "", fmt.Errorf("failed to get session field %s: %w", key, err)
	}
	return v, nil
}

// Set записывает поле hash
func (r *SessionRepository) Set(ctx context.Context, key, value string) error {
	if err := r.client.HSet(ctx, r.key, key, value).Err(); err != nil {
		r.logger.Error("failed to write session field to redis",
			zap.Error(err),
			zap.String("hash", r.key),
			zap.String("field", key),
		)
		return fmt.Errorf("failed to set session field %s: %w", key, err)
	}
	return nil
}

// Delete удаляет поля hash одной командой HDEL
func (r *SessionRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.HDel(ctx, r.key, keys...).Err(); err != nil {
		r.logger.Error("failed to delete session fields from redis",
			zap.Error(err),
			zap.String("hash", r.key),
			zap.Strings("fields", keys),
		)
		return fmt.Errorf("failed to delete session fields: %w", err)
	}
	return nil
}
