package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ProcessedOrdersStore реализует repository.ProcessedOrdersStore поверх Redis set.
// Атомарность MarkIfAbsent обеспечивает SADD: он возвращает 1 только первому вызвавшему.
type ProcessedOrdersStore struct {
	client *redis.Client
	logger *zap.Logger
	key    string
}

// NewProcessedOrdersStore создаёт store, общий для всех процессов с тем же scope
func NewProcessedOrdersStore(client *redis.Client, scope string, logger *zap.Logger) *ProcessedOrdersStore {
	return &ProcessedOrdersStore{
		client: client,
		logger: logger,
		key:    fmt.Sprintf("processed_orders:%s", scope),
	}
}

// MarkIfAbsent добавляет orderID в set
func (s *ProcessedOrdersStore) MarkIfAbsent(ctx context.Context, orderID string) (bool, error) {
	added, err := s.client.SAdd(ctx, s.key, orderID).Result()
	if err != nil {
		s.logger.Error("failed to mark order processed in redis",
			zap.Error(err),
			zap.String("order_id", orderID),
		)
		return false, fmt.Errorf("failed to mark order %s processed: %w", orderID, err)
	}
	return added == 1, nil
}

// Clear удаляет set целиком
func (s *ProcessedOrdersStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to clear processed orders: %w", err)
	}
	s.logger.Info("processed orders cleared", zap.String("key", s.key))
	return nil
}
