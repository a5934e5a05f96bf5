package memory

import (
	"context"
	"sync"
)

// ProcessedOrdersStore реализует repository.ProcessedOrdersStore используя in-memory set.
// Живёт столько же, сколько процесс; записи не истекают.
type ProcessedOrdersStore struct {
	mu     sync.Mutex
	orders map[string]struct{}
}

// NewProcessedOrdersStore создаёт пустой store
func NewProcessedOrdersStore() *ProcessedOrdersStore {
	return &ProcessedOrdersStore{orders: make(map[string]struct{})}
}

// MarkIfAbsent проверяет и добавляет orderID под одним lock'ом
func (s *ProcessedOrdersStore) MarkIfAbsent(ctx context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[orderID]; exists {
		return false, nil
	}
	s.orders[orderID] = struct{}{}
	return true, nil
}

// Clear очищает множество
func (s *ProcessedOrdersStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = make(map[string]struct{})
	return nil
}
