// Package tasks содержит scope фоновых задач, живущий столько же, сколько приложение.
// Задачи, запущенные через Scope, не отменяются вместе с HTTP-запросом, который их породил,
// и завершаются только при Close.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrScopeClosed возвращается Future задачи, запущенной после Close
var ErrScopeClosed = errors.New("task scope closed")

// Future результат фоновой задачи. Его можно ожидать из любого числа горутин,
// в том числе после завершения задачи.
type Future struct {
	name string
	done chan struct{}
	err  error
}

// Name имя задачи
func (f *Future) Name() string { return f.name }

// Done закрывается после завершения задачи
func (f *Future) Done() <-chan struct{} { return f.done }

// Err результат задачи; валиден только после Done
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait блокируется до завершения задачи или отмены ctx
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Scope запускает задачи с контекстом приложения
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewScope создаёт Scope. Контекст задач отменяется при Close.
func NewScope(logger *zap.Logger) *Scope {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scope{ctx: ctx, cancel: cancel, logger: logger}
}

// Go запускает fn в отдельной горутине и сразу возвращает Future.
// Паника в fn превращается в ошибку Future.
func (s *Scope) Go(name string, fn func(ctx context.Context) error) *Future {
	f := &Future{name: name, done: make(chan struct{})}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		f.err = ErrScopeClosed
		close(f.done)
		return f
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("task %s panicked: %v", name, r)
				s.logger.Error("Background task panicked", zap.String("task", name), zap.Any("panic", r))
			}
		}()

		f.err = fn(s.ctx)
		if f.err != nil {
			s.logger.Warn("Background task failed", zap.String("task", name), zap.Error(f.err))
		}
	}()

	return f
}

// Close отменяет контекст задач и ждёт их завершения или отмены ctx.
// Повторный вызов безопасен.
func (s *Scope) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait background tasks: %w", ctx.Err())
	}
}
