package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// HandlerFunc обрабатывает одно сообщение. *ParseError = сообщение битое, ретраить бесполезно.
type HandlerFunc func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type deadLetterPublisher interface {
	Publish(ctx context.Context, m kafka.Message, cause error, attempts int) error
}

// ConsumerConfig параметры одного consumer'а
type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	Topic       string
	MaxAttempts int
	BackoffBase time.Duration
}

// Consumer читает топик с at-least-once семантикой: FetchMessage, обработка, CommitMessages.
// Сообщение, которое не удалось обработать за MaxAttempts попыток, уходит в DLQ и коммитится.
type Consumer struct {
	logger      *zap.Logger
	reader      messageReader
	dlq         deadLetterPublisher
	handle      HandlerFunc
	topic       string
	maxAttempts int
	backoffBase time.Duration
}

// NewConsumer создаёт consumer поверх kafka.Reader
func NewConsumer(logger *zap.Logger, cfg ConsumerConfig, dlq *DLQPublisher, handle HandlerFunc) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return newConsumer(logger, reader, dlq, handle, cfg.Topic, cfg.MaxAttempts, cfg.BackoffBase)
}

func newConsumer(logger *zap.Logger, reader messageReader, dlq deadLetterPublisher, handle HandlerFunc, topic string, maxAttempts int, backoffBase time.Duration) *Consumer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Consumer{
		logger:      logger.With(zap.String("topic", topic)),
		reader:      reader,
		dlq:         dlq,
		handle:      handle,
		topic:       topic,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}
}

// Start блокируется до отмены ctx
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting kafka consumer",
		zap.Int("max_retry_attempts", c.maxAttempts),
		zap.Duration("retry_backoff_base", c.backoffBase),
	)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer context cancelled, stopping")
				return nil
			}
			// reader закрыт через Close
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Error("failed to fetch message from kafka", zap.Error(err))
			continue
		}

		if !c.processMessage(ctx, m) {
			continue
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error("failed to commit message offset",
				zap.Error(err),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
			)
			continue
		}
		c.logger.Debug("message offset committed",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
	}
}

// processMessage возвращает true, если offset можно коммитить
func (c *Consumer) processMessage(ctx context.Context, m kafka.Message) bool {
	attempts, err := c.handleWithRetry(ctx, m)
	if err == nil {
		return true
	}
	if ctx.Err() != nil {
		// остановка сервиса: сообщение перечитается после рестарта
		return false
	}

	c.logger.Error("message not processed, sending to DLQ",
		zap.Error(err),
		zap.Int("attempts", attempts),
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset),
	)
	// context.Background: DLQ должен дописаться даже при остановке
	if dlqErr := c.dlq.Publish(context.Background(), m, err, attempts); dlqErr != nil {
		c.logger.Error("failed to publish to DLQ, not committing", zap.Error(dlqErr))
		return false
	}
	return true
}

// handleWithRetry повторяет обработку с экспоненциальным backoff: base, 2*base, 4*base...
// ParseError не повторяется.
func (c *Consumer) handleWithRetry(ctx context.Context, m kafka.Message) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := c.backoffBase * time.Duration(1<<uint(attempt-2))
			c.logger.Info("retrying message",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Int64("offset", m.Offset),
			)
			select {
			case <-ctx.Done():
				return attempt - 1, ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := c.handle(ctx, m)
		if err == nil {
			return attempt, nil
		}

		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			return attempt, err
		}

		lastErr = err
		c.logger.Warn("failed to handle message",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxAttempts),
		)
	}
	return c.maxAttempts, fmt.Errorf("exhausted %d attempts: %w", c.maxAttempts, lastErr)
}

// Close закрывает reader
func (c *Consumer) Close() error {
	c.logger.Info("closing kafka consumer")
	return c.reader.Close()
}
