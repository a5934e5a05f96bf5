package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DLQPublisher публикует необработанные сообщения в Dead Letter Queue
type DLQPublisher struct {
	logger *zap.Logger
	writer *kafka.Writer
}

// NewDLQPublisher создаёт DLQ publisher
func NewDLQPublisher(logger *zap.Logger, brokers []string, topic string) *DLQPublisher {
	return &DLQPublisher{
		logger: logger,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

// DLQMessage формат сообщения в DLQ
type DLQMessage struct {
	OriginalTopic     string    `json:"original_topic"`
	OriginalPartition int       `json:"original_partition"`
	OriginalOffset    int64     `json:"original_offset"`
	OriginalKey       string    `json:"original_key"`
	OriginalValue     string    `json:"original_value"`
	ErrorMessage      string    `json:"error_message"`
	Attempts          int       `json:"attempts"`
	FailedAt          time.Time `json:"failed_at"`
}

func newDLQMessage(m kafka.Message, cause error, attempts int) DLQMessage {
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}
	return DLQMessage{
		OriginalTopic:     m.Topic,
		OriginalPartition: m.Partition,
		OriginalOffset:    m.Offset,
		OriginalKey:       string(m.Key),
		OriginalValue:     string(m.Value),
		ErrorMessage:      errMsg,
		Attempts:          attempts,
		FailedAt:          time.Now().UTC(),
	}
}

// Publish пишет сообщение в DLQ с исходным key
func (p *DLQPublisher) Publish(ctx context.Context, m kafka.Message, cause error, attempts int) error {
	payload, err := json.Marshal(newDLQMessage(m, cause, attempts))
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: m.Key, Value: payload}); err != nil {
		p.logger.Error("failed to publish message to DLQ",
			zap.Error(err),
			zap.String("original_topic", m.Topic),
			zap.Int("original_partition", m.Partition),
			zap.Int64("original_offset", m.Offset),
		)
		return err
	}

	p.logger.Info("message published to DLQ",
		zap.String("original_topic", m.Topic),
		zap.Int64("original_offset", m.Offset),
		zap.Int("attempts", attempts),
	)
	return nil
}

// Close закрывает writer
func (p *DLQPublisher) Close() error {
	p.logger.Info("closing DLQ publisher")
	return p.writer.Close()
}
