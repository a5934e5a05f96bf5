package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shestoi/providerhub/internal/metrics"
	"github.com/shestoi/providerhub/internal/repository"
)

// notificationNamespace пространство имён для детерминированных id уведомлений по MessageID
var notificationNamespace = uuid.MustParse("6f1c2a7e-4d3b-4a55-9a0e-2f8c1b7d9e10")

// NotificationService сохраняет входящие push-сообщения
type NotificationService struct {
	logger  *zap.Logger
	repo    repository.NotificationRepository
	session repository.SessionRepository
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewNotificationService создаёт NotificationService; m может быть nil
func NewNotificationService(
	logger *zap.Logger,
	repo repository.NotificationRepository,
	session repository.SessionRepository,
	m *metrics.Metrics,
) *NotificationService {
	return &NotificationService{
		logger:  logger,
		repo:    repo,
		session: session,
		metrics: m,
		now:     time.Now,
	}
}

// HandleInbound сохраняет сообщение в notifications.
// Получатель берётся из сообщения, иначе из сессии; без получателя сообщение пропускается.
// Ошибка хранилища возвращается, чтобы consumer мог повторить попытку.
func (s *NotificationService) HandleInbound(ctx context.Context, msg InboundMessage) error {
	userID := msg.UserID
	if userID == "" {
		v, err := s.session.Get(ctx, repository.SessionKeyUserID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("read session user: %w", err)
		}
		userID = v
	}
	if userID == "" {
		s.logger.Info("skip inbound push message: no recipient",
			zap.String("message_id", msg.MessageID),
			zap.String("type", msg.Type),
		)
		return nil
	}

	createdAt := msg.ReceivedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	n := repository.Notification{
		ID:        notificationID(msg.MessageID),
		UserID:    userID,
		Title:     msg.Title,
		Body:      msg.Body,
		Type:      msg.Type,
		Data:      msg.Data,
		CreatedAt: createdAt.UTC(),
	}

	if err := s.repo.Save(ctx, n); err != nil {
		s.logger.Error("failed to save notification",
			zap.Error(err),
			zap.String("message_id", msg.MessageID),
			zap.String("user_id", userID),
		)
		return fmt.Errorf("save notification: %w", err)
	}

	s.metrics.NotificationStored()
	s.logger.Info("notification stored",
		zap.String("notification_id", n.ID),
		zap.String("user_id", userID),
		zap.String("type", n.Type),
	)
	return nil
}

// notificationID стабилен для одного MessageID, поэтому redelivery не плодит записи
func notificationID(messageID string) string {
	if messageID == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(notificationNamespace, []byte(messageID)).String()
}
