package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/providerhub/internal/repository"
	"github.com/shestoi/providerhub/internal/repository/memory"
	repoMocks "github.com/shestoi/providerhub/internal/repository/mocks"
)

func TestNotificationService_HandleInbound(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit recipient", func(t *testing.T) {
		repo := memory.NewNotificationRepository()
		svc := NewNotificationService(zap.NewNop(), repo, memory.NewSessionRepository(), nil)

		err := svc.HandleInbound(ctx, InboundMessage{
			MessageID: "m-1",
			UserID:    "user-1",
			Title:     "New booking",
			Body:      "Tomorrow 10:00",
			Type:      "booking",
			Data:      map[string]string{"booking_id": "b-1"},
		})
		require.NoError(t, err)

		got := repo.ListByUserID(ctx, "user-1")
		require.Len(t, got, 1)
		require.Equal(t, "booking", got[0].Type)
		require.Equal(t, "b-1", got[0].Data["booking_id"])
		require.False(t, got[0].CreatedAt.IsZero())
	})

	t.Run("recipient from session", func(t *testing.T) {
		repo := memory.NewNotificationRepository()
		session := memory.NewSessionRepository()
		require.NoError(t, session.Set(ctx, repository.SessionKeyUserID, "user-2"))

		svc := NewNotificationService(zap.NewNop(), repo, session, nil)
		require.NoError(t, svc.HandleInbound(ctx, InboundMessage{Title: "Hi"}))
		require.Len(t, repo.ListByUserID(ctx, "user-2"), 1)
	})

	t.Run("no recipient: skipped", func(t *testing.T) {
		repo := repoMocks.NewNotificationRepository(t)
		svc := NewNotificationService(zap.NewNop(), repo, memory.NewSessionRepository(), nil)

		require.NoError(t, svc.HandleInbound(ctx, InboundMessage{Title: "Hi"}))
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("storage error propagates", func(t *testing.T) {
		repo := repoMocks.NewNotificationRepository(t)
		repo.On("Save", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()
		svc := NewNotificationService(zap.NewNop(), repo, memory.NewSessionRepository(), nil)

		err := svc.HandleInbound(ctx, InboundMessage{UserID: "user-1"})
		require.ErrorContains(t, err, "db down")
	})
}

func TestNotificationID_StablePerMessage(t *testing.T) {
	require.Equal(t, notificationID("m-1"), notificationID("m-1"))
	require.NotEqual(t, notificationID("m-1"), notificationID("m-2"))
	require.NotEqual(t, notificationID(""), notificationID(""))
}

func TestNotificationService_RedeliveryStoresOnce(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewNotificationRepository()
	svc := NewNotificationService(zap.NewNop(), repo, memory.NewSessionRepository(), nil)

	msg := InboundMessage{MessageID: "m-1", UserID: "u-1", Title: "Order shipped"}
	require.NoError(t, svc.HandleInbound(ctx, msg))
	require.NoError(t, svc.HandleInbound(ctx, msg))

	got := repo.ListByUserID(ctx, "u-1")
	require.Len(t, got, 1)
	require.Equal(t, notificationID("m-1"), got[0].ID)
}
