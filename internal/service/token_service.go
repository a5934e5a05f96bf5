package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/shestoi/providerhub/internal/metrics"
	"github.com/shestoi/providerhub/internal/repository"
	"github.com/shestoi/providerhub/platform/tasks"
)

// TokenService связывает push token устройства с пользователем.
// Неудачная загрузка не теряет токен: он остаётся pending в сессии до следующего входа или явного retry.
type TokenService struct {
	logger  *zap.Logger
	tokens  repository.TokenRepository
	session repository.SessionRepository
	source  TokenSource
	scope   *tasks.Scope
	metrics *metrics.Metrics
}

// NewTokenService создаёт TokenService. scope: scope задач приложения, m может быть nil.
func NewTokenService(
	logger *zap.Logger,
	tokens repository.TokenRepository,
	session repository.SessionRepository,
	source TokenSource,
	scope *tasks.Scope,
	m *metrics.Metrics,
) *TokenService {
	return &TokenService{
		logger:  logger,
		tokens:  tokens,
		session: session,
		source:  source,
		scope:   scope,
		metrics: m,
	}
}

// GenerateAndUploadToken получает текущий токен у провайдера и загружает его для userID.
// Ошибка загрузки сохраняет токен как pending. Повторов здесь нет.
func (s *TokenService) GenerateAndUploadToken(ctx context.Context, userID string) error {
	if userID == "" {
		s.logger.Warn("skip token upload: no user id")
		return ErrUserIDRequired
	}

	token, err := s.source.CurrentToken(ctx)
	if err != nil {
		s.logger.Warn("failed to get push token from provider",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return fmt.Errorf("fetch push token: %w", err)
	}

	if err := s.Upload(ctx, token, userID); err != nil {
		s.logger.Warn("push token upload failed, keeping it pending",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		s.storePending(ctx, token)
		return err
	}

	s.clearPending(ctx)
	s.logger.Info("push token uploaded", zap.String("user_id", userID))
	return nil
}

// UploadPendingToken загружает pending токен, если он есть.
// Без pending токена ничего не делает. Неудача оставляет pending как есть.
func (s *TokenService) UploadPendingToken(ctx context.Context, userID string) error {
	token, err := s.session.Get(ctx, repository.SessionKeyPendingToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		s.logger.Error("failed to read pending push token", zap.Error(err))
		return fmt.Errorf("read pending token: %w", err)
	}
	if token == "" {
		return nil
	}

	if err := s.Upload(ctx, token, userID); err != nil {
		s.logger.Warn("pending push token upload failed",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return err
	}

	s.clearPending(ctx)
	s.logger.Info("pending push token uploaded", zap.String("user_id", userID))
	return nil
}

// Upload атомарно создаёт или обновляет связь userID -> token.
// Ошибка хранилища возвращается вызывающему.
func (s *TokenService) Upload(ctx context.Context, token, userID string) error {
	if userID == "" {
		return ErrUserIDRequired
	}
	if token == "" {
		return ErrEmptyToken
	}

	err := s.tokens.UpsertToken(ctx, userID, token)
	s.metrics.TokenUpload(err)
	if err != nil {
		return fmt.Errorf("upload push token: %w", err)
	}
	return nil
}

// OnNewTokenReceived обрабатывает обновление токена от провайдера.
// Без пользователя в сессии токен только сохраняется как pending.
func (s *TokenService) OnNewTokenReceived(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}

	userID, err := s.signedInUser(ctx)
	if err != nil {
		s.storePending(ctx, token)
		if errors.Is(err, ErrNotSignedIn) {
			s.logger.Info("new push token received while signed out, stored as pending")
			return nil
		}
		return err
	}

	if err := s.Upload(ctx, token, userID); err != nil {
		s.logger.Warn("new push token upload failed, keeping it pending",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		s.storePending(ctx, token)
		return err
	}

	s.logger.Info("new push token uploaded", zap.String("user_id", userID))
	return nil
}

// Login сохраняет пользователя в сессии и в фоне досылает pending токен, затем текущий.
// Фоновая задача живёт в scope приложения и не отменяется вместе с ctx запроса.
func (s *TokenService) Login(ctx context.Context, userID, username string) (*tasks.Future, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	if err := s.session.Set(ctx, repository.SessionKeyUserID, userID); err != nil {
		return nil, fmt.Errorf("save session user: %w", err)
	}
	if err := s.session.Set(ctx, repository.SessionKeyUsername, username); err != nil {
		return nil, fmt.Errorf("save session username: %w", err)
	}

	s.logger.Info("user signed in", zap.String("user_id", userID))

	return s.scope.Go("token-sync:"+userID, func(ctx context.Context) error {
		pendingErr := s.UploadPendingToken(ctx, userID)
		freshErr := s.GenerateAndUploadToken(ctx, userID)
		return errors.Join(pendingErr, freshErr)
	}), nil
}

// Logout удаляет пользователя из сессии. Pending токен остаётся до следующего входа.
func (s *TokenService) Logout(ctx context.Context) error {
	if err := s.session.Delete(ctx, repository.SessionKeyUserID, repository.SessionKeyUsername); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.logger.Info("user signed out")
	return nil
}

// ReceiveToken запускает OnNewTokenReceived в scope приложения
func (s *TokenService) ReceiveToken(token string) *tasks.Future {
	return s.scope.Go("token-refresh", func(ctx context.Context) error {
		return s.OnNewTokenReceived(ctx, token)
	})
}

// RetryPending запускает UploadPendingToken для пользователя сессии в scope приложения
func (s *TokenService) RetryPending(ctx context.Context) (*tasks.Future, error) {
	userID, err := s.signedInUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.scope.Go("token-retry:"+userID, func(ctx context.Context) error {
		return s.UploadPendingToken(ctx, userID)
	}), nil
}

// PendingToken возвращает pending токен или "" если его нет
func (s *TokenService) PendingToken(ctx context.Context) (string, error) {
	token, err := s.session.Get(ctx, repository.SessionKeyPendingToken)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	return token, err
}

func (s *TokenService) signedInUser(ctx context.Context) (string, error) {
	userID, err := s.session.Get(ctx, repository.SessionKeyUserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotSignedIn
		}
		s.logger.Error("failed to read session user", zap.Error(err))
		return "", fmt.Errorf("read session user: %w", err)
	}
	if userID == "" {
		return "", ErrNotSignedIn
	}
	return userID, nil
}

// storePending перезаписывает pending токен; ошибка только логируется
func (s *TokenService) storePending(ctx context.Context, token string) {
	if err := s.session.Set(ctx, repository.SessionKeyPendingToken, token); err != nil {
		s.logger.Error("failed to store pending push token", zap.Error(err))
		return
	}
	s.metrics.PendingTokenStored()
}

func (s *TokenService) clearPending(ctx context.Context) {
	if err := s.session.Delete(ctx, repository.SessionKeyPendingToken); err != nil {
		s.logger.Error("failed to clear pending push token", zap.Error(err))
	}
}
