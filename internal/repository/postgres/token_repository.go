package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shestoi/providerhub/internal/repository"
)

// TokenRepository реализует repository.TokenRepository используя PostgreSQL
type TokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository создаёт новый PostgreSQL репозиторий токенов
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// UpsertToken пишет связь одним INSERT ... ON CONFLICT.
// user_id: первичный ключ, поэтому конкурентные вызовы для одного пользователя не создают дублей.
func (r *TokenRepository) UpsertToken(ctx context.Context, userID, token string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_push_tokens (user_id, token, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE SET
		   token = EXCLUDED.token,
		   updated_at = EXCLUDED.updated_at`,
		userID, token)
	if err != nil {
		return fmt.Errorf("upsert push token: %w", err)
	}
	return nil
}

// GetByUserID получает связь пользователя
func (r *TokenRepository) GetByUserID(ctx context.Context, userID string) (repository.UserPushToken, error) {
	var t repository.UserPushToken
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, token, updated_at
		 FROM user_push_tokens
		 WHERE user_id = $1`,
		userID).Scan(&t.UserID, &t.Token, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.UserPushToken{}, repository.ErrNotFound
		}
		return repository.UserPushToken{}, fmt.Errorf("get push token: %w", err)
	}
	return t, nil
}
