// Package push клиенты push-провайдера: получение текущего registration token устройства.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNoToken провайдер ответил без токена
var ErrNoToken = errors.New("push provider returned no token")

// HTTPTokenSource получает токен у агента push-провайдера по HTTP.
// Ожидает ответ 200 {"token": "..."}.
type HTTPTokenSource struct {
	logger *zap.Logger
	url    string
	client *http.Client
}

// NewHTTPTokenSource создаёт источник токена
func NewHTTPTokenSource(logger *zap.Logger, url string) *HTTPTokenSource {
	return &HTTPTokenSource{
		logger: logger,
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// CurrentToken запрашивает текущий registration token
func (s *HTTPTokenSource) CurrentToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch push token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("push provider status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode push token response: %w", err)
	}
	if result.Token == "" {
		return "", ErrNoToken
	}

	s.logger.Debug("push token fetched", zap.Int("token_len", len(result.Token)))
	return result.Token, nil
}

// StaticTokenSource всегда возвращает один и тот же токен (local окружение)
type StaticTokenSource struct {
	token string
}

// NewStaticTokenSource создаёт статический источник; пустой токен = ErrNoToken на каждый вызов
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

// CurrentToken возвращает заданный токен
func (s *StaticTokenSource) CurrentToken(ctx context.Context) (string, error) {
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}
