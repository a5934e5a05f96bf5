package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHandler_NoChecks(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(time.Second, nil)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandler_FailedCheck(t *testing.T) {
	checks := map[string]Check{
		"redis":    func(ctx context.Context) error { return errors.New("down") },
		"postgres": func(ctx context.Context) error { return nil },
	}

	rec := httptest.NewRecorder()
	Handler(time.Second, checks)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status string   `json:"status"`
		Failed []string `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "not ready", body.Status)
	require.Equal(t, []string{"redis"}, body.Failed)
}
