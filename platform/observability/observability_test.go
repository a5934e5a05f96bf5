package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInit_DisabledReturnsNoopShutdown(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInit_InvalidSamplingRatio(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: true, SamplingRatio: 2})
	require.Error(t, err)
}

func TestHTTPMiddleware_PutsLoggerAndKeepsFlusher(t *testing.T) {
	base := zap.NewNop()

	r := chi.NewRouter()
	r.Use(HTTPMiddleware("providerhub", base))
	r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
		require.NotNil(t, LoggerFromContext(r.Context(), nil))
		_, ok := w.(http.Flusher)
		require.True(t, ok)
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
}

func TestLoggerFromContext_Fallback(t *testing.T) {
	fallback := zap.NewNop()
	require.Same(t, fallback, LoggerFromContext(context.Background(), fallback))
}

func TestTraceFields_NoSpan(t *testing.T) {
	require.Nil(t, TraceFields(context.Background()))
}
