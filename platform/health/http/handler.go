package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

// Check проверяет одну зависимость (redis, postgres, ...). nil = зависимость доступна.
type Check func(ctx context.Context) error

// Handler возвращает health endpoint.
// 200 {"status":"ok"} если все проверки прошли (или их нет),
// 503 {"status":"not ready","failed":[...]} если хотя бы одна упала.
func Handler(timeout time.Duration, checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		failed := make([]string, 0)
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed = append(failed, name)
			}
		}
		sort.Strings(failed)

		w.Header().Set("Content-Type", "application/json")
		if len(failed) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{"status": "not ready", "failed": failed})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
