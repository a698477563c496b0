package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botevents-api/internal/handler"
	"botevents-api/internal/model"
	"botevents-api/internal/ratelimit"
	"botevents-api/internal/repository"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubStats struct{}

func (stubStats) Stats(context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"total_items": int64(3)}, nil
}

func newTestRouter(t *testing.T, store handler.Pinger) (http.Handler, *ratelimit.Limiter) {
	t.Helper()
	limiter := ratelimit.New(ratelimit.NewMemoryStore(0))
	t.Cleanup(func() { _ = limiter.Close() })

	logs := repository.NewMemoryEventLogRepository(10)
	require.NoError(t, logs.InsertEventLog(context.Background(), &model.EventLog{EventID: "evt_1_a", Type: model.EventQuery}))

	return New(Config{
		Handler:       handler.New("botevents-api", "test", store),
		AdminHandler:  handler.NewAdminHandler(stubStats{}, limiter, "sqlite"),
		LogHandler:    handler.NewLogHandler(logs),
		AdminKey:      "admin-key",
		EnableMetrics: true,
	}), limiter
}

func serve(h http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestRouter_PublicRoutes(t *testing.T) {
	h, _ := newTestRouter(t, stubPinger{})

	tests := []struct {
		name   string
		target string
		want   int
		body   string
	}{
		{"home", "/", http.StatusOK, "botevents-api"},
		{"status", "/api/status", http.StatusOK, `"database":"ok"`},
		{"health", "/api/v1/health", http.StatusOK, `"healthy"`},
		{"ready", "/api/v1/ready", http.StatusOK, `"ready":true`},
		{"metrics", "/metrics", http.StatusOK, "go_goroutines"},
		{"unknown route", "/nope", http.StatusNotFound, `"NOT_FOUND"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestRouter_ReadyWhenStoreDown(t *testing.T) {
	h, _ := newTestRouter(t, stubPinger{err: errors.New("down")})

	rec := serve(h, http.MethodGet, "/api/v1/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready":false`)
}

func TestRouter_AdminRoutes(t *testing.T) {
	h, limiter := newTestRouter(t, stubPinger{})
	auth := map[string]string{"X-Login-Key": "admin-key"}

	t.Run("requires login key", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/api/v1/admin/stats", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("stats", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/api/v1/admin/stats", auth)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"tracked_origins":0`)
		assert.Contains(t, rec.Body.String(), `"total_items":3`)
	})

	t.Run("logs", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/api/v1/admin/logs?limit=5", auth)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "evt_1_a")
		assert.Contains(t, rec.Body.String(), `"total":1`)
	})

	t.Run("clear lockout", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, limiter.RecordFailure(ctx, "1.2.3.4"))

		rec := serve(h, http.MethodDelete, "/api/v1/admin/lockouts/1.2.3.4", auth)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		tracked, err := limiter.Tracked(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, tracked)
	})
}
