package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"

	"botevents-api/internal/logger"
	"botevents-api/pkg/apierror"
	"botevents-api/pkg/response"
)

// StatsSource provides inventory statistics.
type StatsSource interface {
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// LockoutManager exposes limiter state to operators.
type LockoutManager interface {
	Tracked(ctx context.Context) (int, error)
	Reset(ctx context.Context, origin string) error
}

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	stats     StatsSource
	lockouts  LockoutManager
	dbDriver  string
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(stats StatsSource, lockouts LockoutManager, dbDriver string) *AdminHandler {
	return &AdminHandler{
		stats:     stats,
		lockouts:  lockouts,
		dbDriver:  dbDriver,
		startTime: time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_driver"] = h.dbDriver

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	if h.stats != nil {
		inventory, err := h.stats.Stats(ctx)
		if err == nil {
			inventory["status"] = "connected"
			stats["inventory"] = inventory
		} else {
			logger.FromContext(ctx).Warn("[Admin] Failed to read inventory stats", "error", err)
			stats["inventory"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	}

	if h.lockouts != nil {
		tracked, err := h.lockouts.Tracked(ctx)
		if err == nil {
			stats["rate_limit"] = map[string]interface{}{"tracked_origins": tracked}
		} else {
			stats["rate_limit"] = map[string]interface{}{"status": "error", "error": err.Error()}
		}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// ClearLockout handles DELETE /api/v1/admin/lockouts/{origin}
func (h *AdminHandler) ClearLockout(w http.ResponseWriter, r *http.Request) {
	origin := chi.URLParam(r, "origin")
	if origin == "" {
		response.Error(w, apierror.BadRequest("origin is required"))
		return
	}

	if err := h.lockouts.Reset(r.Context(), origin); err != nil {
		logger.FromContext(r.Context()).Error("[Admin] Failed to clear lockout", "origin", origin, "error", err)
		response.Error(w, apierror.InternalError("Failed to clear lockout"))
		return
	}

	logger.FromContext(r.Context()).Info("[Admin] Lockout cleared", "origin", origin)
	response.NoContent(w)
}
