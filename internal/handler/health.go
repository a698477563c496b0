package handler

import (
	"context"
	"html/template"
	"net/http"
	"runtime"
	"time"

	"botevents-api/internal/logger"
	"botevents-api/pkg/apierror"
	"botevents-api/pkg/response"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains shared HTTP handlers and their dependencies.
type Handler struct {
	service   string
	version   string
	store     Pinger
	startTime time.Time
}

// New creates a new handler. store may be nil.
func New(service, version string, store Pinger) *Handler {
	return &Handler{
		service:   service,
		version:   version,
		store:     store,
		startTime: time.Now(),
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	}
	response.OK(w, resp)
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// Check represents an individual readiness check.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Ready handles GET /api/v1/ready
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := []Check{
		{Name: "api", Status: "ok"},
		{Name: "database", Status: h.pingStore(r.Context())},
	}

	allReady := true
	for _, check := range checks {
		if check.Status != "ok" {
			allReady = false
			break
		}
	}

	resp := ReadyResponse{
		Ready:     allReady,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	}

	status := http.StatusOK
	if !allReady {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, resp)
}

func (h *Handler) pingStore(ctx context.Context) string {
	if h.store == nil {
		return "not_configured"
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		logger.FromContext(ctx).Warn("[Health] Store ping failed", "error", err)
		return "error"
	}
	return "ok"
}

// StatusChecks represents the checks in status response
type StatusChecks struct {
	Database string  `json:"database"`
	MemoryMB float64 `json:"memory_mb"`
}

// StatusResponse represents the unified status response for bot monitoring
type StatusResponse struct {
	Service       string       `json:"service"`
	Status        string       `json:"status"`
	Timestamp     string       `json:"timestamp"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	PingMS        int64        `json:"ping_ms"`
	Checks        StatusChecks `json:"checks"`
}

// Status handles GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	requestStart := time.Now()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	database := h.pingStore(r.Context())
	pingMS := time.Since(requestStart).Milliseconds()

	status := "ok"
	if database == "error" {
		status = "degraded"
	}

	resp := StatusResponse{
		Service:       h.service,
		Status:        status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		PingMS:        pingMS,
		Checks: StatusChecks{
			Database: database,
			MemoryMB: float64(int(memoryMB*100)) / 100,
		},
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, resp)
}

var homeTemplate = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Service}}</title>
<style>
body { font-family: system-ui, sans-serif; background: #111; color: #ddd; display: flex; justify-content: center; padding-top: 10vh; }
main { max-width: 32rem; }
code { color: #00ff99; }
</style>
</head>
<body>
<main>
<h1>{{.Service}}</h1>
<p>Analytics ingestion endpoint. Version <code>{{.Version}}</code>, up {{.Uptime}}.</p>
<p>Service status is available at <code>/api/status</code>.</p>
</main>
</body>
</html>
`))

// Home handles GET /
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := homeTemplate.Execute(w, map[string]string{
		"Service": h.service,
		"Version": h.version,
		"Uptime":  time.Since(h.startTime).Round(time.Second).String(),
	})
	if err != nil {
		logger.FromContext(r.Context()).Error("[Health] Failed to render home page", "error", err)
	}
}

// NotFound handles unmatched routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	response.Error(w, apierror.NotFound(""))
}

// MethodNotAllowed handles routes matched with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	response.Error(w, apierror.MethodNotAllowed())
}
