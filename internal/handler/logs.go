package handler

import (
	"net/http"
	"strconv"

	"botevents-api/internal/logger"
	"botevents-api/internal/model"
	"botevents-api/internal/repository"
	"botevents-api/pkg/apierror"
	"botevents-api/pkg/response"
)

// LogHandler serves the event audit log.
type LogHandler struct {
	repo repository.EventLogRepository
}

func NewLogHandler(repo repository.EventLogRepository) *LogHandler {
	return &LogHandler{repo: repo}
}

// GetEventLogs handles GET /api/v1/admin/logs?page=&limit=
func (h *LogHandler) GetEventLogs(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		response.Error(w, apierror.ServiceUnavailable("Event log unavailable"))
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	logs, total, err := h.repo.GetEventLogs(r.Context(), limit, offset)
	if err != nil {
		logger.FromContext(r.Context()).Error("[Logs] Failed to fetch event logs", "error", err)
		response.Error(w, apierror.InternalError("Failed to fetch logs"))
		return
	}
	if logs == nil {
		logs = []model.EventLog{}
	}

	response.JSONWithMeta(w, http.StatusOK, logs, page, limit, total)
}
