package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"botevents-api/internal/codec"
	"botevents-api/internal/logger"
	"botevents-api/internal/metrics"
	"botevents-api/internal/middleware"
	"botevents-api/internal/model"
	"botevents-api/internal/ratelimit"
	"botevents-api/internal/repository"
	"botevents-api/internal/service"
	"botevents-api/pkg/apierror"
	"botevents-api/pkg/response"
	"botevents-api/pkg/uid"
)

// Headers every bot event must carry.
var requiredEventHeaders = []string{"X-Client-Version", "X-Session-ID", "X-Request-ID"}

const maxEventBody = 1 << 20

// EventHandler serves the disguised bot event endpoints.
type EventHandler struct {
	ledger  *service.LedgerService
	keys    *service.APIKeyService
	codec   *codec.Codec
	limiter *ratelimit.Limiter
	logs    repository.EventLogRepository

	logTimeout time.Duration
	wg         sync.WaitGroup
}

// EventHandlerConfig holds the dependencies of an EventHandler.
// Logs is optional.
type EventHandlerConfig struct {
	Ledger  *service.LedgerService
	Keys    *service.APIKeyService
	Codec   *codec.Codec
	Limiter *ratelimit.Limiter
	Logs    repository.EventLogRepository
}

// NewEventHandler creates a new event handler.
func NewEventHandler(cfg EventHandlerConfig) *EventHandler {
	return &EventHandler{
		ledger:     cfg.Ledger,
		keys:       cfg.Keys,
		codec:      cfg.Codec,
		limiter:    cfg.Limiter,
		logs:       cfg.Logs,
		logTimeout: 5 * time.Second,
	}
}

// eventRecord accumulates what is known about one event for the audit log.
type eventRecord struct {
	entry model.EventLog
	start time.Time
}

func (h *EventHandler) begin(r *http.Request, t model.EventType) *eventRecord {
	return &eventRecord{
		start: time.Now(),
		entry: model.EventLog{
			EventID:   uid.NewEventID(),
			RequestID: middleware.GetRequestID(r.Context()),
			Type:      t,
			IPAddress: middleware.ClientIP(r),
		},
	}
}

// Query handles GET /api/v1/events/query
func (h *EventHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ev := h.begin(r, model.EventQuery)

	if !h.admit(w, r, ev, "Invalid request headers") {
		return
	}

	q := r.URL.Query()
	botID, _ := strconv.ParseInt(firstNonEmpty(q.Get("s_id"), q.Get("session_id")), 10, 64)
	username := firstNonEmpty(q.Get("p_id"), q.Get("player_id"))
	ev.entry.BotID = botID
	ev.entry.Username = username

	if !h.authenticate(w, r, ev, botID, "Invalid API key") {
		return
	}

	if username == "" || botID == 0 {
		h.fail(w, r, ev, apierror.BadRequest("Missing required parameters"))
		return
	}

	result, err := h.ledger.Query(ctx, username, botID)
	if err != nil {
		logger.FromContext(ctx).Error("[Events] Error fetching query data", "error", err, "bot_id", botID)
		h.fail(w, r, ev, apierror.InternalError("Query processing failed"))
		return
	}

	data := map[string]interface{}{
		"type":  "query_result",
		"found": result.Found,
	}
	if result.Found {
		items := result.Items
		if items == nil {
			items = []model.InventoryItem{}
		}
		data["has_items"] = len(items) > 0
		data["items"] = items
	} else {
		data["reason"] = "entity_not_found"
	}

	ev.entry.ItemCount = len(result.Items)
	h.succeed(w, r, ev, "", data)
}

// Collect handles POST /api/v1/events/collect (deposit)
func (h *EventHandler) Collect(w http.ResponseWriter, r *http.Request) {
	ev := h.begin(r, model.EventCollect)

	var req service.DepositRequest
	if !h.decode(w, r, ev, &req, func() (int64, string) { return req.BotID, req.Username }) {
		return
	}
	ev.entry.ItemCount = len(req.Items)

	result, err := h.ledger.Deposit(r.Context(), req)
	if err != nil {
		h.ledgerError(w, r, ev, err)
		return
	}

	h.succeed(w, r, ev, "Events processed successfully", result)
}

// Dispatch handles POST /api/v1/events/dispatch (withdraw)
func (h *EventHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	ev := h.begin(r, model.EventDispatch)

	var req service.WithdrawRequest
	if !h.decode(w, r, ev, &req, func() (int64, string) { return req.BotID, req.Username }) {
		return
	}
	ev.entry.ItemCount = len(req.ItemIDs)

	result, err := h.ledger.Withdraw(r.Context(), req)
	if err != nil {
		h.ledgerError(w, r, ev, err)
		return
	}
	h.succeed(w, r, ev, "Events dispatched successfully", result)
}

// Cancel handles POST /api/v1/events/cancel (decline withdraw)
func (h *EventHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ev := h.begin(r, model.EventCancel)

	var req service.DeclineRequest
	if !h.decode(w, r, ev, &req, func() (int64, string) { return req.BotID, req.Username }) {
		return
	}

	result, err := h.ledger.DeclineWithdraw(r.Context(), req)
	if err != nil {
		h.ledgerError(w, r, ev, err)
		return
	}
	ev.entry.ItemCount = int(result.Updated)
	h.succeed(w, r, ev, "Event cancelled successfully", result)
}

// admit rejects locked out origins and requests missing the event headers.
func (h *EventHandler) admit(w http.ResponseWriter, r *http.Request, ev *eventRecord, headerMessage string) bool {
	ctx := r.Context()
	origin := ev.entry.IPAddress

	blocked, remaining, err := h.limiter.IsBlocked(ctx, origin)
	if err != nil {
		logger.FromContext(ctx).Error("[Events] Rate limiter unavailable", "origin", origin, "error", err)
	}
	if blocked {
		h.fail(w, r, ev, apierror.TooManyRequests(remaining))
		return false
	}

	for _, name := range requiredEventHeaders {
		if r.Header.Get(name) == "" {
			h.recordFailure(ctx, origin, "missing_headers")
			h.fail(w, r, ev, apierror.BadRequest(headerMessage))
			return false
		}
	}
	return true
}

// authenticate checks the windowed API key for botID.
func (h *EventHandler) authenticate(w http.ResponseWriter, r *http.Request, ev *eventRecord, botID int64, message string) bool {
	apiKey := r.Header.Get("X-API-Key")
	if apiKey != "" && h.keys.Validate(apiKey, botID) {
		return true
	}

	logger.FromContext(r.Context()).Error("[Events] Invalid API key", "origin", ev.entry.IPAddress, "bot_id", botID)
	h.recordFailure(r.Context(), ev.entry.IPAddress, "invalid_key")
	h.fail(w, r, ev, apierror.Unauthorized(message))
	return false
}

// decode admits the request, recovers the payload into v, authenticates the
// bot id it carries and validates v. ids is read after decoding.
func (h *EventHandler) decode(w http.ResponseWriter, r *http.Request, ev *eventRecord, v interface{}, ids func() (int64, string)) bool {
	if !h.admit(w, r, ev, "Invalid request format") {
		return false
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBody))
	if err != nil {
		h.fail(w, r, ev, apierror.BadRequest("failed to read request body"))
		return false
	}
	defer r.Body.Close()

	if err := h.codec.DecodeEnvelope(body, v); err != nil {
		logger.FromContext(r.Context()).Warn("[Events] Failed to extract payload", "origin", ev.entry.IPAddress, "error", err)
		h.fail(w, r, ev, apierror.BadRequest("Invalid payload structure"))
		return false
	}

	botID, username := ids()
	ev.entry.BotID = botID
	ev.entry.Username = username

	if !h.authenticate(w, r, ev, botID, "Authentication failed") {
		return false
	}

	if err := GetValidator().ValidateStruct(v); err != nil {
		h.fail(w, r, ev, apierror.ValidationError("Invalid request format", FormatValidationError(err)...))
		return false
	}
	return true
}

// ledgerError maps ledger failures. Unknown users are reported as an
// authentication failure so their existence is not revealed.
func (h *EventHandler) ledgerError(w http.ResponseWriter, r *http.Request, ev *eventRecord, err error) {
	if errors.Is(err, service.ErrUserNotFound) {
		h.recordFailure(r.Context(), ev.entry.IPAddress, "unknown_user")
		h.fail(w, r, ev, apierror.Unauthorized("Authentication failed"))
		return
	}

	logger.FromContext(r.Context()).Error("[Events] Error processing event", "type", ev.entry.Type, "error", err)
	h.fail(w, r, ev, apierror.InternalError("Event processing failed"))
}

func (h *EventHandler) recordFailure(ctx context.Context, origin, reason string) {
	metrics.AuthFailures.WithLabelValues(reason).Inc()
	if err := h.limiter.RecordFailure(ctx, origin); err != nil {
		logger.FromContext(ctx).Error("[Events] Failed to record auth failure", "origin", origin, "error", err)
	}
}

func (h *EventHandler) fail(w http.ResponseWriter, r *http.Request, ev *eventRecord, apiErr *apierror.Error) {
	ev.entry.Status = "failed"
	ev.entry.StatusCode = apiErr.StatusCode
	ev.entry.ErrorMessage = apiErr.Message
	h.finish(r.Context(), ev)
	response.Error(w, apiErr)
}

func (h *EventHandler) succeed(w http.ResponseWriter, r *http.Request, ev *eventRecord, message string, data interface{}) {
	ev.entry.Status = "success"
	ev.entry.StatusCode = http.StatusOK
	h.finish(r.Context(), ev)
	response.EventOK(w, ev.entry.EventID, message, data)
}

// finish counts the event and writes it to the audit log in the background.
func (h *EventHandler) finish(ctx context.Context, ev *eventRecord) {
	metrics.EventsProcessed.WithLabelValues(string(ev.entry.Type), ev.entry.Status).Inc()

	if h.logs == nil {
		return
	}

	entry := ev.entry
	entry.DurationMs = time.Since(ev.start).Milliseconds()
	entry.CreatedAt = time.Now().UTC()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.logTimeout)
		defer cancel()

		if err := h.logs.InsertEventLog(logCtx, &entry); err != nil {
			logger.FromContext(ctx).Warn("[Events] Failed to write event log", "event_id", entry.EventID, "error", err)
		}
	}()
}

// Close waits for pending audit log writes.
func (h *EventHandler) Close() {
	h.wg.Wait()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
