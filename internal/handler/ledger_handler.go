package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/prohmpiriya/event-ledger/internal/domain"
	"github.com/prohmpiriya/event-ledger/internal/dto"
	"github.com/prohmpiriya/event-ledger/internal/service"
	"github.com/prohmpiriya/event-ledger/pkg/middleware"
	"github.com/prohmpiriya/event-ledger/pkg/response"
	"github.com/prohmpiriya/event-ledger/pkg/telemetry"
)

// LedgerHandler handles ledger HTTP requests
type LedgerHandler struct {
	ledgerService service.LedgerService
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(ledgerService service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

// CreateEvent handles POST /events
func (h *LedgerHandler) CreateEvent(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ledger.create_event")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	account, ok := middleware.GetAccount(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthenticated")
		response.Error(c, http.StatusUnauthorized, "UNAUTHENTICATED", "missing caller identity")
		return
	}

	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("account", account),
		attribute.String("name", req.Name),
		attribute.Int64("capacity", int64(req.Capacity)),
	)

	result, err := h.ledgerService.CreateEvent(ctx, domain.Account(account), &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int64("event_id", int64(result.Event.ID)))
	span.SetStatus(codes.Ok, "")
	response.Created(c, result)
}

// Reserve handles POST /events/:id/reserve
func (h *LedgerHandler) Reserve(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ledger.reserve")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	account, ok := middleware.GetAccount(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthenticated")
		response.Error(c, http.StatusUnauthorized, "UNAUTHENTICATED", "missing caller identity")
		return
	}

	eventID, ok := h.eventIDParam(c)
	if !ok {
		span.SetStatus(codes.Error, "invalid event id")
		return
	}

	span.SetAttributes(
		attribute.String("account", account),
		attribute.Int64("event_id", int64(eventID)),
	)

	result, err := h.ledgerService.Reserve(ctx, domain.Account(account), eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Created(c, result)
}

// ListEvents handles GET /events
func (h *LedgerHandler) ListEvents(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ledger.list_events")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	account, _ := middleware.GetAccount(c)

	result, err := h.ledgerService.ListEvents(ctx, domain.Account(account))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("count", len(result.Events)))
	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// EventCount handles GET /events/count
func (h *LedgerHandler) EventCount(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ledger.event_count")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	result, err := h.ledgerService.EventCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// GetEvent handles GET /events/:id
func (h *LedgerHandler) GetEvent(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ledger.get_event")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	eventID, ok := h.eventIDParam(c)
	if !ok {
		span.SetStatus(codes.Error, "invalid event id")
		return
	}

	span.SetAttributes(attribute.Int64("event_id", int64(eventID)))

	result, err := h.ledgerService.GetEvent(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// GetReservation handles GET /events/:id/reservation
//
// The account to check comes from the "account" query parameter, and
// falls back to the authenticated caller when absent.
func (h *LedgerHandler) GetReservation(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ledger.get_reservation")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	eventID, ok := h.eventIDParam(c)
	if !ok {
		span.SetStatus(codes.Error, "invalid event id")
		return
	}

	account := c.Query("account")
	if account == "" {
		account, _ = middleware.GetAccount(c)
	}
	if account == "" {
		span.SetStatus(codes.Error, "missing account")
		response.Error(c, http.StatusBadRequest, "INVALID_ACCOUNT", "account is required")
		return
	}

	span.SetAttributes(
		attribute.String("account", account),
		attribute.Int64("event_id", int64(eventID)),
	)

	result, err := h.ledgerService.GetReservation(ctx, domain.Account(account), eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// eventIDParam parses the :id path parameter. It writes the error
// response itself so callers can just return.
func (h *LedgerHandler) eventIDParam(c *gin.Context) (uint64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		response.Error(c, http.StatusNotFound, "INVALID_EVENT_ID", "invalid event id")
		return 0, false
	}
	return id, true
}

// handleError maps domain errors to HTTP status codes
func (h *LedgerHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidEventID):
		response.Error(c, http.StatusNotFound, "INVALID_EVENT_ID", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		response.Error(c, http.StatusForbidden, "UNAUTHORIZED", err.Error())
	case errors.Is(err, domain.ErrInvalidCapacity):
		response.Error(c, http.StatusBadRequest, "INVALID_CAPACITY", err.Error())
	case errors.Is(err, domain.ErrInvalidName):
		response.Error(c, http.StatusBadRequest, "INVALID_NAME", err.Error())
	case errors.Is(err, domain.ErrInvalidAccount):
		response.Error(c, http.StatusBadRequest, "INVALID_ACCOUNT", err.Error())
	case errors.Is(err, domain.ErrAlreadyReserved):
		response.Error(c, http.StatusConflict, "ALREADY_RESERVED", err.Error())
	case errors.Is(err, domain.ErrEventFull):
		response.Error(c, http.StatusConflict, "EVENT_FULL", err.Error())
	case errors.Is(err, domain.ErrOwnerNotSet):
		response.Error(c, http.StatusServiceUnavailable, "OWNER_NOT_SET", err.Error())
	default:
		response.InternalError(c, err)
	}
}
