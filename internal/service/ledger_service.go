package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/prohmpiriya/event-ledger/internal/domain"
	"github.com/prohmpiriya/event-ledger/internal/dto"
	"github.com/prohmpiriya/event-ledger/internal/ledger"
	"github.com/prohmpiriya/event-ledger/internal/metrics"
	"github.com/prohmpiriya/event-ledger/pkg/logger"
	"github.com/prohmpiriya/event-ledger/pkg/telemetry"
)

// LedgerService defines the interface for ledger business logic
type LedgerService interface {
	// CreateEvent creates a new event on behalf of the caller
	CreateEvent(ctx context.Context, caller domain.Account, req *dto.CreateEventRequest) (*dto.CreateEventResponse, error)

	// Reserve books one seat on an event for the account
	Reserve(ctx context.Context, account domain.Account, eventID uint64) (*dto.ReserveResponse, error)

	// GetEvent retrieves a single event by id
	GetEvent(ctx context.Context, id uint64) (*dto.EventResponse, error)

	// ListEvents retrieves all events in id order, marking the ones
	// the account already holds a seat on
	ListEvents(ctx context.Context, account domain.Account) (*dto.EventListResponse, error)

	// EventCount returns the number of events created so far
	EventCount(ctx context.Context) (*dto.EventCountResponse, error)

	// GetReservation reports whether the account holds a seat on the event
	GetReservation(ctx context.Context, account domain.Account, eventID uint64) (*dto.ReservationResponse, error)
}

// ledgerService implements LedgerService
type ledgerService struct {
	ledger    ledger.Ledger
	publisher LedgerEventPublisher
}

// NewLedgerService creates a new ledger service
func NewLedgerService(l ledger.Ledger, publisher LedgerEventPublisher) LedgerService {
	if publisher == nil {
		publisher = NewNoOpLedgerPublisher()
	}
	return &ledgerService{
		ledger:    l,
		publisher: publisher,
	}
}

// CreateEvent creates a new event on behalf of the caller
func (s *ledgerService) CreateEvent(ctx context.Context, caller domain.Account, req *dto.CreateEventRequest) (*dto.CreateEventResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ledger.create_event")
	defer span.End()

	if req == nil {
		span.SetStatus(codes.Error, "invalid name")
		return nil, domain.ErrInvalidName
	}
	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if caller == "" {
		span.SetStatus(codes.Error, "invalid account")
		return nil, domain.ErrInvalidAccount
	}

	span.SetAttributes(
		attribute.String("caller", string(caller)),
		attribute.String("name", req.Name),
		attribute.Int64("capacity", int64(req.Capacity)),
	)

	id, err := s.ledger.CreateEvent(ctx, caller, req.Name, req.Capacity)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	event := &domain.Event{
		ID:       id,
		Name:     req.Name,
		Capacity: req.Capacity,
	}
	metrics.RecordEventCreated(ctx, id, req.Capacity)

	// The change feed is best effort. The ledger write has already
	// committed, so a publish failure must not fail the request.
	if err := s.publisher.PublishEventCreated(ctx, event); err != nil {
		logger.Get().Warn("failed to publish event.created",
			zap.Uint64("event_id", id),
			zap.Error(err),
		)
	}

	span.SetAttributes(attribute.Int64("event_id", int64(id)))
	span.SetStatus(codes.Ok, "")
	return &dto.CreateEventResponse{
		CommitID: uuid.New().String(),
		Event:    dto.EventResponseFromDomain(event),
	}, nil
}

// Reserve books one seat on an event for the account
func (s *ledgerService) Reserve(ctx context.Context, account domain.Account, eventID uint64) (*dto.ReserveResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ledger.reserve")
	defer span.End()

	if account == "" {
		span.SetStatus(codes.Error, "invalid account")
		return nil, domain.ErrInvalidAccount
	}

	span.SetAttributes(
		attribute.String("account", string(account)),
		attribute.Int64("event_id", int64(eventID)),
	)

	if err := s.ledger.Reserve(ctx, account, eventID); err != nil {
		if reason := rejectionReason(err); reason != "" {
			metrics.RecordRejection(ctx, eventID, reason)
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RecordSeatReserved(ctx, eventID)

	// Read back the committed state for the confirmation and the
	// change feed. A read failure here leaves the reservation intact,
	// but the feed record is skipped rather than published with a
	// zeroed counter and name.
	var registered uint32
	event, err := s.ledger.EventAt(ctx, eventID)
	if err != nil {
		logger.Get().Warn("failed to read event after reserve, skipping seat.reserved publish",
			zap.Uint64("event_id", eventID),
			zap.Error(err),
		)
	} else {
		registered = event.Registered
		if err := s.publisher.PublishSeatReserved(ctx, event, account); err != nil {
			logger.Get().Warn("failed to publish seat.reserved",
				zap.Uint64("event_id", eventID),
				zap.Error(err),
			)
		}
	}

	span.SetStatus(codes.Ok, "")
	return &dto.ReserveResponse{
		CommitID:    uuid.New().String(),
		EventID:     eventID,
		Account:     account,
		Registered:  registered,
		CommittedAt: time.Now().UTC(),
	}, nil
}

// GetEvent retrieves a single event by id
func (s *ledgerService) GetEvent(ctx context.Context, id uint64) (*dto.EventResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ledger.get_event")
	defer span.End()

	span.SetAttributes(attribute.Int64("event_id", int64(id)))

	event, err := s.ledger.EventAt(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return dto.EventResponseFromDomain(event), nil
}

// ListEvents retrieves all events in id order, marking the ones
// the account already holds a seat on
func (s *ledgerService) ListEvents(ctx context.Context, account domain.Account) (*dto.EventListResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ledger.list_events")
	defer span.End()

	count, err := s.ledger.EventCount(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	events := make([]*dto.EventListItem, 0, count)
	for id := uint64(0); id < count; id++ {
		event, err := s.ledger.EventAt(ctx, id)
		if err != nil {
			// Ids are dense, so a hole here means a concurrent
			// problem worth surfacing rather than papering over.
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		item := &dto.EventListItem{EventResponse: *dto.EventResponseFromDomain(event)}
		if account != "" {
			reserved, err := s.ledger.HasReserved(ctx, account, id)
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			item.ReservedByMe = reserved
		}
		events = append(events, item)
	}

	span.SetAttributes(attribute.Int("count", len(events)))
	span.SetStatus(codes.Ok, "")
	return &dto.EventListResponse{Count: count, Events: events}, nil
}

// EventCount returns the number of events created so far
func (s *ledgerService) EventCount(ctx context.Context) (*dto.EventCountResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ledger.event_count")
	defer span.End()

	count, err := s.ledger.EventCount(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return &dto.EventCountResponse{Count: count}, nil
}

// GetReservation reports whether the account holds a seat on the event
func (s *ledgerService) GetReservation(ctx context.Context, account domain.Account, eventID uint64) (*dto.ReservationResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ledger.get_reservation")
	defer span.End()

	if account == "" {
		span.SetStatus(codes.Error, "invalid account")
		return nil, domain.ErrInvalidAccount
	}

	span.SetAttributes(
		attribute.String("account", string(account)),
		attribute.Int64("event_id", int64(eventID)),
	)

	reserved, err := s.ledger.HasReserved(ctx, account, eventID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return &dto.ReservationResponse{
		EventID:  eventID,
		Account:  account,
		Reserved: reserved,
	}, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEventFull):
		return "event_full"
	case errors.Is(err, domain.ErrAlreadyReserved):
		return "already_reserved"
	case errors.Is(err, domain.ErrInvalidEventID):
		return "invalid_event_id"
	default:
		return ""
	}
}
