// Package dto contains the request and response shapes of the HTTP API.
package dto

import (
	"time"

	"github.com/prohmpiriya/event-ledger/internal/domain"
)

// CreateEventRequest is the payload for creating an event.
//
// Capacity carries no binding tag: a zero value must reach Validate
// so the response reports INVALID_CAPACITY, not a generic binding error.
type CreateEventRequest struct {
	Name     string `json:"name" binding:"required"`
	Capacity uint32 `json:"capacity"`
}

// Validate checks the request fields against the ledger rules.
func (r *CreateEventRequest) Validate() error {
	if r.Name == "" {
		return domain.ErrInvalidName
	}
	if r.Capacity == 0 {
		return domain.ErrInvalidCapacity
	}
	return nil
}

// EventResponse is one event as returned by the API.
type EventResponse struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	Capacity   uint32 `json:"capacity"`
	Registered uint32 `json:"registered"`
	Remaining  uint32 `json:"remaining"`
	Full       bool   `json:"full"`
}

// EventResponseFromDomain converts a domain event to its API shape.
func EventResponseFromDomain(event *domain.Event) *EventResponse {
	return &EventResponse{
		ID:         event.ID,
		Name:       event.Name,
		Capacity:   event.Capacity,
		Registered: event.Registered,
		Remaining:  event.Remaining(),
		Full:       event.IsFull(),
	}
}

// CreateEventResponse confirms a committed event creation.
type CreateEventResponse struct {
	CommitID string         `json:"commit_id"`
	Event    *EventResponse `json:"event"`
}

// ReserveResponse confirms a committed reservation.
type ReserveResponse struct {
	CommitID    string         `json:"commit_id"`
	EventID     uint64         `json:"event_id"`
	Account     domain.Account `json:"account"`
	Registered  uint32         `json:"registered"`
	CommittedAt time.Time      `json:"committed_at"`
}

// EventCountResponse carries the total number of events.
type EventCountResponse struct {
	Count uint64 `json:"count"`
}

// EventListItem is one event in a listing, annotated with the
// calling account's own reservation state.
type EventListItem struct {
	EventResponse
	ReservedByMe bool `json:"reserved_by_me"`
}

// EventListResponse carries all events in id order.
type EventListResponse struct {
	Count  uint64           `json:"count"`
	Events []*EventListItem `json:"events"`
}

// ReservationResponse answers a reservation lookup.
type ReservationResponse struct {
	EventID  uint64         `json:"event_id"`
	Account  domain.Account `json:"account"`
	Reserved bool           `json:"reserved"`
}
