package domain

import (
	"strconv"
	"time"
)

// LedgerEventType identifies a change-feed event.
type LedgerEventType string

const (
	LedgerEventCreated LedgerEventType = "event.created"
	LedgerSeatReserved LedgerEventType = "seat.reserved"
)

// LedgerEvent is the message published after a ledger write commits.
type LedgerEvent struct {
	ID         string          `json:"id"`
	Type       LedgerEventType `json:"type"`
	EventID    uint64          `json:"event_id"`
	Name       string          `json:"name,omitempty"`
	Capacity   uint32          `json:"capacity,omitempty"`
	Registered uint32          `json:"registered"`
	Account    Account         `json:"account,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewLedgerEvent builds a change-feed event for the given event state.
func NewLedgerEvent(eventType LedgerEventType, id string, event *Event, account Account) *LedgerEvent {
	e := &LedgerEvent{
		ID:         id,
		Type:       eventType,
		Account:    account,
		OccurredAt: time.Now().UTC(),
	}
	if event != nil {
		e.EventID = event.ID
		e.Name = event.Name
		e.Capacity = event.Capacity
		e.Registered = event.Registered
	}
	return e
}

// Key orders all messages for one event onto the same partition.
func (e *LedgerEvent) Key() string {
	return strconv.FormatUint(e.EventID, 10)
}
