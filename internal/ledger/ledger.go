// Package ledger defines the event booking ledger: the authoritative
// state machine for events, capacities and per-account reservations.
// Every operation is one atomic read-validate-mutate unit; a failed
// operation leaves no partial state behind.
package ledger

import (
	"context"

	"github.com/prohmpiriya/event-ledger/internal/domain"
)

// Ledger is the programmatic surface consumed by the service layer,
// the seeding utility and the tests. Implementations must serialize
// write operations so that precondition checks never observe a stale
// read relative to a concurrently committing operation.
type Ledger interface {
	// InitOwner stores the privileged owner identity. It succeeds at
	// most once per ledger; re-initialization with a different owner
	// fails with domain.ErrOwnerAlreadySet.
	InitOwner(ctx context.Context, owner domain.Account) error

	// Owner returns the stored owner identity.
	Owner(ctx context.Context) (domain.Account, error)

	// CreateEvent appends a new event with id == EventCount and a zero
	// registered counter, and returns the assigned id. Only the owner
	// may call it; others fail with domain.ErrUnauthorized. A capacity
	// of zero fails with domain.ErrInvalidCapacity, an empty name with
	// domain.ErrInvalidName.
	CreateEvent(ctx context.Context, caller domain.Account, name string, capacity uint32) (uint64, error)

	// Reserve claims one seat on the event for the account. Precondition
	// order is part of the contract: unknown id fails with
	// domain.ErrInvalidEventID, a prior reservation with
	// domain.ErrAlreadyReserved, a full event with domain.ErrEventFull.
	// On success the reservation marker and the registered counter are
	// committed together.
	Reserve(ctx context.Context, account domain.Account, eventID uint64) error

	// EventCount returns the number of events created so far. Assigned
	// ids are exactly 0..EventCount-1 with no gaps.
	EventCount(ctx context.Context) (uint64, error)

	// EventAt returns the event with the given id, or
	// domain.ErrInvalidEventID for an out-of-range id.
	EventAt(ctx context.Context, id uint64) (*domain.Event, error)

	// HasReserved reports whether the account holds a reservation for
	// the event. It returns false for any pair never written, including
	// out-of-range ids, and never fails for well-formed input.
	HasReserved(ctx context.Context, account domain.Account, id uint64) (bool, error)
}
