package ledger

import (
	"context"
	"sync"

	"github.com/prohmpiriya/event-ledger/internal/domain"
)

// MemoryLedger is the in-process Ledger implementation. A single mutex
// scopes each operation, so precondition checks and the mutation they
// guard commit as one unit regardless of caller interleaving.
type MemoryLedger struct {
	mu           sync.RWMutex
	owner        domain.Account
	ownerSet     bool
	events       []domain.Event
	reservations map[uint64]map[domain.Account]struct{}
}

// Ensure MemoryLedger implements Ledger
var _ Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		reservations: make(map[uint64]map[domain.Account]struct{}),
	}
}

// InitOwner stores the owner identity. Calling it again with the same
// owner is a no-op; a different owner fails.
func (l *MemoryLedger) InitOwner(ctx context.Context, owner domain.Account) error {
	if owner == "" {
		return domain.ErrInvalidAccount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ownerSet {
		if l.owner == owner {
			return nil
		}
		return domain.ErrOwnerAlreadySet
	}
	l.owner = owner
	l.ownerSet = true
	return nil
}

// Owner returns the stored owner identity.
func (l *MemoryLedger) Owner(ctx context.Context) (domain.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.ownerSet {
		return "", domain.ErrOwnerNotSet
	}
	return l.owner, nil
}

// CreateEvent appends a new event and returns the assigned id.
func (l *MemoryLedger) CreateEvent(ctx context.Context, caller domain.Account, name string, capacity uint32) (uint64, error) {
	if name == "" {
		return 0, domain.ErrInvalidName
	}
	if capacity == 0 {
		return 0, domain.ErrInvalidCapacity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.ownerSet {
		return 0, domain.ErrOwnerNotSet
	}
	if caller != l.owner {
		return 0, domain.ErrUnauthorized
	}

	id := uint64(len(l.events))
	l.events = append(l.events, domain.Event{
		ID:       id,
		Name:     name,
		Capacity: capacity,
	})
	return id, nil
}

// Reserve claims one seat for the account, checking preconditions in
// contract order under the operation lock.
func (l *MemoryLedger) Reserve(ctx context.Context, account domain.Account, eventID uint64) error {
	if account == "" {
		return domain.ErrInvalidAccount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if eventID >= uint64(len(l.events)) {
		return domain.ErrInvalidEventID
	}
	if _, ok := l.reservations[eventID][account]; ok {
		return domain.ErrAlreadyReserved
	}

	ev := &l.events[eventID]
	if ev.Registered >= ev.Capacity {
		return domain.ErrEventFull
	}

	// Marker and counter commit together; no observer ever sees one
	// without the other.
	if l.reservations[eventID] == nil {
		l.reservations[eventID] = make(map[domain.Account]struct{})
	}
	l.reservations[eventID][account] = struct{}{}
	ev.Registered++
	return nil
}

// EventCount returns the number of events created so far.
func (l *MemoryLedger) EventCount(ctx context.Context) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.events)), nil
}

// EventAt returns a copy of the event with the given id.
func (l *MemoryLedger) EventAt(ctx context.Context, id uint64) (*domain.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if id >= uint64(len(l.events)) {
		return nil, domain.ErrInvalidEventID
	}
	ev := l.events[id]
	return &ev, nil
}

// HasReserved reports the reservation marker for the pair.
func (l *MemoryLedger) HasReserved(ctx context.Context, account domain.Account, id uint64) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.reservations[id][account]
	return ok, nil
}
