package domain

// Event is a bookable entity with a fixed seat capacity. ID, Name and
// Capacity are immutable after creation; Registered only ever grows.
type Event struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	Capacity   uint32 `json:"capacity"`
	Registered uint32 `json:"registered"`
}

// IsFull reports whether the event has no remaining capacity. FULL is
// terminal: no operation ever decrements Registered.
func (e *Event) IsFull() bool {
	return e.Registered >= e.Capacity
}

// Remaining returns the number of seats still available.
func (e *Event) Remaining() uint32 {
	if e.IsFull() {
		return 0
	}
	return e.Capacity - e.Registered
}

// Account is an external, ledger-native caller identity. The ledger
// treats it as opaque; identity management lives outside the core.
type Account string
