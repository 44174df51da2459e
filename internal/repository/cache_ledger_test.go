package repository

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/prohmpiriya/event-ledger/internal/domain"
	"github.com/prohmpiriya/event-ledger/internal/ledger"
)

// fakeCache is an in-memory Cache for testing, ignoring TTLs.
type fakeCache struct {
	data map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func (f *fakeCache) Get(ctx context.Context, key string) *goredis.StringCmd {
	val, ok := f.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(val, nil)
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd {
	switch v := value.(type) {
	case string:
		f.data[key] = v
	case []byte:
		f.data[key] = string(v)
	}
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeCache) Del(ctx context.Context, keys ...string) *goredis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := f.data[key]; ok {
			delete(f.data, key)
			removed++
		}
	}
	return goredis.NewIntResult(removed, nil)
}

// countingLedger wraps a Ledger and counts backend reads, so tests can
// tell whether a call was served from cache.
type countingLedger struct {
	ledger.Ledger
	eventAtCalls     int
	eventCountCalls  int
	hasReservedCalls int
}

func (c *countingLedger) EventAt(ctx context.Context, id uint64) (*domain.Event, error) {
	c.eventAtCalls++
	return c.Ledger.EventAt(ctx, id)
}

func (c *countingLedger) EventCount(ctx context.Context) (uint64, error) {
	c.eventCountCalls++
	return c.Ledger.EventCount(ctx)
}

func (c *countingLedger) HasReserved(ctx context.Context, account domain.Account, id uint64) (bool, error) {
	c.hasReservedCalls++
	return c.Ledger.HasReserved(ctx, account, id)
}

func setupCachedLedger(t *testing.T) (*CachedLedger, *countingLedger, *fakeCache) {
	t.Helper()

	backend := &countingLedger{Ledger: ledger.NewMemoryLedger()}
	if err := backend.InitOwner(context.Background(), testOwner); err != nil {
		t.Fatalf("InitOwner() error = %v", err)
	}
	cache := newFakeCache()
	return NewCachedLedger(backend, cache), backend, cache
}

func TestCachedLedger_EventAtReadThrough(t *testing.T) {
	cached, backend, _ := setupCachedLedger(t)
	ctx := context.Background()

	id, err := cached.CreateEvent(ctx, testOwner, "Cached Event", 10)
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	// First read misses and fills the cache.
	event, err := cached.EventAt(ctx, id)
	if err != nil {
		t.Fatalf("EventAt() error = %v", err)
	}
	if event.Name != "Cached Event" {
		t.Errorf("Name = %q, want %q", event.Name, "Cached Event")
	}
	if backend.eventAtCalls != 1 {
		t.Fatalf("backend EventAt calls = %d, want 1", backend.eventAtCalls)
	}

	// Second read is served from cache.
	if _, err := cached.EventAt(ctx, id); err != nil {
		t.Fatalf("EventAt() error = %v", err)
	}
	if backend.eventAtCalls != 1 {
		t.Errorf("backend EventAt calls = %d, want 1", backend.eventAtCalls)
	}
}

func TestCachedLedger_ReserveInvalidatesEvent(t *testing.T) {
	cached, backend, _ := setupCachedLedger(t)
	ctx := context.Background()

	id, err := cached.CreateEvent(ctx, testOwner, "Hot Event", 5)
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	if _, err := cached.EventAt(ctx, id); err != nil {
		t.Fatalf("EventAt() error = %v", err)
	}
	if err := cached.Reserve(ctx, "0xAlice", id); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}

	// The stale detail entry was dropped, so this read goes to the
	// backend and sees the new registered count.
	event, err := cached.EventAt(ctx, id)
	if err != nil {
		t.Fatalf("EventAt() error = %v", err)
	}
	if event.Registered != 1 {
		t.Errorf("Registered = %d, want 1", event.Registered)
	}
	if backend.eventAtCalls != 2 {
		t.Errorf("backend EventAt calls = %d, want 2", backend.eventAtCalls)
	}
}

func TestCachedLedger_CreateEventInvalidatesCount(t *testing.T) {
	cached, backend, _ := setupCachedLedger(t)
	ctx := context.Background()

	count, err := cached.EventCount(ctx)
	if err != nil {
		t.Fatalf("EventCount() error = %v", err)
	}
	if count != 0 {
		t.Errorf("EventCount() = %d, want 0", count)
	}

	// Cached now.
	if _, err := cached.EventCount(ctx); err != nil {
		t.Fatalf("EventCount() error = %v", err)
	}
	if backend.eventCountCalls != 1 {
		t.Fatalf("backend EventCount calls = %d, want 1", backend.eventCountCalls)
	}

	if _, err := cached.CreateEvent(ctx, testOwner, "New Event", 10); err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	count, err = cached.EventCount(ctx)
	if err != nil {
		t.Fatalf("EventCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("EventCount() after create = %d, want 1", count)
	}
	if backend.eventCountCalls != 2 {
		t.Errorf("backend EventCount calls = %d, want 2", backend.eventCountCalls)
	}
}

func TestCachedLedger_HasReservedCachesPositiveOnly(t *testing.T) {
	cached, backend, _ := setupCachedLedger(t)
	ctx := context.Background()

	id, err := cached.CreateEvent(ctx, testOwner, "Members Event", 10)
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	// Negative answers always hit the backend.
	for i := 0; i < 2; i++ {
		reserved, err := cached.HasReserved(ctx, "0xAlice", id)
		if err != nil {
			t.Fatalf("HasReserved() error = %v", err)
		}
		if reserved {
			t.Fatal("HasReserved() = true before reserving")
		}
	}
	if backend.hasReservedCalls != 2 {
		t.Errorf("backend HasReserved calls = %d, want 2", backend.hasReservedCalls)
	}

	if err := cached.Reserve(ctx, "0xAlice", id); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}

	// Reserve primed the cache, so these never reach the backend.
	for i := 0; i < 2; i++ {
		reserved, err := cached.HasReserved(ctx, "0xAlice", id)
		if err != nil {
			t.Fatalf("HasReserved() error = %v", err)
		}
		if !reserved {
			t.Fatal("HasReserved() = false after reserving")
		}
	}
	if backend.hasReservedCalls != 2 {
		t.Errorf("backend HasReserved calls = %d, want 2", backend.hasReservedCalls)
	}
}

func TestCachedLedger_ErrorsPassThrough(t *testing.T) {
	cached, _, _ := setupCachedLedger(t)
	ctx := context.Background()

	if _, err := cached.CreateEvent(ctx, "0xIntruder", "Nope", 10); err != domain.ErrUnauthorized {
		t.Errorf("CreateEvent() error = %v, want ErrUnauthorized", err)
	}
	if _, err := cached.EventAt(ctx, 42); err != domain.ErrInvalidEventID {
		t.Errorf("EventAt() error = %v, want ErrInvalidEventID", err)
	}
	if err := cached.Reserve(ctx, "0xAlice", 42); err != domain.ErrInvalidEventID {
		t.Errorf("Reserve() error = %v, want ErrInvalidEventID", err)
	}
}
