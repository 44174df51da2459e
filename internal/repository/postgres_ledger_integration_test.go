package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prohmpiriya/event-ledger/internal/domain"
	"github.com/prohmpiriya/event-ledger/migrations"
)

func skipIfNoIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}
}

// getPostgresPool creates a PostgreSQL connection pool for testing and
// resets the ledger tables so tests start from an empty ledger.
func getPostgresPool(t *testing.T) *pgxpool.Pool {
	skipIfNoIntegration(t)

	host := os.Getenv("TEST_POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("TEST_POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	user := os.Getenv("TEST_POSTGRES_USER")
	if user == "" {
		user = "postgres"
	}
	password := os.Getenv("TEST_POSTGRES_PASSWORD")
	if password == "" {
		password = "postgres"
	}
	dbname := os.Getenv("TEST_POSTGRES_DB")
	if dbname == "" {
		dbname = "event_ledger_test"
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, password, host, port, dbname)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to create PostgreSQL pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("Failed to ping PostgreSQL: %v", err)
	}
	if err := migrations.Run(ctx, pool); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	for _, table := range []string{"reservations", "events", "ledger_meta"} {
		if _, err := pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("Failed to clean up %s: %v", table, err)
		}
	}

	return pool
}

const testOwner = domain.Account("0xOwner")

func setupLedger(t *testing.T) *PostgresLedger {
	pool := getPostgresPool(t)
	t.Cleanup(pool.Close)

	repo := NewPostgresLedger(pool)
	if err := repo.InitOwner(context.Background(), testOwner); err != nil {
		t.Fatalf("InitOwner() error = %v", err)
	}
	return repo
}

func TestPostgresLedger_InitOwner(t *testing.T) {
	repo := setupLedger(t)
	ctx := context.Background()

	// Same owner again is a no-op.
	if err := repo.InitOwner(ctx, testOwner); err != nil {
		t.Errorf("InitOwner() same owner error = %v, want nil", err)
	}

	// A different owner is rejected.
	if err := repo.InitOwner(ctx, "0xIntruder"); !errors.Is(err, domain.ErrOwnerAlreadySet) {
		t.Errorf("InitOwner() different owner error = %v, want ErrOwnerAlreadySet", err)
	}

	owner, err := repo.Owner(ctx)
	if err != nil {
		t.Fatalf("Owner() error = %v", err)
	}
	if owner != testOwner {
		t.Errorf("Owner() = %q, want %q", owner, testOwner)
	}
}

func TestPostgresLedger_CreateEvent(t *testing.T) {
	repo := setupLedger(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		caller    domain.Account
		eventName string
		capacity  uint32
		wantErr   error
	}{
		{name: "owner creates event", caller: testOwner, eventName: "Launch Party", capacity: 100},
		{name: "non-owner rejected", caller: "0xAlice", eventName: "Fake", capacity: 10, wantErr: domain.ErrUnauthorized},
		{name: "zero capacity rejected", caller: testOwner, eventName: "Empty", capacity: 0, wantErr: domain.ErrInvalidCapacity},
		{name: "empty name rejected", caller: testOwner, eventName: "", capacity: 10, wantErr: domain.ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.CreateEvent(ctx, tt.caller, tt.eventName, tt.capacity)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateEvent() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	count, err := repo.EventCount(ctx)
	if err != nil {
		t.Fatalf("EventCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("EventCount() = %d, want 1", count)
	}

	event, err := repo.EventAt(ctx, 0)
	if err != nil {
		t.Fatalf("EventAt(0) error = %v", err)
	}
	if event.Name != "Launch Party" || event.Capacity != 100 || event.Registered != 0 {
		t.Errorf("EventAt(0) = %+v, want Launch Party/100/0", event)
	}

	if _, err := repo.EventAt(ctx, 1); !errors.Is(err, domain.ErrInvalidEventID) {
		t.Errorf("EventAt(1) error = %v, want ErrInvalidEventID", err)
	}
}

func TestPostgresLedger_Reserve(t *testing.T) {
	repo := setupLedger(t)
	ctx := context.Background()

	id, err := repo.CreateEvent(ctx, testOwner, "Small Venue", 2)
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	if err := repo.Reserve(ctx, "0xAlice", id+100); !errors.Is(err, domain.ErrInvalidEventID) {
		t.Errorf("Reserve() unknown event error = %v, want ErrInvalidEventID", err)
	}

	if err := repo.Reserve(ctx, "0xAlice", id); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if err := repo.Reserve(ctx, "0xAlice", id); !errors.Is(err, domain.ErrAlreadyReserved) {
		t.Errorf("Reserve() duplicate error = %v, want ErrAlreadyReserved", err)
	}
	if err := repo.Reserve(ctx, "0xBob", id); err != nil {
		t.Fatalf("Reserve() second account error = %v", err)
	}
	if err := repo.Reserve(ctx, "0xCarol", id); !errors.Is(err, domain.ErrEventFull) {
		t.Errorf("Reserve() over capacity error = %v, want ErrEventFull", err)
	}

	reserved, err := repo.HasReserved(ctx, "0xAlice", id)
	if err != nil {
		t.Fatalf("HasReserved() error = %v", err)
	}
	if !reserved {
		t.Error("HasReserved(0xAlice) = false, want true")
	}

	reserved, err = repo.HasReserved(ctx, "0xCarol", id)
	if err != nil {
		t.Fatalf("HasReserved() error = %v", err)
	}
	if reserved {
		t.Error("HasReserved(0xCarol) = true, want false")
	}

	// Unknown event ids read as false, not as an error.
	reserved, err = repo.HasReserved(ctx, "0xAlice", id+100)
	if err != nil {
		t.Fatalf("HasReserved() unknown event error = %v", err)
	}
	if reserved {
		t.Error("HasReserved(unknown event) = true, want false")
	}

	event, err := repo.EventAt(ctx, id)
	if err != nil {
		t.Fatalf("EventAt() error = %v", err)
	}
	if event.Registered != 2 {
		t.Errorf("Registered = %d, want 2", event.Registered)
	}
}

// TestPostgresLedger_ConcurrentReserve hammers one event from many
// goroutines and checks the row locks never let capacity overshoot.
func TestPostgresLedger_ConcurrentReserve(t *testing.T) {
	repo := setupLedger(t)
	ctx := context.Background()

	const capacity = 20
	const attempts = 100

	id, err := repo.CreateEvent(ctx, testOwner, "Rush Event", capacity)
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		full     int
		failures []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := repo.Reserve(ctx, domain.Account(fmt.Sprintf("0xUser%03d", n)), id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, domain.ErrEventFull):
				full++
			default:
				failures = append(failures, err)
			}
		}(i)
	}
	wg.Wait()

	if len(failures) > 0 {
		t.Fatalf("unexpected reserve errors: %v", failures)
	}
	if success != capacity {
		t.Errorf("successful reservations = %d, want %d", success, capacity)
	}
	if full != attempts-capacity {
		t.Errorf("full rejections = %d, want %d", full, attempts-capacity)
	}

	event, err := repo.EventAt(ctx, id)
	if err != nil {
		t.Fatalf("EventAt() error = %v", err)
	}
	if event.Registered != capacity {
		t.Errorf("Registered = %d, want %d", event.Registered, capacity)
	}
}
