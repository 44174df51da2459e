package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/prohmpiriya/event-ledger/internal/domain"
	"github.com/prohmpiriya/event-ledger/internal/ledger"
	"github.com/prohmpiriya/event-ledger/pkg/telemetry"
)

// Ensure PostgresLedger implements ledger.Ledger
var _ ledger.Ledger = (*PostgresLedger)(nil)

// PostgresLedger implements ledger.Ledger on PostgreSQL with pgxpool.
//
// Every mutating operation runs in a single transaction and takes row
// locks (SELECT ... FOR UPDATE) on the rows it is about to change, so
// concurrent callers serialize on the event row and capacity can never
// be oversold. Event ids stay dense because creation locks the meta
// row that holds the running count.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger creates a new PostgresLedger.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

// InitOwner records the owner account in the meta row. Calling it again
// with the same owner is a no-op; a different owner is rejected.
func (r *PostgresLedger) InitOwner(ctx context.Context, owner domain.Account) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ledger.init_owner")
	defer span.End()

	span.SetAttributes(attribute.String("owner", string(owner)))

	if owner == "" {
		span.SetStatus(codes.Error, "invalid account")
		return domain.ErrInvalidAccount
	}

	query := `
		INSERT INTO ledger_meta (id, owner_account, event_count)
		VALUES (0, $1, 0)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, string(owner)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to init owner: %w", err)
	}

	var stored string
	err := r.pool.QueryRow(ctx, `SELECT owner_account FROM ledger_meta WHERE id = 0`).Scan(&stored)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to read owner: %w", err)
	}
	if stored != string(owner) {
		span.SetStatus(codes.Error, "owner already set")
		return domain.ErrOwnerAlreadySet
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Owner returns the account recorded at init.
func (r *PostgresLedger) Owner(ctx context.Context) (domain.Account, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ledger.owner")
	defer span.End()

	var owner string
	err := r.pool.QueryRow(ctx, `SELECT owner_account FROM ledger_meta WHERE id = 0`).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "owner not set")
			return "", domain.ErrOwnerNotSet
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to get owner: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return domain.Account(owner), nil
}

// CreateEvent appends a new event and returns its id. Only the owner
// may create events; ids are assigned from the meta row under its lock
// so they come out dense even under concurrent creators.
func (r *PostgresLedger) CreateEvent(ctx context.Context, caller domain.Account, name string, capacity uint32) (uint64, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ledger.create_event")
	defer span.End()

	span.SetAttributes(
		attribute.String("caller", string(caller)),
		attribute.String("name", name),
		attribute.Int64("capacity", int64(capacity)),
	)

	if name == "" {
		span.SetStatus(codes.Error, "invalid name")
		return 0, domain.ErrInvalidName
	}
	if capacity == 0 {
		span.SetStatus(codes.Error, "invalid capacity")
		return 0, domain.ErrInvalidCapacity
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var (
		owner string
		count uint64
	)
	err = tx.QueryRow(ctx, `SELECT owner_account, event_count FROM ledger_meta WHERE id = 0 FOR UPDATE`).Scan(&owner, &count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "owner not set")
			return 0, domain.ErrOwnerNotSet
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to lock ledger meta: %w", err)
	}
	if owner != string(caller) {
		span.SetStatus(codes.Error, "unauthorized")
		return 0, domain.ErrUnauthorized
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO events (id, name, capacity, registered) VALUES ($1, $2, $3, 0)`,
		int64(count), name, int32(capacity),
	); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE ledger_meta SET event_count = $1 WHERE id = 0`, int64(count+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to advance event count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to commit event: %w", err)
	}

	span.SetAttributes(attribute.Int64("event_id", int64(count)))
	span.SetStatus(codes.Ok, "")
	return count, nil
}

// Reserve books one seat on the event for the account. The event row
// lock makes the existence check, the duplicate check, the capacity
// check and the seat increment one atomic step.
func (r *PostgresLedger) Reserve(ctx context.Context, account domain.Account, eventID uint64) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ledger.reserve")
	defer span.End()

	span.SetAttributes(
		attribute.String("account", string(account)),
		attribute.Int64("event_id", int64(eventID)),
	)

	if account == "" {
		span.SetStatus(codes.Error, "invalid account")
		return domain.ErrInvalidAccount
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var capacity, registered int32
	err = tx.QueryRow(ctx,
		`SELECT capacity, registered FROM events WHERE id = $1 FOR UPDATE`, int64(eventID),
	).Scan(&capacity, &registered)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "event not found")
			return domain.ErrInvalidEventID
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to lock event: %w", err)
	}

	var reserved bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reservations WHERE event_id = $1 AND account = $2)`,
		int64(eventID), string(account),
	).Scan(&reserved)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to check reservation: %w", err)
	}
	if reserved {
		span.SetStatus(codes.Error, "already reserved")
		return domain.ErrAlreadyReserved
	}

	if registered >= capacity {
		span.SetStatus(codes.Error, "event full")
		return domain.ErrEventFull
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO reservations (event_id, account) VALUES ($1, $2)`,
		int64(eventID), string(account),
	); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE events SET registered = registered + 1 WHERE id = $1`, int64(eventID),
	); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to increment registered: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to commit reservation: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// EventCount returns the number of events created so far.
func (r *PostgresLedger) EventCount(ctx context.Context) (uint64, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ledger.event_count")
	defer span.End()

	var count int64
	err := r.pool.QueryRow(ctx, `SELECT event_count FROM ledger_meta WHERE id = 0`).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "")
			return 0, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to get event count: %w", err)
	}

	span.SetAttributes(attribute.Int64("count", count))
	span.SetStatus(codes.Ok, "")
	return uint64(count), nil
}

// EventAt returns the event with the given id.
func (r *PostgresLedger) EventAt(ctx context.Context, id uint64) (*domain.Event, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ledger.event_at")
	defer span.End()

	span.SetAttributes(attribute.Int64("event_id", int64(id)))

	var (
		name                 string
		capacity, registered int32
	)
	err := r.pool.QueryRow(ctx,
		`SELECT name, capacity, registered FROM events WHERE id = $1`, int64(id),
	).Scan(&name, &capacity, &registered)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "event not found")
			return nil, domain.ErrInvalidEventID
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return &domain.Event{
		ID:         id,
		Name:       name,
		Capacity:   uint32(capacity),
		Registered: uint32(registered),
	}, nil
}

// HasReserved reports whether the account holds a seat on the event.
// Unknown event ids read as false rather than an error.
func (r *PostgresLedger) HasReserved(ctx context.Context, account domain.Account, id uint64) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ledger.has_reserved")
	defer span.End()

	span.SetAttributes(
		attribute.String("account", string(account)),
		attribute.Int64("event_id", int64(id)),
	)

	var reserved bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reservations WHERE event_id = $1 AND account = $2)`,
		int64(id), string(account),
	).Scan(&reserved)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("failed to check reservation: %w", err)
	}

	span.SetAttributes(attribute.Bool("reserved", reserved))
	span.SetStatus(codes.Ok, "")
	return reserved, nil
}
