package metrics

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/prohmpiriya/event-ledger/pkg/telemetry"
)

var (
	// Ledger counters
	EventsCreated        *telemetry.Counter
	SeatsReserved        *telemetry.Counter
	ReservationsRejected *telemetry.Counter

	// Histograms
	RequestDuration *telemetry.Histogram

	// Gauges
	OpenSeats *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init initializes all ledger metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	EventsCreated, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "ledger_events_created_total",
		Description: "Total number of events created",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SeatsReserved, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "ledger_seats_reserved_total",
		Description: "Total number of seats reserved",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ReservationsRejected, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "ledger_reservations_rejected_total",
		Description: "Total number of rejected reservation attempts by reason",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	RequestDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "ledger_request_duration_seconds",
		Description: "HTTP request duration in seconds",
		Unit:        "s",
	}, []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10})
	if err != nil {
		return err
	}

	OpenSeats, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "ledger_open_seats",
		Description: "Current number of unreserved seats across all events",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	return nil
}

// RecordEventCreated records an event creation
func RecordEventCreated(ctx context.Context, eventID uint64, capacity uint32) {
	if EventsCreated != nil {
		EventsCreated.Inc(ctx,
			attribute.String("event_id", strconv.FormatUint(eventID, 10)),
		)
	}
	if OpenSeats != nil {
		OpenSeats.Add(ctx, int64(capacity))
	}
}

// RecordSeatReserved records a committed reservation
func RecordSeatReserved(ctx context.Context, eventID uint64) {
	if SeatsReserved != nil {
		SeatsReserved.Inc(ctx,
			attribute.String("event_id", strconv.FormatUint(eventID, 10)),
		)
	}
	if OpenSeats != nil {
		OpenSeats.Dec(ctx)
	}
}

// RecordRejection records a rejected reservation attempt
func RecordRejection(ctx context.Context, eventID uint64, reason string) {
	if ReservationsRejected != nil {
		ReservationsRejected.Inc(ctx,
			attribute.String("event_id", strconv.FormatUint(eventID, 10)),
			attribute.String("reason", reason),
		)
	}
}

// RecordRequestDuration records an HTTP request duration
func RecordRequestDuration(ctx context.Context, route string, status int, seconds float64) {
	if RequestDuration != nil {
		RequestDuration.Record(ctx, seconds,
			attribute.String("route", route),
			attribute.Int("status", status),
		)
	}
}
