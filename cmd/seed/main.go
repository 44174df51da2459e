// Command seed initializes the ledger owner and creates the demo
// events, one at a time, waiting for each creation to commit before
// starting the next.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/prohmpiriya/event-ledger/internal/domain"
	"github.com/prohmpiriya/event-ledger/internal/repository"
	"github.com/prohmpiriya/event-ledger/migrations"
	"github.com/prohmpiriya/event-ledger/pkg/config"
	"github.com/prohmpiriya/event-ledger/pkg/database"
	"github.com/prohmpiriya/event-ledger/pkg/logger"
)

type seedEvent struct {
	name     string
	capacity uint32
}

var seedEvents = []seedEvent{
	{name: "Web3 Conf Paris", capacity: 100},
	{name: "Solidity Summit", capacity: 50},
	{name: "NFT Expo", capacity: 2},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := &logger.Config{
		Level:       cfg.App.Environment,
		ServiceName: "ledger-seed",
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Seeding event ledger...")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbCfg := &database.PostgresConfig{
		Host:          cfg.Database.Host,
		Port:          cfg.Database.Port,
		User:          cfg.Database.User,
		Password:      cfg.Database.Password,
		Database:      cfg.Database.DBName,
		SSLMode:       cfg.Database.SSLMode,
		MaxConns:      5,
		MinConns:      1,
		MaxRetries:    10,
		RetryInterval: 2 * time.Second,
	}
	db, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to connect to database: %v", err))
	}
	defer db.Close()
	appLog.Info("Database connected")

	if err := migrations.Run(ctx, db.Pool()); err != nil {
		appLog.Fatal(fmt.Sprintf("Migrations failed: %v", err))
	}

	if err := seed(ctx, repository.NewPostgresLedger(db.Pool()), domain.Account(cfg.Ledger.OwnerAccount), appLog); err != nil {
		appLog.Fatal(fmt.Sprintf("Seeding failed: %v", err))
	}

	appLog.Info("Seeding complete")
}

func seed(ctx context.Context, l *repository.PostgresLedger, owner domain.Account, appLog *zap.Logger) error {
	if err := l.InitOwner(ctx, owner); err != nil {
		if errors.Is(err, domain.ErrOwnerAlreadySet) {
			return fmt.Errorf("ledger already initialized with a different owner: %w", err)
		}
		return err
	}
	appLog.Info("Owner initialized", zap.String("owner", string(owner)))

	// The seed is idempotent: events already present (by position) are
	// left alone, so re-running after a partial seed only fills in the
	// missing tail.
	existing, err := l.EventCount(ctx)
	if err != nil {
		return err
	}

	for i, e := range seedEvents {
		if uint64(i) < existing {
			appLog.Info("Event already present, skipping",
				zap.Int("position", i),
				zap.String("name", e.name),
			)
			continue
		}

		id, err := l.CreateEvent(ctx, owner, e.name, e.capacity)
		if err != nil {
			return fmt.Errorf("failed to create %q: %w", e.name, err)
		}
		appLog.Info("Event created",
			zap.Uint64("event_id", id),
			zap.String("name", e.name),
			zap.Uint32("capacity", e.capacity),
		)
	}
	return nil
}
