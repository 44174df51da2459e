package di

import (
	"github.com/prohmpiriya/event-ledger/internal/handler"
	"github.com/prohmpiriya/event-ledger/internal/ledger"
	"github.com/prohmpiriya/event-ledger/internal/repository"
	"github.com/prohmpiriya/event-ledger/internal/service"
	"github.com/prohmpiriya/event-ledger/pkg/database"
	"github.com/prohmpiriya/event-ledger/pkg/redis"
)

// Container holds all dependencies for the ledger service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client

	// Ledger backend
	Ledger ledger.Ledger

	// Services
	LedgerService service.LedgerService
	Publisher     service.LedgerEventPublisher

	// Handlers
	HealthHandler *handler.HealthHandler
	LedgerHandler *handler.LedgerHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	// DB is required unless UseMemoryBackend is set.
	DB *database.PostgresDB

	// Redis is optional. When present it wraps the ledger with a
	// read-through cache.
	Redis *redis.Client

	// Publisher is optional. When nil the change feed is disabled.
	Publisher service.LedgerEventPublisher

	// UseMemoryBackend runs the ledger in process memory instead of
	// PostgreSQL (local development, tests).
	UseMemoryBackend bool

	// CacheEnabled controls the Redis cache layer.
	CacheEnabled bool
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:        cfg.DB,
		Redis:     cfg.Redis,
		Publisher: cfg.Publisher,
	}

	if cfg.UseMemoryBackend {
		c.Ledger = ledger.NewMemoryLedger()
	} else {
		c.Ledger = repository.NewPostgresLedger(c.DB.Pool())
	}

	if cfg.CacheEnabled && c.Redis != nil {
		c.Ledger = repository.NewCachedLedger(c.Ledger, c.Redis)
	}

	c.LedgerService = service.NewLedgerService(c.Ledger, c.Publisher)

	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis)
	c.LedgerHandler = handler.NewLedgerHandler(c.LedgerService)

	return c
}
