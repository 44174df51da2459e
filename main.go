package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // pprof sidecar for profiling
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prohmpiriya/event-ledger/internal/di"
	"github.com/prohmpiriya/event-ledger/internal/domain"
	"github.com/prohmpiriya/event-ledger/internal/metrics"
	"github.com/prohmpiriya/event-ledger/internal/service"
	"github.com/prohmpiriya/event-ledger/migrations"
	"github.com/prohmpiriya/event-ledger/pkg/config"
	"github.com/prohmpiriya/event-ledger/pkg/database"
	"github.com/prohmpiriya/event-ledger/pkg/logger"
	"github.com/prohmpiriya/event-ledger/pkg/middleware"
	pkgredis "github.com/prohmpiriya/event-ledger/pkg/redis"
	"github.com/prohmpiriya/event-ledger/pkg/telemetry"
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := &logger.Config{
		Level:       cfg.App.Environment,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Event Ledger...")

	ctx := context.Background()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Fatal(fmt.Sprintf("Telemetry init failed: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	if err := metrics.Init(); err != nil {
		appLog.Warn(fmt.Sprintf("Metrics init failed: %v", err))
	}

	// Infrastructure. The memory backend skips Postgres entirely.
	var db *database.PostgresDB
	if cfg.Ledger.Backend == "postgres" {
		dbCfg := &database.PostgresConfig{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.DBName,
			SSLMode:         cfg.Database.SSLMode,
			MaxConns:        100,
			MinConns:        10,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			ConnectTimeout:  5 * time.Second,
			MaxRetries:      3,
			RetryInterval:   time.Second,
			EnableTracing:   cfg.OTel.Enabled,
		}
		db, err = database.NewPostgres(ctx, dbCfg)
		if err != nil {
			appLog.Fatal(fmt.Sprintf("Database connection failed: %v", err))
		}
		defer db.Close()

		if err := migrations.Run(ctx, db.Pool()); err != nil {
			appLog.Fatal(fmt.Sprintf("Migrations failed: %v", err))
		}
		appLog.Info("Database connected and migrated")
	} else {
		appLog.Warn("Running with in-memory ledger, state is not durable")
	}

	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(ctx, &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
		MaxRetries:    3,
		RetryInterval: 100 * time.Millisecond,
	})
	if err != nil {
		appLog.Warn(fmt.Sprintf("Redis connection failed, cache and idempotency disabled: %v", err))
		redisClient = nil
	} else {
		defer redisClient.Close()
		appLog.Info("Redis connected")
	}

	var publisher service.LedgerEventPublisher
	publisher, err = service.NewKafkaLedgerPublisher(ctx, &service.LedgerPublisherConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.Topic,
		ServiceName: cfg.App.Name,
		ClientID:    cfg.Kafka.ClientID,
	})
	if err != nil {
		appLog.Warn(fmt.Sprintf("Kafka connection failed, using no-op publisher: %v", err))
		publisher = service.NewNoOpLedgerPublisher()
	} else {
		appLog.Info("Kafka ledger publisher connected")
	}
	defer publisher.Close()

	container := di.NewContainer(&di.ContainerConfig{
		DB:               db,
		Redis:            redisClient,
		Publisher:        publisher,
		UseMemoryBackend: cfg.Ledger.Backend == "memory",
		CacheEnabled:     cfg.Ledger.CacheEnabled,
	})

	// The owner identity is fixed at startup. Re-running with the same
	// owner is a no-op.
	if err := container.Ledger.InitOwner(ctx, domain.Account(cfg.Ledger.OwnerAccount)); err != nil {
		appLog.Fatal(fmt.Sprintf("Owner init failed: %v", err))
	}
	appLog.Info(fmt.Sprintf("Ledger owner: %s", cfg.Ledger.OwnerAccount))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		gin.DisableConsoleColor()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(telemetry.TracingMiddleware(cfg.App.Name))
	router.Use(metrics.Middleware())

	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)

	if db != nil {
		router.GET("/metrics/pool", func(c *gin.Context) {
			stats := db.Stats()
			c.JSON(http.StatusOK, gin.H{
				"db_pool": gin.H{
					"total_conns":    stats.TotalConns(),
					"acquired_conns": stats.AcquiredConns(),
					"idle_conns":     stats.IdleConns(),
					"max_conns":      stats.MaxConns(),
				},
			})
		})
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"version": cfg.App.Version,
				"service": cfg.App.Name,
			})
		})

		events := v1.Group("/events")
		events.Use(middleware.AccountAuth(&middleware.AccountAuthConfig{
			Secret: cfg.JWT.Secret,
			Issuer: cfg.JWT.Issuer,
		}))

		// Write operations replay through the idempotency layer when
		// Redis is up; reads skip it.
		idempotent := func(h gin.HandlerFunc) []gin.HandlerFunc {
			if redisClient == nil {
				return []gin.HandlerFunc{h}
			}
			return []gin.HandlerFunc{
				middleware.Idempotency(middleware.DefaultIdempotencyConfig(redisClient.Client())),
				h,
			}
		}

		events.POST("", idempotent(container.LedgerHandler.CreateEvent)...)
		events.POST("/:id/reserve", idempotent(container.LedgerHandler.Reserve)...)

		events.GET("", container.LedgerHandler.ListEvents)
		events.GET("/count", container.LedgerHandler.EventCount)
		events.GET("/:id", container.LedgerHandler.GetEvent)
		events.GET("/:id/reservation", container.LedgerHandler.GetReservation)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	// pprof sidecar on its own port
	go func() {
		pprofAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port+1000)
		appLog.Info(fmt.Sprintf("pprof server listening on %s", pprofAddr))
		if err := http.ListenAndServe(pprofAddr, nil); err != nil {
			appLog.Error(fmt.Sprintf("pprof server error: %v", err))
		}
	}()

	go func() {
		appLog.Info(fmt.Sprintf("Event Ledger listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	appLog.Info("Server exited gracefully")
}
