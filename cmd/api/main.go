package main

import (
	"context"
	"log"

	"salesflow/config"
	"salesflow/internal/handler"
	"salesflow/internal/outbox"
	"salesflow/internal/outbox/handlers"
	redispkg "salesflow/internal/redis"
	"salesflow/internal/repository"
	"salesflow/internal/server"
	"salesflow/internal/services"
	"salesflow/pkg/database"
	"salesflow/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.LogMode)
	defer l.Sync()
	logger.SetGlobalLogger(l)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			l.Errorf("Failed to close database: %v", err)
		}
	}()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	store := repository.NewStore(db)
	publisher := services.NewEventPublisher(store)
	recorder := services.NewWorkflowRecorder()
	coordinator := services.NewPhaseCoordinator(publisher, recorder, l)
	sales := services.NewSaleService(store, publisher, recorder, coordinator, l)
	fulfillments := services.NewFulfillmentService(store, recorder, coordinator, l)

	checks := map[string]server.HealthCheck{
		"database": func(ctx context.Context) error { return database.HealthCheck(ctx, db) },
	}

	var sink handlers.Sink
	var redisClient *goredis.Client
	if cfg.RedisEnabled {
		redisClient = redispkg.NewClient(redispkg.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redispkg.Ping(context.Background(), redisClient); err != nil {
			l.Logger.Warn("redis unreachable at startup, broadcasts will retry", zap.Error(err))
		}
		sink = redispkg.NewPublisher(redisClient)
		checks["redis"] = func(ctx context.Context) error { return redispkg.Ping(ctx, redisClient) }
	}

	processor, err := outbox.NewProcessor(store.Outbox(), handlers.DefaultChain(store, sales, sink, l), outbox.Options{
		BatchSize:      cfg.Outbox.BatchSize,
		Backoff:        outbox.Backoff{Step: cfg.Outbox.BackoffStep, Max: cfg.Outbox.BackoffMax},
		Logger:         l,
		MeterProvider:  otel.GetMeterProvider(),
		TracerProvider: otel.GetTracerProvider(),
	})
	if err != nil {
		log.Fatalf("Failed to build outbox processor: %v", err)
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Outbox:   handler.NewOutboxHandler(processor, services.NewOutboxStatusService(store.Outbox())),
		Event:    handler.NewEventHandler(publisher),
		Workflow: handler.NewWorkflowHandler(sales, fulfillments),
		Payment:  handler.NewPaymentHandler(sales),
	}, []byte(cfg.AdminJWTSecret), checks)

	if cfg.Outbox.Enabled {
		scheduler := outbox.NewScheduler(processor, outbox.SchedulerConfig{
			Interval:   cfg.Outbox.Interval,
			BatchSize:  cfg.Outbox.BatchSize,
			StaleAfter: cfg.Outbox.StaleProcessingAfter,
		}, l)
		scheduler.Start(context.Background())
		srv.OnShutdown(scheduler.Stop)
	} else {
		l.Infof("Outbox scheduler disabled; use the admin endpoints to dispatch")
	}

	if redisClient != nil {
		srv.OnShutdown(func() {
			if err := redisClient.Close(); err != nil {
				l.Errorf("Failed to close redis client: %v", err)
			}
		})
	}

	if cfg.AdminJWTSecret == "" {
		l.Logger.Warn("ADMIN_JWT_SECRET is empty, admin endpoints are unauthenticated")
	}

	if err := srv.Start(); err != nil {
		l.Errorf("Server exited with error: %v", err)
	}
}
