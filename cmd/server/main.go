// @title                       Inventory Sync API
// @version                     1.0
// @description                 Collaborative inventory counting sessions: movement ledger, live aggregates and reconciliation reports.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/conteo/inventory-sync/internal/api"
	"github.com/conteo/inventory-sync/internal/api/handler"
	"github.com/conteo/inventory-sync/internal/core/ports"
	"github.com/conteo/inventory-sync/internal/core/service"
	"github.com/conteo/inventory-sync/internal/infrastructure/config"
	"github.com/conteo/inventory-sync/internal/infrastructure/db/mongo"
	"github.com/conteo/inventory-sync/internal/infrastructure/db/redis"
	"github.com/conteo/inventory-sync/internal/infrastructure/job"
	"github.com/conteo/inventory-sync/internal/infrastructure/mq"
	"github.com/conteo/inventory-sync/internal/infrastructure/queue"
	"github.com/conteo/inventory-sync/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := logger.Init(logger.Options{})
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: "counting-api"})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- Storage ---
	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{
		URI:         cfg.Mongo.URI,
		Database:    cfg.Mongo.Database,
		MaxPoolSize: cfg.Mongo.MaxPoolSize,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()

	repos := mongo.NewRepositories(db, cfg.Mongo.OpTimeout)
	if err := repos.EnsureIndexes(ctx); err != nil {
		return err
	}

	rdb, err := redis.Connect(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	// --- Lifecycle events ---
	publisher, closePublisher, err := newPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer closePublisher()
	dispatcher := queue.NewDispatcher(cfg.Sync.EventWorkers, publisher, logger.Component("events"))

	// --- Services ---
	sessionService := service.NewSessionService(repos.Sessions, repos.Participants, dispatcher, service.SessionPolicy{
		MaxOpenPerHost:   cfg.Session.MaxOpen,
		MaxDailyPerHost:  cfg.Session.MaxDaily,
		MaxParticipants:  cfg.Session.MaxParticipants,
		CodeAttempts:     cfg.Session.CodeAttempts,
		InvalidCodeDelay: cfg.Session.InvalidCodeDelay,
	}, logger.Component("sessions"))

	syncService := service.NewSyncService(
		repos.Sessions, repos.Participants, repos.Movements, repos.Catalog,
		redis.NewAggregateCache(rdb, cfg.Sync.AggregateCacheTTL),
		service.SyncPolicy{MaxBatch: cfg.Sync.MaxBatch, PendingSyncWindow: cfg.Sync.PendingSyncWindow},
		logger.Component("sync"),
	)

	finalize := service.DefaultFinalizePolicy()
	finalize.DrainTimeout = cfg.Sync.DrainTimeout
	reportService := service.NewReportService(
		repos.Sessions, repos.Movements, repos.Catalog, repos.Reports, dispatcher,
		finalize, logger.Component("reports"),
	)

	retention := job.NewRetentionPurger(
		service.NewRetentionService(repos.Sessions, repos.Movements, cfg.Retention.Window, logger.Component("retention")),
		redis.NewLocker(rdb),
		cfg.Retention.Interval,
		logger.Component("retention"),
	)

	// --- HTTP ---
	e := api.NewRouter(api.Dependencies{
		Sessions:     sessionService,
		Sync:         syncService,
		Reports:      reportService,
		JoinLimiter:  redis.NewRateLimiter(rdb, cfg.Session.JoinRateLimit, time.Minute),
		HealthChecks: []handler.HealthCheck{handler.MongoCheck(db), handler.RedisCheck(rdb)},
		JWTSecret:    cfg.JWTSecret,
		Log:          log,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// The dispatcher outlives the HTTP server so events from in-flight requests are still published.
	dispatchCtx, stopDispatch := context.WithCancel(context.WithoutCancel(ctx))
	defer stopDispatch()
	dispatcher.Start(dispatchCtx)
	g.Go(func() error {
		dispatcher.Wait()
		return nil
	})
	g.Go(func() error {
		return retention.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down http server")
		err := srv.Shutdown(shutdownCtx)
		stopDispatch()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newPublisher publishes to Kafka when brokers are configured and to the log otherwise.
func newPublisher(cfg *config.Config, log zerolog.Logger) (ports.EventPublisher, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Warn().Msg("KAFKA_BROKERS not set, lifecycle events go to the log only")
		return mq.NewLogPublisher(log), func() {}, nil
	}

	producer, err := mq.NewSyncProducer(cfg.Kafka.Brokers)
	if err != nil {
		return nil, nil, err
	}
	publisher := mq.NewKafkaPublisher(producer, cfg.Kafka.Topic)
	return publisher, func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close kafka producer")
		}
	}, nil
}
