package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Guyuepp/popularity-service/domain"
	"github.com/Guyuepp/popularity-service/internal/config"
	"github.com/Guyuepp/popularity-service/internal/events"
	"github.com/Guyuepp/popularity-service/internal/metrics"
	"github.com/Guyuepp/popularity-service/internal/repository/memory"
	redisRepo "github.com/Guyuepp/popularity-service/internal/repository/redis"
	"github.com/Guyuepp/popularity-service/internal/repository/sqldb"
	"github.com/Guyuepp/popularity-service/internal/rest"
	"github.com/Guyuepp/popularity-service/internal/rest/middleware"
	"github.com/Guyuepp/popularity-service/internal/retry"
	"github.com/Guyuepp/popularity-service/internal/usecase/counter"
	"github.com/Guyuepp/popularity-service/internal/usecase/decay"
	"github.com/Guyuepp/popularity-service/internal/usecase/item"
	"github.com/Guyuepp/popularity-service/internal/usecase/like"
	"github.com/Guyuepp/popularity-service/internal/usecase/projection"
	"github.com/Guyuepp/popularity-service/internal/workers"
)

const (
	shutdownTimeout       = 10 * time.Second
	rateLimitCleanupEvery = time.Minute
	rateLimitIdle         = 10 * time.Minute
)

func setupLogger(cfg config.Config) {
	if cfg.AppEnv == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	setupLogger(cfg)

	// prepare database
	dialector, err := sqldb.Dialector(cfg.DatabaseURL)
	if err != nil {
		logrus.Fatal(err)
	}
	db, err := sqldb.Open(dialector, cfg.DBMaxRetry, cfg.DBRetryInterval)
	if err != nil {
		logrus.Fatalf("could not connect to database after retries: %v", err)
	}
	defer func() {
		if err := sqldb.Close(db); err != nil {
			logrus.Errorf("got error when closing the DB connection: %v", err)
		}
	}()

	healthChecks := map[string]rest.HealthCheck{
		"database": func(ctx context.Context) error { return pingDB(ctx, db) },
	}

	// prepare projection store
	var projections domain.ProjectionStore
	switch cfg.ProjectionBackend {
	case "memory":
		logrus.Warn("using the in-memory projection store, projections are lost on restart")
		projections = memory.NewProjectionStore()
	default:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.CacheAddr(),
			Password: cfg.CachePass,
			DB:       cfg.CacheDB,
		})
		defer func() {
			if err := client.Close(); err != nil {
				logrus.Errorf("got error when closing the cache connection: %v", err)
			}
		}()
		if err := client.Ping(context.Background()).Err(); err != nil {
			logrus.Fatalf("failed to open connection to cache: %v", err)
		}
		projections = redisRepo.NewProjectionStore(client)
		healthChecks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	// prepare events
	publisher := events.Discard
	if cfg.NATSURL != "" {
		conn, err := events.Connect(cfg.NATSURL)
		if err != nil {
			logrus.Fatal(err)
		}
		defer conn.Drain()
		publisher = events.NewNATSPublisher(conn, cfg.EventsSubjectPrefix)
		healthChecks["nats"] = func(context.Context) error {
			if !conn.IsConnected() {
				return errors.New("nats is not connected")
			}
			return nil
		}
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)
	reporter := metrics.Reporter{}

	// Build repository and service layer
	facts := sqldb.NewFactStore(db)
	cursors := sqldb.NewDecayCursorRepository(db)
	writer := workers.NewProjectionWriter(cfg.SyncShards, cfg.SyncQueueSize)

	syncer := counter.NewService(facts, projections, cursors, writer, reporter, cfg.SyncTimeout)
	repair := workers.NewRepairWorker(syncer, reporter, workers.RepairConfig{
		QueueSize: cfg.RepairQueueSize,
		Policy: retry.Policy{
			MaxAttempts: cfg.RepairMaxAttempts,
			BaseDelay:   cfg.RepairBaseDelay,
			MaxDelay:    cfg.RepairMaxDelay,
		},
	})
	syncer.SetRepairWorker(repair)

	itemSvc := item.NewService(facts, projections, writer, repair, reporter, publisher, cfg.SyncTimeout)
	likeSvc := like.NewService(facts, syncer, publisher)
	decaySvc := decay.NewService(facts, projections, cursors, writer, repair, reporter, decay.Config{
		MaxCatchup:  cfg.DecayMaxCatchup,
		Parallelism: cfg.DecayParallelism,
		WriteRPS:    cfg.DecayWriteRPS,
	})
	projectionSvc := projection.NewService(projections)

	// Start workers. The writer outlives the others so their final flushes still land.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	writerCtx, stopWriter := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writer.Start(writerCtx)
	}()

	rateLimiter := middleware.NewUserRateLimiter(cfg.LikeRateRPS, cfg.LikeRateBurst)

	var wg sync.WaitGroup
	for _, start := range []func(context.Context){
		repair.Start,
		workers.NewDecayScheduler(decaySvc, cfg.DecayInterval).Start,
		func(ctx context.Context) { rateLimiter.Cleanup(ctx, rateLimitCleanupEvery, rateLimitIdle) },
	} {
		start := start
		wg.Add(1)
		go func() {
			defer wg.Done()
			start(ctx)
		}()
	}

	// prepare gin
	route := gin.New()
	route.Use(gin.Recovery())
	if cfg.AppEnv != "production" {
		route.Use(gin.Logger())
	}
	rest.Register(route,
		rest.NewItemHandler(itemSvc, likeSvc, projectionSvc),
		rest.NewAdminHandler(decaySvc, syncer),
		rest.RouterConfig{
			AllowOrigins:   cfg.CORSOrigins,
			RequestTimeout: cfg.Timeout,
			AdminToken:     cfg.AdminToken,
			RateLimiter:    rateLimiter,
			HealthChecks:   healthChecks,
		},
	)

	// Start Server
	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           route,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logrus.Infof("Server is running on %s", cfg.ServerAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("listen: %v", err)
			stop()
		}
	}()

	// shutdown
	<-ctx.Done()
	logrus.Info("Shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Waiting for workers to cleanup...")
	wg.Wait()
	stopWriter()
	<-writerDone

	logrus.Info("Server exiting")
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
