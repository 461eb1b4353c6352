// Command server runs the visa application HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"visaflow/internal/application"
	apphandler "visaflow/internal/application/handler"
	"visaflow/internal/application/service"
	"visaflow/internal/catalog"
	cataloghandler "visaflow/internal/catalog/handler"
	"visaflow/internal/directory"
	directoryhandler "visaflow/internal/directory/handler"
	"visaflow/internal/jwttoken"
	"visaflow/internal/notification"
	"visaflow/internal/platform/config"
	"visaflow/internal/platform/httpserver"
	"visaflow/internal/platform/logger"
	"visaflow/internal/platform/metrics"
	"visaflow/internal/platform/middleware"
	"visaflow/internal/platform/postgres"
	platformredis "visaflow/internal/platform/redis"
	httptransport "visaflow/internal/transport/http"
	"visaflow/internal/uploads"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	// Stores: postgres when configured, in-memory otherwise so the service
	// runs standalone during development.
	var (
		products catalog.Store
		apps     application.Store
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			return
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Error("failed to ensure schema", "error", err)
			return
		}
		products = catalog.NewPostgres(db)
		apps = application.NewPostgres(db)
	} else {
		log.Warn("POSTGRES_DSN not set, using in-memory stores")
		products = catalog.NewInMemoryStore()
		apps = application.NewInMemoryStore()
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var notifier service.Notifier
	if cfg.RedisURL != "" {
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Error("failed to parse redis URL", "error", err)
			return
		}
		asynqClient := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		})
		defer asynqClient.Close()
		notifier = notification.NewQueueNotifier(asynqClient)
	} else {
		log.Warn("REDIS_URL not set, status notifications disabled")
	}

	var files uploads.Store
	if cfg.Uploads.AccessKey != "" {
		minioStore, err := uploads.New(cfg.Uploads)
		if err != nil {
			log.Error("failed to init upload store", "error", err)
			return
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			log.Error("failed to ensure upload bucket", "error", err)
			return
		}
		files = minioStore
	} else {
		log.Warn("UPLOADS_ACCESS_KEY not set, storing answer files in memory")
		files = uploads.NewInMemoryStore()
	}

	catalogSvc := catalog.NewService(products, catalog.NewCache(redisClient, log), log, m)
	appSvc := service.NewService(apps, catalogSvc, notifier, log, m)
	directorySvc := directory.NewService(apps, log)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "visaflow")
	router := httptransport.NewRouter(httptransport.Deps{
		Catalog:      cataloghandler.New(catalogSvc, log),
		Applications: apphandler.New(appSvc, files, log),
		Directory:    directoryhandler.New(directorySvc, log),
		AdminGuard:   middleware.RequireAdmin(jwtService, log),
		Logger:       log,
		Metrics:      m,
	})
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting visaflow server", "addr", cfg.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		return
	}
	log.Info("server stopped")
}
