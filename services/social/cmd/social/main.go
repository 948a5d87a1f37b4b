package main

import (
	"context"
	"os"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/study-spots/internal/platform/analytics"
	"github.com/example/study-spots/internal/platform/auth"
	"github.com/example/study-spots/internal/platform/config"
	"github.com/example/study-spots/internal/platform/db"
	"github.com/example/study-spots/internal/platform/httpserver"
	"github.com/example/study-spots/internal/platform/logging"
	"github.com/example/study-spots/internal/platform/natsconn"
	"github.com/example/study-spots/internal/platform/run"
	socialconfig "github.com/example/study-spots/services/social/internal/config"
	"github.com/example/study-spots/services/social/internal/handlers"
	"github.com/example/study-spots/services/social/internal/store"
	"github.com/example/study-spots/services/social/internal/worker"
	"github.com/example/study-spots/services/social/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	scfg, err := socialconfig.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.NewService(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	threads, ready, closeStore := initThreads(cfg, log)
	if closeStore != nil {
		defer closeStore()
	}

	verifier := auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		// Messaging is non-fatal: without NATS the bus consumer and
		// analytics are disabled and HTTP writes still work.
		var publisher *analytics.Publisher
		nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.ServiceName, Logger: log})
		if err != nil {
			log.Warn("nats unavailable, reply consumer disabled", zap.Error(err))
		} else {
			defer nc.Close()
			js, err := nc.JetStream()
			if err != nil {
				log.Warn("jetstream unavailable", zap.Error(err))
			} else {
				publisher = analytics.New(js, log)
				if scfg.WorkerEnabled {
					consumer := worker.NewConsumer(threads, publisher, log, worker.Options{
						BatchSize:  scfg.WorkerBatchSize,
						MaxWait:    scfg.WorkerMaxWait,
						RetryDelay: scfg.WorkerRetryDelay,
					})
					if err := consumer.Start(ctx, js); err != nil {
						log.Warn("reply consumer subscribe failed", zap.Error(err))
					}
				}
			}
		}

		deps := handlers.ReplyDeps{Threads: threads, Analytics: publisher, Log: log}

		r := chi.NewRouter()
		httpserver.SetupRouter(r, httpserver.RouterConfig{
			ServiceName:       cfg.ServiceName,
			ReadyFunc:         ready,
			CORSOrigins:       cfg.CORSAllowedOrigins,
			RateLimitRequests: cfg.RateLimitRequests,
			RateLimitWindow:   cfg.RateLimitWindow,
		})
		r.Get("/reviews", handlers.GetReviews(threads, log))
		r.Get("/reviewsByParentId", handlers.GetReviewsByParent(threads, log))
		r.Get("/comments", handlers.ListComments(threads, log))
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(verifier))
			r.Post("/subComment", handlers.SubComment(deps))
			r.Post("/comments", handlers.CreateComment(deps))
		})

		srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})
		go func() {
			<-ctx.Done()
			runner.Graceful(srv.Shutdown)
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initThreads selects the ThreadStore backend. In production
// (APP_ENV=production) it requires a working Postgres connection and
// terminates the process otherwise.
func initThreads(cfg config.AppConfig, log *zap.Logger) (store.ThreadStore, func() error, func()) {
	if cfg.DatabaseURL == "" {
		if cfg.IsProduction() {
			log.Error("DATABASE_URL is required in production")
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("DATABASE_URL not set, using in-memory review store (development only)")
		return store.NewInMemoryThreadStore(), nil, nil
	}

	pool, err := db.Open(context.Background(), cfg.DatabaseURL, db.WithApplicationName(cfg.ServiceName))
	if err != nil {
		if cfg.IsProduction() {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory review store", zap.Error(err))
		return store.NewInMemoryThreadStore(), nil, nil
	}

	applied, err := db.Migrate(context.Background(), pool, "social", migrations.FS)
	if err != nil {
		pool.Close()
		if cfg.IsProduction() {
			log.Error("schema migration failed", zap.Error(err))
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("schema migration failed, falling back to in-memory review store", zap.Error(err))
		return store.NewInMemoryThreadStore(), nil, nil
	}
	log.Info("schema migrated", zap.Int("applied", applied))

	log.Info("reviews store: postgres")
	ready := func() error { return pool.Ping(context.Background()) }
	return store.NewPostgresThreadStore(pool), ready, pool.Close
}
