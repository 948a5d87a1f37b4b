package main

import (
	"context"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/study-spots/internal/platform/analytics"
	"github.com/example/study-spots/internal/platform/auth"
	"github.com/example/study-spots/internal/platform/config"
	"github.com/example/study-spots/internal/platform/db"
	"github.com/example/study-spots/internal/platform/httpserver"
	"github.com/example/study-spots/internal/platform/logging"
	"github.com/example/study-spots/internal/platform/natsconn"
	"github.com/example/study-spots/internal/platform/run"
	"github.com/example/study-spots/services/spots/internal/cache"
	spotsconfig "github.com/example/study-spots/services/spots/internal/config"
	"github.com/example/study-spots/services/spots/internal/handlers"
	"github.com/example/study-spots/services/spots/internal/provider"
	"github.com/example/study-spots/services/spots/internal/store"
	"github.com/example/study-spots/services/spots/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	scfg, err := spotsconfig.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.NewService(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	st, ready, closeStore := initStore(cfg, log)
	if closeStore != nil {
		defer closeStore()
	}

	// NATS is optional: without it analytics are dropped and the local cache
	// is not invalidated remotely.
	var nc *nats.Conn
	var publisher *analytics.Publisher
	if conn, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.ServiceName, Logger: log}); err != nil {
		log.Warn("nats unavailable, analytics disabled", zap.Error(err))
	} else {
		nc = conn
		defer nc.Close()
		if js, err := nc.JetStream(); err != nil {
			log.Warn("jetstream unavailable, analytics disabled", zap.Error(err))
		} else {
			publisher = analytics.New(js, log)
		}
	}

	respCache, closeCache := initCache(scfg, nc, log)
	if closeCache != nil {
		defer closeCache()
	}

	cb := provider.NewBreaker("place-provider", scfg.CBFailureThreshold, scfg.CBTimeout, log)
	places := provider.New(scfg.ProviderBaseURL, provider.ClientConfig{
		APIKey:         scfg.ProviderAPIKey,
		Categories:     scfg.ProviderCategories,
		Limit:          scfg.ProviderLimit,
		MaxRetries:     scfg.MaxRetries,
		RetryBaseDelay: scfg.RetryBaseDelay,
	}, provider.WithCircuitBreaker(cb), provider.WithLogger(log))
	if scfg.ProviderAPIKey == "" {
		log.Warn("PROVIDER_API_KEY not set, provider requests will be unauthenticated")
	}

	verifier := auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ServiceName:       cfg.ServiceName,
		ReadyFunc:         ready,
		CORSOrigins:       cfg.CORSAllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalUser(verifier))
		r.Get("/search", handlers.Search(handlers.SearchDeps{
			Spots:         st,
			Provider:      places,
			Cache:         respCache,
			Analytics:     publisher,
			Log:           log,
			DefaultRadius: scfg.DefaultRadius,
		}))
		r.Get("/ratings", handlers.GetRatings(st, log))
		r.Get("/pics", handlers.GetPics(st, st, places, respCache, log))
		r.Get("/venues/{id}", handlers.GetVenue(st, log))
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Post("/ratings", handlers.PostRating(st, log))
		r.Post("/favorites", handlers.PostFavorite(st, log))
		r.Post("/pics", handlers.PostPics(st, log))
		r.Get("/favorites", handlers.GetFavorites(st, log))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			runner.Graceful(srv.Shutdown)
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initStore selects the Store backend. In production (APP_ENV=production) it
// requires a working Postgres connection and terminates the process otherwise.
func initStore(cfg config.AppConfig, log *zap.Logger) (store.Store, func() error, func()) {
	if cfg.DatabaseURL == "" {
		if cfg.IsProduction() {
			log.Error("DATABASE_URL is required in production")
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("DATABASE_URL not set, using in-memory spots store (development only)")
		return store.NewInMemoryStore(), nil, nil
	}

	pool, err := db.Open(context.Background(), cfg.DatabaseURL, db.WithApplicationName(cfg.ServiceName))
	if err != nil {
		if cfg.IsProduction() {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory spots store", zap.Error(err))
		return store.NewInMemoryStore(), nil, nil
	}

	applied, err := db.Migrate(context.Background(), pool, "spots", migrations.FS)
	if err != nil {
		pool.Close()
		if cfg.IsProduction() {
			log.Error("schema migration failed", zap.Error(err))
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("schema migration failed, falling back to in-memory spots store", zap.Error(err))
		return store.NewInMemoryStore(), nil, nil
	}
	log.Info("schema migrated", zap.Int("applied", applied))

	log.Info("spots store: postgres")
	ready := func() error { return pool.Ping(context.Background()) }
	return store.NewPostgresStore(pool), ready, pool.Close
}

// initCache prefers Redis and falls back to the in-process TTL cache, which
// listens for invalidations when NATS is connected.
func initCache(scfg spotsconfig.Config, nc *nats.Conn, log *zap.Logger) (cache.Cache, func()) {
	if scfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(scfg.RedisURL, scfg.CacheTTL)
		if err == nil {
			if err = rc.Ping(context.Background()); err == nil {
				log.Info("provider cache: redis")
				return rc, func() { _ = rc.Close() }
			}
			_ = rc.Close()
		}
		log.Warn("redis unavailable, using in-memory provider cache", zap.Error(err))
	}

	tc := cache.NewTTLCache(scfg.CacheTTL)
	if nc != nil {
		if err := tc.Subscribe(nc, cache.InvalidateSubject, log); err != nil {
			log.Warn("cache invalidation subscribe failed", zap.Error(err))
		}
	}
	log.Info("provider cache: memory")
	return tc, func() { _ = tc.Close() }
}
