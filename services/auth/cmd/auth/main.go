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
	authconfig "github.com/example/study-spots/services/auth/internal/config"
	"github.com/example/study-spots/services/auth/internal/handlers"
	"github.com/example/study-spots/services/auth/internal/store"
	"github.com/example/study-spots/services/auth/internal/tokens"
	"github.com/example/study-spots/services/auth/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	acfg, err := authconfig.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.NewService(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET is required")
		run.Exit(1)
	}

	users, ready, closeStore := initUsers(cfg, log)
	if closeStore != nil {
		defer closeStore()
	}

	var publisher *analytics.Publisher
	if nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.ServiceName, Logger: log}); err != nil {
		log.Warn("nats unavailable, analytics disabled", zap.Error(err))
	} else {
		defer nc.Close()
		if js, err := nc.JetStream(); err != nil {
			log.Warn("jetstream unavailable, analytics disabled", zap.Error(err))
		} else {
			publisher = analytics.New(js, log)
		}
	}

	deps := handlers.Deps{
		Users:      users,
		Tokens:     tokens.Service{Secret: []byte(cfg.JWTSecret), AccessTokenTTL: acfg.AccessTokenTTL},
		BcryptCost: acfg.BcryptCost,
		Analytics:  publisher,
		Log:        log,
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
	r.Post("/register", handlers.Register(deps))
	r.Post("/login", handlers.Login(deps))
	r.Post("/logout", handlers.Logout())
	r.With(auth.RequireUser(verifier)).Get("/me", handlers.Me(deps))

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

// initUsers selects the UserStore backend. In production (APP_ENV=production)
// it requires a working Postgres connection and terminates the process
// otherwise.
func initUsers(cfg config.AppConfig, log *zap.Logger) (store.UserStore, func() error, func()) {
	if cfg.DatabaseURL == "" {
		if cfg.IsProduction() {
			log.Error("DATABASE_URL is required in production")
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("DATABASE_URL not set, using in-memory user store (development only)")
		return store.NewInMemoryUserStore(), nil, nil
	}

	pool, err := db.Open(context.Background(), cfg.DatabaseURL, db.WithApplicationName(cfg.ServiceName))
	if err != nil {
		if cfg.IsProduction() {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory user store", zap.Error(err))
		return store.NewInMemoryUserStore(), nil, nil
	}

	applied, err := db.Migrate(context.Background(), pool, "auth", migrations.FS)
	if err != nil {
		pool.Close()
		if cfg.IsProduction() {
			log.Error("schema migration failed", zap.Error(err))
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("schema migration failed, falling back to in-memory user store", zap.Error(err))
		return store.NewInMemoryUserStore(), nil, nil
	}
	log.Info("schema migrated", zap.Int("applied", applied))

	log.Info("users store: postgres")
	ready := func() error { return pool.Ping(context.Background()) }
	return store.NewPostgresUserStore(pool), ready, pool.Close
}
