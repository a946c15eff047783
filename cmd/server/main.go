package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"user_service/internal/accounts"
	"user_service/internal/auth"
	"user_service/internal/config"
	"user_service/internal/http_server/handlers/admin"
	"user_service/internal/http_server/handlers/health"
	"user_service/internal/http_server/handlers/login"
	"user_service/internal/http_server/handlers/logout"
	logoutAll "user_service/internal/http_server/handlers/logout_all"
	"user_service/internal/http_server/handlers/me"
	"user_service/internal/http_server/handlers/profile"
	"user_service/internal/http_server/handlers/refresh"
	"user_service/internal/http_server/handlers/register"
	"user_service/internal/http_server/handlers/sessions"
	"user_service/internal/http_server/middleware/authn"
	"user_service/internal/http_server/middleware/ratelimit"
	"user_service/internal/lib/hasher"
	"user_service/internal/lib/jwt"
	"user_service/internal/lib/logger/sl"
	"user_service/internal/lib/validate"
	"user_service/internal/metrics"
	"user_service/internal/models"
	"user_service/internal/rabbitmq"
	"user_service/internal/storage/postgres"
	"user_service/internal/storage/redis"
	"user_service/internal/storage/sqlite"
	"user_service/internal/sweeper"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/crypto/bcrypt"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

const shutdownTimeout = 10 * time.Second

// store is everything the services need from a datastore backend.
type store interface {
	auth.AccountStore
	auth.TokenStore
	accounts.Repository
	accounts.TokenRevoker
	sweeper.Store
	health.Pinger
	Migrate(ctx context.Context) error
	Close()
}

func main() {
	cfg := config.MustLoad("./config/config.yaml")

	log := setupLogger(cfg.Env)

	log.Info("starting user service",
		slog.String("env", cfg.Env),
		slog.String("storage", cfg.Storage.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("service stopped with error", sl.Err(err))
		os.Exit(1)
	}

	log.Info("service stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	storage, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer storage.Close()

	if err := storage.Migrate(ctx); err != nil {
		return err
	}

	issuer, err := jwt.NewIssuer(jwt.Config{
		AccessSecret:  cfg.Tokens.AccessTokenSecret,
		RefreshSecret: cfg.Tokens.RefreshTokenSecret,
		AccessTTL:     cfg.Tokens.AccessTokenTTL,
		RefreshTTL:    cfg.Tokens.RefreshTokenTTL,
	})
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	authOpts := []auth.Option{auth.WithMetrics(m)}
	accountOpts := []accounts.Option{accounts.WithMetrics(m)}

	if cfg.Redis.Address != "" {
		replay, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer replay.Close()

		authOpts = append(authOpts, auth.WithReplayDetector(replay))
		log.Info("refresh reuse detection enabled")
	}

	if cfg.RabbitMQ.URL != "" {
		broker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
		if err != nil {
			return err
		}
		defer broker.Close()

		authOpts = append(authOpts, auth.WithPublisher(broker))
		accountOpts = append(accountOpts, accounts.WithPublisher(broker))
		log.Info("event publishing enabled", slog.String("queue", cfg.RabbitMQ.QueueName))
	}

	passwords := hasher.NewBcrypt(bcrypt.DefaultCost)

	authService := auth.New(log, storage, storage, issuer, passwords, authOpts...)
	accountService := accounts.New(log, storage, storage, passwords, accountOpts...)

	if cfg.BootstrapAdmin.Email != "" {
		created, err := accountService.EnsureAdmin(ctx, cfg.BootstrapAdmin.Name, cfg.BootstrapAdmin.Email, cfg.BootstrapAdmin.Password)
		if err != nil {
			return err
		}
		if created {
			log.Info("bootstrap admin created", slog.String("email", cfg.BootstrapAdmin.Email))
		}
	}

	sw := sweeper.New(log, storage, m)
	if err := sw.Start(cfg.Sweeper.Schedule); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		sw.Stop(stopCtx)
	}()

	router := setupRouter(log, cfg, routerDeps{
		validate: validate.New(),
		issuer:   issuer,
		auth:     authService,
		accounts: accountService,
		pinger:   storage,
		metrics:  m,
		registry: registry,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout + cfg.HTTPServer.RequestTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", sl.Err(err))
	} else {
		log.Info("server stopped gracefully")
	}

	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.Postgres)
	case config.DriverSQLite:
		return sqlite.New(cfg.SQLite)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

type routerDeps struct {
	validate *validator.Validate
	issuer   *jwt.Issuer
	auth     *auth.Auth
	accounts *accounts.Service
	pinger   health.Pinger
	metrics  *metrics.Metrics
	registry *prometheus.Registry
}

func setupRouter(log *slog.Logger, cfg *config.Config, d routerDeps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(d.metrics.Middleware)

	loginLimit, registerLimit := ratelimit.Login(), ratelimit.Register()
	refreshLimit, logoutLimit := ratelimit.Refresh(), ratelimit.Logout()
	if !cfg.RateLimit.Enabled {
		loginLimit, registerLimit = ratelimit.Off(), ratelimit.Off()
		refreshLimit, logoutLimit = ratelimit.Off(), ratelimit.Off()
	}

	requireAuth := authn.New(log, d.issuer)

	r.Get("/api/check", health.New(log, d.pinger))
	r.Handle("/metrics", metrics.Handler(d.registry))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.HTTPServer.RequestTimeout))

		r.Route("/api/auth", func(r chi.Router) {
			r.With(registerLimit).Post("/register", register.New(log, d.validate, d.auth))
			r.With(loginLimit).Post("/login", login.New(log, d.validate, d.auth))
			r.With(refreshLimit).Post("/refresh", refresh.New(log, d.validate, d.auth))
			r.With(logoutLimit).Post("/logout", logout.New(log, d.auth))

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)

				r.Post("/logout-all", logoutAll.New(log, d.auth))
				r.Get("/me", me.New(log, d.accounts, d.auth))
				r.Get("/sessions", sessions.New(log, d.auth))
			})
		})

		r.With(requireAuth).Put("/api/user/profile", profile.New(log, d.validate, d.accounts))

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(authn.RequireRole(log, models.RoleAdmin))

			r.Get("/users", admin.List(log, d.accounts))
			r.Get("/users/{id}", admin.Get(log, d.accounts))
			r.Put("/users/{id}/role", admin.UpdateRole(log, d.validate, d.accounts))
			r.Put("/users/{id}/status", admin.SetStatus(log, d.validate, d.accounts))
			r.Delete("/users/{id}", admin.Delete(log, d.accounts))
			r.Get("/stats", admin.Stats(log, d.accounts))
		})
	})

	return r
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
