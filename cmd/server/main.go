// @title                       User Management API
// @version                     1.0
// @description                 Registration, login, token refresh, logout and role-gated user CRUD.
// @BasePath                    /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the access token.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/user-management/internal/api"
	"github.com/99minutos/user-management/internal/api/handler"
	"github.com/99minutos/user-management/internal/core/ports"
	"github.com/99minutos/user-management/internal/core/service"
	mongostore "github.com/99minutos/user-management/internal/infrastructure/db/mongo"
	redisstore "github.com/99minutos/user-management/internal/infrastructure/db/redis"
	"github.com/99minutos/user-management/internal/infrastructure/db/sqldb"
	"github.com/99minutos/user-management/internal/infrastructure/token"
	"github.com/99minutos/user-management/internal/pkg/config"
	"github.com/99minutos/user-management/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "user-management",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped")
}

// storage is the persistence backend selected by STORAGE_DRIVER.
type storage struct {
	users  ports.UserRepository
	tokens ports.TokenRepository
	check  handler.DependencyCheck
	close  func(ctx context.Context) error
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.StorageMongo:
		store, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		return &storage{
			users:  store.Users(),
			tokens: store.Tokens(),
			check:  handler.DependencyCheck{Name: "mongodb", Ping: store.Ping},
			close:  store.Close,
		}, nil
	case config.StoragePostgres, config.StorageSQLite:
		store, err := sqldb.Open(ctx, sqldb.Config{Driver: cfg.Storage.Driver, DSN: cfg.Storage.DSN})
		if err != nil {
			return nil, err
		}
		return &storage{
			users:  store.Users(),
			tokens: store.Tokens(),
			check:  handler.DependencyCheck{Name: cfg.Storage.Driver, Ping: store.Ping},
			close:  func(context.Context) error { return store.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- Storage ---
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("failed to close storage")
		}
	}()
	checks := []handler.DependencyCheck{store.check}
	log.Info().Str("driver", cfg.Storage.Driver).Msg("storage ready")

	// --- Login throttling (optional) ---
	var limiter ports.LoginLimiter
	if cfg.Redis.Addr != "" {
		rdb, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer func() {
			_ = rdb.Close()
		}()
		limiter = redisstore.NewLoginLimiter(rdb, cfg.Login.MaxAttempts, cfg.Login.Window)
		checks = append(checks, handler.DependencyCheck{Name: "redis", Ping: redisstore.Pinger(rdb)})
		log.Info().
			Int("max_attempts", cfg.Login.MaxAttempts).
			Dur("window", cfg.Login.Window).
			Msg("login throttling enabled")
	}

	// --- Services ---
	hasher := service.NewBcryptHasher(cfg.BcryptCost)
	signer := token.NewJWTSigner(cfg.JWTSecret)
	users := service.NewUserService(store.users, hasher, logger.Component("users"))
	auth := service.NewAuthService(users, store.tokens, hasher, signer, limiter, logger.Component("auth"))

	e := api.NewRouter(api.Dependencies{
		Users:  users,
		Auth:   auth,
		Signer: signer,
		Checks: checks,
		Logger: logger.Component("http"),
	})

	// --- HTTP server ---
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
