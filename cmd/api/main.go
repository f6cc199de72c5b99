package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/base2ML/baby-raffle-platform-sub000/internal/config"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/database"
	httptransport "github.com/base2ML/baby-raffle-platform-sub000/internal/http"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/http/handler"
	httpmiddleware "github.com/base2ML/baby-raffle-platform-sub000/internal/http/middleware"
	apimiddleware "github.com/base2ML/baby-raffle-platform-sub000/internal/middleware"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/oauth"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/repository"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/server"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/telemetry"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/tenant"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/tenantdb"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newPGXPool,
			newRedisClient,
			newTenantRepository,
			newUserRepository,
			newDirectory,
			newTokenService,
			newStateStore,
			newProviders,
			newExchange,
			newTenantDB,
			newResolver,
			newRateLimiter,
			newAuthHandler,
			newAdminHandler,
			newSiteHandler,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(runMigrations, useTelemetry, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return client, nil
}

func runMigrations(pool *pgxpool.Pool, cfg config.Config, logger *zap.Logger) error {
	if !cfg.MigrateOnStart {
		logger.Info("schema migrations disabled")
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func newTenantRepository(pool *pgxpool.Pool) repository.TenantRepository {
	return repository.NewPostgresTenantRepo(pool)
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newDirectory(repo repository.TenantRepository, cfg config.Config) *tenant.Directory {
	return tenant.NewDirectory(repo, cfg.DirectoryTTL, cfg.DirectoryLookupTimeout)
}

func newTokenService(cfg config.Config, directory *tenant.Directory, users repository.UserRepository) (*token.Service, error) {
	return token.NewService([]byte(cfg.SessionTokenSecret), cfg.SessionTokenTTL, directory, users)
}

func newStateStore(client *redis.Client) oauth.StateStore {
	return oauth.NewRedisStateStore(client)
}

func newProviders(cfg config.Config) []oauth.Provider {
	return []oauth.Provider{
		oauth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthHTTPTimeout),
		oauth.NewAppleProvider(cfg.AppleClientID, cfg.AppleClientSecret, cfg.OAuthHTTPTimeout),
	}
}

func newExchange(providers []oauth.Provider, states oauth.StateStore, directory *tenant.Directory, users repository.UserRepository, tokens *token.Service, cfg config.Config) *oauth.Exchange {
	return oauth.NewExchange(providers, states, directory, users, tokens, cfg.OAuthStateTTL)
}

func newTenantDB(pool *pgxpool.Pool) *tenantdb.DB {
	return tenantdb.New(pool)
}

func newResolver(directory *tenant.Directory, tokens *token.Service, cfg config.Config) *httpmiddleware.Resolver {
	return httpmiddleware.NewResolver(directory, tokens, cfg.BaseDomain)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg)
}

func newAuthHandler(exchange *oauth.Exchange, users repository.UserRepository, cfg config.Config) *handler.AuthHandler {
	return handler.NewAuthHandler(exchange, users, cfg.BaseDomain)
}

func newAdminHandler(tenants repository.TenantRepository, users repository.UserRepository, directory *tenant.Directory) *handler.AdminHandler {
	return handler.NewAdminHandler(tenants, users, directory)
}

func newSiteHandler(db *tenantdb.DB) *handler.SiteHandler {
	return handler.NewSiteHandler(db)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
