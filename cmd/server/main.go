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

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/99minutos/identity-service/internal/api"
	"github.com/99minutos/identity-service/internal/api/handler"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/core/service"
	"github.com/99minutos/identity-service/internal/infrastructure/db/memory"
	mongostore "github.com/99minutos/identity-service/internal/infrastructure/db/mongo"
	redisstore "github.com/99minutos/identity-service/internal/infrastructure/db/redis"
	"github.com/99minutos/identity-service/internal/infrastructure/queue"
	"github.com/99minutos/identity-service/internal/infrastructure/token"
	"github.com/99minutos/identity-service/internal/pkg/config"
	"github.com/99minutos/identity-service/pkg/logger"
	"github.com/99minutos/identity-service/pkg/passhash"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "identity-service",
	})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("identity service stopped with error")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		users   ports.UserRepository
		audit   ports.AuditSink
		cleanup []func()
	)
	audit = queue.NewLogSink(logger.Component("audit"))
	checks := map[string]handler.CheckFunc{}
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	// --- Account store ---
	switch cfg.Store.Users {
	case config.BackendMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return err
		}
		cleanup = append(cleanup, func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(dctx)
		})

		userRepo := mongostore.NewUserRepository(db)
		auditRepo := mongostore.NewAuditRepository(db)
		if err := userRepo.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("user indexes: %w", err)
		}
		if err := auditRepo.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("audit indexes: %w", err)
		}
		users, audit = userRepo, auditRepo
		checks["mongodb"] = func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }
		log.Info().Str("database", cfg.Mongo.Database).Msg("using mongodb account store")
	default:
		users = memory.NewUserStore()
		log.Warn().Msg("using in-memory account store; accounts are lost on restart")
	}

	// --- Sessions and attempt limiting ---
	var (
		sessions ports.SessionStore
		limiter  ports.AttemptLimiter
	)
	switch cfg.Store.Sessions {
	case config.BackendRedis:
		rdb, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		cleanup = append(cleanup, func() { _ = rdb.Close() })

		sessions = redisstore.NewSessionStore(rdb)
		limiter = redisstore.NewAttemptLimiter(rdb, cfg.Security.LoginMaxAttempts, cfg.Security.LoginAttemptWindow)
		checks["redis"] = func(ctx context.Context) error { return pingRedis(ctx, rdb) }
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis session store")
	default:
		sessions = memory.NewSessionStore()
		limiter = memory.NewAttemptLimiter(cfg.Security.LoginMaxAttempts, cfg.Security.LoginAttemptWindow)
	}

	// --- Audit trail ---
	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, audit, logger.Component("audit_dispatcher"))
	dispatcher.Start(ctx)
	cleanup = append(cleanup, dispatcher.Close)

	// --- Credential service ---
	issuer, err := token.NewIssuer(cfg.Token.Secret, cfg.Token.Issuer)
	if err != nil {
		return err
	}
	credentials, err := service.NewCredentialService(service.Dependencies{
		Users:    users,
		Sessions: sessions,
		Tokens:   issuer,
		Hasher:   passhash.New(passhash.DefaultParams),
		Limiter:  limiter,
		Audit:    dispatcher,
	}, service.Options{
		TokenTTL:          cfg.Token.TTL,
		PasswordMinLength: cfg.Security.PasswordMinLength,
	}, log)
	if err != nil {
		return err
	}

	if cfg.Bootstrap.Username != "" {
		created, err := credentials.BootstrapAdmin(ctx, cfg.Bootstrap.Username, cfg.Bootstrap.Password)
		if err != nil {
			return err
		}
		if !created {
			log.Info().Msg("admin account present, bootstrap skipped")
		}
	}

	// --- HTTP server ---
	e := api.NewRouter(api.RouterConfig{
		Credentials:  credentials,
		HealthChecks: checks,
		Logger:       logger.Component("http"),
	})

	serverErrors := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("identity service starting")
		serverErrors <- e.Start(":" + cfg.Port)
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful server shutdown failed")
		_ = e.Close()
	}

	log.Info().Msg("identity service stopped")
	return nil
}

func pingRedis(ctx context.Context, rdb *goredis.Client) error {
	return rdb.Ping(ctx).Err()
}
