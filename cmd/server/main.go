// Command server runs the Choukwa complaint-routing API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	_ "github.com/choukwa/choukwa-backend/docs" // Swagger spec
	"github.com/choukwa/choukwa-backend/internal/auth"
	"github.com/choukwa/choukwa-backend/internal/cache"
	"github.com/choukwa/choukwa-backend/internal/config"
	"github.com/choukwa/choukwa-backend/internal/events"
	httpapi "github.com/choukwa/choukwa-backend/internal/http"
	"github.com/choukwa/choukwa-backend/internal/observability"
	"github.com/choukwa/choukwa-backend/internal/repo"
	"github.com/choukwa/choukwa-backend/internal/seed"
	"github.com/choukwa/choukwa-backend/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=…".
var version = "dev"

// @title                       Choukwa API
// @version                     1.0
// @description                 Citizen complaint routing between citizens, members of parliament and local deputies.
// @BasePath                    /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the session token.
func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	log.Info().
		Str("version", version).
		Str("db_driver", cfg.DB.Driver).
		Str("api_base", cfg.APIBasePath).
		Msg("starting choukwa")

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Storage
	db, err := repo.Open(cfg.DB)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}
	if cfg.SeedGeoPath != "" {
		if _, err := seed.LoadGeoFile(ctx, db, cfg.SeedGeoPath); err != nil {
			return err
		}
	}

	// Cache: Redis when configured, process memory otherwise.
	var store cache.Store
	if cfg.Redis.Addr != "" {
		r, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		store = r
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis cache connected")
	} else {
		store = cache.NewMemory()
		log.Warn().Msg("REDIS_ADDR not set: using in-process cache (single replica only)")
	}
	defer store.Close()

	// Events: local SSE broker, fanned out through RabbitMQ when configured.
	broker := events.NewBroker()
	var pub events.Publisher = broker
	if cfg.Events.RabbitURL != "" {
		origin := uuid.NewString()
		rp, err := events.NewRabbitPublisher(cfg.Events.RabbitURL, cfg.Events.RabbitExchange, origin)
		if err != nil {
			return err
		}
		defer rp.Close()
		relay, err := events.NewRelay(cfg.Events.RabbitURL, cfg.Events.RabbitExchange, origin)
		if err != nil {
			return err
		}
		defer relay.Close()
		go func() {
			if err := relay.Run(ctx, broker); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("event relay stopped")
			}
		}()
		pub = events.Multi{broker, rp}
		log.Info().Str("exchange", cfg.Events.RabbitExchange).Msg("rabbitmq events enabled")
	}

	tokens := auth.NewManager(cfg.Auth, store)

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:        db,
		Store:     store,
		Tokens:    tokens,
		Broker:    broker,
		Publisher: pub,
	}, cfg)

	go purgeIdempotency(ctx, db, time.Hour)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

// purgeIdempotency drops expired Idempotency-Key records every interval.
func purgeIdempotency(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("expired idempotency keys removed")
			}
		}
	}
}
