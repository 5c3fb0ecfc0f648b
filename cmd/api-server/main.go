package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fisioflow/clinic-scheduling/internal/api"
	"github.com/fisioflow/clinic-scheduling/internal/config"
	"github.com/fisioflow/clinic-scheduling/internal/db"
	redisclient "github.com/fisioflow/clinic-scheduling/internal/redis"
	"github.com/fisioflow/clinic-scheduling/internal/schedule"
)

const version = "0.3.0"

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "api-server").Logger()
	log.Info().Msg("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Bool("memory_store", cfg.MemoryStore).Msg("configured")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo   schedule.Repository
		locker schedule.DateLocker
		pgPool *pgxpool.Pool
		rdb    *redis.Client
	)

	if cfg.MemoryStore {
		repo = schedule.NewMemoryRepository()
		locker = schedule.NewLocalDateLocker()
		log.Info().Msg("running on the in-memory store")
	} else {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pgPool.Close()
		log.Info().Msg("connected to Postgres")

		rdb, err = redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis")
			}
		}()
		log.Info().Msg("connected to Redis")

		repo = schedule.NewPgRepository(pgPool)
		locker = redisclient.NewRedisDateLocker(rdb, cfg.LockTTL)
	}

	svc := schedule.NewService(repo, locker, cfg.Clinic, log)

	today := schedule.DateOf(time.Now())
	window := schedule.DateRange{
		From: today.AddDays(-cfg.IndexWindowDays),
		To:   today.AddDays(cfg.IndexWindowDays),
	}
	loadCtx, cancelLoad := context.WithTimeout(rootCtx, 30*time.Second)
	err = svc.LoadWindow(loadCtx, window)
	cancelLoad()
	if err != nil {
		log.Fatal().Err(err).Msg("availability index load error")
	}

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		PgPool:  pgPool,
		Redis:   rdb,
		Env:     cfg.Env,
		Version: version,
		Logger:  log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
