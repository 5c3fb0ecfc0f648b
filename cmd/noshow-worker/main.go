package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fisioflow/clinic-scheduling/internal/config"
	"github.com/fisioflow/clinic-scheduling/internal/db"
	"github.com/fisioflow/clinic-scheduling/internal/schedule"
)

// The no-show worker sweeps past days and marks appointments that were
// never confirmed or completed as no-shows, keeping the schedule history
// honest without manual bookkeeping at the front desk.

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "noshow-worker").Logger()
	log.Info().Msg("noshow-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	interval := 6 * time.Hour
	if v := os.Getenv("WORKER_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			interval = d
		}
	}
	log.Info().Str("env", cfg.Env).Dur("interval", interval).Msg("running no-show worker")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	repo := schedule.NewPgRepository(pgPool)

	runOnce(rootCtx, repo, log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping no-show worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, repo, log)
		}
	}
}

func runOnce(ctx context.Context, repo schedule.Repository, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	yesterday := schedule.DateOf(time.Now()).AddDays(-1)

	// Sweep the trailing week so a worker outage does not leave holes.
	window := schedule.DateRange{From: yesterday.AddDays(-6), To: yesterday}
	appts, err := repo.ListAppointments(runCtx, window, schedule.ResourceFilter{})
	if err != nil {
		log.Error().Err(err).Msg("list past appointments")
		return
	}

	marked := 0
	for _, a := range appts {
		if a.Status != schedule.StatusScheduled && a.Status != schedule.StatusPending {
			continue
		}
		if _, err := repo.UpdateAppointmentStatus(runCtx, a.ID, a.Status, schedule.StatusNoShow); err != nil {
			log.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("mark no-show")
			continue
		}
		marked++
	}

	log.Info().Int("marked", marked).Dur("took", time.Since(start)).Msg("no-show sweep complete")
}
