package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/fisioflow/clinic-scheduling/internal/db"
	"github.com/fisioflow/clinic-scheduling/internal/schedule"
)

var log = zerolog.New(os.Stderr).With().Timestamp().Str("service", "seed").Logger()

var specialties = []string{
	"Ortopedia",
	"Neurologia",
	"Esportiva",
	"Pilates",
	"RPG",
	"Pediatria",
}

var equipmentPool = []string{
	"maca-1", "maca-2", "ultrassom", "tens", "bola-suica", "reformer", "laser",
}

var appointmentTypes = []schedule.AppointmentType{
	schedule.TypeConsultaInicial,
	schedule.TypeFisioterapia,
	schedule.TypeReavaliacao,
	schedule.TypeConsultaRetorno,
	schedule.TypeTerapiaManual,
	schedule.TypePilatesClinico,
	schedule.TypeRPG,
}

func main() {
	log.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	therapists, err := seedTherapists(context.Background(), pool, 12)
	if err != nil {
		log.Fatal().Err(err).Msg("seed therapists")
	}
	rooms, err := seedRooms(context.Background(), pool, 6)
	if err != nil {
		log.Fatal().Err(err).Msg("seed rooms")
	}
	patients, err := seedPatients(context.Background(), pool, 400)
	if err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}
	if err := seedAppointments(context.Background(), pool, patients, therapists, rooms, 800); err != nil {
		log.Fatal().Err(err).Msg("seed appointments")
	}

	log.Info().Msg("seed complete")
}

func seedTherapists(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Info().Int("count", count).Msg("seeding therapists")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		specs := []string{
			specialties[gofakeit.Number(0, len(specialties)-1)],
			specialties[gofakeit.Number(0, len(specialties)-1)],
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO therapists (id, name, specialties, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, gofakeit.Name(), specs)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, tx.Commit(ctx)
}

func seedRooms(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Info().Int("count", count).Msg("seeding rooms")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		capacity := 1
		if gofakeit.Bool() {
			capacity = gofakeit.Number(2, 6) // group rooms
		}
		equipment := []string{equipmentPool[gofakeit.Number(0, len(equipmentPool)-1)]}
		_, err := tx.Exec(ctx, `
			INSERT INTO rooms (id, name, capacity, equipment, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, gofakeit.NounConcrete(), capacity, equipment)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, tx.Commit(ctx)
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 100
	ids := make([]uuid.UUID, 0, count)

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, phone, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, id, gofakeit.Name(), gofakeit.Email(), gofakeit.Phone())
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		log.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}
	return ids, nil
}

// seedAppointments books random working-hours slots over the next four
// weeks. Collisions are fine here; conflict detection is the service's
// job, not the seeder's.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, patients, therapists, rooms []uuid.UUID, count int) error {
	log.Info().Int("count", count).Msg("seeding appointments")

	settings := schedule.DefaultSettings()
	today := schedule.DateOf(time.Now())

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		date := today.AddDays(gofakeit.Number(0, 27))
		if settings.Window.IsClosedOn(date) {
			continue
		}

		duration := schedule.DurationStep * gofakeit.Number(1, 8)
		slots := schedule.GenerateSlots(settings.Window, settings.SlotGranularity, duration)
		slot := slots[gofakeit.Number(0, len(slots)-1)]

		therapistID := therapists[gofakeit.Number(0, len(therapists)-1)]
		roomID := rooms[gofakeit.Number(0, len(rooms)-1)]
		apptType := appointmentTypes[gofakeit.Number(0, len(appointmentTypes)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO appointments (
				id, patient_id, therapist_id, room_id, date, start_minutes, duration_minutes,
				type, status, priority, notes, equipment, recurrence, series_id, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NULL,NULL,now(),now())
		`,
			uuid.New(),
			patients[gofakeit.Number(0, len(patients)-1)],
			therapistID,
			roomID,
			date.String(),
			int(slot.Start),
			duration,
			apptType,
			schedule.StatusScheduled,
			schedule.PriorityNormal,
			"",
			[]string{},
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
