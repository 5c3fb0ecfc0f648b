package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fisioflow/clinic-scheduling/internal/schedule"
)

// simulate drives concurrent bookings and drag-and-drop reschedules
// against the in-memory stack, verifying that the per-date commit
// discipline never lets two appointments land on the same resource slot.

type counters struct {
	creates         int64
	createConflicts int64
	moves           int64
	moveConflicts   int64
	errors          int64
}

func main() {
	var (
		workers  = flag.Int("workers", 8, "concurrent workers")
		duration = flag.Duration("duration", 10*time.Second, "how long to run")
	)
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "simulate").Logger()
	gofakeit.Seed(time.Now().UnixNano())

	repo := schedule.NewMemoryRepository()
	settings := schedule.DefaultSettings()
	svc := schedule.NewService(repo, schedule.NewLocalDateLocker(), settings, log)

	therapists := make([]uuid.UUID, 4)
	for i := range therapists {
		therapists[i] = uuid.New()
		repo.PutTherapist(&schedule.Therapist{
			ID:          therapists[i],
			Name:        gofakeit.Name(),
			Specialties: []string{"Ortopedia"},
		})
	}
	rooms := make([]uuid.UUID, 3)
	for i := range rooms {
		rooms[i] = uuid.New()
		repo.PutRoom(&schedule.Room{ID: rooms[i], Name: gofakeit.NounConcrete(), Capacity: 1})
	}
	patients := make([]uuid.UUID, 60)
	for i := range patients {
		patients[i] = uuid.New()
	}

	today := schedule.DateOf(time.Now())
	slots := schedule.GenerateSlots(settings.Window, settings.SlotGranularity, 60)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var (
		c  counters
		mu sync.Mutex
		ids []uuid.UUID
		wg sync.WaitGroup
	)

	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))

			for ctx.Err() == nil {
				date := today.AddDays(rng.Intn(14))
				slot := slots[rng.Intn(len(slots))]
				therapistID := therapists[rng.Intn(len(therapists))]
				roomID := rooms[rng.Intn(len(rooms))]

				if rng.Intn(3) > 0 {
					candidate := &schedule.Appointment{
						PatientID:   patients[rng.Intn(len(patients))],
						TherapistID: &therapistID,
						RoomID:      &roomID,
						Date:        date,
						StartTime:   slot.Start,
						Duration:    60,
						Type:        schedule.TypeFisioterapia,
						Priority:    schedule.PriorityNormal,
					}
					created, conflicts, err := svc.Create(ctx, candidate, nil)
					switch {
					case err != nil:
						atomic.AddInt64(&c.errors, 1)
					case len(conflicts) > 0:
						atomic.AddInt64(&c.createConflicts, 1)
					default:
						atomic.AddInt64(&c.creates, 1)
						mu.Lock()
						ids = append(ids, created[0].ID)
						mu.Unlock()
					}
					continue
				}

				mu.Lock()
				var id uuid.UUID
				if len(ids) > 0 {
					id = ids[rng.Intn(len(ids))]
				}
				mu.Unlock()
				if id == uuid.Nil {
					continue
				}

				conflicts, err := svc.CommitReschedule(ctx, schedule.MoveRequest{
					AppointmentID: id,
					NewDate:       today.AddDays(rng.Intn(14)),
					NewTime:       slots[rng.Intn(len(slots))].Start,
				})
				switch {
				case err != nil:
					atomic.AddInt64(&c.errors, 1)
				case len(conflicts) > 0:
					atomic.AddInt64(&c.moveConflicts, 1)
				default:
					atomic.AddInt64(&c.moves, 1)
				}
			}
		}(int64(w) + time.Now().UnixNano())
	}

	wg.Wait()

	log.Info().
		Int64("creates", c.creates).
		Int64("create_conflicts", c.createConflicts).
		Int64("moves", c.moves).
		Int64("move_conflicts", c.moveConflicts).
		Int64("errors", c.errors).
		Msg("simulation finished")

	verify(svc, today, log)
}

// verify walks two weeks of the index and checks the invariant the whole
// system exists to hold: no two active appointments share a therapist or
// room on an overlapping interval.
func verify(svc *schedule.Service, from schedule.Date, log zerolog.Logger) {
	idx := svc.Index()
	violations := 0

	for offset := 0; offset < 14; offset++ {
		date := from.AddDays(offset)
		appts := idx.QueryDay(date, schedule.ResourceFilter{})
		for i := 0; i < len(appts); i++ {
			for j := i + 1; j < len(appts); j++ {
				a, b := appts[i], appts[j]
				if !schedule.Overlaps(a.StartTime, a.Duration, b.StartTime, b.Duration) {
					continue
				}
				sameTherapist := a.TherapistID != nil && b.TherapistID != nil && *a.TherapistID == *b.TherapistID
				sameRoom := a.RoomID != nil && b.RoomID != nil && *a.RoomID == *b.RoomID
				if sameTherapist || sameRoom {
					violations++
					log.Error().
						Str("date", date.String()).
						Str("a", a.ID.String()).
						Str("b", b.ID.String()).
						Msg("overlapping resource booking")
				}
			}
		}
	}

	if violations == 0 {
		log.Info().Msg("no resource overlaps found")
		return
	}
	log.Fatal().Int("violations", violations).Msg("schedule invariant violated")
}
