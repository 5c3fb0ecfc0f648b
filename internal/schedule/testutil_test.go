package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// fixture bundles the core wired against the in-memory repository.
type fixture struct {
	repo     *MemoryRepository
	idx      *AvailabilityIndex
	detector *Detector
	ranker   *Ranker
	coord    *Coordinator
	svc      *Service
	settings Settings

	patient1   uuid.UUID
	patient2   uuid.UUID
	therapist1 uuid.UUID
	therapist2 uuid.UUID
	room1      uuid.UUID
	room2      uuid.UUID
}

func newFixture(settings Settings) *fixture {
	settings = settings.Normalize()
	repo := NewMemoryRepository()
	svc := NewService(repo, NewLocalDateLocker(), settings, zerolog.Nop())

	f := &fixture{
		repo:       repo,
		idx:        svc.Index(),
		svc:        svc,
		settings:   settings,
		patient1:   uuid.New(),
		patient2:   uuid.New(),
		therapist1: uuid.New(),
		therapist2: uuid.New(),
		room1:      uuid.New(),
		room2:      uuid.New(),
	}
	f.detector = NewDetector(f.idx, repo, settings)
	f.ranker = NewRanker(f.detector, repo, settings)
	f.coord = NewCoordinator(f.idx, f.detector, repo, NewLocalDateLocker(), zerolog.Nop())

	repo.PutTherapist(&Therapist{ID: f.therapist1, Name: "Ana", Specialties: []string{"Ortopedia"}})
	repo.PutTherapist(&Therapist{ID: f.therapist2, Name: "Bruno", Specialties: []string{"Ortopedia"}})
	repo.PutRoom(&Room{ID: f.room1, Name: "Sala 1", Capacity: 1})
	repo.PutRoom(&Room{ID: f.room2, Name: "Sala 2", Capacity: 1})

	return f
}

// book stores and indexes an appointment, returning it.
func (f *fixture) book(patientID uuid.UUID, therapistID, roomID *uuid.UUID, date Date, start TimeOfDay, duration int) *Appointment {
	a := &Appointment{
		ID:          uuid.New(),
		PatientID:   patientID,
		TherapistID: therapistID,
		RoomID:      roomID,
		Date:        date,
		StartTime:   start,
		Duration:    duration,
		Type:        TypeFisioterapia,
		Status:      StatusScheduled,
		Priority:    PriorityNormal,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := f.repo.CreateAppointment(context.Background(), a); err != nil {
		panic(err)
	}
	f.idx.Add(a)
	return a
}

func mustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func mustTime(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func ref(id uuid.UUID) *uuid.UUID { return &id }

func conflictsOfType(conflicts []Conflict, t ConflictType) []Conflict {
	var out []Conflict
	for _, c := range conflicts {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}
