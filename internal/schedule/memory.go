package schedule

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository used by cmd/simulate and the
// package tests. Not meant for production traffic.
type MemoryRepository struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]*Appointment
	therapists   map[uuid.UUID]*Therapist
	rooms        map[uuid.UUID]*Room
	availability map[uuid.UUID]map[Date]*TherapistAvailability
	events       []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appointments: make(map[uuid.UUID]*Appointment),
		therapists:   make(map[uuid.UUID]*Therapist),
		rooms:        make(map[uuid.UUID]*Room),
		availability: make(map[uuid.UUID]map[Date]*TherapistAvailability),
	}
}

func (r *MemoryRepository) PutTherapist(t *Therapist) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.therapists[t.ID] = t
}

func (r *MemoryRepository) PutRoom(room *Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room.ID] = room
}

func (r *MemoryRepository) PutAvailability(a *TherapistAvailability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byDate := r.availability[a.TherapistID]
	if byDate == nil {
		byDate = make(map[Date]*TherapistAvailability)
		r.availability[a.TherapistID] = byDate
	}
	byDate[a.Date] = a
}

func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}

func (r *MemoryRepository) ListAppointments(_ context.Context, dr DateRange, filter ResourceFilter) ([]*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Appointment
	for _, a := range r.appointments {
		if a.Date.Before(dr.From) || a.Date.After(dr.To) {
			continue
		}
		if !filter.matches(a) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	clone := *a
	return &clone, nil
}

func (r *MemoryRepository) ListSeries(_ context.Context, seriesID uuid.UUID) ([]*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Appointment
	for _, a := range r.appointments {
		if a.SeriesID != nil && *a.SeriesID == seriesID {
			clone := *a
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *MemoryRepository) CreateAppointment(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *a
	r.appointments[a.ID] = &clone
	return nil
}

func (r *MemoryRepository) UpdateAppointmentSchedule(_ context.Context, id uuid.UUID, date Date, start TimeOfDay, therapistID, roomID *uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a.Date = date
	a.StartTime = start
	a.TherapistID = therapistID
	a.RoomID = roomID
	clone := *a
	return &clone, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	clone := *a
	return &clone, nil
}

func (r *MemoryRepository) GetTherapistAvailability(_ context.Context, id uuid.UUID, date Date) (*TherapistAvailability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if byDate, ok := r.availability[id]; ok {
		if a, ok := byDate[date]; ok {
			clone := *a
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) GetRoom(_ context.Context, id uuid.UUID) (*Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	clone := *room
	return &clone, nil
}

func (r *MemoryRepository) ListTherapists(_ context.Context, specialty string) ([]*Therapist, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Therapist
	for _, t := range r.therapists {
		if specialty != "" && !hasSpecialty(t, specialty) {
			continue
		}
		clone := *t
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func hasSpecialty(t *Therapist, specialty string) bool {
	for _, s := range t.Specialties {
		if s == specialty {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) ListRooms(_ context.Context, minCapacity int) ([]*Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Room
	for _, room := range r.rooms {
		if room.Capacity < minCapacity {
			continue
		}
		clone := *room
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// LocalDateLocker serializes commits per date with in-process mutexes.
// Suitable for a single instance; multi-instance deployments use the
// Redis-backed locker instead.
type LocalDateLocker struct {
	mu    sync.Mutex
	locks map[Date]*sync.Mutex
}

func NewLocalDateLocker() *LocalDateLocker {
	return &LocalDateLocker{locks: make(map[Date]*sync.Mutex)}
}

func (l *LocalDateLocker) WithDateLocks(ctx context.Context, dates []Date, fn func(ctx context.Context) error) error {
	acquired := make([]*sync.Mutex, 0, len(dates))
	for _, d := range uniqueDates(dates...) {
		l.mu.Lock()
		m, ok := l.locks[d]
		if !ok {
			m = &sync.Mutex{}
			l.locks[d] = m
		}
		l.mu.Unlock()
		m.Lock()
		acquired = append(acquired, m)
	}
	defer func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Unlock()
		}
	}()
	return fn(ctx)
}
