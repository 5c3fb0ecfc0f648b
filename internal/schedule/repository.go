package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DateRange is an inclusive calendar-day span.
type DateRange struct {
	From Date
	To   Date
}

// EventLog is an audit record written on commits, overrides and cancels.
type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// Repository is the persistence boundary the core consumes. Storage format
// is a black box; the core only needs reads for index building and rule
// evaluation plus the commit write path.
type Repository interface {
	ListAppointments(ctx context.Context, dr DateRange, filter ResourceFilter) ([]*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListSeries(ctx context.Context, seriesID uuid.UUID) ([]*Appointment, error)

	CreateAppointment(ctx context.Context, a *Appointment) error
	UpdateAppointmentSchedule(ctx context.Context, id uuid.UUID, date Date, start TimeOfDay, therapistID, roomID *uuid.UUID) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	GetTherapistAvailability(ctx context.Context, id uuid.UUID, date Date) (*TherapistAvailability, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*Room, error)
	ListTherapists(ctx context.Context, specialty string) ([]*Therapist, error)
	ListRooms(ctx context.Context, minCapacity int) ([]*Room, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
