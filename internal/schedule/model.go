package schedule

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled   AppointmentStatus = "scheduled"
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusPending     AppointmentStatus = "pending"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusCompleted   AppointmentStatus = "completed"
	StatusNoShow      AppointmentStatus = "no_show"
	StatusRescheduled AppointmentStatus = "rescheduled"
)

type AppointmentPriority string

const (
	PriorityLow    AppointmentPriority = "low"
	PriorityNormal AppointmentPriority = "normal"
	PriorityHigh   AppointmentPriority = "high"
	PriorityUrgent AppointmentPriority = "urgent"
)

// AppointmentType is the clinical category of a session.
type AppointmentType string

const (
	TypeConsultaInicial     AppointmentType = "Consulta Inicial"
	TypeFisioterapia        AppointmentType = "Fisioterapia"
	TypeReavaliacao         AppointmentType = "Reavaliação"
	TypeConsultaRetorno     AppointmentType = "Consulta de Retorno"
	TypeAvaliacaoFuncional  AppointmentType = "Avaliação Funcional"
	TypeTerapiaManual       AppointmentType = "Terapia Manual"
	TypePilatesClinico      AppointmentType = "Pilates Clínico"
	TypeRPG                 AppointmentType = "RPG"
	TypeDryNeedling         AppointmentType = "Dry Needling"
	TypeLiberacaoMiofascial AppointmentType = "Liberação Miofascial"
)

type RecurrenceType string

const (
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
	RecurrenceCustom  RecurrenceType = "custom"
)

// RecurrencePattern bounds a recurring series. Exactly one of EndDate or
// MaxOccurrences must be set; unbounded patterns are rejected at the API
// boundary rather than silently truncated.
type RecurrencePattern struct {
	Type           RecurrenceType `json:"type"`
	Frequency      int            `json:"frequency"`
	DaysOfWeek     []time.Weekday `json:"days_of_week,omitempty"`
	EndDate        *Date          `json:"end_date,omitempty"`
	MaxOccurrences int            `json:"max_occurrences,omitempty"`
}

type Appointment struct {
	ID          uuid.UUID           `json:"id"`
	PatientID   uuid.UUID           `json:"patient_id"`
	TherapistID *uuid.UUID          `json:"therapist_id,omitempty"`
	RoomID      *uuid.UUID          `json:"room_id,omitempty"`
	Date        Date                `json:"date"`
	StartTime   TimeOfDay           `json:"start_time"`
	Duration    int                 `json:"duration"`
	Type        AppointmentType     `json:"type"`
	Status      AppointmentStatus   `json:"status"`
	Priority    AppointmentPriority `json:"priority"`
	Notes       string              `json:"notes,omitempty"`
	Equipment   []string            `json:"equipment,omitempty"`
	Recurrence  *RecurrencePattern  `json:"recurrence,omitempty"`
	SeriesID    *uuid.UUID          `json:"series_id,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func (a *Appointment) EndTime() TimeOfDay { return a.StartTime.Add(a.Duration) }

// Active reports whether the appointment still occupies its slot.
func (a *Appointment) Active() bool {
	return a.Status != StatusCancelled && a.Status != StatusRescheduled
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Therapist struct {
	ID          uuid.UUID
	Name        string
	Specialties []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Room struct {
	ID        uuid.UUID
	Name      string
	Capacity  int
	Equipment []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TherapistAvailability is a therapist's working window on one date.
// OffDuty marks the whole day unavailable regardless of the window.
type TherapistAvailability struct {
	TherapistID uuid.UUID
	Date        Date
	Start       TimeOfDay
	End         TimeOfDay
	OffDuty     bool
}

type ConflictType string

const (
	ConflictDoubleBooking          ConflictType = "double_booking"
	ConflictTherapistUnavailable   ConflictType = "therapist_unavailable"
	ConflictRoomUnavailable        ConflictType = "room_unavailable"
	ConflictPatientConflict        ConflictType = "patient_conflict"
	ConflictOutsideWorkingHours    ConflictType = "outside_working_hours"
	ConflictEquipmentUnavailable   ConflictType = "equipment_unavailable"
	ConflictInsufficientBufferTime ConflictType = "insufficient_buffer_time"
)

type ConflictSeverity string

const (
	SeverityError   ConflictSeverity = "error"
	SeverityWarning ConflictSeverity = "warning"
	SeverityInfo    ConflictSeverity = "info"
)

// Conflict is an ordinary return value, never an error. Produced fresh on
// every check and never persisted.
type Conflict struct {
	Type                   ConflictType      `json:"type"`
	Severity               ConflictSeverity  `json:"severity"`
	Description            string            `json:"description"`
	Date                   Date              `json:"date"`
	ConflictingAppointment *Appointment      `json:"conflicting_appointment,omitempty"`
	CanOverride            bool              `json:"can_override"`
	Alternatives           []AlternativeSlot `json:"alternatives,omitempty"`
}

// Blocking reports whether the conflict prevents a commit outright.
func (c Conflict) Blocking() bool {
	return c.Severity == SeverityError && !c.CanOverride
}

// AlternativeSlot is a ranked substitute produced by the ranker. Ephemeral.
type AlternativeSlot struct {
	Date        Date       `json:"date"`
	StartTime   TimeOfDay  `json:"start_time"`
	Duration    int        `json:"duration"`
	TherapistID *uuid.UUID `json:"therapist_id,omitempty"`
	RoomID      *uuid.UUID `json:"room_id,omitempty"`
	Score       int        `json:"score"`
}

// HasBlocking reports whether any conflict in the list is non-overridable.
func HasBlocking(conflicts []Conflict) bool {
	for _, c := range conflicts {
		if c.Blocking() {
			return true
		}
	}
	return false
}

// ErrorLevel reports whether any conflict in the list has Error severity.
func ErrorLevel(conflicts []Conflict) bool {
	for _, c := range conflicts {
		if c.Severity == SeverityError {
			return true
		}
	}
	return false
}
