package schedule

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrTherapistNotFound    = errors.New("therapist not found")
	ErrRoomNotFound         = errors.New("room not found")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrUnboundedRecurrence  = errors.New("recurrence pattern has neither end date nor max occurrences")
	ErrInvalidAppointment   = errors.New("invalid appointment")
	ErrCommitConflicts      = errors.New("commit blocked by conflicts")
	ErrOverrideReasonNeeded = errors.New("override reason required for overridable conflicts")
)

const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 240
	DurationStep       = 15

	MaxRecurrenceFrequency = 12
)

// FieldError is a field-level validation failure, surfaced to the caller
// before any conflict search runs.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateAppointment checks the candidate's fields. Conflict rules are not
// evaluated here; a malformed candidate never reaches the detector.
func ValidateAppointment(a *Appointment) []FieldError {
	var errs []FieldError

	if a.PatientID == uuid.Nil {
		errs = append(errs, FieldError{Field: "patient_id", Message: "patient is required"})
	}
	if a.Duration < MinDurationMinutes || a.Duration > MaxDurationMinutes {
		errs = append(errs, FieldError{
			Field:   "duration",
			Message: fmt.Sprintf("duration must be between %d and %d minutes", MinDurationMinutes, MaxDurationMinutes),
		})
	} else if a.Duration%DurationStep != 0 {
		errs = append(errs, FieldError{
			Field:   "duration",
			Message: fmt.Sprintf("duration must be a multiple of %d minutes", DurationStep),
		})
	}
	if a.Date.IsZero() {
		errs = append(errs, FieldError{Field: "date", Message: "date is required"})
	}
	if a.Type == "" {
		errs = append(errs, FieldError{Field: "type", Message: "appointment type is required"})
	}

	if a.Recurrence != nil {
		errs = append(errs, validateRecurrence(a.Recurrence)...)
	}

	return errs
}

func validateRecurrence(p *RecurrencePattern) []FieldError {
	var errs []FieldError

	switch p.Type {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceCustom:
	default:
		errs = append(errs, FieldError{Field: "recurrence.type", Message: "unknown recurrence type"})
	}
	if p.Frequency < 1 || p.Frequency > MaxRecurrenceFrequency {
		errs = append(errs, FieldError{
			Field:   "recurrence.frequency",
			Message: fmt.Sprintf("frequency must be between 1 and %d", MaxRecurrenceFrequency),
		})
	}

	hasEnd := p.EndDate != nil && !p.EndDate.IsZero()
	hasMax := p.MaxOccurrences > 0
	switch {
	case !hasEnd && !hasMax:
		errs = append(errs, FieldError{
			Field:   "recurrence",
			Message: "either end_date or max_occurrences must be set",
		})
	case hasEnd && hasMax:
		errs = append(errs, FieldError{
			Field:   "recurrence",
			Message: "end_date and max_occurrences are mutually exclusive",
		})
	}

	return errs
}
