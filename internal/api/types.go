package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/fisioflow/clinic-scheduling/internal/schedule"
)

// AppointmentPayload is the candidate an appointment form or drag gesture
// submits for conflict checking or creation.
type AppointmentPayload struct {
	PatientID   string                      `json:"patient_id"`
	TherapistID string                      `json:"therapist_id,omitempty"`
	RoomID      string                      `json:"room_id,omitempty"`
	Date        schedule.Date               `json:"date"`
	StartTime   schedule.TimeOfDay          `json:"start_time"`
	Duration    int                         `json:"duration"`
	Type        string                      `json:"type"`
	Priority    string                      `json:"priority,omitempty"`
	Notes       string                      `json:"notes,omitempty"`
	Equipment   []string                    `json:"equipment,omitempty"`
	Recurrence  *schedule.RecurrencePattern `json:"recurrence,omitempty"`
}

type OverridePayload struct {
	Date   schedule.Date `json:"date,omitempty"`
	Type   string        `json:"type"`
	Reason string        `json:"reason"`
}

type CreateAppointmentRequest struct {
	AppointmentPayload
	Overrides []OverridePayload `json:"overrides,omitempty"`
}

type CheckConflictsRequest struct {
	AppointmentPayload
}

type SuggestRequest struct {
	AppointmentPayload
	Conflicts []schedule.Conflict `json:"conflicts"`
}

type RescheduleRequest struct {
	NewDate      schedule.Date      `json:"new_date"`
	NewTime      schedule.TimeOfDay `json:"new_time"`
	TherapistID  string             `json:"therapist_id,omitempty"`
	RoomID       string             `json:"room_id,omitempty"`
	Overrides    []OverridePayload  `json:"overrides,omitempty"`
	ValidateOnly bool               `json:"validate_only,omitempty"`
}

type MoveSeriesRequest struct {
	DeltaDays int                `json:"delta_days"`
	NewTime   schedule.TimeOfDay `json:"new_time"`
	Overrides []OverridePayload  `json:"overrides,omitempty"`
}

type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

type AppointmentResponse struct {
	ID          uuid.UUID          `json:"id"`
	PatientID   uuid.UUID          `json:"patient_id"`
	TherapistID *uuid.UUID         `json:"therapist_id,omitempty"`
	RoomID      *uuid.UUID         `json:"room_id,omitempty"`
	Date        schedule.Date      `json:"date"`
	StartTime   schedule.TimeOfDay `json:"start_time"`
	Duration    int                `json:"duration"`
	Type        string             `json:"type"`
	Status      string             `json:"status"`
	Priority    string             `json:"priority"`
	SeriesID    *uuid.UUID         `json:"series_id,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

func toAppointmentResponse(a *schedule.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		PatientID:   a.PatientID,
		TherapistID: a.TherapistID,
		RoomID:      a.RoomID,
		Date:        a.Date,
		StartTime:   a.StartTime,
		Duration:    a.Duration,
		Type:        string(a.Type),
		Status:      string(a.Status),
		Priority:    string(a.Priority),
		SeriesID:    a.SeriesID,
		CreatedAt:   a.CreatedAt,
	}
}

type ConflictsResponse struct {
	OK        bool                `json:"ok"`
	Conflicts []schedule.Conflict `json:"conflicts,omitempty"`
}

type CreateResponse struct {
	OK           bool                  `json:"ok"`
	Appointments []AppointmentResponse `json:"appointments,omitempty"`
	Conflicts    []schedule.Conflict   `json:"conflicts,omitempty"`
}

type SuggestResponse struct {
	Alternatives []schedule.AlternativeSlot `json:"alternatives"`
}

type ErrorResponse struct {
	Error   string                `json:"error"`
	Details string                `json:"details,omitempty"`
	Fields  []schedule.FieldError `json:"fields,omitempty"`
}
