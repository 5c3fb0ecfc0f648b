package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	redisclient "github.com/fisioflow/clinic-scheduling/internal/redis"
	"github.com/fisioflow/clinic-scheduling/internal/schedule"
)

func (p AppointmentPayload) toAppointment() (*schedule.Appointment, error) {
	patientID, err := uuid.Parse(p.PatientID)
	if err != nil {
		return nil, errors.New("patient_id must be a valid UUID")
	}

	a := &schedule.Appointment{
		PatientID: patientID,
		Date:      p.Date,
		StartTime: p.StartTime,
		Duration:  p.Duration,
		Type:      schedule.AppointmentType(p.Type),
		Priority:  schedule.AppointmentPriority(p.Priority),
		Notes:     p.Notes,
		Equipment: p.Equipment,
		Recurrence: p.Recurrence,
	}
	if a.Priority == "" {
		a.Priority = schedule.PriorityNormal
	}

	if p.TherapistID != "" {
		id, err := uuid.Parse(p.TherapistID)
		if err != nil {
			return nil, errors.New("therapist_id must be a valid UUID")
		}
		a.TherapistID = &id
	}
	if p.RoomID != "" {
		id, err := uuid.Parse(p.RoomID)
		if err != nil {
			return nil, errors.New("room_id must be a valid UUID")
		}
		a.RoomID = &id
	}
	return a, nil
}

func toOverrides(payloads []OverridePayload) []schedule.Override {
	out := make([]schedule.Override, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, schedule.Override{
			Date:   p.Date,
			Type:   schedule.ConflictType(p.Type),
			Reason: p.Reason,
		})
	}
	return out
}

func checkConflictsHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CheckConflictsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		candidate, err := req.toAppointment()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		conflicts, err := svc.CheckConflicts(r.Context(), candidate)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, ConflictsResponse{OK: len(conflicts) == 0, Conflicts: conflicts})
	}
}

func suggestHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SuggestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		candidate, err := req.toAppointment()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		alts, err := svc.SuggestAlternatives(r.Context(), candidate, req.Conflicts)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, SuggestResponse{Alternatives: alts})
	}
}

func createAppointmentHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		candidate, err := req.toAppointment()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		created, conflicts, err := svc.Create(r.Context(), candidate, toOverrides(req.Overrides))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if len(conflicts) > 0 {
			writeJSON(w, http.StatusConflict, CreateResponse{OK: false, Conflicts: conflicts})
			return
		}

		resp := CreateResponse{OK: true}
		for _, a := range created {
			resp.Appointments = append(resp.Appointments, toAppointmentResponse(a))
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func rescheduleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		move := schedule.MoveRequest{
			AppointmentID: id,
			NewDate:       req.NewDate,
			NewTime:       req.NewTime,
			Overrides:     toOverrides(req.Overrides),
		}
		if req.TherapistID != "" {
			tid, err := uuid.Parse(req.TherapistID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_therapist_id", "therapist_id must be a valid UUID")
				return
			}
			move.NewTherapistID = &tid
		}
		if req.RoomID != "" {
			rid, err := uuid.Parse(req.RoomID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_room_id", "room_id must be a valid UUID")
				return
			}
			move.NewRoomID = &rid
		}

		var conflicts []schedule.Conflict
		if req.ValidateOnly {
			conflicts, err = svc.ValidateReschedule(r.Context(), move)
		} else {
			conflicts, err = svc.CommitReschedule(r.Context(), move)
		}
		if err != nil {
			handleServiceError(w, err)
			return
		}

		status := http.StatusOK
		if len(conflicts) > 0 && !req.ValidateOnly {
			status = http.StatusConflict
		}
		writeJSON(w, status, ConflictsResponse{OK: len(conflicts) == 0, Conflicts: conflicts})
	}
}

func moveSeriesHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seriesID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_series_id", "id must be a valid UUID")
			return
		}

		var req MoveSeriesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		conflicts, err := svc.MoveSeries(r.Context(), seriesID, req.DeltaDays, req.NewTime, toOverrides(req.Overrides))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		status := http.StatusOK
		if len(conflicts) > 0 {
			status = http.StatusConflict
		}
		writeJSON(w, status, ConflictsResponse{OK: len(conflicts) == 0, Conflicts: conflicts})
	}
}

func cancelAppointmentHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req CancelRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
				return
			}
		}

		if err := svc.Cancel(r.Context(), id, req.Reason); err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ConflictsResponse{OK: true})
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	var vErr *schedule.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "validation_failed",
			Fields: vErr.Fields,
		})
	case errors.Is(err, schedule.ErrUnboundedRecurrence):
		writeError(w, http.StatusUnprocessableEntity, "unbounded_recurrence", err.Error())
	case errors.Is(err, schedule.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, schedule.ErrTherapistNotFound):
		writeError(w, http.StatusNotFound, "therapist_not_found", err.Error())
	case errors.Is(err, schedule.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "room_not_found", err.Error())
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "schedule_busy", "another commit is touching these dates, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
