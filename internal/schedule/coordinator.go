package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	EventScheduleCommitted    = "SCHEDULE_COMMITTED"
	EventScheduleOverridden   = "SCHEDULE_OVERRIDDEN"
	EventSeriesCommitted      = "SERIES_COMMITTED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
)

// DateLocker serializes commits touching the same calendar dates. Two
// concurrent reschedules onto the same slot contend on the date key, so at
// most one can pass re-validation and mutate the index.
type DateLocker interface {
	WithDateLocks(ctx context.Context, dates []Date, fn func(ctx context.Context) error) error
}

// Override resolves one overridable conflict on one occurrence date. Each
// occurrence's override is independent; overriding a conflict on one date
// says nothing about its siblings.
type Override struct {
	Date   Date         `json:"date"`
	Type   ConflictType `json:"type"`
	Reason string       `json:"reason"`
}

// Coordinator validates and applies moves against the availability index.
// Validate is read-only over an index snapshot; Commit re-validates under
// per-date locks before mutating, closing the race between a stale
// Validate and the Commit (optimistic check, pessimistic commit).
type Coordinator struct {
	idx      *AvailabilityIndex
	detector *Detector
	repo     Repository
	locker   DateLocker
	log      zerolog.Logger
}

func NewCoordinator(idx *AvailabilityIndex, detector *Detector, repo Repository, locker DateLocker, log zerolog.Logger) *Coordinator {
	return &Coordinator{idx: idx, detector: detector, repo: repo, locker: locker, log: log}
}

// MoveRequest is the (appointmentId, newDate, newTime, newResource?)
// triple handed over by the UI at the end of a drag.
type MoveRequest struct {
	AppointmentID  uuid.UUID
	NewDate        Date
	NewTime        TimeOfDay
	NewTherapistID *uuid.UUID // nil keeps the current therapist
	NewRoomID      *uuid.UUID // nil keeps the current room
	Overrides      []Override
}

// Validate evaluates the move read-only. The appointment's current slot is
// excluded from the comparison set so it does not conflict with itself.
func (c *Coordinator) Validate(ctx context.Context, req MoveRequest) ([]Conflict, error) {
	appt, err := c.loadAppointment(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	moved := movedCopy(appt, req)
	return c.detector.CheckExcluding(ctx, moved, []Date{moved.Date}, appt.ID)
}

// Commit applies the move. A non-empty conflict list with a nil error means
// the move was rejected and the index is untouched; the caller re-presents
// the conflicts. Overridable Error and Warning conflicts each need an
// Override entry; non-overridable conflicts always reject; Info never
// blocks.
func (c *Coordinator) Commit(ctx context.Context, req MoveRequest) ([]Conflict, error) {
	appt, err := c.loadAppointment(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}

	var rejected []Conflict
	err = c.locker.WithDateLocks(ctx, uniqueDates(appt.Date, req.NewDate), func(lockCtx context.Context) error {
		moved := movedCopy(appt, req)
		conflicts, err := c.detector.CheckExcluding(lockCtx, moved, []Date{moved.Date}, appt.ID)
		if err != nil {
			return err
		}
		if unresolved(conflicts, req.Overrides) {
			rejected = conflicts
			return nil
		}

		updated, err := c.repo.UpdateAppointmentSchedule(lockCtx, appt.ID, moved.Date, moved.StartTime, moved.TherapistID, moved.RoomID)
		if err != nil {
			return fmt.Errorf("persist reschedule: %w", err)
		}
		c.idx.Replace(appt.ID, updated)

		c.logCommit(lockCtx, appt, req, conflicts)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

// CommitNew persists and indexes a brand-new appointment (or a whole
// recurring series, one row per occurrence sharing a series ID). All
// occurrences are validated first; one blocked occurrence rejects the
// whole series so it cannot split.
func (c *Coordinator) CommitNew(ctx context.Context, candidate *Appointment, occurrences []Date, overrides []Override) ([]*Appointment, []Conflict, error) {
	if len(occurrences) == 0 {
		occurrences = []Date{candidate.Date}
	}

	var (
		created  []*Appointment
		rejected []Conflict
	)
	err := c.locker.WithDateLocks(ctx, uniqueDates(occurrences...), func(lockCtx context.Context) error {
		conflicts, err := c.detector.Check(lockCtx, candidate, occurrences)
		if err != nil {
			return err
		}
		if unresolved(conflicts, overrides) {
			rejected = conflicts
			return nil
		}

		var seriesID *uuid.UUID
		if len(occurrences) > 1 {
			id := uuid.New()
			seriesID = &id
		}

		now := time.Now()
		for _, date := range occurrences {
			occ := *candidate
			occ.ID = uuid.New()
			occ.Date = date
			occ.SeriesID = seriesID
			occ.CreatedAt = now
			occ.UpdatedAt = now
			if occ.Status == "" {
				occ.Status = StatusScheduled
			}
			if err := c.repo.CreateAppointment(lockCtx, &occ); err != nil {
				return fmt.Errorf("persist appointment on %s: %w", date, err)
			}
			c.idx.Add(&occ)
			created = append(created, &occ)
		}

		eventType := EventScheduleCommitted
		if seriesID != nil {
			eventType = EventSeriesCommitted
		}
		c.insertEvent(lockCtx, created[0].ID, eventType, map[string]any{
			"occurrences": len(created),
			"overrides":   len(overrides),
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if rejected != nil {
		return nil, rejected, nil
	}
	return created, nil, nil
}

// MoveSeries shifts every remaining occurrence of a series by the same day
// delta and start time. Every occurrence is validated before any is
// committed; partial application is not permitted.
func (c *Coordinator) MoveSeries(ctx context.Context, seriesID uuid.UUID, deltaDays int, newTime TimeOfDay, overrides []Override) ([]Conflict, error) {
	members, err := c.repo.ListSeries(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}
	if len(members) == 0 {
		return nil, ErrAppointmentNotFound
	}

	dates := make([]Date, 0, 2*len(members))
	for _, m := range members {
		dates = append(dates, m.Date, m.Date.AddDays(deltaDays))
	}

	var rejected []Conflict
	err = c.locker.WithDateLocks(ctx, uniqueDates(dates...), func(lockCtx context.Context) error {
		var all []Conflict
		for _, m := range members {
			if !m.Active() {
				continue
			}
			moved := *m
			moved.Date = m.Date.AddDays(deltaDays)
			moved.StartTime = newTime
			cs, err := c.detector.CheckExcluding(lockCtx, &moved, []Date{moved.Date}, m.ID)
			if err != nil {
				return err
			}
			all = append(all, cs...)
		}
		if unresolved(all, overrides) {
			rejected = all
			return nil
		}

		for _, m := range members {
			if !m.Active() {
				continue
			}
			updated, err := c.repo.UpdateAppointmentSchedule(lockCtx, m.ID, m.Date.AddDays(deltaDays), newTime, m.TherapistID, m.RoomID)
			if err != nil {
				return fmt.Errorf("persist series member %s: %w", m.ID, err)
			}
			c.idx.Replace(m.ID, updated)
		}

		c.insertEvent(lockCtx, members[0].ID, EventSeriesCommitted, map[string]any{
			"series_id":  seriesID.String(),
			"delta_days": deltaDays,
			"new_time":   newTime.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

// Cancel soft-cancels an appointment and drops it from the index, keeping
// the row for conflict history.
func (c *Coordinator) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	appt, err := c.loadAppointment(ctx, id)
	if err != nil {
		return err
	}
	return c.locker.WithDateLocks(ctx, []Date{appt.Date}, func(lockCtx context.Context) error {
		updated, err := c.repo.UpdateAppointmentStatus(lockCtx, id, appt.Status, StatusCancelled)
		if err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}
		c.idx.Replace(id, updated)
		c.insertEvent(lockCtx, id, EventAppointmentCancelled, map[string]any{"reason": reason})
		return nil
	})
}

func (c *Coordinator) loadAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	if a := c.idx.Get(id); a != nil {
		return a, nil
	}
	a, err := c.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return a, nil
}

func (c *Coordinator) logCommit(ctx context.Context, appt *Appointment, req MoveRequest, conflicts []Conflict) {
	eventType := EventScheduleCommitted
	if len(req.Overrides) > 0 {
		eventType = EventScheduleOverridden
	}
	c.insertEvent(ctx, appt.ID, eventType, map[string]any{
		"from_date": appt.Date.String(),
		"from_time": appt.StartTime.String(),
		"to_date":   req.NewDate.String(),
		"to_time":   req.NewTime.String(),
		"overrides": len(req.Overrides),
		"conflicts": len(conflicts),
	})
	c.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("to_date", req.NewDate.String()).
		Str("to_time", req.NewTime.String()).
		Int("overrides", len(req.Overrides)).
		Msg("reschedule committed")
}

func (c *Coordinator) insertEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}
	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}
	if err := c.repo.InsertEvent(ctx, ev); err != nil {
		c.log.Error().Err(err).Str("event", eventType).Msg("insert event log")
	}
}

// movedCopy returns the appointment as it would look after the move.
func movedCopy(appt *Appointment, req MoveRequest) *Appointment {
	moved := *appt
	moved.Date = req.NewDate
	moved.StartTime = req.NewTime
	if req.NewTherapistID != nil {
		moved.TherapistID = req.NewTherapistID
	}
	if req.NewRoomID != nil {
		moved.RoomID = req.NewRoomID
	}
	return &moved
}

// unresolved reports whether any conflict still blocks the commit given
// the supplied overrides.
func unresolved(conflicts []Conflict, overrides []Override) bool {
	for _, c := range conflicts {
		if c.Severity == SeverityInfo {
			continue
		}
		if !c.CanOverride {
			return true
		}
		if !hasOverride(overrides, c) {
			return true
		}
	}
	return false
}

func hasOverride(overrides []Override, c Conflict) bool {
	for _, o := range overrides {
		if o.Type == c.Type && o.Reason != "" && (o.Date.IsZero() || o.Date.Equal(c.Date)) {
			return true
		}
	}
	return false
}

// uniqueDates sorts and dedupes the lock set so concurrent commits always
// acquire date locks in the same order.
func uniqueDates(dates ...Date) []Date {
	seen := make(map[Date]bool, len(dates))
	var out []Date
	for _, d := range dates {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
