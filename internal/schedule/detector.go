package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Detector evaluates a candidate appointment against the availability
// index and the clinic's working-hours and resource rules. Detection is
// pure: the full conflict list is always computed, never short-circuited;
// the caller decides what blocks.
type Detector struct {
	idx      *AvailabilityIndex
	repo     Repository
	settings Settings
}

func NewDetector(idx *AvailabilityIndex, repo Repository, settings Settings) *Detector {
	return &Detector{idx: idx, repo: repo, settings: settings.Normalize()}
}

// checkOptions tunes a single detection pass.
type checkOptions struct {
	excludeID  uuid.UUID // ignore this appointment, e.g. the slot being vacated
	errorsOnly bool      // cheap pass for the ranker: skip warning/info rules
}

// Check evaluates the candidate on each occurrence date. A recurring
// series is judged occurrence by occurrence; a conflict on one date does
// not invalidate its siblings.
func (d *Detector) Check(ctx context.Context, candidate *Appointment, occurrences []Date) ([]Conflict, error) {
	return d.check(ctx, candidate, occurrences, checkOptions{})
}

// CheckExcluding behaves like Check but ignores one existing appointment,
// used when validating a move so the appointment's current slot does not
// conflict with itself.
func (d *Detector) CheckExcluding(ctx context.Context, candidate *Appointment, occurrences []Date, excludeID uuid.UUID) ([]Conflict, error) {
	return d.check(ctx, candidate, occurrences, checkOptions{excludeID: excludeID})
}

func (d *Detector) check(ctx context.Context, candidate *Appointment, occurrences []Date, opts checkOptions) ([]Conflict, error) {
	if len(occurrences) == 0 {
		occurrences = []Date{candidate.Date}
	}

	var conflicts []Conflict
	for _, date := range occurrences {
		cs, err := d.checkOne(ctx, candidate, date, opts)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, cs...)
	}
	return conflicts, nil
}

func (d *Detector) checkOne(ctx context.Context, c *Appointment, date Date, opts checkOptions) ([]Conflict, error) {
	var conflicts []Conflict

	conflicts = append(conflicts, d.checkWorkingHours(c, date)...)
	conflicts = append(conflicts, d.checkDoubleBooking(c, date, opts)...)

	ts, err := d.checkTherapist(ctx, c, date, opts)
	if err != nil {
		return nil, err
	}
	conflicts = append(conflicts, ts...)

	rs, err := d.checkRoom(ctx, c, date, opts)
	if err != nil {
		return nil, err
	}
	conflicts = append(conflicts, rs...)

	if !opts.errorsOnly {
		conflicts = append(conflicts, d.checkEquipment(c, date, opts)...)
		conflicts = append(conflicts, d.checkBuffer(c, date, opts)...)
		conflicts = append(conflicts, d.checkPatientSameDay(c, date, opts)...)
	}

	return conflicts, nil
}

// Rule 1: OutsideWorkingHours (Error, overridable). Fires when the
// interval leaves the configured window or the clinic is closed that day.
func (d *Detector) checkWorkingHours(c *Appointment, date Date) []Conflict {
	w := d.settings.Window
	if w.IsClosedOn(date) {
		return []Conflict{{
			Type:        ConflictOutsideWorkingHours,
			Severity:    SeverityError,
			CanOverride: true,
			Date:        date,
			Description: fmt.Sprintf("clinic is closed on %s", date.Weekday()),
		}}
	}
	if !w.Contains(c.StartTime, c.Duration) {
		return []Conflict{{
			Type:        ConflictOutsideWorkingHours,
			Severity:    SeverityError,
			CanOverride: true,
			Date:        date,
			Description: fmt.Sprintf("%s-%s is outside working hours %s-%s",
				c.StartTime, c.StartTime.Add(c.Duration), w.Open, w.Close),
		}}
	}
	return nil
}

// Rule 2: DoubleBooking (Error, non-overridable). Same patient, same
// date, overlapping interval.
func (d *Detector) checkDoubleBooking(c *Appointment, date Date, opts checkOptions) []Conflict {
	patientID := c.PatientID
	overlapping := d.idx.QueryOverlapping(date, c.StartTime, c.Duration, ResourceFilter{
		PatientID: &patientID,
		ExcludeID: opts.excludeID,
	})

	var out []Conflict
	for _, other := range overlapping {
		out = append(out, Conflict{
			Type:                   ConflictDoubleBooking,
			Severity:               SeverityError,
			CanOverride:            false,
			Date:                   date,
			ConflictingAppointment: other,
			Description: fmt.Sprintf("patient already has an appointment at %s-%s",
				other.StartTime, other.EndTime()),
		})
	}
	return out
}

// Rule 3: TherapistUnavailable (Error, overridable). Overlapping booking
// for the assigned therapist, or the therapist is off duty for that time.
func (d *Detector) checkTherapist(ctx context.Context, c *Appointment, date Date, opts checkOptions) ([]Conflict, error) {
	if c.TherapistID == nil {
		return nil, nil
	}

	var out []Conflict
	overlapping := d.idx.QueryOverlapping(date, c.StartTime, c.Duration, ResourceFilter{
		TherapistID: c.TherapistID,
		ExcludeID:   opts.excludeID,
	})
	for _, other := range overlapping {
		out = append(out, Conflict{
			Type:                   ConflictTherapistUnavailable,
			Severity:               SeverityError,
			CanOverride:            true,
			Date:                   date,
			ConflictingAppointment: other,
			Description: fmt.Sprintf("therapist is booked at %s-%s",
				other.StartTime, other.EndTime()),
		})
	}

	avail, err := d.repo.GetTherapistAvailability(ctx, *c.TherapistID, date)
	if err != nil {
		if errors.Is(err, ErrTherapistNotFound) {
			return out, nil
		}
		return nil, fmt.Errorf("load therapist availability: %w", err)
	}
	if avail != nil {
		switch {
		case avail.OffDuty:
			out = append(out, Conflict{
				Type:        ConflictTherapistUnavailable,
				Severity:    SeverityError,
				CanOverride: true,
				Date:        date,
				Description: "therapist is off duty on this date",
			})
		case c.StartTime < avail.Start || c.EndTime() > avail.End:
			out = append(out, Conflict{
				Type:        ConflictTherapistUnavailable,
				Severity:    SeverityError,
				CanOverride: true,
				Date:        date,
				Description: fmt.Sprintf("therapist works %s-%s on this date", avail.Start, avail.End),
			})
		}
	}

	return out, nil
}

// Rule 4: RoomUnavailable (Error, overridable). Overlapping booking for
// the assigned room; rooms with capacity above one only conflict when the
// concurrent session count reaches capacity.
func (d *Detector) checkRoom(ctx context.Context, c *Appointment, date Date, opts checkOptions) ([]Conflict, error) {
	if c.RoomID == nil {
		return nil, nil
	}

	overlapping := d.idx.QueryOverlapping(date, c.StartTime, c.Duration, ResourceFilter{
		RoomID:    c.RoomID,
		ExcludeID: opts.excludeID,
	})
	if len(overlapping) == 0 {
		return nil, nil
	}

	capacity := 1
	room, err := d.repo.GetRoom(ctx, *c.RoomID)
	if err != nil && !errors.Is(err, ErrRoomNotFound) {
		return nil, fmt.Errorf("load room: %w", err)
	}
	if room != nil && room.Capacity > 0 {
		capacity = room.Capacity
	}
	if len(overlapping) < capacity {
		return nil, nil
	}

	other := overlapping[0]
	return []Conflict{{
		Type:                   ConflictRoomUnavailable,
		Severity:               SeverityError,
		CanOverride:            true,
		Date:                   date,
		ConflictingAppointment: other,
		Description: fmt.Sprintf("room is at capacity (%d) between %s and %s",
			capacity, other.StartTime, other.EndTime()),
	}}, nil
}

// Rule 5: EquipmentUnavailable (Warning, overridable). A requested piece
// of equipment is reserved by an overlapping appointment.
func (d *Detector) checkEquipment(c *Appointment, date Date, opts checkOptions) []Conflict {
	if len(c.Equipment) == 0 {
		return nil
	}
	requested := make(map[string]bool, len(c.Equipment))
	for _, eq := range c.Equipment {
		requested[eq] = true
	}

	overlapping := d.idx.QueryOverlapping(date, c.StartTime, c.Duration, ResourceFilter{ExcludeID: opts.excludeID})
	var out []Conflict
	for _, other := range overlapping {
		for _, eq := range other.Equipment {
			if requested[eq] {
				out = append(out, Conflict{
					Type:                   ConflictEquipmentUnavailable,
					Severity:               SeverityWarning,
					CanOverride:            true,
					Date:                   date,
					ConflictingAppointment: other,
					Description:            fmt.Sprintf("equipment %q is reserved at %s-%s", eq, other.StartTime, other.EndTime()),
				})
				break
			}
		}
	}
	return out
}

// Rule 6: InsufficientBufferTime (Warning, overridable). Gap to the
// neighbouring appointment for the same therapist or room is below the
// configured buffer. Disabled when the buffer is zero.
func (d *Detector) checkBuffer(c *Appointment, date Date, opts checkOptions) []Conflict {
	buffer := d.settings.BufferMinutes
	if buffer <= 0 {
		return nil
	}

	var out []Conflict
	seen := make(map[uuid.UUID]bool)

	for _, filter := range []ResourceFilter{
		{TherapistID: c.TherapistID, ExcludeID: opts.excludeID},
		{RoomID: c.RoomID, ExcludeID: opts.excludeID},
	} {
		if filter.TherapistID == nil && filter.RoomID == nil {
			continue
		}
		// Widen the query by the buffer on both sides; anything already
		// overlapping is rule 3/4 territory, not a buffer violation.
		widenedStart := c.StartTime.Add(-buffer)
		for _, other := range d.idx.QueryOverlapping(date, widenedStart, c.Duration+2*buffer, filter) {
			if seen[other.ID] {
				continue
			}
			if Overlaps(c.StartTime, c.Duration, other.StartTime, other.Duration) {
				continue
			}
			seen[other.ID] = true
			out = append(out, Conflict{
				Type:                   ConflictInsufficientBufferTime,
				Severity:               SeverityWarning,
				CanOverride:            true,
				Date:                   date,
				ConflictingAppointment: other,
				Description: fmt.Sprintf("less than %d minutes gap to the %s-%s appointment",
					buffer, other.StartTime, other.EndTime()),
			})
		}
	}
	return out
}

// Rule 7: PatientConflict (Info, never blocking). The patient has another
// appointment the same day at a non-overlapping time.
func (d *Detector) checkPatientSameDay(c *Appointment, date Date, opts checkOptions) []Conflict {
	patientID := c.PatientID
	sameDay := d.idx.QueryDay(date, ResourceFilter{PatientID: &patientID, ExcludeID: opts.excludeID})

	var out []Conflict
	for _, other := range sameDay {
		if Overlaps(c.StartTime, c.Duration, other.StartTime, other.Duration) {
			continue // already a double booking
		}
		out = append(out, Conflict{
			Type:                   ConflictPatientConflict,
			Severity:               SeverityInfo,
			CanOverride:            true,
			Date:                   date,
			ConflictingAppointment: other,
			Description: fmt.Sprintf("patient has another appointment at %s the same day",
				other.StartTime),
		})
	}
	return out
}
