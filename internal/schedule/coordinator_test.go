package schedule

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitMovesAppointmentAndFreesOldSlot(t *testing.T) {
	f := newFixture(Settings{})
	day := mustDate("2025-03-03")
	ctx := context.Background()

	a := f.book(f.patient1, ref(f.therapist1), ref(f.room1), day, mustTime("09:00"), 60)

	rejected, err := f.coord.Commit(ctx, MoveRequest{
		AppointmentID: a.ID,
		NewDate:       day,
		NewTime:       mustTime("14:00"),
	})
	require.NoError(t, err)
	assert.Empty(t, rejected)

	// Old slot is free again; checking another candidate there reports
	// nothing.
	assert.Empty(t, f.idx.QueryOverlapping(day, mustTime("09:00"), 60, ResourceFilter{}))
	conflicts, err := f.detector.Check(ctx, &Appointment{
		PatientID:   f.patient2,
		TherapistID: ref(f.therapist1),
		RoomID:      ref(f.room1),
		Date:        day,
		StartTime:   mustTime("09:00"),
		Duration:    60,
	}, []Date{day})
	require.NoError(t, err)
	assert.False(t, ErrorLevel(conflicts))

	got := f.idx.QueryOverlapping(day, mustTime("14:00"), 60, ResourceFilter{})
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	stored, err := f.repo.GetAppointmentByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, mustTime("14:00"), stored.StartTime)

	events := f.repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventScheduleCommitted, events[0].EventType)
}

func TestCommitRejectionLeavesIndexUntouched(t *testing.T) {
	f := newFixture(Settings{})
	day := mustDate("2025-03-03")
	ctx := context.Background()

	a := f.book(f.patient1, ref(f.therapist1), nil, day, mustTime("09:00"), 60)
	f.book(f.patient2, ref(f.therapist1), nil, day, mustTime("14:00"), 60)

	rejected, err := f.coord.Commit(ctx, MoveRequest{
		AppointmentID: a.ID,
		NewDate:       day,
		NewTime:       mustTime("14:00"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, rejected, "no override supplied, so the move is rejected")
	assert.NotEmpty(t, conflictsOfType(rejected, ConflictTherapistUnavailable))

	// Nothing moved.
	got := f.idx.QueryOverlapping(day, mustTime("09:00"), 60, ResourceFilter{})
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	stored, err := f.repo.GetAppointmentByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, mustTime("09:00"), stored.StartTime)
	assert.Empty(t, f.repo.Events())
}

func TestCommitHonoursOverride(t *testing.T) {
	f := newFixture(Settings{})
	day := mustDate("2025-03-03")
	ctx := context.Background()

	a := f.book(f.patient1, ref(f.therapist1), nil, day, mustTime("09:00"), 60)
	f.book(f.patient2, ref(f.therapist1), nil, day, mustTime("14:00"), 60)

	rejected, err := f.coord.Commit(ctx, MoveRequest{
		AppointmentID: a.ID,
		NewDate:       day,
		NewTime:       mustTime("14:00"),
		Overrides: []Override{
			{Type: ConflictTherapistUnavailable, Reason: "encaixe urgente"},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, rejected)

	got := f.idx.QueryOverlapping(day, mustTime("14:00"), 60, ResourceFilter{})
	assert.Len(t, got, 2)

	events := f.repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventScheduleOverridden, events[0].EventType)
}

func TestCommitOverrideNeedsReason(t *testing.T) {
	f := newFixture(Settings{})
	day := mustDate("2025-03-03")

	a := f.book(f.patient1, ref(f.therapist1), nil, day, mustTime("09:00"), 60)
	f.book(f.patient2, ref(f.therapist1), nil, day, mustTime("14:00"), 60)

	rejected, err := f.coord.Commit(context.Background(), MoveRequest{
		AppointmentID: a.ID,
		NewDate:       day,
		NewTime:       mustTime("14:00"),
		Overrides: []Override{
			{Type: ConflictTherapistUnavailable}, // missing reason
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rejected)
}

func TestCommitDoubleBookingCannotBeOverridden(t *testing.T) {
	f := newFixture(Settings{})
	day := mustDate("2025-03-03")

	a := f.book(f.patient1, ref(f.therapist1), nil, day, mustTime("09:00"), 60)
	f.book(f.patient1, ref(f.therapist2), nil, day, mustTime("14:00"), 60)

	rejected, err := f.coord.Commit(context.Background(), MoveRequest{
		AppointmentID: a.ID,
		NewDate:       day,
		NewTime:       mustTime("14:00"),
		Overrides: []Override{
			{Type: ConflictDoubleBooking, Reason: "tentativa"},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, rejected)
	assert.NotEmpty(t, conflictsOfType(rejected, ConflictDoubleBooking))
}

func TestCommitChangesResources(t *testing.T) {
	f := newFixture(Settings{})
	day := mustDate("2025-03-03")
	ctx := context.Background()

	a := f.book(f.patient1, ref(f.therapist1), ref(f.room1), day, mustTime("09:00"), 60)

	rejected, err := f.coord.Commit(ctx, MoveRequest{
		AppointmentID:  a.ID,
		NewDate:        day,
		NewTime:        mustTime("09:00"),
		NewTherapistID: ref(f.therapist2),
		NewRoomID:      ref(f.room2),
	})
	require.NoError(t, err)
	assert.Empty(t, rejected)

	stored, err := f.repo.GetAppointmentByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.TherapistID)
	assert.Equal(t, f.therapist2, *stored.TherapistID)
	require.NotNil(t, stored.RoomID)
	assert.Equal(t, f.room2, *stored.RoomID)

	therapistID := f.therapist2
	got := f.idx.QueryOverlapping(day, mustTime("09:00"), 60, ResourceFilter{TherapistID: &therapistID})
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
}

func TestValidateIsReadOnly(t *testing.T) {
	f := newFixture(Settings{})
	day := mustDate("2025-03-03")

	a := f.book(f.patient1, ref(f.therapist1), nil, day, mustTime("09:00"), 60)
	f.book(f.patient2, ref(f.therapist1), nil, day, mustTime("14:00"), 60)

	conflicts, err := f.coord.Validate(context.Background(), MoveRequest{
		AppointmentID: a.ID,
		NewDate:       day,
		NewTime:       mustTime("14:00"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, conflicts)

	// The appointment has not moved.
	got := f.idx.QueryOverlapping(day, mustTime("09:00"), 60, ResourceFilter{})
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
}

func TestValidateExcludesOwnSlot(t *testing.T) {
	f := newFixture(Settings{})
	day := mustDate("2025-03-03")

	a := f.book(f.patient1, ref(f.therapist1), ref(f.room1), day, mustTime("09:00"), 60)

	// Shifting 30 minutes overlaps the current slot; that must not count
	// as a conflict with itself.
	conflicts, err := f.coord.Validate(context.Background(), MoveRequest{
		AppointmentID: a.ID,
		NewDate:       day,
		NewTime:       mustTime("09:30"),
	})
	require.NoError(t, err)
	assert.False(t, ErrorLevel(conflicts), "unexpected: %v", conflicts)
}

func TestCommitRaceOnlyOneWinsTheSlot(t *testing.T) {
	f := newFixture(Settings{})
	day := mustDate("2025-03-03")
	ctx := context.Background()

	a := f.book(f.patient1, ref(f.therapist1), nil, day, mustTime("09:00"), 60)
	b := f.book(f.patient2, ref(f.therapist1), nil, day, mustTime("11:00"), 60)

	var wg sync.WaitGroup
	results := make([][]Conflict, 2)
	errs := make([]error, 2)
	for i, appt := range []*Appointment{a, b} {
		wg.Add(1)
		go func(i int, appt *Appointment) {
			defer wg.Done()
			results[i], errs[i] = f.coord.Commit(ctx, MoveRequest{
				AppointmentID: appt.ID,
				NewDate:       day,
				NewTime:       mustTime("14:00"),
			})
		}(i, appt)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	wins := 0
	for _, rejected := range results {
		if len(rejected) == 0 {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one commit may claim the 14:00 slot")

	therapistID := f.therapist1
	got := f.idx.QueryOverlapping(day, mustTime("14:00"), 60, ResourceFilter{TherapistID: &therapistID})
	assert.Len(t, got, 1)
}

func TestMoveSeriesAllOrNothing(t *testing.T) {
	f := newFixture(Settings{})
	ctx := context.Background()

	created, rejected, err := f.svc.Create(ctx, &Appointment{
		PatientID:   f.patient1,
		TherapistID: ref(f.therapist1),
		Date:        mustDate("2025-03-03"),
		StartTime:   mustTime("09:00"),
		Duration:    60,
		Type:        TypeFisioterapia,
		Recurrence: &RecurrencePattern{
			Type:           RecurrenceWeekly,
			Frequency:      1,
			MaxOccurrences: 3,
		},
	}, nil)
	require.NoError(t, err)
	require.Empty(t, rejected)
	require.Len(t, created, 3)
	require.NotNil(t, created[0].SeriesID)
	seriesID := *created[0].SeriesID

	// Block the target slot on the middle occurrence only.
	f.book(f.patient2, ref(f.therapist1), nil, mustDate("2025-03-10"), mustTime("14:00"), 60)

	rejected, err = f.coord.MoveSeries(ctx, seriesID, 0, mustTime("14:00"), nil)
	require.NoError(t, err)
	require.NotEmpty(t, rejected, "one blocked occurrence rejects the whole series")

	// No member moved.
	for _, occ := range created {
		stored, err := f.repo.GetAppointmentByID(ctx, occ.ID)
		require.NoError(t, err)
		assert.Equal(t, mustTime("09:00"), stored.StartTime)
	}

	// With an override for the blocked occurrence the whole series moves.
	rejected, err = f.coord.MoveSeries(ctx, seriesID, 0, mustTime("14:00"), []Override{
		{Type: ConflictTherapistUnavailable, Reason: "remanejamento da agenda"},
	})
	require.NoError(t, err)
	assert.Empty(t, rejected)

	for _, occ := range created {
		stored, err := f.repo.GetAppointmentByID(ctx, occ.ID)
		require.NoError(t, err)
		assert.Equal(t, mustTime("14:00"), stored.StartTime)
	}
}

func TestMoveSeriesShiftsDates(t *testing.T) {
	f := newFixture(Settings{})
	ctx := context.Background()

	created, rejected, err := f.svc.Create(ctx, &Appointment{
		PatientID:   f.patient1,
		TherapistID: ref(f.therapist1),
		Date:        mustDate("2025-03-03"),
		StartTime:   mustTime("09:00"),
		Duration:    60,
		Type:        TypeFisioterapia,
		Recurrence: &RecurrencePattern{
			Type:           RecurrenceWeekly,
			Frequency:      1,
			MaxOccurrences: 2,
		},
	}, nil)
	require.NoError(t, err)
	require.Empty(t, rejected)
	require.Len(t, created, 2)

	rejected, err = f.coord.MoveSeries(ctx, *created[0].SeriesID, 1, mustTime("10:00"), nil)
	require.NoError(t, err)
	require.Empty(t, rejected)

	for i, wantDate := range dates("2025-03-04", "2025-03-11") {
		stored, err := f.repo.GetAppointmentByID(ctx, created[i].ID)
		require.NoError(t, err)
		assert.True(t, stored.Date.Equal(wantDate))
		assert.Equal(t, mustTime("10:00"), stored.StartTime)
	}
}

func TestMoveSeriesUnknownSeries(t *testing.T) {
	f := newFixture(Settings{})
	_, err := f.coord.MoveSeries(context.Background(), uuid.New(), 1, mustTime("10:00"), nil)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCancelKeepsRowButFreesSlot(t *testing.T) {
	f := newFixture(Settings{})
	day := mustDate("2025-03-03")
	ctx := context.Background()

	a := f.book(f.patient1, ref(f.therapist1), ref(f.room1), day, mustTime("09:00"), 60)

	require.NoError(t, f.coord.Cancel(ctx, a.ID, "paciente desmarcou"))

	assert.Nil(t, f.idx.Get(a.ID))
	assert.Empty(t, f.idx.QueryOverlapping(day, mustTime("09:00"), 60, ResourceFilter{}))

	stored, err := f.repo.GetAppointmentByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)

	events := f.repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventAppointmentCancelled, events[0].EventType)

	// The freed slot is immediately bookable.
	conflicts, err := f.detector.Check(ctx, &Appointment{
		PatientID:   f.patient2,
		TherapistID: ref(f.therapist1),
		RoomID:      ref(f.room1),
		Date:        day,
		StartTime:   mustTime("09:00"),
		Duration:    60,
	}, []Date{day})
	require.NoError(t, err)
	assert.False(t, ErrorLevel(conflicts))
}

func TestCancelUnknownAppointment(t *testing.T) {
	f := newFixture(Settings{})
	err := f.coord.Cancel(context.Background(), uuid.New(), "")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}
