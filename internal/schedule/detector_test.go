package schedule

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckNoConflictsForDisjointAppointments(t *testing.T) {
	f := newFixture(Settings{})
	day := mustDate("2025-03-03")

	f.book(f.patient1, ref(f.therapist1), ref(f.room1), day, mustTime("09:00"), 60)

	candidate := &Appointment{
		PatientID:   f.patient2,
		TherapistID: ref(f.therapist2),
		RoomID:      ref(f.room2),
		Date:        day,
		StartTime:   mustTime("10:00"),
		Duration:    60,
	}

	conflicts, err := f.detector.Check(context.Background(), candidate, []Date{day})
	require.NoError(t, err)
	assert.False(t, ErrorLevel(conflicts), "no shared resource, no overlap: %v", conflicts)
}

func TestCheckDoubleBooking(t *testing.T) {
	f := newFixture(Settings{})
	day := mustDate("2025-03-03")

	// Appointment A: patient P1, therapist T1, 09:00, 60 min.
	a := f.book(f.patient1, ref(f.therapist1), nil, day, mustTime("09:00"), 60)

	// Candidate B: same patient, different therapist, 09:30, 30 min.
	candidate := &Appointment{
		PatientID:   f.patient1,
		TherapistID: ref(f.therapist2),
		Date:        day,
		StartTime:   mustTime("09:30"),
		Duration:    30,
	}

	conflicts, err := f.detector.Check(context.Background(), candidate, []Date{day})
	require.NoError(t, err)

	doubles := conflictsOfType(conflicts, ConflictDoubleBooking)
	require.Len(t, doubles, 1)
	assert.Equal(t, SeverityError, doubles[0].Severity)
	assert.False(t, doubles[0].CanOverride)
	require.NotNil(t, doubles[0].ConflictingAppointment)
	assert.Equal(t, a.ID, doubles[0].ConflictingAppointment.ID)
}

func TestCheckTherapistUnavailable(t *testing.T) {
	f := newFixture(Settings{})
	day := mustDate("2025-03-03")

	a := f.book(f.patient1, ref(f.therapist1), nil, day, mustTime("09:00"), 60)

	// Candidate C: different patient, same therapist T1, 09:15, 30 min.
	candidate := &Appointment{
		PatientID:   f.patient2,
		TherapistID: ref(f.therapist1),
		Date:        day,
		StartTime:   mustTime("09:15"),
		Duration:    30,
	}

	conflicts, err := f.detector.Check(context.Background(), candidate, []Date{day})
	require.NoError(t, err)

	unavailable := conflictsOfType(conflicts, ConflictTherapistUnavailable)
	require.Len(t, unavailable, 1)
	assert.Equal(t, SeverityError, unavailable[0].Severity)
	assert.True(t, unavailable[0].CanOverride)
	require.NotNil(t, unavailable[0].ConflictingAppointment)
	assert.Equal(t, a.ID, unavailable[0].ConflictingAppointment.ID)

	assert.Empty(t, conflictsOfType(conflicts, ConflictDoubleBooking))
}

func TestCheckTherapistOffDuty(t *testing.T) {
	f := newFixture(Settings{})
	day := mustDate("2025-03-03")

	f.repo.PutAvailability(&TherapistAvailability{
		TherapistID: f.therapist1,
		Date:        day,
		OffDuty:     true,
	})

	candidate := &Appointment{
		PatientID:   f.patient1,
		TherapistID: ref(f.therapist1),
		Date:        day,
		StartTime:   mustTime("09:00"),
		Duration:    60,
	}

	conflicts, err := f.detector.Check(context.Background(), candidate, []Date{day})
	require.NoError(t, err)
	require.Len(t, conflictsOfType(conflicts, ConflictTherapistUnavailable), 1)
}

func TestCheckTherapistOutsidePersonalWindow(t *testing.T) {
	f := newFixture(Settings{})
	day := mustDate("2025-03-03")

	f.repo.PutAvailability(&TherapistAvailability{
		TherapistID: f.therapist1,
		Date:        day,
		Start:       mustTime("13:00"),
		End:         mustTime("19:00"),
	})

	candidate := &Appointment{
		PatientID:   f.patient1,
		TherapistID: ref(f.therapist1),
		Date:        day,
		StartTime:   mustTime("09:00"),
		Duration:    60,
	}

	conflicts, err := f.detector.Check(context.Background(), candidate, []Date{day})
	require.NoError(t, err)
	require.Len(t, conflictsOfType(conflicts, ConflictTherapistUnavailable), 1)
}

func TestCheckOutsideWorkingHours(t *testing.T) {
	f := newFixture(Settings{})

	cases := []struct {
		name  string
		date  Date
		start TimeOfDay
	}{
		{name: "before opening", date: mustDate("2025-03-03"), start: mustTime("06:30")},
		{name: "runs past closing", date: mustDate("2025-03-03"), start: mustTime("18:30")},
		{name: "closed weekday", date: mustDate("2025-03-09"), start: mustTime("10:00")}, // Sunday
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			candidate := &Appointment{
				PatientID: f.patient1,
				Date:      c.date,
				StartTime: c.start,
				Duration:  60,
			}
			conflicts, err := f.detector.Check(context.Background(), candidate, []Date{c.date})
			require.NoError(t, err)

			outside := conflictsOfType(conflicts, ConflictOutsideWorkingHours)
			require.Len(t, outside, 1)
			assert.Equal(t, SeverityError, outside[0].Severity)
			assert.True(t, outside[0].CanOverride)
		})
	}
}

func TestCheckRoomAtCapacity(t *testing.T) {
	f := newFixture(Settings{})
	day := mustDate("2025-03-03")

	groupRoom := f.room1
	f.repo.PutRoom(&Room{ID: groupRoom, Name: "Sala Pilates", Capacity: 2})

	f.book(f.patient1, ref(f.therapist1), ref(groupRoom), day, mustTime("09:00"), 60)

	candidate := &Appointment{
		PatientID: f.patient2,
		RoomID:    ref(groupRoom),
		Date:      day,
		StartTime: mustTime("09:00"),
		Duration:  60,
	}

	// One concurrent session in a capacity-2 room: no conflict.
	conflicts, err := f.detector.Check(context.Background(), candidate, []Date{day})
	require.NoError(t, err)
	assert.Empty(t, conflictsOfType(conflicts, ConflictRoomUnavailable))

	// Second concurrent session fills the room.
	f.book(uuid.New(), ref(f.therapist2), ref(groupRoom), day, mustTime("09:00"), 60)
	conflicts, err = f.detector.Check(context.Background(), candidate, []Date{day})
	require.NoError(t, err)
	require.Len(t, conflictsOfType(conflicts, ConflictRoomUnavailable), 1)
}

func TestCheckEquipmentUnavailable(t *testing.T) {
	f := newFixture(Settings{})
	day := mustDate("2025-03-03")

	other := f.book(f.patient1, ref(f.therapist1), ref(f.room1), day, mustTime("09:00"), 60)
	other.Equipment = []string{"ultrassom"}

	candidate := &Appointment{
		PatientID:   f.patient2,
		TherapistID: ref(f.therapist2),
		RoomID:      ref(f.room2),
		Date:        day,
		StartTime:   mustTime("09:30"),
		Duration:    30,
		Equipment:   []string{"ultrassom", "tens"},
	}

	conflicts, err := f.detector.Check(context.Background(), candidate, []Date{day})
	require.NoError(t, err)

	equipment := conflictsOfType(conflicts, ConflictEquipmentUnavailable)
	require.Len(t, equipment, 1)
	assert.Equal(t, SeverityWarning, equipment[0].Severity)
	assert.True(t, equipment[0].CanOverride)
}

func TestCheckInsufficientBuffer(t *testing.T) {
	f := newFixture(Settings{BufferMinutes: 15})
	day := mustDate("2025-03-03")

	f.book(f.patient1, ref(f.therapist1), nil, day, mustTime("09:00"), 60)

	// Back-to-back with the 09:00-10:00 session: zero gap, buffer is 15.
	candidate := &Appointment{
		PatientID:   f.patient2,
		TherapistID: ref(f.therapist1),
		Date:        day,
		StartTime:   mustTime("10:00"),
		Duration:    30,
	}

	conflicts, err := f.detector.Check(context.Background(), candidate, []Date{day})
	require.NoError(t, err)

	buffer := conflictsOfType(conflicts, ConflictInsufficientBufferTime)
	require.Len(t, buffer, 1)
	assert.Equal(t, SeverityWarning, buffer[0].Severity)

	// A 30-minute gap satisfies the buffer.
	candidate.StartTime = mustTime("10:30")
	conflicts, err = f.detector.Check(context.Background(), candidate, []Date{day})
	require.NoError(t, err)
	assert.Empty(t, conflictsOfType(conflicts, ConflictInsufficientBufferTime))
}

func TestCheckPatientSameDayIsInfoOnly(t *testing.T) {
	f := newFixture(Settings{})
	day := mustDate("2025-03-03")

	f.book(f.patient1, ref(f.therapist1), nil, day, mustTime("09:00"), 60)

	candidate := &Appointment{
		PatientID:   f.patient1,
		TherapistID: ref(f.therapist2),
		Date:        day,
		StartTime:   mustTime("15:00"),
		Duration:    60,
	}

	conflicts, err := f.detector.Check(context.Background(), candidate, []Date{day})
	require.NoError(t, err)

	info := conflictsOfType(conflicts, ConflictPatientConflict)
	require.Len(t, info, 1)
	assert.Equal(t, SeverityInfo, info[0].Severity)
	assert.False(t, HasBlocking(conflicts))
}

func TestCheckEvaluatesEachOccurrenceIndependently(t *testing.T) {
	f := newFixture(Settings{})
	monday := mustDate("2025-03-03")
	nextMonday := mustDate("2025-03-10")

	// Only the second occurrence collides.
	f.book(f.patient1, ref(f.therapist1), nil, nextMonday, mustTime("09:00"), 60)

	candidate := &Appointment{
		PatientID:   f.patient2,
		TherapistID: ref(f.therapist1),
		Date:        monday,
		StartTime:   mustTime("09:00"),
		Duration:    60,
	}

	conflicts, err := f.detector.Check(context.Background(), candidate, []Date{monday, nextMonday})
	require.NoError(t, err)

	unavailable := conflictsOfType(conflicts, ConflictTherapistUnavailable)
	require.Len(t, unavailable, 1)
	assert.True(t, unavailable[0].Date.Equal(nextMonday))
}

func TestCheckExcludingIgnoresOwnSlot(t *testing.T) {
	f := newFixture(Settings{})
	day := mustDate("2025-03-03")

	a := f.book(f.patient1, ref(f.therapist1), ref(f.room1), day, mustTime("09:00"), 60)

	moved := *a
	moved.StartTime = mustTime("09:30")

	conflicts, err := f.detector.CheckExcluding(context.Background(), &moved, []Date{day}, a.ID)
	require.NoError(t, err)
	assert.False(t, ErrorLevel(conflicts), "own slot must not count: %v", conflicts)
}
