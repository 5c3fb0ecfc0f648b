package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "07:00", want: NewTimeOfDay(7, 0)},
		{in: "09:05", want: NewTimeOfDay(9, 5)},
		{in: "19:00", want: NewTimeOfDay(19, 0)},
		{in: "00:00", want: 0},
		{in: "25:00", wantErr: true},
		{in: "09:61", wantErr: true},
		{in: "banana", wantErr: true},
	}

	for _, c := range cases {
		got, err := ParseTimeOfDay(c.in)
		if c.wantErr {
			assert.Error(t, err, c.in)
			continue
		}
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
		assert.Equal(t, c.in, got.String())
	}
}

func TestTimeOfDayJSON(t *testing.T) {
	data, err := json.Marshal(NewTimeOfDay(14, 30))
	require.NoError(t, err)
	assert.Equal(t, `"14:30"`, string(data))

	var parsed TimeOfDay
	require.NoError(t, json.Unmarshal([]byte(`"08:15"`), &parsed))
	assert.Equal(t, NewTimeOfDay(8, 15), parsed)
}

func TestOverlapsSymmetric(t *testing.T) {
	cases := []struct {
		name                 string
		aStart               TimeOfDay
		aDur                 int
		bStart               TimeOfDay
		bDur                 int
		want                 bool
	}{
		{name: "identical", aStart: mustTime("09:00"), aDur: 60, bStart: mustTime("09:00"), bDur: 60, want: true},
		{name: "contained", aStart: mustTime("09:00"), aDur: 60, bStart: mustTime("09:15"), bDur: 15, want: true},
		{name: "partial", aStart: mustTime("09:00"), aDur: 60, bStart: mustTime("09:30"), bDur: 60, want: true},
		{name: "touching is not overlapping", aStart: mustTime("09:00"), aDur: 60, bStart: mustTime("10:00"), bDur: 60, want: false},
		{name: "disjoint", aStart: mustTime("09:00"), aDur: 30, bStart: mustTime("11:00"), bDur: 30, want: false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Overlaps(c.aStart, c.aDur, c.bStart, c.bDur))
			assert.Equal(t, c.want, Overlaps(c.bStart, c.bDur, c.aStart, c.aDur), "must be symmetric")
		})
	}
}

func TestDateArithmetic(t *testing.T) {
	d := mustDate("2025-03-03")
	assert.Equal(t, time.Monday, d.Weekday())
	assert.Equal(t, "2025-03-10", d.AddDays(7).String())
	assert.Equal(t, "2025-02-28", d.AddDays(-3).String())
	assert.Equal(t, 7, d.DaysUntil(d.AddDays(7)))
	assert.Equal(t, -3, d.DaysUntil(d.AddDays(-3)))
}

func TestDateAddMonthsClampsShortMonths(t *testing.T) {
	jan31 := mustDate("2025-01-31")
	assert.Equal(t, "2025-02-28", jan31.AddMonths(1).String())
	assert.Equal(t, "2025-03-31", jan31.AddMonths(2).String())
	assert.Equal(t, "2024-02-29", mustDate("2024-01-31").AddMonths(1).String(), "leap year keeps the 29th")
}

func TestGenerateSlots(t *testing.T) {
	window := WorkingWindow{Open: mustTime("07:00"), Close: mustTime("19:00")}

	slots := GenerateSlots(window, 30, 60)
	require.NotEmpty(t, slots)
	assert.Equal(t, mustTime("07:00"), slots[0].Start)
	last := slots[len(slots)-1]
	assert.Equal(t, mustTime("18:00"), last.Start)
	assert.LessOrEqual(t, int(last.End()), int(window.Close))

	// 07:00..18:00 inclusive at 30-minute steps.
	assert.Len(t, slots, 23)

	// Restartable: a second call yields the same sequence.
	assert.Equal(t, slots, GenerateSlots(window, 30, 60))
}

func TestWorkingWindowContains(t *testing.T) {
	window := WorkingWindow{Open: mustTime("07:00"), Close: mustTime("19:00")}
	assert.True(t, window.Contains(mustTime("07:00"), 60))
	assert.True(t, window.Contains(mustTime("18:00"), 60))
	assert.False(t, window.Contains(mustTime("18:30"), 60), "would end past close")
	assert.False(t, window.Contains(mustTime("06:45"), 30))
}
