package schedule

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeOfDay is minutes since midnight. All slot arithmetic is done on
// integer minutes so there is no floating point and no timezone involved.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return NewTimeOfDay(h, m), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) Add(minutes int) TimeOfDay { return t + TimeOfDay(minutes) }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", t.String())), nil
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Date is a calendar day with no time-of-day meaning. Internally it is a
// UTC midnight time.Time so weekday and month arithmetic come from the
// standard library.
type Date struct {
	t time.Time
}

const dateFormat = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) IsZero() bool            { return d.t.IsZero() }
func (d Date) Weekday() time.Weekday   { return d.t.Weekday() }
func (d Date) Before(other Date) bool  { return d.t.Before(other.t) }
func (d Date) After(other Date) bool   { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool   { return d.t.Equal(other.t) }
func (d Date) AddDays(n int) Date      { return DateOf(d.t.AddDate(0, 0, n)) }
func (d Date) String() string          { return d.t.Format(dateFormat) }

// DaysUntil returns the number of calendar days from d to other,
// negative when other is earlier.
func (d Date) DaysUntil(other Date) int {
	return int(other.t.Sub(d.t).Hours() / 24)
}

// AddMonths advances by n calendar months keeping the day of month,
// clamped to the last valid day when the target month is shorter.
func (d Date) AddMonths(n int) Date {
	y, m, day := d.t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return NewDate(first.Year(), first.Month(), day)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", d.String())), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeSlot is a start time plus a duration in minutes. Value type,
// generated over the working window at a fixed granularity.
type TimeSlot struct {
	Start    TimeOfDay `json:"start"`
	Duration int       `json:"duration"`
}

func (s TimeSlot) End() TimeOfDay { return s.Start.Add(s.Duration) }

// Overlaps reports whether two half-open intervals [start, start+duration)
// intersect. Symmetric by construction.
func Overlaps(aStart TimeOfDay, aDuration int, bStart TimeOfDay, bDuration int) bool {
	return aStart < bStart.Add(bDuration) && bStart < aStart.Add(aDuration)
}

// WorkingWindow is the clinic's bookable window for a day.
type WorkingWindow struct {
	Open           TimeOfDay
	Close          TimeOfDay
	ClosedWeekdays map[time.Weekday]bool
}

func (w WorkingWindow) IsClosedOn(d Date) bool {
	return w.ClosedWeekdays[d.Weekday()]
}

// Contains reports whether [start, start+duration) fits inside the window.
func (w WorkingWindow) Contains(start TimeOfDay, duration int) bool {
	return start >= w.Open && start.Add(duration) <= w.Close
}

// GenerateSlots enumerates slots of the given duration over the window at
// granularity-minute steps. The last slot ends exactly at or before close.
func GenerateSlots(window WorkingWindow, granularity, duration int) []TimeSlot {
	if granularity <= 0 || duration <= 0 {
		return nil
	}
	var slots []TimeSlot
	for start := window.Open; start.Add(duration) <= window.Close; start = start.Add(granularity) {
		slots = append(slots, TimeSlot{Start: start, Duration: duration})
	}
	return slots
}
