package schedule

import (
	"sort"
	"time"
)

// DefaultExpansionCap bounds recurrence expansion when the caller does not
// supply its own limit, guarding against runaway patterns.
const DefaultExpansionCap = 52

// Expand materializes the occurrence dates of a recurring series starting
// at the anchor date. The result always includes the anchor itself, is
// deterministic, and never exceeds cap entries. Patterns with neither an
// end date nor a max-occurrence bound are rejected.
func Expand(anchor Date, pattern *RecurrencePattern, cap int) ([]Date, error) {
	if pattern == nil {
		return []Date{anchor}, nil
	}
	if (pattern.EndDate == nil || pattern.EndDate.IsZero()) && pattern.MaxOccurrences <= 0 {
		return nil, ErrUnboundedRecurrence
	}
	if cap <= 0 {
		cap = DefaultExpansionCap
	}

	limit := cap
	if pattern.MaxOccurrences > 0 && pattern.MaxOccurrences < limit {
		limit = pattern.MaxOccurrences
	}

	freq := pattern.Frequency
	if freq < 1 {
		freq = 1
	}

	var next func(Date) Date
	switch pattern.Type {
	case RecurrenceDaily:
		next = func(d Date) Date { return d.AddDays(freq) }
	case RecurrenceMonthly:
		// Monthly steps are taken from the anchor's day of month so a
		// clamped occurrence (e.g. Jan 31 -> Feb 28) does not shorten
		// every later month as well.
		anchorDay := anchor
		step := 0
		next = func(Date) Date {
			step++
			return anchorDay.AddMonths(step * freq)
		}
	case RecurrenceWeekly:
		days := pattern.DaysOfWeek
		if len(days) == 0 {
			days = []time.Weekday{anchor.Weekday()}
		}
		next = weeklyStepper(days, freq)
	case RecurrenceCustom:
		next = func(d Date) Date { return d.AddDays(freq) }
	default:
		next = func(d Date) Date { return d.AddDays(freq) }
	}

	occurrences := []Date{anchor}
	current := anchor
	for len(occurrences) < limit {
		current = next(current)
		if pattern.EndDate != nil && current.After(*pattern.EndDate) {
			break
		}
		occurrences = append(occurrences, current)
	}

	return occurrences, nil
}

// weeklyStepper advances to the next matching weekday: the smallest listed
// weekday strictly after the current day within the same week, wrapping to
// the first listed weekday of a following week (frequency weeks ahead when
// the interval is greater than one).
func weeklyStepper(days []time.Weekday, freq int) func(Date) Date {
	sorted := make([]time.Weekday, len(days))
	copy(sorted, days)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return func(d Date) Date {
		wd := d.Weekday()
		for _, candidate := range sorted {
			if candidate > wd {
				return d.AddDays(int(candidate - wd))
			}
		}
		// Wrap to the first listed weekday of the next matching week.
		first := sorted[0]
		daysBack := int(wd - first)
		return d.AddDays(7*freq - daysBack)
	}
}
