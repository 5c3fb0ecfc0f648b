package schedule

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// linearScanThreshold is the bucket size below which overlap queries use a
// plain scan instead of binary search. Typical clinic load is tens of
// appointments per day, so most buckets stay under it.
const linearScanThreshold = 16

// ResourceFilter narrows an index query. Nil fields match everything.
type ResourceFilter struct {
	PatientID   *uuid.UUID
	TherapistID *uuid.UUID
	RoomID      *uuid.UUID
	ExcludeID   uuid.UUID // skip this appointment, e.g. the one being moved
}

func (f ResourceFilter) matches(a *Appointment) bool {
	if f.ExcludeID != uuid.Nil && a.ID == f.ExcludeID {
		return false
	}
	if f.PatientID != nil && a.PatientID != *f.PatientID {
		return false
	}
	if f.TherapistID != nil && (a.TherapistID == nil || *a.TherapistID != *f.TherapistID) {
		return false
	}
	if f.RoomID != nil && (a.RoomID == nil || *a.RoomID != *f.RoomID) {
		return false
	}
	return true
}

// dayBucket holds one calendar day's active appointments sorted by start
// time. Buckets are immutable: every mutation builds a new bucket and swaps
// it in, so readers holding a bucket never observe a half-built state.
type dayBucket struct {
	appts []*Appointment // sorted by StartTime, then ID for determinism
}

func (b *dayBucket) clone() *dayBucket {
	next := &dayBucket{appts: make([]*Appointment, len(b.appts))}
	copy(next.appts, b.appts)
	return next
}

func (b *dayBucket) sortInPlace() {
	sort.Slice(b.appts, func(i, j int) bool {
		if b.appts[i].StartTime != b.appts[j].StartTime {
			return b.appts[i].StartTime < b.appts[j].StartTime
		}
		return b.appts[i].ID.String() < b.appts[j].ID.String()
	})
}

// AvailabilityIndex maps calendar dates to sorted interval buckets for
// overlap lookup. Single-writer discipline: all mutations go through the
// reschedule coordinator or the creation path; concurrent reads take only
// the map lock for the bucket pointer.
type AvailabilityIndex struct {
	mu   sync.RWMutex
	days map[Date]*dayBucket
	byID map[uuid.UUID]*Appointment
}

func NewAvailabilityIndex() *AvailabilityIndex {
	return &AvailabilityIndex{
		days: make(map[Date]*dayBucket),
		byID: make(map[uuid.UUID]*Appointment),
	}
}

// Add indexes an appointment. Cancelled appointments are ignored so the
// conflict history they represent never blocks a slot.
func (ix *AvailabilityIndex) Add(a *Appointment) {
	if a == nil || !a.Active() {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.addLocked(a)
}

func (ix *AvailabilityIndex) addLocked(a *Appointment) {
	bucket := ix.days[a.Date]
	if bucket == nil {
		bucket = &dayBucket{}
	} else {
		bucket = bucket.clone()
	}
	bucket.appts = append(bucket.appts, a)
	bucket.sortInPlace()
	ix.days[a.Date] = bucket
	ix.byID[a.ID] = a
}

// Remove drops an appointment from the index by ID. No-op when absent.
func (ix *AvailabilityIndex) Remove(id uuid.UUID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(id)
}

func (ix *AvailabilityIndex) removeLocked(id uuid.UUID) {
	a, ok := ix.byID[id]
	if !ok {
		return
	}
	delete(ix.byID, id)

	old := ix.days[a.Date]
	if old == nil {
		return
	}
	next := &dayBucket{appts: make([]*Appointment, 0, len(old.appts))}
	for _, other := range old.appts {
		if other.ID != id {
			next.appts = append(next.appts, other)
		}
	}
	if len(next.appts) == 0 {
		delete(ix.days, a.Date)
	} else {
		ix.days[a.Date] = next
	}
}

// Replace atomically removes the old entry and inserts the new one, so a
// concurrent reader sees either the old slot or the new slot, never both
// and never neither with other mutations interleaved.
func (ix *AvailabilityIndex) Replace(id uuid.UUID, updated *Appointment) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(id)
	if updated != nil && updated.Active() {
		ix.addLocked(updated)
	}
}

// Get returns the indexed appointment by ID, nil when absent.
func (ix *AvailabilityIndex) Get(id uuid.UUID) *Appointment {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.byID[id]
}

// Rebuild replaces the whole index with the given appointments.
func (ix *AvailabilityIndex) Rebuild(appts []*Appointment) {
	days := make(map[Date]*dayBucket)
	byID := make(map[uuid.UUID]*Appointment)
	for _, a := range appts {
		if a == nil || !a.Active() {
			continue
		}
		bucket := days[a.Date]
		if bucket == nil {
			bucket = &dayBucket{}
			days[a.Date] = bucket
		}
		bucket.appts = append(bucket.appts, a)
		byID[a.ID] = a
	}
	for _, bucket := range days {
		bucket.sortInPlace()
	}

	ix.mu.Lock()
	ix.days = days
	ix.byID = byID
	ix.mu.Unlock()
}

// QueryOverlapping returns active appointments on date whose half-open
// interval intersects [start, start+duration), filtered by resource.
// Results keep bucket order (start time ascending).
func (ix *AvailabilityIndex) QueryOverlapping(date Date, start TimeOfDay, duration int, filter ResourceFilter) []*Appointment {
	ix.mu.RLock()
	bucket := ix.days[date]
	ix.mu.RUnlock()
	if bucket == nil {
		return nil
	}

	end := start.Add(duration)
	appts := bucket.appts

	// Binary search for the first entry that could still overlap: entries
	// are sorted by start, so once starts reach end nothing later matches.
	// Earlier entries may still span the range, so the left edge is found
	// by scanning back while durations can reach start; with bounded
	// appointment durations this is cheap, and small buckets skip the
	// search entirely.
	lo := 0
	if len(appts) > linearScanThreshold {
		lo = sort.Search(len(appts), func(i int) bool {
			return appts[i].StartTime.Add(MaxDurationMinutes) > start
		})
	}

	var out []*Appointment
	for _, a := range appts[lo:] {
		if a.StartTime >= end {
			break
		}
		if a.EndTime() <= start {
			continue
		}
		if filter.matches(a) {
			out = append(out, a)
		}
	}
	return out
}

// QueryDay returns all active appointments on a date matching the filter.
func (ix *AvailabilityIndex) QueryDay(date Date, filter ResourceFilter) []*Appointment {
	ix.mu.RLock()
	bucket := ix.days[date]
	ix.mu.RUnlock()
	if bucket == nil {
		return nil
	}
	var out []*Appointment
	for _, a := range bucket.appts {
		if filter.matches(a) {
			out = append(out, a)
		}
	}
	return out
}
