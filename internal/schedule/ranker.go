package schedule

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Ranker searches slots around a conflicted candidate and scores
// substitutes. It reuses the detector in its cheap errors-only mode, so a
// suggested slot never carries a non-overridable conflict.
type Ranker struct {
	detector *Detector
	repo     Repository
	settings Settings
}

func NewRanker(detector *Detector, repo Repository, settings Settings) *Ranker {
	return &Ranker{detector: detector, repo: repo, settings: settings.Normalize()}
}

const (
	scorePerDayOff      = 10
	scorePerSlotOff     = 5
	scoreResourceChange = 15
)

// Suggest produces up to MaxAlternatives ranked substitute slots for the
// candidate. Same-resource slots within the search radius are preferred;
// when none exist, therapists with a matching specialty and rooms with
// matching capacity are tried as substitutions.
func (r *Ranker) Suggest(ctx context.Context, candidate *Appointment, conflicts []Conflict) ([]AlternativeSlot, error) {
	if len(conflicts) == 0 {
		return nil, nil
	}

	alts, err := r.searchSameResource(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if len(alts) == 0 {
		alts, err = r.searchSubstitutes(ctx, candidate)
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(alts, func(i, j int) bool {
		if alts[i].Score != alts[j].Score {
			return alts[i].Score > alts[j].Score
		}
		if !alts[i].Date.Equal(alts[j].Date) {
			return alts[i].Date.Before(alts[j].Date)
		}
		return alts[i].StartTime < alts[j].StartTime
	})

	max := r.settings.MaxAlternatives
	if len(alts) > max {
		alts = alts[:max]
	}
	return alts, nil
}

func (r *Ranker) searchSameResource(ctx context.Context, candidate *Appointment) ([]AlternativeSlot, error) {
	return r.searchWithResources(ctx, candidate, candidate.TherapistID, candidate.RoomID, false)
}

func (r *Ranker) searchSubstitutes(ctx context.Context, candidate *Appointment) ([]AlternativeSlot, error) {
	var out []AlternativeSlot

	if candidate.TherapistID != nil {
		subs, err := r.substituteTherapists(ctx, candidate)
		if err != nil {
			return nil, err
		}
		for _, sub := range subs {
			therapistID := sub
			alts, err := r.searchWithResources(ctx, candidate, &therapistID, candidate.RoomID, true)
			if err != nil {
				return nil, err
			}
			out = append(out, alts...)
		}
	}

	if candidate.RoomID != nil {
		subs, err := r.substituteRooms(ctx, candidate)
		if err != nil {
			return nil, err
		}
		for _, sub := range subs {
			roomID := sub
			alts, err := r.searchWithResources(ctx, candidate, candidate.TherapistID, &roomID, true)
			if err != nil {
				return nil, err
			}
			out = append(out, alts...)
		}
	}

	return out, nil
}

// searchWithResources scans every slot in the radius window with the given
// resource assignment and keeps slots with zero error-level conflicts.
func (r *Ranker) searchWithResources(ctx context.Context, candidate *Appointment, therapistID, roomID *uuid.UUID, resourceChanged bool) ([]AlternativeSlot, error) {
	probe := *candidate
	probe.TherapistID = therapistID
	probe.RoomID = roomID

	slots := GenerateSlots(r.settings.Window, r.settings.SlotGranularity, candidate.Duration)
	radius := r.settings.SearchRadius

	var out []AlternativeSlot
	for offset := -radius; offset <= radius; offset++ {
		date := candidate.Date.AddDays(offset)
		if r.settings.Window.IsClosedOn(date) {
			continue
		}
		for _, slot := range slots {
			if offset == 0 && slot.Start == candidate.StartTime && !resourceChanged {
				continue // the conflicted slot itself
			}
			probe.Date = date
			probe.StartTime = slot.Start

			cs, err := r.detector.check(ctx, &probe, []Date{date}, checkOptions{
				errorsOnly: true,
				excludeID:  candidate.ID,
			})
			if err != nil {
				return nil, fmt.Errorf("probe slot %s %s: %w", date, slot.Start, err)
			}
			if ErrorLevel(cs) {
				continue
			}

			out = append(out, AlternativeSlot{
				Date:        date,
				StartTime:   slot.Start,
				Duration:    candidate.Duration,
				TherapistID: therapistID,
				RoomID:      roomID,
				Score:       r.score(candidate, date, slot.Start, resourceChanged),
			})
		}
	}
	return out, nil
}

// score implements 100 - 10*|days off| - 5*|slots off| - 15*resourceChanged,
// clamped to [0, 100].
func (r *Ranker) score(candidate *Appointment, date Date, start TimeOfDay, resourceChanged bool) int {
	daysOff := candidate.Date.DaysUntil(date)
	if daysOff < 0 {
		daysOff = -daysOff
	}

	slotsOff := (int(start) - int(candidate.StartTime)) / r.settings.SlotGranularity
	if slotsOff < 0 {
		slotsOff = -slotsOff
	}

	score := 100 - scorePerDayOff*daysOff - scorePerSlotOff*slotsOff
	if resourceChanged {
		score -= scoreResourceChange
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// substituteTherapists returns therapists sharing a specialty with the
// candidate's current therapist.
func (r *Ranker) substituteTherapists(ctx context.Context, candidate *Appointment) ([]uuid.UUID, error) {
	current, err := r.repo.ListTherapists(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list therapists: %w", err)
	}

	var specialties map[string]bool
	for _, t := range current {
		if t.ID == *candidate.TherapistID {
			specialties = make(map[string]bool, len(t.Specialties))
			for _, s := range t.Specialties {
				specialties[s] = true
			}
			break
		}
	}

	var out []uuid.UUID
	for _, t := range current {
		if t.ID == *candidate.TherapistID {
			continue
		}
		if specialties == nil {
			out = append(out, t.ID)
			continue
		}
		for _, s := range t.Specialties {
			if specialties[s] {
				out = append(out, t.ID)
				break
			}
		}
	}
	return out, nil
}

// substituteRooms returns rooms with at least the current room's capacity.
func (r *Ranker) substituteRooms(ctx context.Context, candidate *Appointment) ([]uuid.UUID, error) {
	minCapacity := 1
	if room, err := r.repo.GetRoom(ctx, *candidate.RoomID); err == nil && room != nil {
		minCapacity = room.Capacity
	}

	rooms, err := r.repo.ListRooms(ctx, minCapacity)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	var out []uuid.UUID
	for _, room := range rooms {
		if room.ID != *candidate.RoomID {
			out = append(out, room.ID)
		}
	}
	return out, nil
}
