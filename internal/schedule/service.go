package schedule

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ValidationError carries field-level failures detected before any
// conflict search runs.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Service is the scheduling core's entry point for the UI layer and the
// API boundary. It owns the availability index and wires the expander,
// detector, ranker and coordinator together.
type Service struct {
	repo        Repository
	idx         *AvailabilityIndex
	detector    *Detector
	ranker      *Ranker
	coordinator *Coordinator
	settings    Settings
	log         zerolog.Logger
}

func NewService(repo Repository, locker DateLocker, settings Settings, log zerolog.Logger) *Service {
	settings = settings.Normalize()
	idx := NewAvailabilityIndex()
	detector := NewDetector(idx, repo, settings)
	return &Service{
		repo:        repo,
		idx:         idx,
		detector:    detector,
		ranker:      NewRanker(detector, repo, settings),
		coordinator: NewCoordinator(idx, detector, repo, locker, log),
		settings:    settings,
		log:         log,
	}
}

// Index exposes the availability index for bootstrap and tests.
func (s *Service) Index() *AvailabilityIndex { return s.idx }

// LoadWindow builds the index from stored appointments in the date range.
func (s *Service) LoadWindow(ctx context.Context, dr DateRange) error {
	appts, err := s.repo.ListAppointments(ctx, dr, ResourceFilter{})
	if err != nil {
		return fmt.Errorf("list appointments: %w", err)
	}
	s.idx.Rebuild(appts)
	s.log.Info().
		Str("from", dr.From.String()).
		Str("to", dr.To.String()).
		Int("appointments", len(appts)).
		Msg("availability index loaded")
	return nil
}

// Occurrences expands the candidate's recurrence pattern, validating the
// candidate's fields first. A single appointment yields its own date.
func (s *Service) Occurrences(candidate *Appointment) ([]Date, error) {
	if fields := ValidateAppointment(candidate); len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return Expand(candidate.Date, candidate.Recurrence, s.settings.ExpansionCap)
}

// CheckConflicts validates the candidate and evaluates every occurrence.
// Error-level conflict lists are decorated with ranked alternatives so the
// UI can present substitutes alongside the problem.
func (s *Service) CheckConflicts(ctx context.Context, candidate *Appointment) ([]Conflict, error) {
	occurrences, err := s.Occurrences(candidate)
	if err != nil {
		return nil, err
	}
	conflicts, err := s.detector.Check(ctx, candidate, occurrences)
	if err != nil {
		return nil, err
	}
	if ErrorLevel(conflicts) {
		alts, err := s.ranker.Suggest(ctx, candidate, conflicts)
		if err != nil {
			s.log.Warn().Err(err).Msg("alternative search failed, returning conflicts without suggestions")
		} else if len(alts) > 0 {
			for i := range conflicts {
				if conflicts[i].Severity == SeverityError {
					conflicts[i].Alternatives = alts
				}
			}
		}
	}
	return conflicts, nil
}

// SuggestAlternatives ranks substitute slots for a conflicted candidate.
func (s *Service) SuggestAlternatives(ctx context.Context, candidate *Appointment, conflicts []Conflict) ([]AlternativeSlot, error) {
	if fields := ValidateAppointment(candidate); len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return s.ranker.Suggest(ctx, candidate, conflicts)
}

// Create validates, expands and commits a candidate appointment. A
// recurring candidate becomes one row per occurrence sharing a series ID.
// Returned conflicts with a nil error mean the create was rejected.
func (s *Service) Create(ctx context.Context, candidate *Appointment, overrides []Override) ([]*Appointment, []Conflict, error) {
	occurrences, err := s.Occurrences(candidate)
	if err != nil {
		return nil, nil, err
	}
	return s.coordinator.CommitNew(ctx, candidate, occurrences, overrides)
}

// ValidateReschedule is the read-only half of the drag-and-drop protocol.
func (s *Service) ValidateReschedule(ctx context.Context, req MoveRequest) ([]Conflict, error) {
	return s.coordinator.Validate(ctx, req)
}

// CommitReschedule applies a validated move; see Coordinator.Commit.
func (s *Service) CommitReschedule(ctx context.Context, req MoveRequest) ([]Conflict, error) {
	return s.coordinator.Commit(ctx, req)
}

// MoveSeries applies a bulk move to a whole recurring series.
func (s *Service) MoveSeries(ctx context.Context, seriesID uuid.UUID, deltaDays int, newTime TimeOfDay, overrides []Override) ([]Conflict, error) {
	return s.coordinator.MoveSeries(ctx, seriesID, deltaDays, newTime, overrides)
}

// Cancel soft-cancels an appointment.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	return s.coordinator.Cancel(ctx, id, reason)
}
