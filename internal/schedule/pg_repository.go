package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository implements Repository on Postgres. Dates are DATE columns,
// times of day are smallint minutes since midnight, matching the core's
// integer time arithmetic.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `
	id, patient_id, therapist_id, room_id, date, start_minutes, duration_minutes,
	type, status, priority, notes, equipment, recurrence, series_id, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a          Appointment
		date       time.Time
		start      int
		recurrence []byte
	)
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.TherapistID,
		&a.RoomID,
		&date,
		&start,
		&a.Duration,
		&a.Type,
		&a.Status,
		&a.Priority,
		&a.Notes,
		&a.Equipment,
		&recurrence,
		&a.SeriesID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	a.Date = DateOf(date)
	a.StartTime = TimeOfDay(start)
	if len(recurrence) > 0 {
		var p RecurrencePattern
		if err := json.Unmarshal(recurrence, &p); err != nil {
			return nil, fmt.Errorf("decode recurrence for %s: %w", a.ID, err)
		}
		a.Recurrence = &p
	}
	return &a, nil
}

func (r *PgRepository) ListAppointments(ctx context.Context, dr DateRange, filter ResourceFilter) ([]*Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE date >= $1 AND date <= $2
		  AND ($3::uuid IS NULL OR patient_id = $3)
		  AND ($4::uuid IS NULL OR therapist_id = $4)
		  AND ($5::uuid IS NULL OR room_id = $5)
		ORDER BY date, start_minutes`

	rows, err := r.pool.Query(ctx, query,
		dr.From.String(), dr.To.String(), filter.PatientID, filter.TherapistID, filter.RoomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		if filter.ExcludeID != uuid.Nil && a.ID == filter.ExcludeID {
			continue
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListSeries(ctx context.Context, seriesID uuid.UUID) ([]*Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE series_id = $1
		ORDER BY date, start_minutes`, seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	var recurrence []byte
	if a.Recurrence != nil {
		data, err := json.Marshal(a.Recurrence)
		if err != nil {
			return fmt.Errorf("encode recurrence: %w", err)
		}
		recurrence = data
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (
			id, patient_id, therapist_id, room_id, date, start_minutes, duration_minutes,
			type, status, priority, notes, equipment, recurrence, series_id, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now(),now())`,
		a.ID, a.PatientID, a.TherapistID, a.RoomID, a.Date.String(), int(a.StartTime), a.Duration,
		a.Type, a.Status, a.Priority, a.Notes, a.Equipment, recurrence, a.SeriesID)
	return err
}

func (r *PgRepository) UpdateAppointmentSchedule(ctx context.Context, id uuid.UUID, date Date, start TimeOfDay, therapistID, roomID *uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET date = $2, start_minutes = $3, therapist_id = $4, room_id = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		id, date.String(), int(start), therapistID, roomID)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+appointmentColumns,
		id, from, to)
	return scanAppointment(row)
}

func (r *PgRepository) GetTherapistAvailability(ctx context.Context, id uuid.UUID, date Date) (*TherapistAvailability, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT therapist_id, date, start_minutes, end_minutes, off_duty
		FROM therapist_availability
		WHERE therapist_id = $1 AND date = $2`, id, date.String())

	var (
		a          TherapistAvailability
		d          time.Time
		start, end int
	)
	err := row.Scan(&a.TherapistID, &d, &start, &end, &a.OffDuty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No row means the clinic-wide window applies.
			return nil, nil
		}
		return nil, err
	}
	a.Date = DateOf(d)
	a.Start = TimeOfDay(start)
	a.End = TimeOfDay(end)
	return &a, nil
}

func (r *PgRepository) GetRoom(ctx context.Context, id uuid.UUID) (*Room, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, capacity, equipment, created_at, updated_at
		FROM rooms
		WHERE id = $1`, id)

	var room Room
	err := row.Scan(&room.ID, &room.Name, &room.Capacity, &room.Equipment, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

func (r *PgRepository) ListTherapists(ctx context.Context, specialty string) ([]*Therapist, error) {
	query := `
		SELECT id, name, specialties, created_at, updated_at
		FROM therapists
		WHERE ($1 = '' OR $1 = ANY(specialties))
		ORDER BY name`

	rows, err := r.pool.Query(ctx, query, specialty)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Therapist
	for rows.Next() {
		var t Therapist
		if err := rows.Scan(&t.ID, &t.Name, &t.Specialties, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *PgRepository) ListRooms(ctx context.Context, minCapacity int) ([]*Room, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, capacity, equipment, created_at, updated_at
		FROM rooms
		WHERE capacity >= $1
		ORDER BY name`, minCapacity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.ID, &room.Name, &room.Capacity, &room.Equipment, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &room)
	}
	return out, rows.Err()
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_log (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, $4)`,
		ev.EventType, ev.AppointmentID, ev.Payload, ev.CreatedAt)
	return err
}
