package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medimeet/telehealth-api/internal/model"
	"github.com/medimeet/telehealth-api/pkg/apperror"
)

type appointmentRepository struct {
	ext sqlx.ExtContext
}

const appointmentColumns = `
	id, patient_id, doctor_id, availability_id, start_time, end_time, status,
	patient_description, notes, video_session_id, video_session_token,
	created_at, updated_at
`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, availability_id, start_time, end_time, status,
			patient_description, notes, video_session_id, video_session_token,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	appointment.ID = uuid.New()
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = time.Now()

	_, err := r.ext.ExecContext(ctx, query,
		appointment.ID,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.AvailabilityID,
		appointment.StartTime,
		appointment.EndTime,
		appointment.Status,
		appointment.PatientDescription,
		appointment.Notes,
		appointment.VideoSessionID,
		appointment.VideoSessionToken,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	err := sqlx.GetContext(ctx, r.ext, &appointment, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("appointment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET status = $1, notes = $2, video_session_token = $3, updated_at = $4
		WHERE id = $5
	`
	appointment.UpdatedAt = time.Now()

	result, err := r.ext.ExecContext(ctx, query,
		appointment.Status,
		appointment.Notes,
		appointment.VideoSessionToken,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("appointment not found")
	}
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filters != nil && filters.DoctorID != uuid.Nil {
		query += fmt.Sprintf(" AND doctor_id = $%d", argCount)
		args = append(args, filters.DoctorID)
		argCount++
	}

	if filters != nil && filters.PatientID != uuid.Nil {
		query += fmt.Sprintf(" AND patient_id = $%d", argCount)
		args = append(args, filters.PatientID)
		argCount++
	}

	if filters != nil && filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filters.Status)
		argCount++
	}

	query += " ORDER BY start_time ASC"

	var page model.Pagination
	if filters != nil {
		page = filters.Pagination
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, page.Limit(), page.Offset())

	var appointments []*model.Appointment
	err := sqlx.SelectContext(ctx, r.ext, &appointments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListScheduled(ctx context.Context, doctorID uuid.UUID, until time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1
		AND status = $2
		AND start_time <= $3
		ORDER BY start_time ASC
	`
	var appointments []*model.Appointment
	err := sqlx.SelectContext(ctx, r.ext, &appointments, query,
		doctorID, model.AppointmentStatusScheduled, until)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled appointments: %w", err)
	}
	return appointments, nil
}

// HasOverlap is the SQL form of model.Overlaps, restricted to SCHEDULED
// appointments. Inside a booking transaction this runs after the doctor's
// user row has been locked, so two concurrent bookers cannot both see a
// clear calendar.
func (r *appointmentRepository) HasOverlap(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			AND status = $2
			AND start_time < $4
			AND end_time > $3
		)
	`
	var overlaps bool
	err := sqlx.GetContext(ctx, r.ext, &overlaps, query,
		doctorID, model.AppointmentStatusScheduled, start, end)
	if err != nil {
		return false, fmt.Errorf("failed to check appointment overlap: %w", err)
	}
	return overlaps, nil
}

func (r *appointmentRepository) SetVideoToken(ctx context.Context, id uuid.UUID, token string) error {
	query := `
		UPDATE appointments
		SET video_session_token = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := r.ext.ExecContext(ctx, query, token, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to store video token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("appointment not found")
	}
	return nil
}
