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

type availabilityRepository struct {
	ext sqlx.ExtContext
}

func (r *availabilityRepository) Create(ctx context.Context, availability *model.Availability) error {
	query := `
		INSERT INTO availabilities (
			id, doctor_id, start_time, end_time, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	availability.ID = uuid.New()
	availability.CreatedAt = time.Now()
	availability.UpdatedAt = time.Now()
	if availability.Status == "" {
		availability.Status = model.AvailabilityStatusAvailable
	}

	_, err := r.ext.ExecContext(ctx, query,
		availability.ID,
		availability.DoctorID,
		availability.StartTime,
		availability.EndTime,
		availability.Status,
		availability.CreatedAt,
		availability.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create availability: %w", err)
	}
	return nil
}

func (r *availabilityRepository) Latest(ctx context.Context, doctorID uuid.UUID) (*model.Availability, error) {
	query := `
		SELECT id, doctor_id, start_time, end_time, status, created_at, updated_at
		FROM availabilities
		WHERE doctor_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var availability model.Availability
	err := sqlx.GetContext(ctx, r.ext, &availability, query, doctorID, model.AvailabilityStatusAvailable)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("no availability set by doctor")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get availability: %w", err)
	}
	return &availability, nil
}

func (r *availabilityRepository) List(ctx context.Context, doctorID uuid.UUID) ([]*model.Availability, error) {
	query := `
		SELECT id, doctor_id, start_time, end_time, status, created_at, updated_at
		FROM availabilities
		WHERE doctor_id = $1
		ORDER BY start_time ASC
	`
	var availabilities []*model.Availability
	err := sqlx.SelectContext(ctx, r.ext, &availabilities, query, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list availabilities: %w", err)
	}
	return availabilities, nil
}

func (r *availabilityRepository) ExistsForDate(ctx context.Context, doctorID uuid.UUID, day time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM availabilities
			WHERE doctor_id = $1 AND start_time::date = $2::date
		)
	`
	var exists bool
	err := sqlx.GetContext(ctx, r.ext, &exists, query, doctorID, day)
	if err != nil {
		return false, fmt.Errorf("failed to check availability date: %w", err)
	}
	return exists, nil
}

func (r *availabilityRepository) DeleteUnreferenced(ctx context.Context, doctorID uuid.UUID) error {
	// Windows an appointment points at must survive a replace.
	query := `
		DELETE FROM availabilities
		WHERE doctor_id = $1
		AND id NOT IN (
			SELECT availability_id FROM appointments
			WHERE doctor_id = $1 AND availability_id IS NOT NULL
		)
	`
	_, err := r.ext.ExecContext(ctx, query, doctorID)
	if err != nil {
		return fmt.Errorf("failed to delete availabilities: %w", err)
	}
	return nil
}
