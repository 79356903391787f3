package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medimeet/telehealth-api/internal/model"
	"github.com/medimeet/telehealth-api/pkg/apperror"
)

type userRepository struct {
	ext sqlx.ExtContext
}

const userColumns = `
	id, external_id, email, name, image_url, role, credits,
	specialty, experience, credential_url, description, verification_status,
	created_at, updated_at
`

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, external_id, email, name, image_url, role, credits,
			specialty, experience, credential_url, description, verification_status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	if user.Role == "" {
		user.Role = model.RoleUnassigned
	}

	_, err := r.ext.ExecContext(ctx, query,
		user.ID,
		user.ExternalID,
		user.Email,
		user.Name,
		user.ImageURL,
		user.Role,
		user.Credits,
		user.Specialty,
		user.Experience,
		user.CredentialURL,
		user.Description,
		user.VerificationStatus,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user model.User
	err := sqlx.GetContext(ctx, r.ext, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_id = $1`

	var user model.User
	err := sqlx.GetContext(ctx, r.ext, &user, query, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by external id: %w", err)
	}
	return &user, nil
}

// GetForUpdate locks the given user rows for the duration of the enclosing
// transaction. Rows are locked in ascending id order so two transactions
// touching the same pair cannot deadlock.
func (r *userRepository) GetForUpdate(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*model.User, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]*model.User{}, nil
	}

	ordered := make([]uuid.UUID, len(ids))
	copy(ordered, ids)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].String() < ordered[j].String()
	})

	users := make(map[uuid.UUID]*model.User, len(ordered))
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	for _, id := range ordered {
		var user model.User
		err := sqlx.GetContext(ctx, r.ext, &user, query, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user not found")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to lock user row: %w", err)
		}
		users[user.ID] = &user
	}
	return users, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET email = $1, name = $2, image_url = $3, role = $4,
			specialty = $5, experience = $6, credential_url = $7,
			description = $8, verification_status = $9, updated_at = $10
		WHERE id = $11
	`
	user.UpdatedAt = time.Now()

	result, err := r.ext.ExecContext(ctx, query,
		user.Email,
		user.Name,
		user.ImageURL,
		user.Role,
		user.Specialty,
		user.Experience,
		user.CredentialURL,
		user.Description,
		user.VerificationStatus,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("user not found")
	}
	return nil
}

func (r *userRepository) UpdateVerification(ctx context.Context, doctorID uuid.UUID, status model.VerificationStatus) error {
	query := `
		UPDATE users
		SET verification_status = $1, updated_at = $2
		WHERE id = $3 AND role = $4
	`
	result, err := r.ext.ExecContext(ctx, query, status, time.Now(), doctorID, model.RoleDoctor)
	if err != nil {
		return fmt.Errorf("failed to update verification status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("doctor not found")
	}
	return nil
}

func (r *userRepository) ListDoctors(ctx context.Context, filters *model.DoctorFilters) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1`
	args := []interface{}{model.RoleDoctor}
	argCount := 2

	if filters != nil && filters.VerificationStatus != "" {
		query += fmt.Sprintf(" AND verification_status = $%d", argCount)
		args = append(args, filters.VerificationStatus)
		argCount++
	}

	if filters != nil && filters.Specialty != "" {
		query += fmt.Sprintf(" AND specialty = $%d", argCount)
		args = append(args, filters.Specialty)
		argCount++
	}

	// Pending applications surface newest first for the review queue,
	// everything else oldest first.
	if filters != nil && filters.VerificationStatus == model.VerificationPending {
		query += " ORDER BY created_at DESC"
	} else {
		query += " ORDER BY created_at ASC"
	}

	var page model.Pagination
	if filters != nil {
		page = filters.Pagination
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, page.Limit(), page.Offset())

	var doctors []*model.User
	err := sqlx.SelectContext(ctx, r.ext, &doctors, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}
