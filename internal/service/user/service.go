package user

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medimeet/telehealth-api/internal/model"
	"github.com/medimeet/telehealth-api/internal/repository"
	"github.com/medimeet/telehealth-api/pkg/apperror"
	"github.com/medimeet/telehealth-api/pkg/identity"
)

type Service struct {
	store  repository.Store
	logger zerolog.Logger
}

func NewService(store repository.Store, logger zerolog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// EnsureUser maps an authenticated identity to a local user row, creating
// it on first sight. New users start UNASSIGNED with zero credits and a
// free-tier marker entry in the ledger so later allocations have a
// baseline to compare against.
func (s *Service) EnsureUser(ctx context.Context, claims *identity.Claims) (*model.User, error) {
	existing, err := s.store.Users().GetByExternalID(ctx, claims.ExternalID)
	if err == nil {
		return existing, nil
	}
	if apperror.CodeOf(err) != apperror.CodeNotFound {
		return nil, err
	}

	created := &model.User{
		ExternalID: claims.ExternalID,
		Email:      claims.Email,
		Name:       claims.Name,
		Role:       model.RoleUnassigned,
	}
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Users().Create(ctx, created); err != nil {
			return err
		}
		return tx.Ledger().Allocate(ctx, created.ID, model.PlanFree, 0)
	})
	if err != nil {
		// A concurrent first request may have created the row already.
		if apperror.CodeOf(err) == apperror.CodeConflict {
			return s.store.Users().GetByExternalID(ctx, claims.ExternalID)
		}
		return nil, err
	}

	s.logger.Info().
		Str("user_id", created.ID.String()).
		Str("email", created.Email).
		Msg("user created on first sign-in")

	return created, nil
}

// SetRole completes onboarding. The role is chosen exactly once, from
// UNASSIGNED; doctors must supply their credentials and start PENDING
// verification, so they are not bookable until an admin approves them.
func (s *Service) SetRole(ctx context.Context, caller *model.User, req *model.SetRoleRequest) (*model.User, error) {
	if caller.Role != model.RoleUnassigned {
		return nil, apperror.Conflict("role has already been set")
	}

	caller.Role = req.Role
	if req.Role == model.RoleDoctor {
		if req.Specialty == "" || req.CredentialURL == "" {
			return nil, apperror.InvalidInput("specialty and credential_url are required for doctors")
		}
		pending := model.VerificationPending
		caller.Specialty = &req.Specialty
		caller.Experience = &req.Experience
		caller.CredentialURL = &req.CredentialURL
		caller.VerificationStatus = &pending
		if req.Description != "" {
			caller.Description = &req.Description
		}
	}

	if err := s.store.Users().Update(ctx, caller); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", caller.ID.String()).
		Str("role", string(caller.Role)).
		Msg("user role set")

	return caller, nil
}

// ListVerifiedDoctors is the public directory patients browse before
// booking. Only VERIFIED doctors appear; an optional specialty narrows it.
func (s *Service) ListVerifiedDoctors(ctx context.Context, specialty string, page model.Pagination) ([]*model.User, error) {
	return s.store.Users().ListDoctors(ctx, &model.DoctorFilters{
		Specialty:          specialty,
		VerificationStatus: model.VerificationVerified,
		Pagination:         page,
	})
}

// GetDoctor returns a single doctor's public profile.
func (s *Service) GetDoctor(ctx context.Context, doctorID uuid.UUID) (*model.User, error) {
	doctor, err := s.store.Users().Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.IsVerifiedDoctor() {
		return nil, apperror.NotFound("doctor not found or not verified")
	}
	return doctor, nil
}
