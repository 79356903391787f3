package admin

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medimeet/telehealth-api/internal/model"
	"github.com/medimeet/telehealth-api/internal/repository"
	"github.com/medimeet/telehealth-api/pkg/apperror"
)

type Service struct {
	store  repository.Store
	logger zerolog.Logger
}

func NewService(store repository.Store, logger zerolog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// ListDoctors returns doctors in the given verification state. PENDING is
// the vetting queue; VERIFIED is the active roster.
func (s *Service) ListDoctors(ctx context.Context, status model.VerificationStatus, page model.Pagination) ([]*model.User, error) {
	return s.store.Users().ListDoctors(ctx, &model.DoctorFilters{
		VerificationStatus: status,
		Pagination:         page,
	})
}

// UpdateVerification resolves a pending doctor application. VERIFIED makes
// the doctor bookable; REJECTED keeps them out of the directory.
func (s *Service) UpdateVerification(ctx context.Context, doctorID uuid.UUID, req *model.UpdateVerificationRequest) error {
	if err := s.store.Users().UpdateVerification(ctx, doctorID, req.Status); err != nil {
		return err
	}
	s.logger.Info().
		Str("doctor_id", doctorID.String()).
		Str("status", string(req.Status)).
		Msg("doctor verification updated")
	return nil
}

// SetSuspended toggles a verified doctor's status. Suspending drops them
// back to PENDING, which removes them from the directory and blocks new
// bookings; unsuspending restores VERIFIED.
func (s *Service) SetSuspended(ctx context.Context, doctorID uuid.UUID, suspend bool) error {
	doctor, err := s.store.Users().Get(ctx, doctorID)
	if err != nil {
		return err
	}
	if doctor.Role != model.RoleDoctor {
		return apperror.NotFound("doctor not found")
	}

	status := model.VerificationVerified
	if suspend {
		status = model.VerificationPending
	}
	if err := s.store.Users().UpdateVerification(ctx, doctorID, status); err != nil {
		return err
	}

	s.logger.Info().
		Str("doctor_id", doctorID.String()).
		Bool("suspended", suspend).
		Msg("doctor suspension changed")
	return nil
}
