package availability

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

// SetAvailability replaces the doctor's unreferenced windows with a new one.
// Windows that an appointment points at survive the replace so the booking
// history stays intact. A doctor gets at most one window per calendar date.
func (s *Service) SetAvailability(ctx context.Context, doctor *model.User, req *model.SetAvailabilityRequest) (*model.Availability, error) {
	if doctor.Role != model.RoleDoctor {
		return nil, apperror.Forbidden("only doctors can set availability")
	}
	if !req.StartTime.Before(req.EndTime) {
		return nil, apperror.InvalidInput("start time must be before end time")
	}

	var created *model.Availability
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Availabilities().DeleteUnreferenced(ctx, doctor.ID); err != nil {
			return err
		}

		exists, err := tx.Availabilities().ExistsForDate(ctx, doctor.ID, req.StartTime)
		if err != nil {
			return err
		}
		if exists {
			return apperror.Conflict("availability already set for this date")
		}

		created = &model.Availability{
			DoctorID:  doctor.ID,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			Status:    model.AvailabilityStatusAvailable,
		}
		return tx.Availabilities().Create(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("doctor_id", doctor.ID.String()).
		Time("start_time", created.StartTime).
		Time("end_time", created.EndTime).
		Msg("availability set")

	return created, nil
}

// ListAvailability returns the doctor's declared windows, newest first.
func (s *Service) ListAvailability(ctx context.Context, doctorID uuid.UUID) ([]*model.Availability, error) {
	return s.store.Availabilities().List(ctx, doctorID)
}
