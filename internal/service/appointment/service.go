package appointment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medimeet/telehealth-api/internal/model"
	"github.com/medimeet/telehealth-api/internal/repository"
	"github.com/medimeet/telehealth-api/pkg/apperror"
	"github.com/medimeet/telehealth-api/pkg/metrics"
	"github.com/medimeet/telehealth-api/pkg/video"
)

const (
	// tokenLeadWindow is how far before the start time a video token may be
	// requested.
	tokenLeadWindow = 30 * time.Minute
	// tokenGracePeriod keeps tokens valid past the scheduled end so a
	// running call is not cut off at the boundary.
	tokenGracePeriod = time.Hour
)

type Service struct {
	store   repository.Store
	video   video.Provider
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(store repository.Store, provider video.Provider, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		video:   provider,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Cancel moves a SCHEDULED appointment to CANCELLED and refunds the credits
// in the same transaction: the doctor gives back what the patient paid, so
// the systemwide credit sum is unchanged. Either party may cancel.
func (s *Service) Cancel(ctx context.Context, caller *model.User, appointmentID uuid.UUID) (*model.Appointment, error) {
	var appointment *model.Appointment
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		apt, err := tx.Appointments().Get(ctx, appointmentID)
		if err != nil {
			return err
		}
		if !apt.IsParty(caller.ID) {
			return apperror.Forbidden("you are not a party to this appointment")
		}
		if !apt.Status.CanTransitionTo(model.AppointmentStatusCancelled) {
			return apperror.Conflict(fmt.Sprintf("appointment cannot be cancelled from status %s", apt.Status))
		}

		users, err := tx.Users().GetForUpdate(ctx, apt.PatientID, apt.DoctorID)
		if err != nil {
			return err
		}
		patient, doctor := users[apt.PatientID], users[apt.DoctorID]

		// Refund runs in reverse: doctor pays the patient back.
		if err := tx.Ledger().Transfer(ctx, doctor.ID, patient.ID,
			model.AppointmentCreditCost, model.TransactionTypeAppointmentDeduction); err != nil {
			return err
		}

		apt.Status = model.AppointmentStatusCancelled
		if err := tx.Appointments().Update(ctx, apt); err != nil {
			return err
		}
		appointment = apt

		return createEvent(ctx, tx, model.EventAppointmentCancelled, apt, patient, doctor)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AppointmentsByFate.WithLabelValues(string(model.AppointmentStatusCancelled)).Inc()
	s.logger.Info().
		Str("appointment_id", appointment.ID.String()).
		Str("cancelled_by", caller.ID.String()).
		Msg("appointment cancelled")

	return appointment, nil
}

// Complete marks a SCHEDULED appointment COMPLETED. Only the doctor may do
// this, and only once the scheduled end time has passed. Credits do not
// move; the doctor was paid at booking time.
func (s *Service) Complete(ctx context.Context, caller *model.User, appointmentID uuid.UUID) (*model.Appointment, error) {
	var appointment *model.Appointment
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		apt, err := tx.Appointments().Get(ctx, appointmentID)
		if err != nil {
			return err
		}
		if apt.DoctorID != caller.ID {
			return apperror.Forbidden("only the doctor can complete an appointment")
		}
		if !apt.Status.CanTransitionTo(model.AppointmentStatusCompleted) {
			return apperror.Conflict(fmt.Sprintf("appointment cannot be completed from status %s", apt.Status))
		}
		if s.now().Before(apt.EndTime) {
			return apperror.TooEarly("appointment cannot be completed before its end time")
		}

		apt.Status = model.AppointmentStatusCompleted
		if err := tx.Appointments().Update(ctx, apt); err != nil {
			return err
		}
		appointment = apt

		users, err := tx.Users().GetForUpdate(ctx, apt.PatientID, apt.DoctorID)
		if err != nil {
			return err
		}
		return createEvent(ctx, tx, model.EventAppointmentCompleted, apt, users[apt.PatientID], users[apt.DoctorID])
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AppointmentsByFate.WithLabelValues(string(model.AppointmentStatusCompleted)).Inc()
	s.logger.Info().
		Str("appointment_id", appointment.ID.String()).
		Msg("appointment completed")

	return appointment, nil
}

// UpdateNotes lets the doctor attach clinical notes to any of their
// appointments, terminal or not.
func (s *Service) UpdateNotes(ctx context.Context, caller *model.User, appointmentID uuid.UUID, req *model.UpdateNotesRequest) (*model.Appointment, error) {
	apt, err := s.store.Appointments().Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if apt.DoctorID != caller.ID {
		return nil, apperror.Forbidden("only the doctor can add notes")
	}

	apt.Notes = &req.Notes
	if err := s.store.Appointments().Update(ctx, apt); err != nil {
		return nil, err
	}
	return apt, nil
}

// GetVideoToken mints a join token for the appointment's video session.
// Tokens are only issued to a party of a SCHEDULED appointment, no earlier
// than 30 minutes before the start, and they expire one hour after the
// scheduled end.
func (s *Service) GetVideoToken(ctx context.Context, caller *model.User, appointmentID uuid.UUID) (*model.Appointment, error) {
	apt, err := s.store.Appointments().Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !apt.IsParty(caller.ID) {
		return nil, apperror.Forbidden("you are not a party to this appointment")
	}
	if apt.Status != model.AppointmentStatusScheduled {
		return nil, apperror.Conflict("video is only available for scheduled appointments")
	}
	if apt.VideoSessionID == nil {
		return nil, apperror.Conflict("appointment has no video session")
	}

	now := s.now()
	if now.Before(apt.StartTime.Add(-tokenLeadWindow)) {
		return nil, apperror.TooEarly("video token is available 30 minutes before the appointment")
	}
	if !now.Before(apt.EndTime.Add(tokenGracePeriod)) {
		return nil, apperror.TooLate("the video session for this appointment has ended")
	}

	token, err := s.video.GenerateToken(*apt.VideoSessionID, video.TokenOptions{
		ExpiresAt: apt.EndTime.Add(tokenGracePeriod),
		Data:      fmt.Sprintf("user_id=%s", caller.ID),
	})
	if err != nil {
		return nil, apperror.Upstream("failed to generate video token", err)
	}

	if err := s.store.Appointments().SetVideoToken(ctx, apt.ID, token); err != nil {
		return nil, err
	}
	apt.VideoSessionToken = &token

	return apt, nil
}

// Get returns the appointment if the caller is a party to it or an admin.
func (s *Service) Get(ctx context.Context, caller *model.User, appointmentID uuid.UUID) (*model.Appointment, error) {
	apt, err := s.store.Appointments().Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !apt.IsParty(caller.ID) && caller.Role != model.RoleAdmin {
		return nil, apperror.Forbidden("you are not a party to this appointment")
	}
	return apt, nil
}

// ListForUser returns the caller's appointments on their side of the
// relationship, newest first.
func (s *Service) ListForUser(ctx context.Context, caller *model.User, status model.AppointmentStatus, page model.Pagination) ([]*model.Appointment, error) {
	filters := &model.AppointmentFilters{Status: status, Pagination: page}
	switch caller.Role {
	case model.RoleDoctor:
		filters.DoctorID = caller.ID
	case model.RolePatient:
		filters.PatientID = caller.ID
	default:
		return nil, apperror.Forbidden("appointments are only visible to patients and doctors")
	}
	return s.store.Appointments().List(ctx, filters)
}

func createEvent(ctx context.Context, tx repository.Store, eventType string, apt *model.Appointment, patient, doctor *model.User) error {
	payload, err := json.Marshal(model.AppointmentEventPayload{
		AppointmentID: apt.ID,
		PatientID:     apt.PatientID,
		DoctorID:      apt.DoctorID,
		PatientEmail:  patient.Email,
		DoctorEmail:   doctor.Email,
		StartTime:     apt.StartTime,
		EndTime:       apt.EndTime,
	})
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}
	return tx.Outbox().Create(ctx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   payload,
	})
}
