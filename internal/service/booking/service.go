package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/medimeet/telehealth-api/internal/model"
	"github.com/medimeet/telehealth-api/internal/repository"
	"github.com/medimeet/telehealth-api/pkg/apperror"
	"github.com/medimeet/telehealth-api/pkg/metrics"
	"github.com/medimeet/telehealth-api/pkg/video"
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

// Book reserves a slot for the patient. The whole operation is one
// transaction: doctor validation, the balance check, the conflict re-check,
// the credit transfer, the appointment insert and the video session all
// commit together or not at all. The caller's slot listing is advisory
// only; the re-check inside the locked transaction is what prevents a
// double booking.
func (s *Service) Book(ctx context.Context, patient *model.User, req *model.BookAppointmentRequest) (*model.Appointment, error) {
	if patient.Role != model.RolePatient {
		return nil, apperror.Forbidden("only patients can book appointments")
	}
	if !req.StartTime.Before(req.EndTime) {
		return nil, apperror.InvalidInput("start time must be before end time")
	}

	timer := prometheus.NewTimer(s.metrics.BookingDuration)
	defer timer.ObserveDuration()

	var appointment *model.Appointment
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		// Locking both user rows serializes bookings per doctor and pins
		// the balances the transfer below relies on.
		users, err := tx.Users().GetForUpdate(ctx, patient.ID, req.DoctorID)
		if err != nil {
			return err
		}

		doctor := users[req.DoctorID]
		if doctor == nil || !doctor.IsVerifiedDoctor() {
			return apperror.NotFound("doctor not found or not verified")
		}

		lockedPatient := users[patient.ID]
		if lockedPatient.Credits < model.AppointmentCreditCost {
			return apperror.InsufficientCredits("insufficient credits to book an appointment")
		}

		overlaps, err := tx.Appointments().HasOverlap(ctx, doctor.ID, req.StartTime, req.EndTime)
		if err != nil {
			return err
		}
		if overlaps {
			return apperror.Conflict("this time slot is already booked")
		}

		if err := tx.Ledger().Transfer(ctx, lockedPatient.ID, doctor.ID,
			model.AppointmentCreditCost, model.TransactionTypeAppointmentDeduction); err != nil {
			return err
		}

		// The session is created inside the transaction boundary: if the
		// provider fails, the credit movement above rolls back with us.
		sessionID, err := s.video.CreateSession(ctx)
		if err != nil {
			return apperror.Upstream("failed to create video session", err)
		}

		appointment = &model.Appointment{
			PatientID:      lockedPatient.ID,
			DoctorID:       doctor.ID,
			AvailabilityID: availabilityRef(ctx, tx, doctor.ID),
			StartTime:      req.StartTime,
			EndTime:        req.EndTime,
			Status:         model.AppointmentStatusScheduled,
			VideoSessionID: &sessionID,
		}
		if req.Description != "" {
			appointment.PatientDescription = &req.Description
		}
		if err := tx.Appointments().Create(ctx, appointment); err != nil {
			return err
		}

		return createEvent(ctx, tx, model.EventAppointmentBooked, appointment, lockedPatient, doctor)
	})
	if err != nil {
		s.observeFailure(err)
		return nil, err
	}

	s.metrics.BookingsTotal.Inc()
	s.logger.Info().
		Str("appointment_id", appointment.ID.String()).
		Str("doctor_id", appointment.DoctorID.String()).
		Time("start_time", appointment.StartTime).
		Msg("appointment booked")

	return appointment, nil
}

// availabilityRef links the appointment to the window the slot came from.
// The reference keeps that window alive when the doctor later replaces
// their availability; a doctor with no current window just leaves it unset.
func availabilityRef(ctx context.Context, tx repository.Store, doctorID uuid.UUID) *uuid.UUID {
	latest, err := tx.Availabilities().Latest(ctx, doctorID)
	if err != nil {
		return nil
	}
	return &latest.ID
}

func (s *Service) observeFailure(err error) {
	code := apperror.CodeOf(err)
	if code == apperror.CodeConflict {
		s.metrics.BookingConflicts.Inc()
	}
	s.metrics.BookingFailures.WithLabelValues(string(code)).Inc()
}

// createEvent appends an outbox row in the caller's transaction so the
// event only ever exists alongside the state change it announces.
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
