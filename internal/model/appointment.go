package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "SCHEDULED"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
	AppointmentStatusCancelled AppointmentStatus = "CANCELLED"
)

// appointmentTransitions is the only source of truth for status changes.
// COMPLETED and CANCELLED are terminal.
var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusScheduled: {AppointmentStatusCompleted, AppointmentStatusCancelled},
}

// CanTransitionTo reports whether a status change is allowed.
func (s AppointmentStatus) CanTransitionTo(target AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions exist from this status.
func (s AppointmentStatus) Terminal() bool {
	return len(appointmentTransitions[s]) == 0
}

type Appointment struct {
	Base
	PatientID uuid.UUID `json:"patient_id" db:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id" db:"doctor_id"`

	// AvailabilityID points at the window the slot came from; it keeps that
	// window alive across availability replacements.
	AvailabilityID *uuid.UUID `json:"-" db:"availability_id"`

	StartTime          time.Time         `json:"start_time" db:"start_time"`
	EndTime            time.Time         `json:"end_time" db:"end_time"`
	Status             AppointmentStatus `json:"status" db:"status"`
	PatientDescription *string           `json:"patient_description,omitempty" db:"patient_description"`
	Notes              *string           `json:"notes,omitempty" db:"notes"`
	VideoSessionID     *string           `json:"video_session_id,omitempty" db:"video_session_id"`
	VideoSessionToken  *string           `json:"-" db:"video_session_token"`
}

// IsParty reports whether the user is the patient or the doctor on the
// appointment. Anyone else may not transition or join it.
func (a *Appointment) IsParty(userID uuid.UUID) bool {
	return a.PatientID == userID || a.DoctorID == userID
}

type BookAppointmentRequest struct {
	DoctorID    uuid.UUID `json:"doctor_id" binding:"required"`
	StartTime   time.Time `json:"start_time" binding:"required"`
	EndTime     time.Time `json:"end_time" binding:"required"`
	Description string    `json:"description" binding:"max=1000"`
}

type UpdateNotesRequest struct {
	Notes string `json:"notes" binding:"required,max=2000"`
}

type AppointmentFilters struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Status    AppointmentStatus
	Pagination
}
