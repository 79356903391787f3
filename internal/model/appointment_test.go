package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAppointmentStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    AppointmentStatus
		to      AppointmentStatus
		allowed bool
	}{
		{"scheduled to completed", AppointmentStatusScheduled, AppointmentStatusCompleted, true},
		{"scheduled to cancelled", AppointmentStatusScheduled, AppointmentStatusCancelled, true},
		{"completed to cancelled", AppointmentStatusCompleted, AppointmentStatusCancelled, false},
		{"cancelled to completed", AppointmentStatusCancelled, AppointmentStatusCompleted, false},
		{"completed to scheduled", AppointmentStatusCompleted, AppointmentStatusScheduled, false},
		{"cancelled to scheduled", AppointmentStatusCancelled, AppointmentStatusScheduled, false},
		{"scheduled to scheduled", AppointmentStatusScheduled, AppointmentStatusScheduled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestAppointmentStatusTerminal(t *testing.T) {
	assert.False(t, AppointmentStatusScheduled.Terminal())
	assert.True(t, AppointmentStatusCompleted.Terminal())
	assert.True(t, AppointmentStatusCancelled.Terminal())
}

func TestAppointmentIsParty(t *testing.T) {
	patientID := uuid.New()
	doctorID := uuid.New()
	apt := &Appointment{PatientID: patientID, DoctorID: doctorID}

	assert.True(t, apt.IsParty(patientID))
	assert.True(t, apt.IsParty(doctorID))
	assert.False(t, apt.IsParty(uuid.New()))
}
