package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medimeet/telehealth-api/internal/model"
	"github.com/medimeet/telehealth-api/internal/repository/memory"
	"github.com/medimeet/telehealth-api/pkg/apperror"
)

func seedDoctor(store *memory.Store) *model.User {
	verified := model.VerificationVerified
	return store.AddUser(&model.User{Role: model.RoleDoctor, VerificationStatus: &verified})
}

func window(day, startHour, endHour int) *model.SetAvailabilityRequest {
	return &model.SetAvailabilityRequest{
		StartTime: time.Date(2026, 3, day, startHour, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, day, endHour, 0, 0, 0, time.UTC),
	}
}

func TestSetAvailability(t *testing.T) {
	store := memory.NewStore()
	doctor := seedDoctor(store)
	svc := NewService(store, zerolog.Nop())

	created, err := svc.SetAvailability(context.Background(), doctor, window(2, 9, 17))
	require.NoError(t, err)
	assert.Equal(t, model.AvailabilityStatusAvailable, created.Status)
	assert.Equal(t, doctor.ID, created.DoctorID)
}

func TestSetAvailabilityReplacesUnreferenced(t *testing.T) {
	store := memory.NewStore()
	doctor := seedDoctor(store)
	svc := NewService(store, zerolog.Nop())

	_, err := svc.SetAvailability(context.Background(), doctor, window(2, 9, 17))
	require.NoError(t, err)

	// A new window on a different date replaces the old unreferenced one.
	_, err = svc.SetAvailability(context.Background(), doctor, window(3, 10, 16))
	require.NoError(t, err)

	windows, err := svc.ListAvailability(context.Background(), doctor.ID)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, 10, windows[0].StartTime.Hour())
}

func TestSetAvailabilityKeepsReferencedWindows(t *testing.T) {
	store := memory.NewStore()
	doctor := seedDoctor(store)
	svc := NewService(store, zerolog.Nop())

	old, err := svc.SetAvailability(context.Background(), doctor, window(2, 9, 17))
	require.NoError(t, err)

	// An appointment booked from the old window pins it.
	store.AddAppointment(&model.Appointment{
		PatientID:      uuid.New(),
		DoctorID:       doctor.ID,
		AvailabilityID: &old.ID,
		StartTime:      old.StartTime,
		EndTime:        old.StartTime.Add(30 * time.Minute),
	})

	_, err = svc.SetAvailability(context.Background(), doctor, window(3, 10, 16))
	require.NoError(t, err)

	windows, err := svc.ListAvailability(context.Background(), doctor.ID)
	require.NoError(t, err)
	assert.Len(t, windows, 2, "the referenced window survives the replace")
}

func TestSetAvailabilityDuplicateDateRejected(t *testing.T) {
	store := memory.NewStore()
	doctor := seedDoctor(store)
	svc := NewService(store, zerolog.Nop())

	old, err := svc.SetAvailability(context.Background(), doctor, window(2, 9, 17))
	require.NoError(t, err)

	// Pin the existing window so the replace cannot clear it.
	store.AddAppointment(&model.Appointment{
		PatientID:      uuid.New(),
		DoctorID:       doctor.ID,
		AvailabilityID: &old.ID,
		StartTime:      old.StartTime,
		EndTime:        old.StartTime.Add(30 * time.Minute),
	})

	_, err = svc.SetAvailability(context.Background(), doctor, window(2, 10, 16))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeConflict, apperror.CodeOf(err))
}

func TestSetAvailabilityInvalidRange(t *testing.T) {
	store := memory.NewStore()
	doctor := seedDoctor(store)
	svc := NewService(store, zerolog.Nop())

	req := &model.SetAvailabilityRequest{
		StartTime: time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	_, err := svc.SetAvailability(context.Background(), doctor, req)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInvalidInput, apperror.CodeOf(err))
}

func TestSetAvailabilityDoctorOnly(t *testing.T) {
	store := memory.NewStore()
	patient := store.AddUser(&model.User{Role: model.RolePatient})
	svc := NewService(store, zerolog.Nop())

	_, err := svc.SetAvailability(context.Background(), patient, window(2, 9, 17))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeForbidden, apperror.CodeOf(err))
}
