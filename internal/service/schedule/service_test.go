package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medimeet/telehealth-api/internal/cache"
	"github.com/medimeet/telehealth-api/internal/model"
	"github.com/medimeet/telehealth-api/internal/repository/memory"
	"github.com/medimeet/telehealth-api/pkg/apperror"
	"github.com/medimeet/telehealth-api/pkg/metrics"
)

var testMetrics = metrics.New("schedule_test")

func newTestService(store *memory.Store, now time.Time) *Service {
	svc := NewService(store, cache.NopSlotCache{}, testMetrics)
	svc.now = func() time.Time { return now }
	return svc
}

func seedDoctor(store *memory.Store) *model.User {
	verified := model.VerificationVerified
	return store.AddUser(&model.User{
		Role:               model.RoleDoctor,
		Email:              "doctor@example.com",
		VerificationStatus: &verified,
	})
}

func at(day time.Time, hour, min int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, time.UTC)
}

func TestGetAvailableSlotsCoversHorizon(t *testing.T) {
	store := memory.NewStore()
	doctor := seedDoctor(store)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	store.AddAvailability(&model.Availability{
		DoctorID:  doctor.ID,
		StartTime: at(now, 9, 0),
		EndTime:   at(now, 10, 0),
	})

	days, err := newTestService(store, now).GetAvailableSlots(context.Background(), doctor.ID)
	require.NoError(t, err)
	require.Len(t, days, HorizonDays)

	assert.Equal(t, "2026-03-02", days[0].Date)
	assert.Equal(t, "2026-03-05", days[3].Date)
	for _, day := range days {
		require.Len(t, day.Slots, 2, "a one hour window yields two slots on %s", day.Date)
		assert.Equal(t, SlotDuration, day.Slots[0].EndTime.Sub(day.Slots[0].StartTime))
	}
	assert.Equal(t, "9:00 AM - 9:30 AM", days[0].Slots[0].Formatted)
}

func TestGetAvailableSlotsFiltersBookedSlots(t *testing.T) {
	store := memory.NewStore()
	doctor := seedDoctor(store)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	store.AddAvailability(&model.Availability{
		DoctorID:  doctor.ID,
		StartTime: at(now, 9, 0),
		EndTime:   at(now, 10, 0),
	})
	// A 09:15-09:45 appointment straddles both candidate slots.
	store.AddAppointment(&model.Appointment{
		DoctorID:  doctor.ID,
		PatientID: uuid.New(),
		StartTime: at(now, 9, 15),
		EndTime:   at(now, 9, 45),
	})

	days, err := newTestService(store, now).GetAvailableSlots(context.Background(), doctor.ID)
	require.NoError(t, err)

	assert.Empty(t, days[0].Slots, "both slots conflict with the appointment")
	assert.Len(t, days[1].Slots, 2, "other days are unaffected")
}

func TestGetAvailableSlotsKeepsBoundaryAdjacentSlot(t *testing.T) {
	store := memory.NewStore()
	doctor := seedDoctor(store)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	store.AddAvailability(&model.Availability{
		DoctorID:  doctor.ID,
		StartTime: at(now, 9, 0),
		EndTime:   at(now, 10, 0),
	})
	// Ends exactly where the next slot starts; a shared boundary is not a
	// conflict.
	store.AddAppointment(&model.Appointment{
		DoctorID:  doctor.ID,
		PatientID: uuid.New(),
		StartTime: at(now, 9, 0),
		EndTime:   at(now, 9, 30),
	})

	days, err := newTestService(store, now).GetAvailableSlots(context.Background(), doctor.ID)
	require.NoError(t, err)

	require.Len(t, days[0].Slots, 1)
	assert.Equal(t, at(now, 9, 30), days[0].Slots[0].StartTime)
}

func TestGetAvailableSlotsIgnoresCancelledAppointments(t *testing.T) {
	store := memory.NewStore()
	doctor := seedDoctor(store)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	store.AddAvailability(&model.Availability{
		DoctorID:  doctor.ID,
		StartTime: at(now, 9, 0),
		EndTime:   at(now, 10, 0),
	})
	store.AddAppointment(&model.Appointment{
		DoctorID:  doctor.ID,
		PatientID: uuid.New(),
		StartTime: at(now, 9, 0),
		EndTime:   at(now, 9, 30),
		Status:    model.AppointmentStatusCancelled,
	})

	days, err := newTestService(store, now).GetAvailableSlots(context.Background(), doctor.ID)
	require.NoError(t, err)
	assert.Len(t, days[0].Slots, 2, "cancelled appointments free their slot")
}

func TestGetAvailableSlotsExcludesPastSlots(t *testing.T) {
	store := memory.NewStore()
	doctor := seedDoctor(store)
	now := time.Date(2026, 3, 2, 9, 20, 0, 0, time.UTC)

	store.AddAvailability(&model.Availability{
		DoctorID:  doctor.ID,
		StartTime: at(now, 9, 0),
		EndTime:   at(now, 10, 0),
	})

	days, err := newTestService(store, now).GetAvailableSlots(context.Background(), doctor.ID)
	require.NoError(t, err)

	require.Len(t, days[0].Slots, 1, "the 9:00 slot already started")
	assert.Equal(t, at(now, 9, 30), days[0].Slots[0].StartTime)
	assert.Len(t, days[1].Slots, 2)
}

func TestGetAvailableSlotsPartialTrailingSlotDropped(t *testing.T) {
	store := memory.NewStore()
	doctor := seedDoctor(store)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	// 45 minutes only fits one whole slot.
	store.AddAvailability(&model.Availability{
		DoctorID:  doctor.ID,
		StartTime: at(now, 9, 0),
		EndTime:   at(now, 9, 45),
	})

	days, err := newTestService(store, now).GetAvailableSlots(context.Background(), doctor.ID)
	require.NoError(t, err)

	require.Len(t, days[0].Slots, 1)
	assert.Equal(t, at(now, 9, 0), days[0].Slots[0].StartTime)
	assert.Equal(t, at(now, 9, 30), days[0].Slots[0].EndTime)
}

func TestGetAvailableSlotsNoAvailability(t *testing.T) {
	store := memory.NewStore()
	doctor := seedDoctor(store)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	_, err := newTestService(store, now).GetAvailableSlots(context.Background(), doctor.ID)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeNotFound, apperror.CodeOf(err))
}

func TestGetAvailableSlotsUnverifiedDoctor(t *testing.T) {
	store := memory.NewStore()
	pending := model.VerificationPending
	doctor := store.AddUser(&model.User{
		Role:               model.RoleDoctor,
		VerificationStatus: &pending,
	})
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	_, err := newTestService(store, now).GetAvailableSlots(context.Background(), doctor.ID)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeNotFound, apperror.CodeOf(err))
}
