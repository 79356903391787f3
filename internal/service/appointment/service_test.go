package appointment

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
	"github.com/medimeet/telehealth-api/pkg/metrics"
	"github.com/medimeet/telehealth-api/pkg/video"
)

var testMetrics = metrics.New("appointment_test")

type fakeVideoProvider struct{}

func (fakeVideoProvider) CreateSession(ctx context.Context) (string, error) {
	return "session-1", nil
}

func (fakeVideoProvider) GenerateToken(sessionID string, opts video.TokenOptions) (string, error) {
	return "token-" + sessionID, nil
}

type fixture struct {
	store   *memory.Store
	svc     *Service
	patient *model.User
	doctor  *model.User
	apt     *model.Appointment
}

// newFixture seeds a booked appointment: the patient has paid two credits
// and the doctor holds them.
func newFixture(t *testing.T, start time.Time) *fixture {
	t.Helper()
	store := memory.NewStore()

	patient := store.AddUser(&model.User{Role: model.RolePatient, Email: "patient@example.com", Credits: 2})
	verified := model.VerificationVerified
	doctor := store.AddUser(&model.User{
		Role:               model.RoleDoctor,
		Email:              "doctor@example.com",
		Credits:            2,
		VerificationStatus: &verified,
	})

	sessionID := "session-1"
	apt := store.AddAppointment(&model.Appointment{
		PatientID:      patient.ID,
		DoctorID:       doctor.ID,
		StartTime:      start,
		EndTime:        start.Add(30 * time.Minute),
		Status:         model.AppointmentStatusScheduled,
		VideoSessionID: &sessionID,
	})

	return &fixture{
		store:   store,
		svc:     NewService(store, fakeVideoProvider{}, testMetrics, zerolog.Nop()),
		patient: patient,
		doctor:  doctor,
		apt:     apt,
	}
}

func (f *fixture) setNow(now time.Time) { f.svc.now = func() time.Time { return now } }

func TestCancelRefundsCredits(t *testing.T) {
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, start)

	cancelled, err := f.svc.Cancel(context.Background(), f.patient, f.apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)

	patient, _ := f.store.Users().Get(context.Background(), f.patient.ID)
	doctor, _ := f.store.Users().Get(context.Background(), f.doctor.ID)
	assert.Equal(t, 4, patient.Credits, "the patient gets the two credits back")
	assert.Equal(t, 0, doctor.Credits)

	events := f.store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventAppointmentCancelled, events[0].EventType)
}

func TestCancelByDoctor(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC))

	_, err := f.svc.Cancel(context.Background(), f.doctor, f.apt.ID)
	require.NoError(t, err)
}

func TestCancelTwiceRejected(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC))

	_, err := f.svc.Cancel(context.Background(), f.patient, f.apt.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), f.patient, f.apt.ID)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeConflict, apperror.CodeOf(err))

	// The refund ran exactly once.
	patient, _ := f.store.Users().Get(context.Background(), f.patient.ID)
	assert.Equal(t, 4, patient.Credits)
}

func TestCancelByStrangerForbidden(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC))
	stranger := f.store.AddUser(&model.User{Role: model.RolePatient, Credits: 10})

	_, err := f.svc.Cancel(context.Background(), stranger, f.apt.ID)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeForbidden, apperror.CodeOf(err))
}

func TestCompleteAfterEndTime(t *testing.T) {
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, start)
	f.setNow(start.Add(31 * time.Minute))

	completed, err := f.svc.Complete(context.Background(), f.doctor, f.apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, completed.Status)

	// No credits move on completion.
	doctor, _ := f.store.Users().Get(context.Background(), f.doctor.ID)
	assert.Equal(t, 2, doctor.Credits)
}

func TestCompleteBeforeEndTimeRejected(t *testing.T) {
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, start)
	f.setNow(start.Add(10 * time.Minute))

	_, err := f.svc.Complete(context.Background(), f.doctor, f.apt.ID)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeTooEarly, apperror.CodeOf(err))
}

func TestCompleteByPatientForbidden(t *testing.T) {
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, start)
	f.setNow(start.Add(time.Hour))

	_, err := f.svc.Complete(context.Background(), f.patient, f.apt.ID)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeForbidden, apperror.CodeOf(err))
}

func TestCompleteCancelledRejected(t *testing.T) {
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, start)
	f.setNow(start.Add(time.Hour))

	_, err := f.svc.Cancel(context.Background(), f.patient, f.apt.ID)
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), f.doctor, f.apt.ID)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeConflict, apperror.CodeOf(err))
}

func TestGetVideoTokenWithinWindow(t *testing.T) {
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, start)
	f.setNow(start.Add(-15 * time.Minute))

	apt, err := f.svc.GetVideoToken(context.Background(), f.patient, f.apt.ID)
	require.NoError(t, err)
	require.NotNil(t, apt.VideoSessionToken)
	assert.Equal(t, "token-session-1", *apt.VideoSessionToken)
}

func TestGetVideoTokenTooEarly(t *testing.T) {
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, start)
	f.setNow(start.Add(-31 * time.Minute))

	_, err := f.svc.GetVideoToken(context.Background(), f.patient, f.apt.ID)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeTooEarly, apperror.CodeOf(err))
}

func TestGetVideoTokenAfterGracePeriod(t *testing.T) {
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, start)
	f.setNow(f.apt.EndTime.Add(61 * time.Minute))

	_, err := f.svc.GetVideoToken(context.Background(), f.patient, f.apt.ID)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeTooLate, apperror.CodeOf(err))
}

func TestGetVideoTokenNonParty(t *testing.T) {
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, start)
	f.setNow(start)
	stranger := f.store.AddUser(&model.User{Role: model.RolePatient})

	_, err := f.svc.GetVideoToken(context.Background(), stranger, f.apt.ID)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeForbidden, apperror.CodeOf(err))
}

func TestGetVideoTokenCancelledAppointment(t *testing.T) {
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, start)
	f.setNow(start)

	_, err := f.svc.Cancel(context.Background(), f.patient, f.apt.ID)
	require.NoError(t, err)

	_, err = f.svc.GetVideoToken(context.Background(), f.patient, f.apt.ID)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeConflict, apperror.CodeOf(err))
}

func TestUpdateNotesDoctorOnly(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC))

	apt, err := f.svc.UpdateNotes(context.Background(), f.doctor, f.apt.ID, &model.UpdateNotesRequest{Notes: "follow up in two weeks"})
	require.NoError(t, err)
	require.NotNil(t, apt.Notes)
	assert.Equal(t, "follow up in two weeks", *apt.Notes)

	_, err = f.svc.UpdateNotes(context.Background(), f.patient, f.apt.ID, &model.UpdateNotesRequest{Notes: "x"})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeForbidden, apperror.CodeOf(err))
}

func TestListForUserScopesToRole(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC))

	// An appointment belonging to an unrelated pair.
	f.store.AddAppointment(&model.Appointment{
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		StartTime: time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC),
	})

	forPatient, err := f.svc.ListForUser(context.Background(), f.patient, "", model.Pagination{})
	require.NoError(t, err)
	require.Len(t, forPatient, 1)
	assert.Equal(t, f.apt.ID, forPatient[0].ID)

	forDoctor, err := f.svc.ListForUser(context.Background(), f.doctor, "", model.Pagination{})
	require.NoError(t, err)
	require.Len(t, forDoctor, 1)
}
