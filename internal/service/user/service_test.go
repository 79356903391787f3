package user

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medimeet/telehealth-api/internal/model"
	"github.com/medimeet/telehealth-api/internal/repository/memory"
	"github.com/medimeet/telehealth-api/pkg/apperror"
	"github.com/medimeet/telehealth-api/pkg/identity"
)

func TestEnsureUserCreatesOnFirstSight(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, zerolog.Nop())

	claims := &identity.Claims{ExternalID: "ext-1", Email: "new@example.com", Name: "New User"}
	created, err := svc.EnsureUser(context.Background(), claims)
	require.NoError(t, err)

	assert.Equal(t, model.RoleUnassigned, created.Role)
	assert.Equal(t, 0, created.Credits)
	assert.Equal(t, "new@example.com", created.Email)

	// The free tier marker entry seeds the allocation baseline.
	entries := store.Transactions()
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].Amount)
	require.NotNil(t, entries[0].PackageID)
	assert.Equal(t, model.PlanFree, *entries[0].PackageID)
}

func TestEnsureUserReturnsExisting(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, zerolog.Nop())

	claims := &identity.Claims{ExternalID: "ext-1", Email: "user@example.com", Name: "User"}
	first, err := svc.EnsureUser(context.Background(), claims)
	require.NoError(t, err)

	second, err := svc.EnsureUser(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.Transactions(), 1, "the marker entry is written once")
}

func TestSetRolePatient(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, zerolog.Nop())
	caller := store.AddUser(&model.User{Role: model.RoleUnassigned, ExternalID: "ext-1"})

	updated, err := svc.SetRole(context.Background(), caller, &model.SetRoleRequest{Role: model.RolePatient})
	require.NoError(t, err)
	assert.Equal(t, model.RolePatient, updated.Role)
}

func TestSetRoleDoctorStartsPending(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, zerolog.Nop())
	caller := store.AddUser(&model.User{Role: model.RoleUnassigned, ExternalID: "ext-1"})

	updated, err := svc.SetRole(context.Background(), caller, &model.SetRoleRequest{
		Role:          model.RoleDoctor,
		Specialty:     "Cardiology",
		Experience:    8,
		CredentialURL: "https://example.com/credential.pdf",
	})
	require.NoError(t, err)

	assert.Equal(t, model.RoleDoctor, updated.Role)
	require.NotNil(t, updated.VerificationStatus)
	assert.Equal(t, model.VerificationPending, *updated.VerificationStatus)
	assert.False(t, updated.IsVerifiedDoctor(), "new doctors are not bookable until verified")
}

func TestSetRoleDoctorRequiresCredentials(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, zerolog.Nop())
	caller := store.AddUser(&model.User{Role: model.RoleUnassigned, ExternalID: "ext-1"})

	_, err := svc.SetRole(context.Background(), caller, &model.SetRoleRequest{Role: model.RoleDoctor})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInvalidInput, apperror.CodeOf(err))
}

func TestSetRoleOnlyOnce(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, zerolog.Nop())
	caller := store.AddUser(&model.User{Role: model.RolePatient, ExternalID: "ext-1"})

	_, err := svc.SetRole(context.Background(), caller, &model.SetRoleRequest{Role: model.RoleDoctor})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeConflict, apperror.CodeOf(err))
}

func TestListVerifiedDoctorsExcludesOthers(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, zerolog.Nop())

	verified := model.VerificationVerified
	pending := model.VerificationPending
	cardiology := "Cardiology"

	listed := store.AddUser(&model.User{Role: model.RoleDoctor, VerificationStatus: &verified, Specialty: &cardiology})
	store.AddUser(&model.User{Role: model.RoleDoctor, VerificationStatus: &pending, Specialty: &cardiology})
	store.AddUser(&model.User{Role: model.RolePatient})

	doctors, err := svc.ListVerifiedDoctors(context.Background(), "", model.Pagination{})
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, listed.ID, doctors[0].ID)
}

func TestListVerifiedDoctorsPaginates(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, zerolog.Nop())

	verified := model.VerificationVerified
	for i := 0; i < 3; i++ {
		store.AddUser(&model.User{Role: model.RoleDoctor, VerificationStatus: &verified})
	}

	first, err := svc.ListVerifiedDoctors(context.Background(), "", model.Pagination{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := svc.ListVerifiedDoctors(context.Background(), "", model.Pagination{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, second, 1)

	// No overlap between pages.
	assert.NotEqual(t, first[0].ID, second[0].ID)
	assert.NotEqual(t, first[1].ID, second[0].ID)

	// Past the last page comes back empty, not an error.
	third, err := svc.ListVerifiedDoctors(context.Background(), "", model.Pagination{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, third)
}

func TestGetDoctorHidesUnverified(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, zerolog.Nop())

	pending := model.VerificationPending
	doctor := store.AddUser(&model.User{Role: model.RoleDoctor, VerificationStatus: &pending})

	_, err := svc.GetDoctor(context.Background(), doctor.ID)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeNotFound, apperror.CodeOf(err))
}
