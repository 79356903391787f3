package model

// Role identifies what a user can do in the system. New users start
// UNASSIGNED and pick a role during onboarding.
type Role string

const (
	RoleUnassigned Role = "UNASSIGNED"
	RolePatient    Role = "PATIENT"
	RoleDoctor     Role = "DOCTOR"
	RoleAdmin      Role = "ADMIN"
)

// VerificationStatus applies to doctors only.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// User represents a patient, doctor or admin. Identity lives with the
// external provider; ExternalID maps the provider identity 1:1 to this row.
type User struct {
	Base
	ExternalID string  `json:"-" db:"external_id"`
	Email      string  `json:"email" db:"email"`
	Name       string  `json:"name" db:"name"`
	ImageURL   *string `json:"image_url,omitempty" db:"image_url"`
	Role       Role    `json:"role" db:"role"`

	// Credits is the cached balance; the ledger is authoritative.
	Credits int `json:"credits" db:"credits"`

	// Doctor-only fields.
	Specialty          *string             `json:"specialty,omitempty" db:"specialty"`
	Experience         *int                `json:"experience,omitempty" db:"experience"`
	CredentialURL      *string             `json:"credential_url,omitempty" db:"credential_url"`
	Description        *string             `json:"description,omitempty" db:"description"`
	VerificationStatus *VerificationStatus `json:"verification_status,omitempty" db:"verification_status"`
}

// IsVerifiedDoctor reports whether the user can be booked.
func (u *User) IsVerifiedDoctor() bool {
	return u.Role == RoleDoctor &&
		u.VerificationStatus != nil &&
		*u.VerificationStatus == VerificationVerified
}

type SetRoleRequest struct {
	Role          Role   `json:"role" binding:"required,oneof=PATIENT DOCTOR"`
	Specialty     string `json:"specialty"`
	Experience    int    `json:"experience"`
	CredentialURL string `json:"credential_url"`
	Description   string `json:"description"`
}

type UpdateVerificationRequest struct {
	Status VerificationStatus `json:"status" binding:"required,oneof=VERIFIED REJECTED"`
}

type SuspendDoctorRequest struct {
	Suspend bool `json:"suspend"`
}

type DoctorFilters struct {
	Specialty          string
	VerificationStatus VerificationStatus
	Pagination
}
