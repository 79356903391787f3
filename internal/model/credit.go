package model

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTypeCreditPurchase       TransactionType = "CREDIT_PURCHASE"
	TransactionTypeAppointmentDeduction TransactionType = "APPOINTMENT_DEDUCTION"
)

// Subscription plan identifiers as known to the identity provider.
const (
	PlanFree     = "free_user"
	PlanStandard = "standard"
	PlanPremium  = "premium"
)

// PlanCredits is the monthly credit allowance per plan.
var PlanCredits = map[string]int{
	PlanFree:     0,
	PlanStandard: 10,
	PlanPremium:  24,
}

// AppointmentCreditCost is the fixed price of one booking.
const AppointmentCreditCost = 2

// CreditTransaction is an immutable ledger entry. The amount is signed;
// entries are append-only and the user's cached balance is their running sum.
type CreditTransaction struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    uuid.UUID       `json:"user_id" db:"user_id"`
	Amount    int             `json:"amount" db:"amount"`
	Type      TransactionType `json:"type" db:"type"`
	PackageID *string         `json:"package_id,omitempty" db:"package_id"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
