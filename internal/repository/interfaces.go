package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medimeet/telehealth-api/internal/model"
)

// Store bundles the per-entity repositories and the transaction boundary.
// WithTx runs fn against a transaction-scoped Store: every repository call
// made through that Store joins the same database transaction, and an error
// from fn rolls the whole unit back. Booking and credit movement must only
// happen inside WithTx.
type Store interface {
	Users() UserRepository
	Availabilities() AvailabilityRepository
	Appointments() AppointmentRepository
	Ledger() LedgerRepository
	Outbox() OutboxRepository
	WithTx(ctx context.Context, fn func(Store) error) error
}

type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByExternalID(ctx context.Context, externalID string) (*model.User, error)
		// GetForUpdate loads the given users with row-level locks, in
		// ascending id order. Only meaningful inside a transaction; it is
		// what serializes concurrent bookings against the same doctor.
		GetForUpdate(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*model.User, error)
		Update(ctx context.Context, user *model.User) error
		UpdateVerification(ctx context.Context, doctorID uuid.UUID, status model.VerificationStatus) error
		ListDoctors(ctx context.Context, filters *model.DoctorFilters) ([]*model.User, error)
	}

	AvailabilityRepository interface {
		Create(ctx context.Context, availability *model.Availability) error
		// Latest returns the doctor's most recent AVAILABLE window, or a
		// NotFound error when none exists.
		Latest(ctx context.Context, doctorID uuid.UUID) (*model.Availability, error)
		List(ctx context.Context, doctorID uuid.UUID) ([]*model.Availability, error)
		ExistsForDate(ctx context.Context, doctorID uuid.UUID, day time.Time) (bool, error)
		// DeleteUnreferenced removes the doctor's windows that no
		// appointment points at. Referenced windows are kept.
		DeleteUnreferenced(ctx context.Context, doctorID uuid.UUID) error
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		// ListScheduled returns the doctor's SCHEDULED appointments whose
		// start time is not after until, ordered by start time.
		ListScheduled(ctx context.Context, doctorID uuid.UUID, until time.Time) ([]*model.Appointment, error)
		// HasOverlap applies the shared interval predicate in SQL:
		// a SCHEDULED appointment [s, e) conflicts iff s < end AND e > start.
		HasOverlap(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (bool, error)
		SetVideoToken(ctx context.Context, id uuid.UUID, token string) error
	}

	LedgerRepository interface {
		// Transfer debits from and credits to by amount, appending one
		// signed transaction per side and updating both cached balances.
		// It fails without writing anything if the debit would drive the
		// payer's balance negative.
		Transfer(ctx context.Context, from, to uuid.UUID, amount int, txType model.TransactionType) error
		// Allocate appends a CREDIT_PURCHASE entry for the plan and adds
		// amount to the cached balance.
		Allocate(ctx context.Context, userID uuid.UUID, planID string, amount int) error
		LatestPurchase(ctx context.Context, userID uuid.UUID) (*model.CreditTransaction, error)
		ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.CreditTransaction, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	}
)
