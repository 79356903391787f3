package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/medimeet/telehealth-api/internal/repository"
)

// Store implements repository.Store over sqlx. The zero transaction state
// runs queries directly on the pool; WithTx produces a Store whose
// repositories all share one transaction.
type Store struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, ext: db}
}

func (s *Store) Users() repository.UserRepository {
	return &userRepository{ext: s.ext}
}

func (s *Store) Availabilities() repository.AvailabilityRepository {
	return &availabilityRepository{ext: s.ext}
}

func (s *Store) Appointments() repository.AppointmentRepository {
	return &appointmentRepository{ext: s.ext}
}

func (s *Store) Ledger() repository.LedgerRepository {
	return &ledgerRepository{ext: s.ext}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepository{ext: s.ext}
}

// WithTx executes fn within a transaction. A nested call joins the caller's
// transaction instead of opening a second one.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if _, ok := s.ext.(*sqlx.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Store{db: s.db, ext: tx}); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
