package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medimeet/telehealth-api/internal/model"
	"github.com/medimeet/telehealth-api/pkg/apperror"
)

type ledgerRepository struct {
	ext sqlx.ExtContext
}

func (r *ledgerRepository) appendEntry(ctx context.Context, entry *model.CreditTransaction) error {
	query := `
		INSERT INTO credit_transactions (
			id, user_id, amount, type, package_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()

	_, err := r.ext.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Amount,
		entry.Type,
		entry.PackageID,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (r *ledgerRepository) adjustBalance(ctx context.Context, userID uuid.UUID, delta int) error {
	// The guard keeps the cached balance from ever dipping below zero even
	// if a precondition check was skipped.
	query := `
		UPDATE users
		SET credits = credits + $1, updated_at = $2
		WHERE id = $3 AND credits + $1 >= 0
	`
	result, err := r.ext.ExecContext(ctx, query, delta, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to adjust balance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.InsufficientCredits("insufficient credits")
	}
	return nil
}

// Transfer moves amount credits from one user to another as one pair of
// append-only entries plus both balance updates. Callers must already be
// inside a transaction; a failure of any write aborts the whole unit.
func (r *ledgerRepository) Transfer(ctx context.Context, from, to uuid.UUID, amount int, txType model.TransactionType) error {
	if amount <= 0 {
		return apperror.InvalidInput("transfer amount must be positive")
	}

	if err := r.adjustBalance(ctx, from, -amount); err != nil {
		return err
	}
	if err := r.adjustBalance(ctx, to, amount); err != nil {
		return err
	}

	debit := &model.CreditTransaction{UserID: from, Amount: -amount, Type: txType}
	if err := r.appendEntry(ctx, debit); err != nil {
		return err
	}
	credit := &model.CreditTransaction{UserID: to, Amount: amount, Type: txType}
	return r.appendEntry(ctx, credit)
}

func (r *ledgerRepository) Allocate(ctx context.Context, userID uuid.UUID, planID string, amount int) error {
	if amount < 0 {
		return apperror.InvalidInput("allocation amount must not be negative")
	}

	entry := &model.CreditTransaction{
		UserID:    userID,
		Amount:    amount,
		Type:      model.TransactionTypeCreditPurchase,
		PackageID: &planID,
	}
	if err := r.appendEntry(ctx, entry); err != nil {
		return err
	}

	if amount == 0 {
		return nil
	}
	return r.adjustBalance(ctx, userID, amount)
}

func (r *ledgerRepository) LatestPurchase(ctx context.Context, userID uuid.UUID) (*model.CreditTransaction, error) {
	query := `
		SELECT id, user_id, amount, type, package_id, created_at
		FROM credit_transactions
		WHERE user_id = $1 AND type = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var entry model.CreditTransaction
	err := sqlx.GetContext(ctx, r.ext, &entry, query, userID, model.TransactionTypeCreditPurchase)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest purchase: %w", err)
	}
	return &entry, nil
}

func (r *ledgerRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.CreditTransaction, error) {
	query := `
		SELECT id, user_id, amount, type, package_id, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	var entries []*model.CreditTransaction
	err := sqlx.SelectContext(ctx, r.ext, &entries, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return entries, nil
}
