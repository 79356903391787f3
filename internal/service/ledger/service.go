package ledger

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/medimeet/telehealth-api/internal/model"
	"github.com/medimeet/telehealth-api/internal/repository"
	"github.com/medimeet/telehealth-api/pkg/apperror"
	"github.com/medimeet/telehealth-api/pkg/identity"
	"github.com/medimeet/telehealth-api/pkg/metrics"
)

type Service struct {
	store   repository.Store
	oracle  identity.PlanOracle
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(store repository.Store, oracle identity.PlanOracle, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		oracle:  oracle,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// AllocateMonthly grants the patient their plan's monthly credit allowance.
// It is idempotent per calendar month and plan: if the latest purchase entry
// already carries this month and plan, the call is a no-op. Free-plan users
// get a zero-amount marker entry so the idempotency check works uniformly.
func (s *Service) AllocateMonthly(ctx context.Context, user *model.User) (*model.User, error) {
	if user.Role != model.RolePatient {
		return user, nil
	}

	planID, err := s.resolvePlan(ctx, user.ExternalID)
	if err != nil {
		return nil, err
	}
	amount := model.PlanCredits[planID]
	month := s.now().Format("2006-01")

	latest, err := s.store.Ledger().LatestPurchase(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if alreadyAllocated(latest, month, planID) {
		return user, nil
	}

	allocated := false
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		// Re-check under the row lock so two concurrent logins in the same
		// month produce exactly one allocation.
		users, err := tx.Users().GetForUpdate(ctx, user.ID)
		if err != nil {
			return err
		}
		locked := users[user.ID]

		latest, err := tx.Ledger().LatestPurchase(ctx, locked.ID)
		if err != nil {
			return err
		}
		if alreadyAllocated(latest, month, planID) {
			user = locked
			return nil
		}

		if err := tx.Ledger().Allocate(ctx, locked.ID, planID, amount); err != nil {
			return err
		}
		locked.Credits += amount
		user = locked
		allocated = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if allocated {
		s.metrics.CreditAllocations.WithLabelValues(planID).Inc()
		s.logger.Info().
			Str("user_id", user.ID.String()).
			Str("plan", planID).
			Int("amount", amount).
			Str("month", month).
			Msg("monthly credits allocated")
	}

	return user, nil
}

// Transactions returns the caller's ledger entries, newest first.
func (s *Service) Transactions(ctx context.Context, user *model.User) ([]*model.CreditTransaction, error) {
	return s.store.Ledger().ListByUser(ctx, user.ID)
}

// resolvePlan asks the identity provider which plan the user holds,
// preferring the richest. No plan at all maps to the free tier.
func (s *Service) resolvePlan(ctx context.Context, externalID string) (string, error) {
	for _, plan := range []string{model.PlanPremium, model.PlanStandard} {
		has, err := s.oracle.HasPlan(ctx, externalID, plan)
		if err != nil {
			return "", apperror.Upstream("failed to resolve subscription plan", err)
		}
		if has {
			return plan, nil
		}
	}
	return model.PlanFree, nil
}

// alreadyAllocated reports whether the latest purchase entry covers the
// given month and plan. The package id records the plan; the entry's
// creation month scopes the idempotency to the calendar month.
func alreadyAllocated(latest *model.CreditTransaction, month, planID string) bool {
	if latest == nil || latest.PackageID == nil {
		return false
	}
	return latest.CreatedAt.Format("2006-01") == month && *latest.PackageID == planID
}
