package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ubongpr7/ngo-builder-f-sub004/internal/ledger/domain"
)

// CreateBudgetRequest carries the fields of a new budget. Amounts are decimal strings.
type CreateBudgetRequest struct {
	Title       string
	Currency    string
	TotalAmount string
	StartDate   time.Time
	EndDate     time.Time
}

func isDomainError(err error) bool {
	return domain.KindOf(err) != nil
}

// CreateBudget stores a new draft budget. A fresh id has no contention, so
// this is the one mutation that skips the guard.
func (s *LedgerService) CreateBudget(ctx context.Context, caller string, req CreateBudgetRequest) (*domain.Budget, error) {
	total, err := domain.ParseMoney(req.TotalAmount, req.Currency)
	if err != nil {
		return nil, err
	}

	b, err := domain.NewBudget(domain.NewBudgetInput{
		Title:     req.Title,
		Total:     total,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(tx *gorm.DB) error {
		return s.budgets.Create(ctx, tx, b)
	})
	if err != nil {
		s.logRejected("create_budget", err, zap.String("caller", caller))
		return nil, err
	}

	s.logger.Info("budget created",
		zap.String("budget_id", b.ID),
		zap.String("total", total.String()),
		zap.String("caller", caller),
	)

	return b, nil
}

// ApproveBudget moves a draft budget to active. The caller needs the
// approval capability from the identity collaborator.
func (s *LedgerService) ApproveBudget(ctx context.Context, caller, budgetID string) (*domain.Budget, error) {
	allowed, err := s.approvals.CanApproveBudget(ctx, caller, budgetID)
	if err != nil {
		return nil, fmt.Errorf("check approval capability: %w", err)
	}
	if !allowed {
		return nil, &domain.DomainError{
			Kind:    domain.ErrApprovalNotPermitted,
			Field:   "caller",
			Message: fmt.Sprintf("%s may not approve budget %s", caller, budgetID),
		}
	}

	var out *domain.Budget
	err = s.guard.Budget(ctx, budgetID, nil, func(ctx context.Context) error {
		return s.inTx(ctx, func(tx *gorm.DB) error {
			b, err := s.budgets.FindByID(ctx, tx, budgetID)
			if err != nil {
				return err
			}

			if err := b.Activate(caller, s.clock()); err != nil {
				return err
			}

			if err := s.budgets.Update(ctx, tx, b); err != nil {
				return err
			}
			out = b
			return nil
		})
	})
	if err != nil {
		s.logRejected("approve_budget", err, zap.String("budget_id", budgetID), zap.String("caller", caller))
		return nil, err
	}

	s.logger.Info("budget approved", zap.String("budget_id", budgetID), zap.String("approver", caller))

	return out, nil
}

// AmendBudgetTotal changes total_amount. It never drops below what is
// allocated to items.
func (s *LedgerService) AmendBudgetTotal(ctx context.Context, caller, budgetID, amount string) (*domain.Budget, error) {
	var out *domain.Budget
	err := s.guard.Budget(ctx, budgetID, nil, func(ctx context.Context) error {
		return s.inTx(ctx, func(tx *gorm.DB) error {
			b, err := s.budgets.FindByID(ctx, tx, budgetID)
			if err != nil {
				return err
			}

			total, err := domain.ParseMoney(amount, b.Currency)
			if err != nil {
				return err
			}

			items, err := s.items.ListByBudget(ctx, tx, budgetID)
			if err != nil {
				return err
			}

			if err := domain.CheckTotalAmount(b, items, total); err != nil {
				return err
			}

			b.TotalAmount = total.Amount()
			if err := s.budgets.Update(ctx, tx, b); err != nil {
				return err
			}
			out = b
			return nil
		})
	})
	if err != nil {
		s.logRejected("amend_budget_total", err, zap.String("budget_id", budgetID), zap.String("caller", caller))
		return nil, err
	}

	s.logger.Info("budget total amended",
		zap.String("budget_id", budgetID),
		zap.String("total", out.Total().String()),
		zap.String("caller", caller),
	)

	return out, nil
}

// errStaleItemSet means the budget gained or lost an item between listing
// its ids and locking them.
var errStaleItemSet = errors.New("budget item set changed before lock")

// budgetUnitAttempts bounds how often budgetUnit re-lists a moving item set.
const budgetUnitAttempts = 3

// budgetUnit runs fn holding the budget and every item of it. The ids are
// listed before locking, so the unit checks them again under the lock and
// starts over with the fresh set when they moved.
func (s *LedgerService) budgetUnit(ctx context.Context, budgetID string, fn func(ctx context.Context, tx *gorm.DB, b *domain.Budget, r domain.BudgetLedger, items []domain.BudgetItem) error) error {
	for attempt := 1; ; attempt++ {
		ids, err := s.itemIDs(ctx, budgetID)
		if err != nil {
			return err
		}

		err = s.guard.Budget(ctx, budgetID, ids, func(ctx context.Context) error {
			return s.inTx(ctx, func(tx *gorm.DB) error {
				b, err := s.budgets.FindByID(ctx, tx, budgetID)
				if err != nil {
					return err
				}

				items, err := s.items.ListByBudget(ctx, tx, budgetID)
				if err != nil {
					return err
				}

				current := make([]string, len(items))
				for i := range items {
					current[i] = items[i].ID
				}
				if !sameIDs(ids, current) {
					return errStaleItemSet
				}

				expenses, err := s.expenses.ListByItems(ctx, tx, current)
				if err != nil {
					return err
				}

				r, err := domain.RollupBudget(b, items, expenses, s.clock())
				if err != nil {
					return err
				}

				return fn(ctx, tx, b, r, items)
			})
		})
		if !errors.Is(err, errStaleItemSet) {
			return err
		}

		s.logger.Warn("budget item set moved while locking, retrying",
			zap.String("budget_id", budgetID), zap.Int("attempt", attempt))
		if attempt == budgetUnitAttempts {
			return &domain.DomainError{
				Kind:    domain.ErrConcurrentModification,
				Field:   "budget",
				Message: fmt.Sprintf("items of budget %s kept changing", budgetID),
			}
		}
	}
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			return false
		}
	}
	return true
}

// CloseBudget moves an active budget to closed once no item encumbers funds.
func (s *LedgerService) CloseBudget(ctx context.Context, caller, budgetID string) (*domain.Budget, error) {
	var out *domain.Budget
	err := s.budgetUnit(ctx, budgetID, func(ctx context.Context, tx *gorm.DB, b *domain.Budget, r domain.BudgetLedger, _ []domain.BudgetItem) error {
		if err := b.Close(r); err != nil {
			return err
		}
		if err := s.budgets.Update(ctx, tx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		s.logRejected("close_budget", err, zap.String("budget_id", budgetID), zap.String("caller", caller))
		return nil, err
	}

	s.logger.Info("budget closed", zap.String("budget_id", budgetID), zap.String("caller", caller))

	return out, nil
}

// CancelBudget moves a budget to cancelled. Spending stops immediately;
// decisions on already submitted expenses still go through.
func (s *LedgerService) CancelBudget(ctx context.Context, caller, budgetID string) (*domain.Budget, error) {
	var out *domain.Budget
	err := s.budgetUnit(ctx, budgetID, func(ctx context.Context, tx *gorm.DB, b *domain.Budget, _ domain.BudgetLedger, _ []domain.BudgetItem) error {
		if err := b.Cancel(); err != nil {
			return err
		}
		if err := s.budgets.Update(ctx, tx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		s.logRejected("cancel_budget", err, zap.String("budget_id", budgetID), zap.String("caller", caller))
		return nil, err
	}

	s.logger.Info("budget cancelled", zap.String("budget_id", budgetID), zap.String("caller", caller))

	return out, nil
}

// DeleteBudget archives a budget with its items and expenses. No item may
// hold a non-terminal expense.
func (s *LedgerService) DeleteBudget(ctx context.Context, caller, budgetID string) error {
	err := s.budgetUnit(ctx, budgetID, func(ctx context.Context, tx *gorm.DB, b *domain.Budget, r domain.BudgetLedger, items []domain.BudgetItem) error {
		// 1. No item may hold outstanding expenses
		for _, l := range r.Items {
			if err := l.CheckDeletable(); err != nil {
				return err
			}
		}

		// 2. Archive expenses with their items, then the budget
		for i := range items {
			if err := s.expenses.ArchiveByItem(ctx, tx, items[i].ID); err != nil {
				return err
			}
			if err := s.items.Delete(ctx, tx, items[i].ID); err != nil {
				return err
			}
		}

		return s.budgets.Delete(ctx, tx, b.ID)
	})
	if err != nil {
		s.logRejected("delete_budget", err, zap.String("budget_id", budgetID), zap.String("caller", caller))
		return err
	}

	s.logger.Info("budget deleted", zap.String("budget_id", budgetID), zap.String("caller", caller))

	return nil
}
