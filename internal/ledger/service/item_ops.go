package service

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ubongpr7/ngo-builder-f-sub004/internal/ledger/domain"
)

// AddItemRequest carries the fields of a new budget item. A nil threshold
// means every submission is approved on the spot.
type AddItemRequest struct {
	Category          string
	Subcategory       string
	Description       string
	BudgetedAmount    string
	ApprovalThreshold *string
	ResponsiblePerson string
}

// AddBudgetItem allocates part of the budget's remaining capacity to a new
// line.
func (s *LedgerService) AddBudgetItem(ctx context.Context, caller, budgetID string, req AddItemRequest) (*domain.BudgetItem, error) {
	var out *domain.BudgetItem
	err := s.guard.Budget(ctx, budgetID, nil, func(ctx context.Context) error {
		return s.inTx(ctx, func(tx *gorm.DB) error {
			b, err := s.budgets.FindByID(ctx, tx, budgetID)
			if err != nil {
				return err
			}

			budgeted, err := domain.ParseMoney(req.BudgetedAmount, b.Currency)
			if err != nil {
				return err
			}

			in := domain.NewItemInput{
				Category:          req.Category,
				Subcategory:       req.Subcategory,
				Description:       req.Description,
				Budgeted:          budgeted,
				ResponsiblePerson: req.ResponsiblePerson,
			}
			if req.ApprovalThreshold != nil {
				t, err := domain.ParseMoney(*req.ApprovalThreshold, b.Currency)
				if err != nil {
					return err
				}
				in.Threshold = &t
			}

			items, err := s.items.ListByBudget(ctx, tx, budgetID)
			if err != nil {
				return err
			}

			if err := domain.CheckNewItem(b, items, budgeted); err != nil {
				return err
			}

			item, err := domain.NewBudgetItem(b, in)
			if err != nil {
				return err
			}

			if err := s.items.Create(ctx, tx, item); err != nil {
				return err
			}

			// Fence the capacity read against a concurrent writer elsewhere.
			if err := s.budgets.Update(ctx, tx, b); err != nil {
				return err
			}

			out = item
			return nil
		})
	})
	if err != nil {
		s.logRejected("add_budget_item", err, zap.String("budget_id", budgetID), zap.String("caller", caller))
		return nil, err
	}

	s.logger.Info("budget item added",
		zap.String("budget_id", budgetID),
		zap.String("item_id", out.ID),
		zap.String("budgeted", req.BudgetedAmount),
		zap.String("caller", caller),
	)

	return out, nil
}

// AmendBudgetedAmount moves an item's budgeted_amount within
// [spent, budgeted + remaining capacity of the budget].
func (s *LedgerService) AmendBudgetedAmount(ctx context.Context, caller, itemID, amount string) (*domain.BudgetItem, error) {
	budgetID, err := s.itemBudgetID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	var out *domain.BudgetItem
	err = s.guard.Budget(ctx, budgetID, []string{itemID}, func(ctx context.Context) error {
		return s.inTx(ctx, func(tx *gorm.DB) error {
			// 1. Load the item and check the budget still takes edits
			st, err := s.loadItem(ctx, tx, itemID)
			if err != nil {
				return err
			}

			if !st.budget.Status.AcceptsItems() {
				return &domain.DomainError{
					Kind:    domain.ErrBudgetNotEditable,
					Field:   "budget",
					Message: "budget " + st.budget.ID + " is " + string(st.budget.Status),
				}
			}

			newAmount, err := domain.ParseMoney(amount, st.budget.Currency)
			if err != nil {
				return err
			}

			// 2. Bounds: spent below, remaining capacity of the budget above
			siblings, err := s.items.ListByBudget(ctx, tx, st.budget.ID)
			if err != nil {
				return err
			}

			remaining := domain.RemainingCapacity(st.budget, siblings)
			if err := st.ledger.CheckBudgetedAmount(newAmount, remaining); err != nil {
				return err
			}

			// 3. Write the item and bump the budget version
			st.item.BudgetedAmount = newAmount.Amount()
			if err := s.items.Touch(ctx, tx, st.item); err != nil {
				return err
			}
			if err := s.budgets.Update(ctx, tx, st.budget); err != nil {
				return err
			}

			out = st.item
			return nil
		})
	})
	if err != nil {
		s.logRejected("amend_budgeted_amount", err, zap.String("item_id", itemID), zap.String("caller", caller))
		return nil, err
	}

	s.logger.Info("budgeted amount amended",
		zap.String("item_id", itemID),
		zap.String("budgeted", amount),
		zap.String("caller", caller),
	)

	return out, nil
}

// LockItem freezes new spending on an item. Decisions on submitted expenses
// still proceed.
func (s *LedgerService) LockItem(ctx context.Context, caller, itemID string) (*domain.BudgetItem, error) {
	return s.setLocked(ctx, caller, itemID, true)
}

func (s *LedgerService) UnlockItem(ctx context.Context, caller, itemID string) (*domain.BudgetItem, error) {
	return s.setLocked(ctx, caller, itemID, false)
}

func (s *LedgerService) setLocked(ctx context.Context, caller, itemID string, locked bool) (*domain.BudgetItem, error) {
	var out *domain.BudgetItem
	err := s.guard.Item(ctx, itemID, func(ctx context.Context) error {
		return s.inTx(ctx, func(tx *gorm.DB) error {
			item, err := s.items.FindForUpdate(ctx, tx, itemID)
			if err != nil {
				return err
			}

			item.IsLocked = locked
			if err := s.items.Touch(ctx, tx, item); err != nil {
				return err
			}
			out = item
			return nil
		})
	})
	if err != nil {
		s.logRejected("set_item_lock", err, zap.String("item_id", itemID), zap.Bool("locked", locked))
		return nil, err
	}

	s.logger.Info("budget item lock changed",
		zap.String("item_id", itemID),
		zap.Bool("locked", locked),
		zap.String("caller", caller),
	)

	return out, nil
}

// DeleteBudgetItem archives an item and its expenses. Every expense must be
// terminal first.
func (s *LedgerService) DeleteBudgetItem(ctx context.Context, caller, itemID string) error {
	budgetID, err := s.itemBudgetID(ctx, itemID)
	if err != nil {
		return err
	}

	err = s.guard.Budget(ctx, budgetID, []string{itemID}, func(ctx context.Context) error {
		return s.inTx(ctx, func(tx *gorm.DB) error {
			st, err := s.loadItem(ctx, tx, itemID)
			if err != nil {
				return err
			}

			if !st.budget.Status.AcceptsItems() {
				return &domain.DomainError{
					Kind:    domain.ErrBudgetNotEditable,
					Field:   "budget",
					Message: "budget " + st.budget.ID + " is " + string(st.budget.Status),
				}
			}

			if err := st.ledger.CheckDeletable(); err != nil {
				return err
			}

			if err := s.expenses.ArchiveByItem(ctx, tx, itemID); err != nil {
				return err
			}
			if err := s.items.Delete(ctx, tx, itemID); err != nil {
				return err
			}
			return s.budgets.Update(ctx, tx, st.budget)
		})
	})
	if err != nil {
		s.logRejected("delete_budget_item", err, zap.String("item_id", itemID), zap.String("caller", caller))
		return err
	}

	s.logger.Info("budget item deleted", zap.String("item_id", itemID), zap.String("caller", caller))

	return nil
}
