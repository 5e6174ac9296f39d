package service

import (
	"context"

	"gorm.io/gorm"

	"github.com/ubongpr7/ngo-builder-f-sub004/internal/ledger/domain"
)

// BudgetSummary is a budget with its items and the ledger derived from them.
type BudgetSummary struct {
	Budget domain.Budget
	Items  []domain.BudgetItem
	Ledger domain.BudgetLedger
}

// ItemSummary is one item with its parent and derived ledger.
type ItemSummary struct {
	Budget domain.Budget
	Item   domain.BudgetItem
	Ledger domain.ItemLedger
}

// GetBudgetSummary reads without taking the guard. The snapshot may trail a
// concurrent writer but is internally consistent.
func (s *LedgerService) GetBudgetSummary(ctx context.Context, budgetID string) (*BudgetSummary, error) {
	var out *BudgetSummary
	err := s.snapshot(ctx, func(tx *gorm.DB) error {
		b, err := s.budgets.FindByID(ctx, tx, budgetID)
		if err != nil {
			return err
		}

		items, err := s.items.ListByBudget(ctx, tx, budgetID)
		if err != nil {
			return err
		}

		ids := make([]string, len(items))
		for i := range items {
			ids[i] = items[i].ID
		}

		expenses, err := s.expenses.ListByItems(ctx, tx, ids)
		if err != nil {
			return err
		}

		r, err := domain.RollupBudget(b, items, expenses, s.clock())
		if err != nil {
			return err
		}

		out = &BudgetSummary{Budget: *b, Items: items, Ledger: r}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LedgerService) GetItemSummary(ctx context.Context, itemID string) (*ItemSummary, error) {
	var out *ItemSummary
	err := s.snapshot(ctx, func(tx *gorm.DB) error {
		item, err := s.items.FindByID(ctx, tx, itemID)
		if err != nil {
			return err
		}

		b, err := s.budgets.FindByID(ctx, tx, item.BudgetID)
		if err != nil {
			return err
		}

		expenses, err := s.expenses.ListByItem(ctx, tx, itemID)
		if err != nil {
			return err
		}

		l, err := domain.DeriveItem(item, expenses, domain.ContextOf(b), s.clock())
		if err != nil {
			return err
		}

		out = &ItemSummary{Budget: *b, Item: *item, Ledger: l}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListExpenses returns an item's expenses, oldest first.
func (s *LedgerService) ListExpenses(ctx context.Context, itemID string) ([]domain.Expense, error) {
	if _, err := s.items.FindByID(ctx, s.db, itemID); err != nil {
		return nil, err
	}
	return s.expenses.ListByItem(ctx, s.db, itemID)
}

func (s *LedgerService) GetExpense(ctx context.Context, expenseID string) (*domain.Expense, error) {
	return s.expenses.FindByID(ctx, s.db, expenseID)
}
