package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ubongpr7/ngo-builder-f-sub004/internal/ledger/domain"
	"github.com/ubongpr7/ngo-builder-f-sub004/internal/ledger/guard"
)

// LedgerService owns the budget ledger.
//
// Every mutating operation runs as one guarded unit: enter the allocation
// guard, open a database transaction, read the current state, derive the
// ledger, validate, write, commit. Reads never take the guard.
type LedgerService struct {
	db        *gorm.DB
	budgets   domain.BudgetRepository
	items     domain.BudgetItemRepository
	expenses  domain.ExpenseRepository
	guard     *guard.Guard
	approvals domain.ApprovalPolicy
	logger    *zap.Logger
	now       func() time.Time
}

// Option customises a LedgerService.
type Option func(*LedgerService)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

func NewLedgerService(
	db *gorm.DB,
	budgets domain.BudgetRepository,
	items domain.BudgetItemRepository,
	expenses domain.ExpenseRepository,
	g *guard.Guard,
	approvals domain.ApprovalPolicy,
	logger *zap.Logger,
	opts ...Option,
) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &LedgerService{
		db:        db,
		budgets:   budgets,
		items:     items,
		expenses:  expenses,
		guard:     g,
		approvals: approvals,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LedgerService) clock() time.Time {
	return s.now().UTC()
}

// inTx runs fn in one database transaction.
func (s *LedgerService) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// snapshot runs a read-only fn against one consistent view. PostgreSQL gets
// REPEATABLE READ; SQLite transactions are already serialisable.
func (s *LedgerService) snapshot(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.db.Dialector != nil && s.db.Dialector.Name() == "postgres" {
		return s.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// itemState is everything a guarded unit on one item reads before deciding.
type itemState struct {
	budget   *domain.Budget
	item     *domain.BudgetItem
	expenses []domain.Expense
	ledger   domain.ItemLedger
}

// loadItem reads the item (row-locked where supported), its budget and its
// expenses inside tx, and derives the ledger.
func (s *LedgerService) loadItem(ctx context.Context, tx *gorm.DB, itemID string) (*itemState, error) {
	item, err := s.items.FindForUpdate(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}

	budget, err := s.budgets.FindByID(ctx, tx, item.BudgetID)
	if err != nil {
		return nil, err
	}

	expenses, err := s.expenses.ListByItem(ctx, tx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("list expenses of item %s: %w", item.ID, err)
	}

	st := &itemState{budget: budget, item: item, expenses: expenses}
	if err := st.derive(s.clock()); err != nil {
		return nil, err
	}
	return st, nil
}

func (st *itemState) derive(now time.Time) error {
	l, err := domain.DeriveItem(st.item, st.expenses, domain.ContextOf(st.budget), now)
	if err != nil {
		return err
	}
	st.ledger = l
	return nil
}

// find returns the loaded copy of expense id, so checks and writes work on
// the state read inside the transaction.
func (st *itemState) find(expenseID string) (*domain.Expense, error) {
	for i := range st.expenses {
		if st.expenses[i].ID == expenseID {
			return &st.expenses[i], nil
		}
	}
	return nil, domain.NewNotFoundError("expense", expenseID)
}

// parseAmount parses a request amount. An empty currency means the budget's.
func parseAmount(amount, currency, budgetCurrency string) (domain.Money, error) {
	if currency == "" {
		currency = budgetCurrency
	}
	return domain.ParseMoney(amount, currency)
}

// expenseItemID resolves the owning item of an expense. The relation never
// changes, so it is safe to read before entering the guard.
func (s *LedgerService) expenseItemID(ctx context.Context, expenseID string) (string, error) {
	e, err := s.expenses.FindByID(ctx, s.db, expenseID)
	if err != nil {
		return "", err
	}
	return e.BudgetItemID, nil
}

// itemBudgetID resolves the owning budget of an item, likewise immutable.
func (s *LedgerService) itemBudgetID(ctx context.Context, itemID string) (string, error) {
	item, err := s.items.FindByID(ctx, s.db, itemID)
	if err != nil {
		return "", err
	}
	return item.BudgetID, nil
}

func (s *LedgerService) itemIDs(ctx context.Context, budgetID string) ([]string, error) {
	items, err := s.items.ListByBudget(ctx, s.db, budgetID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	return ids, nil
}

// logRejected records a rejected operation. Domain rejections are expected
// traffic; anything else is logged as an error.
func (s *LedgerService) logRejected(op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("op", op), zap.Error(err))
	if isDomainError(err) {
		s.logger.Info("ledger operation rejected", fields...)
		return
	}
	s.logger.Error("ledger operation failed", fields...)
}
