package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ubongpr7/ngo-builder-f-sub004/internal/ledger/domain"
)

func notFound(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewNotFoundError(entity, id)
	}
	return fmt.Errorf("load %s %s: %w", entity, id, err)
}

func conflict(entity, id string) error {
	return &domain.DomainError{
		Kind:    domain.ErrConcurrentModification,
		Field:   entity,
		Message: fmt.Sprintf("%s %s was modified by another writer", entity, id),
	}
}

// supportsRowLocks reports whether SELECT ... FOR UPDATE is available.
// SQLite serialises writers on its own.
func supportsRowLocks(db *gorm.DB) bool {
	return db.Dialector != nil && db.Dialector.Name() == "postgres"
}

type PostgresBudgetRepo struct{}

func NewBudgetRepo() *PostgresBudgetRepo {
	return &PostgresBudgetRepo{}
}

func (r *PostgresBudgetRepo) Create(ctx context.Context, db *gorm.DB, b *domain.Budget) error {
	return db.WithContext(ctx).Create(b).Error
}

func (r *PostgresBudgetRepo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Budget, error) {
	var b domain.Budget
	if err := db.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		return nil, notFound(err, "budget", id)
	}
	return &b, nil
}

// Update is an optimistic-lock update.
// SQL: UPDATE budgets SET ..., version = version + 1 WHERE id = ? AND version = ?
func (r *PostgresBudgetRepo) Update(ctx context.Context, db *gorm.DB, b *domain.Budget) error {
	result := db.WithContext(ctx).Model(&domain.Budget{}).
		Where("id = ? AND version = ?", b.ID, b.Version).
		Updates(map[string]interface{}{
			"title":        b.Title,
			"total_amount": b.TotalAmount,
			"status":       b.Status,
			"approved_by":  b.ApprovedBy,
			"approved_at":  b.ApprovedAt,
			"version":      gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}

	// No row updated: the version moved, someone else wrote first.
	if result.RowsAffected == 0 {
		return conflict("budget", b.ID)
	}

	b.Version++
	return nil
}

func (r *PostgresBudgetRepo) Delete(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Budget{}).Error
}

// ---------------------------------------------------------

type PostgresBudgetItemRepo struct{}

func NewBudgetItemRepo() *PostgresBudgetItemRepo {
	return &PostgresBudgetItemRepo{}
}

func (r *PostgresBudgetItemRepo) Create(ctx context.Context, db *gorm.DB, item *domain.BudgetItem) error {
	return db.WithContext(ctx).Create(item).Error
}

func (r *PostgresBudgetItemRepo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.BudgetItem, error) {
	var item domain.BudgetItem
	if err := db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, notFound(err, "budget item", id)
	}
	return &item, nil
}

func (r *PostgresBudgetItemRepo) FindForUpdate(ctx context.Context, db *gorm.DB, id string) (*domain.BudgetItem, error) {
	q := db.WithContext(ctx)
	if supportsRowLocks(db) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var item domain.BudgetItem
	if err := q.Where("id = ?", id).First(&item).Error; err != nil {
		return nil, notFound(err, "budget item", id)
	}
	return &item, nil
}

func (r *PostgresBudgetItemRepo) ListByBudget(ctx context.Context, db *gorm.DB, budgetID string) ([]domain.BudgetItem, error) {
	var items []domain.BudgetItem
	err := db.WithContext(ctx).
		Where("budget_id = ?", budgetID).
		Order("created_at, id").
		Find(&items).Error
	return items, err
}

// Touch persists the mutable fields and advances the version.
func (r *PostgresBudgetItemRepo) Touch(ctx context.Context, db *gorm.DB, item *domain.BudgetItem) error {
	result := db.WithContext(ctx).Model(&domain.BudgetItem{}).
		Where("id = ? AND version = ?", item.ID, item.Version).
		Updates(map[string]interface{}{
			"budgeted_amount":    item.BudgetedAmount,
			"approval_threshold": item.ApprovalThreshold,
			"is_locked":          item.IsLocked,
			"responsible_person": item.ResponsiblePerson,
			"version":            gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return conflict("budget item", item.ID)
	}

	item.Version++
	return nil
}

func (r *PostgresBudgetItemRepo) Delete(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.BudgetItem{}).Error
}

// ---------------------------------------------------------

type PostgresExpenseRepo struct{}

func NewExpenseRepo() *PostgresExpenseRepo {
	return &PostgresExpenseRepo{}
}

func (r *PostgresExpenseRepo) Create(ctx context.Context, db *gorm.DB, e *domain.Expense) error {
	return db.WithContext(ctx).Create(e).Error
}

func (r *PostgresExpenseRepo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Expense, error) {
	var e domain.Expense
	if err := db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, notFound(err, "expense", id)
	}
	return &e, nil
}

func (r *PostgresExpenseRepo) ListByItem(ctx context.Context, db *gorm.DB, itemID string) ([]domain.Expense, error) {
	var expenses []domain.Expense
	err := db.WithContext(ctx).
		Where("budget_item_id = ?", itemID).
		Order("created_at, id").
		Find(&expenses).Error
	return expenses, err
}

func (r *PostgresExpenseRepo) ListByItems(ctx context.Context, db *gorm.DB, itemIDs []string) (map[string][]domain.Expense, error) {
	grouped := make(map[string][]domain.Expense, len(itemIDs))
	if len(itemIDs) == 0 {
		return grouped, nil
	}

	var expenses []domain.Expense
	err := db.WithContext(ctx).
		Where("budget_item_id IN ?", itemIDs).
		Order("created_at, id").
		Find(&expenses).Error
	if err != nil {
		return nil, err
	}

	for _, e := range expenses {
		grouped[e.BudgetItemID] = append(grouped[e.BudgetItemID], e)
	}
	return grouped, nil
}

// Save writes every column of an existing expense. Callers hold the item's
// guard and bump the item version in the same transaction.
func (r *PostgresExpenseRepo) Save(ctx context.Context, db *gorm.DB, e *domain.Expense) error {
	return db.WithContext(ctx).Save(e).Error
}

func (r *PostgresExpenseRepo) Delete(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Expense{}).Error
}

func (r *PostgresExpenseRepo) ArchiveByItem(ctx context.Context, db *gorm.DB, itemID string) error {
	return db.WithContext(ctx).Where("budget_item_id = ?", itemID).Delete(&domain.Expense{}).Error
}

// compile-time port checks
var (
	_ domain.BudgetRepository     = (*PostgresBudgetRepo)(nil)
	_ domain.BudgetItemRepository = (*PostgresBudgetItemRepo)(nil)
	_ domain.ExpenseRepository    = (*PostgresExpenseRepo)(nil)
)
