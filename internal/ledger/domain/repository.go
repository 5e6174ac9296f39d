package domain

import (
	"context"

	"gorm.io/gorm"
)

// Every method takes the session to run on: the service passes the open
// transaction inside a guarded unit and the plain handle for lock-free reads.
// Update methods are fenced by the version column and return
// ErrConcurrentModification when the row changed underneath.

// BudgetRepository persists Budgets.
type BudgetRepository interface {
	Create(ctx context.Context, db *gorm.DB, b *Budget) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Budget, error)
	// Update persists status, total and approval fields and bumps version.
	Update(ctx context.Context, db *gorm.DB, b *Budget) error
	Delete(ctx context.Context, db *gorm.DB, id string) error
}

// BudgetItemRepository persists BudgetItems.
type BudgetItemRepository interface {
	Create(ctx context.Context, db *gorm.DB, item *BudgetItem) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*BudgetItem, error)
	// FindForUpdate reads the item and, where the store supports it, takes a
	// row lock until the transaction ends.
	FindForUpdate(ctx context.Context, db *gorm.DB, id string) (*BudgetItem, error)
	ListByBudget(ctx context.Context, db *gorm.DB, budgetID string) ([]BudgetItem, error)
	// Touch persists the item's mutable fields and bumps version. Every
	// guarded unit touches its item, expense-only changes included.
	Touch(ctx context.Context, db *gorm.DB, item *BudgetItem) error
	Delete(ctx context.Context, db *gorm.DB, id string) error
}

// ExpenseRepository persists Expenses.
type ExpenseRepository interface {
	Create(ctx context.Context, db *gorm.DB, e *Expense) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Expense, error)
	ListByItem(ctx context.Context, db *gorm.DB, itemID string) ([]Expense, error)
	// ListByItems groups the expenses of several items by item id.
	ListByItems(ctx context.Context, db *gorm.DB, itemIDs []string) (map[string][]Expense, error)
	Save(ctx context.Context, db *gorm.DB, e *Expense) error
	Delete(ctx context.Context, db *gorm.DB, id string) error
	// ArchiveByItem soft-deletes every expense of an item.
	ArchiveByItem(ctx context.Context, db *gorm.DB, itemID string) error
}

// ApprovalPolicy is the identity collaborator: it answers whether an
// identity may approve a budget. The ledger never implements the policy.
type ApprovalPolicy interface {
	CanApproveBudget(ctx context.Context, identity, budgetID string) (bool, error)
}
