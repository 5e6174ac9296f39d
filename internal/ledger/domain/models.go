package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Budget is a time-boxed allocation in one currency.
// Table: budgets
type Budget struct {
	ID          string          `gorm:"primaryKey;type:varchar(36)"`
	Title       string          `gorm:"type:varchar(200);not null"`
	Currency    string          `gorm:"type:char(3);not null"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	StartDate   time.Time       `gorm:"not null"`
	EndDate     time.Time       `gorm:"not null"`
	Status      BudgetStatus    `gorm:"type:varchar(16);not null;default:'draft';index"`
	ApprovedBy  *string         `gorm:"type:varchar(64)"`
	ApprovedAt  *time.Time
	Version     int64 `gorm:"not null;default:1"` // optimistic fence
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (Budget) TableName() string {
	return "budgets"
}

func (b *Budget) BeforeCreate(_ *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// Total returns total_amount as Money.
func (b *Budget) Total() Money {
	return NewMoney(b.TotalAmount, b.Currency)
}

// BudgetItem is one spending line inside a Budget.
// Table: budget_items
type BudgetItem struct {
	ID                string              `gorm:"primaryKey;type:varchar(36)"`
	BudgetID          string              `gorm:"type:varchar(36);not null;index"`
	Category          string              `gorm:"type:varchar(100);not null"`
	Subcategory       string              `gorm:"type:varchar(100)"`
	Description       string              `gorm:"type:text"`
	BudgetedAmount    decimal.Decimal     `gorm:"type:decimal(20,4);not null"`
	ApprovalThreshold decimal.NullDecimal `gorm:"type:decimal(20,4)"` // NULL: no mandatory approval
	IsLocked          bool                `gorm:"not null;default:false"`
	ResponsiblePerson string              `gorm:"type:varchar(64)"`
	Version           int64               `gorm:"not null;default:1"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

func (BudgetItem) TableName() string {
	return "budget_items"
}

func (i *BudgetItem) BeforeCreate(_ *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// Budgeted returns budgeted_amount in the owning budget's currency.
func (i *BudgetItem) Budgeted(currency string) Money {
	return NewMoney(i.BudgetedAmount, currency)
}

// Threshold returns the approval threshold, or nil when none is set.
func (i *BudgetItem) Threshold(currency string) *Money {
	if !i.ApprovalThreshold.Valid {
		return nil
	}
	m := NewMoney(i.ApprovalThreshold.Decimal, currency)
	return &m
}

// Expense is a spending request against exactly one BudgetItem.
// Table: expenses
type Expense struct {
	ID              string          `gorm:"primaryKey;type:varchar(36)"`
	BudgetItemID    string          `gorm:"type:varchar(36);not null;index"`
	Title           string          `gorm:"type:varchar(200);not null"`
	Description     string          `gorm:"type:text"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null"` // > 0
	Currency        string          `gorm:"type:char(3);not null"`
	ExpenseDate     time.Time       `gorm:"not null"`
	ExpenseType     string          `gorm:"type:varchar(64)"`
	Vendor          *string         `gorm:"type:varchar(200)"`
	Status          ExpenseStatus   `gorm:"type:varchar(16);not null;default:'draft';index"`
	SubmittedBy     string          `gorm:"type:varchar(64);not null"`
	ApprovedBy      *string         `gorm:"type:varchar(64)"`
	RejectionReason *string         `gorm:"type:text"`
	StatusChangedAt time.Time       `gorm:"not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

func (Expense) TableName() string {
	return "expenses"
}

func (e *Expense) BeforeCreate(_ *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// Money returns the expense amount as Money.
func (e *Expense) Money() Money {
	return NewMoney(e.Amount, e.Currency)
}
