package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ledgerStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ledgerNow   = time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC)
)

func activeBudget() BudgetContext {
	return BudgetContext{ID: "b1", Status: BudgetActive, Currency: "USD", StartDate: ledgerStart}
}

func item(budgeted string) *BudgetItem {
	return &BudgetItem{
		ID:             "i1",
		BudgetID:       "b1",
		BudgetedAmount: decimal.RequireFromString(budgeted),
		CreatedAt:      ledgerNow.Add(-time.Hour),
	}
}

func expense(status ExpenseStatus, amount string) Expense {
	return Expense{Amount: decimal.RequireFromString(amount), Currency: "USD", Status: status}
}

func derive(t *testing.T, it *BudgetItem, expenses ...Expense) ItemLedger {
	t.Helper()
	l, err := DeriveItem(it, expenses, activeBudget(), ledgerNow)
	require.NoError(t, err)
	return l
}

func TestDeriveItem_Buckets(t *testing.T) {
	l := derive(t, item("1000"),
		expense(ExpensePaid, "100"),
		expense(ExpenseApproved, "200"),
		expense(ExpensePending, "150"),
		expense(ExpenseDraft, "75"),
		expense(ExpenseRejected, "60"),
	)

	assert.Equal(t, "100.00", l.Spent.StringFixed())
	assert.Equal(t, "200.00", l.Approved.StringFixed())
	assert.Equal(t, "225.00", l.Pending.StringFixed(), "drafts count as pending")
	assert.Equal(t, "75.00", l.Draft.StringFixed())
	assert.Equal(t, "60.00", l.Rejected.StringFixed())
	assert.Equal(t, "300.00", l.Committed.StringFixed())
	assert.Equal(t, "425.00", l.Encumbered.StringFixed())
	assert.Equal(t, "475.00", l.TrulyAvailable.StringFixed(), "rejections reserve nothing")
	assert.Equal(t, "900.00", l.Variance.StringFixed())
	assert.True(t, l.UtilizationPercentage.Equal(decimal.RequireFromString("52.5")))
	assert.True(t, l.SpentPercentage.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 3, l.Outstanding)
	assert.True(t, l.CanSpend)
	assert.Equal(t, "525.00", l.Reserved().StringFixed())
}

func TestDeriveItem_DraftReservesFunds(t *testing.T) {
	l := derive(t, item("1000"), expense(ExpenseDraft, "300"))

	assert.Equal(t, "300.00", l.Pending.StringFixed())
	assert.Equal(t, "700.00", l.TrulyAvailable.StringFixed())
	assert.Equal(t, "300.00", l.Encumbered.StringFixed())
	assert.True(t, l.UtilizationPercentage.Equal(decimal.NewFromInt(30)))
	assert.True(t, l.Committed.IsZero())
}

func TestDeriveItem_ScenarioA(t *testing.T) {
	threshold := decimal.NewNullDecimal(decimal.NewFromInt(500))
	it := item("1000")
	it.ApprovalThreshold = threshold

	l := derive(t, it, expense(ExpenseApproved, "300"))
	assert.Equal(t, "300.00", l.Committed.StringFixed())
	assert.Equal(t, "700.00", l.TrulyAvailable.StringFixed())
	assert.Equal(t, "500.00", l.Threshold.StringFixed())
}

func TestDeriveItem_ZeroBudgeted(t *testing.T) {
	l := derive(t, item("0"))
	assert.True(t, l.UtilizationPercentage.IsZero())
	assert.True(t, l.SpentPercentage.IsZero())
	assert.False(t, l.CanSpend)
	assert.ErrorIs(t, l.CheckCanSpend(BudgetActive), ErrSpendingNotAllowed)
}

func TestDeriveItem_Health(t *testing.T) {
	old := item("1000")
	old.CreatedAt = ledgerStart

	tests := []struct {
		name     string
		it       *BudgetItem
		expenses []Expense
		want     Health
	}{
		{"overcommitted", item("1000"), []Expense{expense(ExpensePaid, "900"), expense(ExpenseApproved, "200")}, HealthOvercommitted},
		{"at risk", item("1000"), []Expense{expense(ExpenseApproved, "900"), expense(ExpensePending, "50")}, HealthAtRisk},
		{"caution", item("1000"), []Expense{expense(ExpensePending, "850")}, HealthCaution},
		{"drafts count toward risk", item("1000"), []Expense{expense(ExpenseDraft, "960")}, HealthAtRisk},
		{"underutilized", old, []Expense{expense(ExpensePaid, "100")}, HealthUnderutilized},
		{"young item is healthy", item("1000"), []Expense{expense(ExpensePaid, "100")}, HealthHealthy},
		{"healthy", old, []Expense{expense(ExpensePaid, "500")}, HealthHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, derive(t, tt.it, tt.expenses...).Health)
		})
	}
}

func TestDeriveItem_CurrencyMismatch(t *testing.T) {
	_, err := DeriveItem(item("100"), []Expense{{Amount: decimal.NewFromInt(5), Currency: "EUR", Status: ExpensePaid}}, activeBudget(), ledgerNow)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestCheckSubmission(t *testing.T) {
	e := &Expense{Amount: decimal.NewFromInt(300), Currency: "USD", Status: ExpenseDraft}
	l := derive(t, item("1000"), expense(ExpenseApproved, "700"), *e)
	assert.Equal(t, "0.00", l.TrulyAvailable.StringFixed())
	assert.NoError(t, l.CheckSubmission(e, BudgetActive), "the draft is not checked against itself")

	e.Amount = decimal.RequireFromString("300.01")
	l = derive(t, item("1000"), expense(ExpenseApproved, "700"), *e)
	err := l.CheckSubmission(e, BudgetActive)
	var ib *InsufficientBudgetError
	require.True(t, errors.As(err, &ib))
	assert.Equal(t, "0.01", ib.Shortfall.StringFixed())
	assert.Equal(t, "300.00", ib.Available.StringFixed())

	assert.ErrorIs(t, l.CheckSubmission(e, BudgetDraft), ErrSpendingNotAllowed)

	locked := l
	locked.IsLocked = true
	assert.ErrorIs(t, locked.CheckSubmission(e, BudgetActive), ErrSpendingNotAllowed)

	e.Status = ExpensePending
	assert.ErrorIs(t, l.CheckSubmission(e, BudgetActive), ErrInvalidTransition)
}

func TestCheckSubmission_OtherDraftsHoldFunds(t *testing.T) {
	mine := &Expense{Amount: decimal.NewFromInt(700), Currency: "USD", Status: ExpenseDraft}
	l := derive(t, item("1000"), expense(ExpenseDraft, "700"), *mine)

	err := l.CheckSubmission(mine, BudgetActive)
	var ib *InsufficientBudgetError
	require.True(t, errors.As(err, &ib))
	assert.Equal(t, "300.00", ib.Available.StringFixed())
	assert.Equal(t, "400.00", ib.Shortfall.StringFixed())
}

func TestCheckBudgetedAmount(t *testing.T) {
	// Scenario D: budgeted 1000, spent 600, budget has 200 unallocated.
	l := derive(t, item("1000"), expense(ExpensePaid, "600"))
	remaining := usd("200")

	err := l.CheckBudgetedAmount(usd("500"), remaining)
	var rng *RangeError
	require.True(t, errors.As(err, &rng))
	assert.ErrorIs(t, err, ErrBelowSpentAmount)
	assert.Equal(t, "600.00", rng.Min.StringFixed())
	assert.Equal(t, "1200.00", rng.Max.StringFixed())

	assert.NoError(t, l.CheckBudgetedAmount(usd("600"), remaining))
	assert.NoError(t, l.CheckBudgetedAmount(usd("1200"), remaining))
	assert.ErrorIs(t, l.CheckBudgetedAmount(usd("1200.01"), remaining), ErrExceedsBudgetCapacity)
	assert.ErrorIs(t, l.CheckBudgetedAmount(usd("-1"), remaining), ErrInvalidInput)
}

func TestCheckDeletable(t *testing.T) {
	assert.NoError(t, derive(t, item("10"), expense(ExpensePaid, "5"), expense(ExpenseRejected, "1")).CheckDeletable())
	assert.ErrorIs(t, derive(t, item("10"), expense(ExpenseDraft, "5")).CheckDeletable(), ErrOutstandingExpenses)
}

func TestBudgetClose_DraftsBlock(t *testing.T) {
	l := derive(t, item("10"), expense(ExpenseDraft, "5"))
	assert.Equal(t, "5.00", l.Encumbered.StringFixed())

	b := &Budget{ID: "b1", Status: BudgetActive, Currency: "USD"}
	assert.ErrorIs(t, b.Close(BudgetLedger{Items: []ItemLedger{l}}), ErrOutstandingExpenses)
}
