package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBudget(t *testing.T, total string) *Budget {
	t.Helper()
	b, err := NewBudget(NewBudgetInput{
		Title:     "Field operations 2026",
		Total:     usd(total),
		StartDate: ledgerStart,
		EndDate:   ledgerStart.AddDate(1, 0, 0),
	})
	require.NoError(t, err)
	b.ID = "b1"
	return b
}

func TestNewBudget_Validation(t *testing.T) {
	valid := NewBudgetInput{Title: "x", Total: usd("1"), StartDate: ledgerStart, EndDate: ledgerStart}

	tests := []struct {
		name   string
		mutate func(*NewBudgetInput)
	}{
		{"blank title", func(in *NewBudgetInput) { in.Title = " " }},
		{"bad currency", func(in *NewBudgetInput) { in.Total = MustParseMoney("1", "DOLLARS") }},
		{"negative total", func(in *NewBudgetInput) { in.Total = usd("-1") }},
		{"missing dates", func(in *NewBudgetInput) { in.StartDate = time.Time{} }},
		{"end before start", func(in *NewBudgetInput) { in.EndDate = ledgerStart.Add(-time.Hour) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := NewBudget(in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	b, err := NewBudget(valid)
	require.NoError(t, err)
	assert.Equal(t, BudgetDraft, b.Status)
	assert.Equal(t, int64(1), b.Version)
}

func TestBudgetLifecycle(t *testing.T) {
	b := newTestBudget(t, "5000")

	require.NoError(t, b.Activate("director", ledgerNow))
	assert.Equal(t, BudgetActive, b.Status)
	assert.Equal(t, "director", *b.ApprovedBy)
	assert.ErrorIs(t, b.Activate("director", ledgerNow), ErrInvalidTransition)

	encumbered := BudgetLedger{Items: []ItemLedger{{ItemID: "i1", Encumbered: usd("10")}}}
	assert.ErrorIs(t, b.Close(encumbered), ErrOutstandingExpenses)

	require.NoError(t, b.Close(BudgetLedger{Items: []ItemLedger{{ItemID: "i1", Encumbered: usd("0")}}}))
	assert.Equal(t, BudgetClosed, b.Status)
	assert.ErrorIs(t, b.Cancel(), ErrInvalidTransition)

	draft := newTestBudget(t, "10")
	require.NoError(t, draft.Cancel())
	assert.ErrorIs(t, draft.Cancel(), ErrInvalidTransition)
}

func TestCheckNewItem(t *testing.T) {
	b := newTestBudget(t, "5000")
	items := []BudgetItem{
		{ID: "i1", BudgetedAmount: decimal.NewFromInt(3000)},
		{ID: "i2", BudgetedAmount: decimal.NewFromInt(1500)},
	}

	assert.True(t, RemainingCapacity(b, items).Equal(usd("500")))
	assert.NoError(t, CheckNewItem(b, items, usd("500")))

	err := CheckNewItem(b, items, usd("500.01"))
	var rng *RangeError
	require.True(t, errors.As(err, &rng))
	assert.ErrorIs(t, err, ErrExceedsBudgetCapacity)
	assert.Equal(t, "500.00", rng.Max.StringFixed())

	b.Status = BudgetClosed
	assert.ErrorIs(t, CheckNewItem(b, items, usd("1")), ErrBudgetNotEditable)
}

func TestCheckTotalAmount(t *testing.T) {
	b := newTestBudget(t, "5000")
	items := []BudgetItem{{ID: "i1", BudgetedAmount: decimal.NewFromInt(3000)}}

	assert.NoError(t, CheckTotalAmount(b, items, usd("3000")))

	err := CheckTotalAmount(b, items, usd("2999"))
	var rng *RangeError
	require.True(t, errors.As(err, &rng))
	assert.True(t, rng.Unbounded)
	assert.Equal(t, "3000.00", rng.Min.StringFixed())
}

func TestRollupBudget(t *testing.T) {
	b := newTestBudget(t, "5000")
	b.Status = BudgetActive

	items := []BudgetItem{
		{ID: "i1", BudgetID: "b1", BudgetedAmount: decimal.NewFromInt(3000), CreatedAt: ledgerNow},
		{ID: "i2", BudgetID: "b1", BudgetedAmount: decimal.NewFromInt(1000), CreatedAt: ledgerNow},
	}
	expenses := map[string][]Expense{
		"i1": {expense(ExpensePaid, "1000"), expense(ExpensePending, "500")},
		"i2": {expense(ExpenseApproved, "250")},
	}

	r, err := RollupBudget(b, items, expenses, ledgerNow)
	require.NoError(t, err)

	assert.Equal(t, "4000.00", r.TotalAllocated.StringFixed())
	assert.Equal(t, "1000.00", r.TotalSpent.StringFixed())
	assert.Equal(t, "250.00", r.TotalApproved.StringFixed())
	assert.Equal(t, "500.00", r.TotalPending.StringFixed())
	assert.Equal(t, "1250.00", r.TotalCommitted.StringFixed())
	assert.Equal(t, "1000.00", r.Remaining.StringFixed())
	assert.True(t, r.AllocatedPercentage.Equal(decimal.NewFromInt(80)))
	assert.True(t, r.SpentPercentage.Equal(decimal.NewFromInt(20)))
	require.Len(t, r.Items, 2)
	assert.Equal(t, "i1", r.Items[0].ItemID)
}

func TestNewBudgetItemAndDraft(t *testing.T) {
	b := newTestBudget(t, "5000")
	threshold := usd("250")

	it, err := NewBudgetItem(b, NewItemInput{Category: "Travel", Budgeted: usd("1000"), Threshold: &threshold})
	require.NoError(t, err)
	assert.Equal(t, "b1", it.BudgetID)
	assert.True(t, it.ApprovalThreshold.Valid)

	_, err = NewBudgetItem(b, NewItemInput{Category: "Travel", Budgeted: MustParseMoney("1", "EUR")})
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = NewBudgetItem(b, NewItemInput{Category: "", Budgeted: usd("1")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	it.ID = "i1"
	e, err := NewDraftExpense(it, "USD", NewExpenseInput{Title: "Flights", Amount: usd("300"), SubmittedBy: "alice", Vendor: "Air"}, ledgerNow)
	require.NoError(t, err)
	assert.Equal(t, ExpenseDraft, e.Status)
	assert.Equal(t, ledgerNow, e.ExpenseDate)
	assert.Equal(t, "Air", *e.Vendor)

	_, err = NewDraftExpense(it, "USD", NewExpenseInput{Title: "Flights", Amount: usd("0"), SubmittedBy: "alice"}, ledgerNow)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewDraftExpense(it, "USD", NewExpenseInput{Title: "Flights", Amount: usd("1")}, ledgerNow)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCloneAsDraft(t *testing.T) {
	e := draftExpense("80")
	_, err := e.CloneAsDraft("alice", ledgerNow)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, e.Submit(ledgerNow))
	require.NoError(t, e.Reject("missing receipt", ledgerNow))

	clone, err := e.CloneAsDraft("", ledgerNow)
	require.NoError(t, err)
	assert.Equal(t, ExpenseDraft, clone.Status)
	assert.Empty(t, clone.ID)
	assert.Equal(t, "alice", clone.SubmittedBy)
	assert.True(t, clone.Money().Equal(e.Money()))
	assert.Equal(t, ExpenseRejected, e.Status)
}
