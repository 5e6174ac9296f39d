package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// BudgetLedger is the derived state of a Budget, rolled up from its items.
type BudgetLedger struct {
	BudgetID string
	Status   BudgetStatus
	Currency string

	Total           Money
	TotalAllocated  Money // sum of budgeted
	TotalSpent      Money
	TotalApproved   Money
	TotalPending    Money
	TotalCommitted  Money
	TotalEncumbered Money
	Remaining       Money // total - allocated: headroom for new or larger items

	AllocatedPercentage decimal.Decimal
	SpentPercentage     decimal.Decimal

	Items []ItemLedger
}

// RollupBudget derives the budget ledger from items and their expenses,
// keyed by item id.
func RollupBudget(b *Budget, items []BudgetItem, expenses map[string][]Expense, now time.Time) (BudgetLedger, error) {
	cur := b.Currency
	parent := ContextOf(b)

	r := BudgetLedger{
		BudgetID:        b.ID,
		Status:          b.Status,
		Currency:        cur,
		Total:           b.Total(),
		TotalAllocated:  ZeroMoney(cur),
		TotalSpent:      ZeroMoney(cur),
		TotalApproved:   ZeroMoney(cur),
		TotalPending:    ZeroMoney(cur),
		TotalCommitted:  ZeroMoney(cur),
		TotalEncumbered: ZeroMoney(cur),
		Items:           make([]ItemLedger, 0, len(items)),
	}

	for i := range items {
		l, err := DeriveItem(&items[i], expenses[items[i].ID], parent, now)
		if err != nil {
			return BudgetLedger{}, err
		}

		r.TotalAllocated, _ = r.TotalAllocated.Add(l.Budgeted)
		r.TotalSpent, _ = r.TotalSpent.Add(l.Spent)
		r.TotalApproved, _ = r.TotalApproved.Add(l.Approved)
		r.TotalPending, _ = r.TotalPending.Add(l.Pending)
		r.TotalCommitted, _ = r.TotalCommitted.Add(l.Committed)
		r.TotalEncumbered, _ = r.TotalEncumbered.Add(l.Encumbered)
		r.Items = append(r.Items, l)
	}

	r.Remaining, _ = r.Total.Sub(r.TotalAllocated)
	r.AllocatedPercentage, _ = PercentOf(r.TotalAllocated, r.Total)
	r.SpentPercentage, _ = PercentOf(r.TotalSpent, r.Total)

	return r, nil
}

// RemainingCapacity is total_amount minus the sum of budgeted_amount, without touching
// expenses. Used by the capacity checks.
func RemainingCapacity(b *Budget, items []BudgetItem) Money {
	allocated := decimal.Zero
	for i := range items {
		allocated = allocated.Add(items[i].BudgetedAmount)
	}

	return NewMoney(b.TotalAmount.Sub(allocated), b.Currency)
}

// CheckNewItem validates adding an item with the given budgeted amount.
func CheckNewItem(b *Budget, items []BudgetItem, budgeted Money) error {
	if !b.Status.AcceptsItems() {
		return newDomainError(ErrBudgetNotEditable, "budget %s is %s", b.ID, b.Status)
	}

	if budgeted.IsNegative() {
		return NewInvalidInputError("budgeted_amount", "budgeted amount cannot be negative")
	}

	remaining := RemainingCapacity(b, items)
	c, err := budgeted.Cmp(remaining)
	if err != nil {
		return err
	}

	if c > 0 {
		return &RangeError{Kind: ErrExceedsBudgetCapacity, Requested: budgeted, Min: ZeroMoney(b.Currency), Max: remaining}
	}

	return nil
}

// CheckTotalAmount validates a new total_amount: it can never drop below what
// is already allocated to items.
func CheckTotalAmount(b *Budget, items []BudgetItem, total Money) error {
	if !b.Status.AcceptsItems() {
		return newDomainError(ErrBudgetNotEditable, "budget %s is %s", b.ID, b.Status)
	}

	allocated, _ := b.Total().Sub(RemainingCapacity(b, items))
	c, err := total.Cmp(allocated)
	if err != nil {
		return err
	}

	if c < 0 {
		return &RangeError{Kind: ErrExceedsBudgetCapacity, Requested: total, Min: allocated, Unbounded: true}
	}

	return nil
}

// NewBudgetInput are the caller-supplied fields of a Budget.
type NewBudgetInput struct {
	Title     string
	Total     Money
	StartDate time.Time
	EndDate   time.Time
}

// NewBudget validates the input and returns a draft Budget.
func NewBudget(in NewBudgetInput) (*Budget, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, NewInvalidInputError("title", "title is required")
	}

	if !currencyCode.MatchString(in.Total.Currency()) {
		return nil, NewInvalidInputError("currency", "currency must be a three-letter ISO code")
	}

	if in.Total.IsNegative() {
		return nil, NewInvalidInputError("total_amount", "total amount cannot be negative")
	}

	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return nil, NewInvalidInputError("start_date", "start and end dates are required")
	}

	if in.EndDate.Before(in.StartDate) {
		return nil, NewInvalidInputError("end_date", "end date is before start date")
	}

	return &Budget{
		Title:       title,
		Currency:    in.Total.Currency(),
		TotalAmount: in.Total.Amount(),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      BudgetDraft,
		Version:     1,
	}, nil
}

func budgetTransitionError(b *Budget, to BudgetStatus) error {
	return newDomainError(ErrInvalidTransition, "budget %s cannot move from %s to %s", b.ID, b.Status, to)
}

// Activate approves a draft budget. The approval capability is checked by
// the caller against the identity collaborator.
func (b *Budget) Activate(approver string, now time.Time) error {
	if b.Status != BudgetDraft {
		return budgetTransitionError(b, BudgetActive)
	}

	b.Status = BudgetActive
	b.ApprovedBy = &approver
	b.ApprovedAt = &now

	return nil
}

// Close moves an active budget to closed once nothing is outstanding.
func (b *Budget) Close(r BudgetLedger) error {
	if b.Status != BudgetActive {
		return budgetTransitionError(b, BudgetClosed)
	}

	for _, l := range r.Items {
		if !l.Encumbered.IsZero() {
			return newDomainError(ErrOutstandingExpenses,
				"budget item %s still encumbers %s", l.ItemID, l.Encumbered)
		}
	}

	b.Status = BudgetClosed

	return nil
}

// Cancel is allowed from any state except closed; cancelled is terminal.
func (b *Budget) Cancel() error {
	if b.Status == BudgetClosed || b.Status == BudgetCancelled {
		return budgetTransitionError(b, BudgetCancelled)
	}

	b.Status = BudgetCancelled

	return nil
}

// NewItemInput are the caller-supplied fields of a BudgetItem.
type NewItemInput struct {
	Category          string
	Subcategory       string
	Description       string
	Budgeted          Money
	Threshold         *Money
	ResponsiblePerson string
}

// NewBudgetItem validates the input against b's currency.
func NewBudgetItem(b *Budget, in NewItemInput) (*BudgetItem, error) {
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return nil, NewInvalidInputError("category", "category is required")
	}

	if _, err := in.Budgeted.unify(b.Total()); err != nil {
		return nil, err
	}

	item := &BudgetItem{
		BudgetID:          b.ID,
		Category:          category,
		Subcategory:       strings.TrimSpace(in.Subcategory),
		Description:       in.Description,
		BudgetedAmount:    in.Budgeted.Amount(),
		ResponsiblePerson: strings.TrimSpace(in.ResponsiblePerson),
		Version:           1,
	}

	if in.Threshold != nil {
		if _, err := in.Threshold.unify(b.Total()); err != nil {
			return nil, err
		}
		if in.Threshold.IsNegative() {
			return nil, NewInvalidInputError("approval_required_threshold", "threshold cannot be negative")
		}
		item.ApprovalThreshold = decimal.NewNullDecimal(in.Threshold.Amount())
	}

	return item, nil
}

// NewExpenseInput are the caller-supplied fields of a draft Expense.
type NewExpenseInput struct {
	Title       string
	Description string
	Amount      Money
	ExpenseDate time.Time
	ExpenseType string
	Vendor      string
	SubmittedBy string
}

// NewDraftExpense validates the input and returns a draft on item.
func NewDraftExpense(item *BudgetItem, currency string, in NewExpenseInput, now time.Time) (*Expense, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, NewInvalidInputError("title", "title is required")
	}

	submitter := strings.TrimSpace(in.SubmittedBy)
	if submitter == "" {
		return nil, NewInvalidInputError("submitted_by", "submitter identity is required")
	}

	if err := ValidateExpenseAmount(in.Amount, currency); err != nil {
		return nil, err
	}

	date := in.ExpenseDate
	if date.IsZero() {
		date = now
	}

	e := &Expense{
		BudgetItemID:    item.ID,
		Title:           title,
		Description:     in.Description,
		Amount:          in.Amount.Amount(),
		Currency:        currency,
		ExpenseDate:     date,
		ExpenseType:     strings.TrimSpace(in.ExpenseType),
		Status:          ExpenseDraft,
		SubmittedBy:     submitter,
		StatusChangedAt: now,
	}

	if v := strings.TrimSpace(in.Vendor); v != "" {
		e.Vendor = &v
	}

	return e, nil
}

// CloneAsDraft copies a rejected expense into a fresh draft on the same item.
func (e *Expense) CloneAsDraft(submitter string, now time.Time) (*Expense, error) {
	if e.Status != ExpenseRejected {
		return nil, &TransitionError{From: e.Status, To: ExpenseDraft}
	}

	clone := &Expense{
		BudgetItemID:    e.BudgetItemID,
		Title:           e.Title,
		Description:     e.Description,
		Amount:          e.Amount,
		Currency:        e.Currency,
		ExpenseDate:     e.ExpenseDate,
		ExpenseType:     e.ExpenseType,
		Vendor:          e.Vendor,
		Status:          ExpenseDraft,
		SubmittedBy:     strings.TrimSpace(submitter),
		StatusChangedAt: now,
	}
	if clone.SubmittedBy == "" {
		clone.SubmittedBy = e.SubmittedBy
	}

	return clone, nil
}
