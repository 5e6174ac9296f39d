package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	atRiskPercent    = decimal.NewFromInt(95)
	cautionPercent   = decimal.NewFromInt(85)
	underusedPercent = decimal.NewFromInt(25)
)

// BudgetContext is what an item's derivation needs from its parent Budget.
type BudgetContext struct {
	ID        string
	Status    BudgetStatus
	Currency  string
	StartDate time.Time
}

// ContextOf extracts the BudgetContext of b.
func ContextOf(b *Budget) BudgetContext {
	return BudgetContext{ID: b.ID, Status: b.Status, Currency: b.Currency, StartDate: b.StartDate}
}

// ItemLedger is the derived state of one BudgetItem. It is never stored:
// DeriveItem rebuilds it from the item's current expenses on every read.
type ItemLedger struct {
	ItemID   string
	BudgetID string
	Currency string
	IsLocked bool

	Budgeted       Money
	Threshold      *Money
	Spent          Money // paid
	Approved       Money // approved, not yet paid
	Pending        Money // pending + draft
	Draft          Money // the draft share of Pending
	Rejected       Money
	Committed      Money // spent + approved
	Encumbered     Money // pending + approved
	TrulyAvailable Money // budgeted - committed - pending
	Variance       Money // budgeted - spent

	UtilizationPercentage decimal.Decimal
	SpentPercentage       decimal.Decimal
	Health                Health
	CanSpend              bool

	// Outstanding counts non-terminal expenses, drafts included.
	Outstanding int
}

// DeriveItem is the single derivation of every figure a BudgetItem exposes.
func DeriveItem(item *BudgetItem, expenses []Expense, parent BudgetContext, now time.Time) (ItemLedger, error) {
	cur := parent.Currency
	l := ItemLedger{
		ItemID:    item.ID,
		BudgetID:  item.BudgetID,
		Currency:  cur,
		IsLocked:  item.IsLocked,
		Budgeted:  item.Budgeted(cur),
		Threshold: item.Threshold(cur),
		Spent:     ZeroMoney(cur),
		Approved:  ZeroMoney(cur),
		Pending:   ZeroMoney(cur),
		Draft:     ZeroMoney(cur),
		Rejected:  ZeroMoney(cur),
	}

	for i := range expenses {
		e := &expenses[i]

		var bucket *Money
		switch e.Status {
		case ExpensePaid:
			bucket = &l.Spent
		case ExpenseApproved:
			bucket = &l.Approved
		case ExpensePending:
			bucket = &l.Pending
		case ExpenseDraft:
			bucket = &l.Draft
		case ExpenseRejected:
			bucket = &l.Rejected
		default:
			return ItemLedger{}, NewInvalidInputError("status", "unknown expense status "+string(e.Status))
		}

		sum, err := bucket.Add(e.Money())
		if err != nil {
			return ItemLedger{}, err
		}
		*bucket = sum

		// Drafts hold their amount against the item until submitted or deleted.
		if e.Status == ExpenseDraft {
			l.Pending, _ = l.Pending.Add(e.Money())
		}

		if !e.Status.IsTerminal() {
			l.Outstanding++
		}
	}

	// All buckets share cur from here on, so the arithmetic cannot fail.
	l.Committed, _ = l.Spent.Add(l.Approved)
	l.Encumbered, _ = l.Pending.Add(l.Approved)
	reserved, _ := l.Committed.Add(l.Pending)
	l.TrulyAvailable, _ = l.Budgeted.Sub(reserved)
	l.Variance, _ = l.Budgeted.Sub(l.Spent)
	l.UtilizationPercentage, _ = PercentOf(reserved, l.Budgeted)
	l.SpentPercentage, _ = PercentOf(l.Spent, l.Budgeted)

	l.Health = l.health(item.CreatedAt, parent.StartDate, now)
	l.CanSpend = !item.IsLocked && l.TrulyAvailable.IsPositive() && parent.Status == BudgetActive

	return l, nil
}

func (l ItemLedger) health(itemCreated, budgetStart, now time.Time) Health {
	if c, _ := l.Committed.Cmp(l.Budgeted); c > 0 {
		return HealthOvercommitted
	}

	if l.UtilizationPercentage.GreaterThanOrEqual(atRiskPercent) {
		return HealthAtRisk
	}

	if l.UtilizationPercentage.GreaterThanOrEqual(cautionPercent) {
		return HealthCaution
	}

	elapsed := now.Sub(budgetStart)
	age := now.Sub(itemCreated)
	if l.SpentPercentage.LessThan(underusedPercent) && elapsed > 0 && age > elapsed/2 {
		return HealthUnderutilized
	}

	return HealthHealthy
}

// CheckCanSpend explains why can_spend is false, or returns nil.
func (l ItemLedger) CheckCanSpend(parent BudgetStatus) error {
	switch {
	case l.IsLocked:
		return newDomainError(ErrSpendingNotAllowed, "budget item %s is locked", l.ItemID)
	case parent != BudgetActive:
		return newDomainError(ErrSpendingNotAllowed, "budget %s is %s, not active", l.BudgetID, parent)
	case !l.TrulyAvailable.IsPositive():
		return newDomainError(ErrSpendingNotAllowed, "budget item %s has no available funds", l.ItemID)
	}
	return nil
}

// CheckSubmission validates draft -> pending for e. l must be derived with e
// among its expenses. Nothing is mutated.
func (l ItemLedger) CheckSubmission(e *Expense, parent BudgetStatus) error {
	if err := checkTransition(e.Status, ExpensePending); err != nil {
		return err
	}

	if l.IsLocked || parent != BudgetActive {
		return l.CheckCanSpend(parent)
	}

	// l already counts the draft in Pending; it may not be checked against
	// its own share.
	amount := e.Money()
	available, err := l.TrulyAvailable.Add(amount)
	if err != nil {
		return err
	}

	if c, _ := amount.Cmp(available); c > 0 {
		shortfall, _ := amount.Sub(available)
		return &InsufficientBudgetError{Requested: amount, Available: available, Shortfall: shortfall}
	}

	return nil
}

// CheckBudgetedAmount validates a new budgeted_amount given the parent's
// unallocated headroom. The valid range is [spent, budgeted + remaining].
func (l ItemLedger) CheckBudgetedAmount(newAmount, remaining Money) error {
	if newAmount.IsNegative() {
		return NewInvalidInputError("budgeted_amount", "budgeted amount cannot be negative")
	}

	maxAmount, err := l.Budgeted.Add(remaining)
	if err != nil {
		return err
	}

	if c, err := newAmount.Cmp(l.Spent); err != nil {
		return err
	} else if c < 0 {
		return &RangeError{Kind: ErrBelowSpentAmount, Requested: newAmount, Min: l.Spent, Max: maxAmount}
	}

	if c, _ := newAmount.Cmp(maxAmount); c > 0 {
		return &RangeError{Kind: ErrExceedsBudgetCapacity, Requested: newAmount, Min: l.Spent, Max: maxAmount}
	}

	return nil
}

// CheckDeletable fails when the item still owns non-terminal expenses.
func (l ItemLedger) CheckDeletable() error {
	if l.Outstanding > 0 {
		return newDomainError(ErrOutstandingExpenses,
			"budget item %s still has %d non-terminal expenses", l.ItemID, l.Outstanding)
	}
	return nil
}

// Reserved is committed + pending, the figure the allocation invariant bounds.
func (l ItemLedger) Reserved() Money {
	r, _ := l.Committed.Add(l.Pending)
	return r
}
