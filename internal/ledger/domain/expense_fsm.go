package domain

import (
	"strings"
	"time"
)

// transitions lists every permitted state change. Anything absent fails
// with ErrInvalidTransition.
var transitions = map[ExpenseStatus][]ExpenseStatus{
	ExpenseDraft:    {ExpensePending},
	ExpensePending:  {ExpenseApproved, ExpenseRejected},
	ExpenseApproved: {ExpensePaid, ExpenseRejected},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to ExpenseStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to ExpenseStatus) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// RequiresExplicitApproval reports whether amount is above a non-null
// threshold. At or below the threshold a submission is approved on the spot.
func RequiresExplicitApproval(amount Money, threshold *Money) (bool, error) {
	if threshold == nil {
		return false, nil
	}

	c, err := amount.Cmp(*threshold)
	if err != nil {
		return false, err
	}

	return c > 0, nil
}

// Every method below validates first and mutates only when it returns nil.

func (e *Expense) setStatus(to ExpenseStatus, now time.Time) {
	e.Status = to
	e.StatusChangedAt = now
}

// Submit moves draft -> pending. Budget availability is checked by the item
// ledger before this is called.
func (e *Expense) Submit(now time.Time) error {
	if err := checkTransition(e.Status, ExpensePending); err != nil {
		return err
	}

	e.setStatus(ExpensePending, now)

	return nil
}

// AutoApprove approves a pending expense whose amount does not need an
// explicit approver. It reports whether the expense was approved.
func (e *Expense) AutoApprove(threshold *Money, now time.Time) (bool, error) {
	if e.Status != ExpensePending {
		return false, nil
	}

	explicit, err := RequiresExplicitApproval(e.Money(), threshold)
	if err != nil || explicit {
		return false, err
	}

	approver := AutoApprover
	e.ApprovedBy = &approver
	e.setStatus(ExpenseApproved, now)

	return true, nil
}

// Approve moves pending -> approved on behalf of approver. Above the
// threshold the approver must be a different identity than the submitter.
func (e *Expense) Approve(approver string, threshold *Money, now time.Time) error {
	if err := checkTransition(e.Status, ExpenseApproved); err != nil {
		return err
	}

	approver = strings.TrimSpace(approver)
	if approver == "" {
		return NewInvalidInputError("approver", "approver identity is required")
	}

	explicit, err := RequiresExplicitApproval(e.Money(), threshold)
	if err != nil {
		return err
	}

	if explicit && approver == e.SubmittedBy {
		return newDomainError(ErrSelfApprovalNotPermitted,
			"%s submitted expense %s and cannot approve it above the threshold", approver, e.ID)
	}

	e.ApprovedBy = &approver
	e.setStatus(ExpenseApproved, now)

	return nil
}

// Reject moves pending or approved -> rejected. The reason is mandatory.
func (e *Expense) Reject(reason string, now time.Time) error {
	if err := checkTransition(e.Status, ExpenseRejected); err != nil {
		return err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return NewInvalidInputError("rejection_reason", "a rejection reason is required")
	}

	e.RejectionReason = &reason
	e.setStatus(ExpenseRejected, now)

	return nil
}

// Pay moves approved -> paid.
func (e *Expense) Pay(now time.Time) error {
	if err := checkTransition(e.Status, ExpensePaid); err != nil {
		return err
	}

	e.setStatus(ExpensePaid, now)

	return nil
}

// ExpensePatch holds the fields an editable expense may change. Nil leaves
// the field untouched.
type ExpensePatch struct {
	Title       *string
	Description *string
	Amount      *Money
	ExpenseDate *time.Time
	ExpenseType *string
	Vendor      *string
}

// ApplyPatch edits a draft or rejected expense. The amount of any other state
// is frozen so an approval decision cannot be silently invalidated.
func (e *Expense) ApplyPatch(p ExpensePatch) error {
	if !e.Status.IsEditable() {
		return &TransitionError{From: e.Status, To: e.Status}
	}

	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return NewInvalidInputError("title", "title cannot be empty")
	}

	if p.Amount != nil {
		if err := ValidateExpenseAmount(*p.Amount, e.Currency); err != nil {
			return err
		}
	}

	if p.Title != nil {
		e.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Amount != nil {
		e.Amount = p.Amount.Amount()
	}
	if p.ExpenseDate != nil {
		e.ExpenseDate = *p.ExpenseDate
	}
	if p.ExpenseType != nil {
		e.ExpenseType = *p.ExpenseType
	}
	if p.Vendor != nil {
		v := strings.TrimSpace(*p.Vendor)
		if v == "" {
			e.Vendor = nil
		} else {
			e.Vendor = &v
		}
	}

	return nil
}

// ValidateExpenseAmount checks the amount is positive and in currency.
func ValidateExpenseAmount(amount Money, currency string) error {
	if _, err := amount.unify(ZeroMoney(currency)); err != nil {
		return err
	}

	if !amount.IsPositive() {
		return NewInvalidInputError("amount", "amount must be positive")
	}

	return nil
}
