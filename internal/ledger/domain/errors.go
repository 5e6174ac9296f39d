package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the ledger matches exactly one of
// these with errors.Is; the detail types below carry the numbers callers need
// to render a message.
var (
	ErrCurrencyMismatch         = errors.New("currency mismatch")
	ErrInvalidTransition        = errors.New("invalid transition")
	ErrInsufficientBudget       = errors.New("insufficient budget")
	ErrSelfApprovalNotPermitted = errors.New("self approval not permitted")
	ErrBelowSpentAmount         = errors.New("below spent amount")
	ErrExceedsBudgetCapacity    = errors.New("exceeds budget capacity")
	ErrAllocationLockTimeout    = errors.New("allocation lock timeout")
	ErrConcurrentModification   = errors.New("concurrent modification")
	ErrNotFound                 = errors.New("not found")
	ErrInvalidInput             = errors.New("invalid input")
	ErrSpendingNotAllowed       = errors.New("spending not allowed")
	ErrBudgetNotEditable        = errors.New("budget not editable")
	ErrOutstandingExpenses      = errors.New("outstanding expenses")
	ErrApprovalNotPermitted     = errors.New("approval not permitted")
)

var kinds = []error{
	ErrCurrencyMismatch,
	ErrInvalidTransition,
	ErrInsufficientBudget,
	ErrSelfApprovalNotPermitted,
	ErrBelowSpentAmount,
	ErrExceedsBudgetCapacity,
	ErrAllocationLockTimeout,
	ErrConcurrentModification,
	ErrNotFound,
	ErrInvalidInput,
	ErrSpendingNotAllowed,
	ErrBudgetNotEditable,
	ErrOutstandingExpenses,
	ErrApprovalNotPermitted,
}

// KindOf returns the error kind err matches, or nil for infrastructure
// failures.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// IsRetryable reports whether the operation can be retried as-is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAllocationLockTimeout) || errors.Is(err, ErrConcurrentModification)
}

// CurrencyMismatchError is returned by Money operations across currencies.
type CurrencyMismatchError struct {
	Left  string
	Right string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch: %s vs %s", e.Left, e.Right)
}

func (e *CurrencyMismatchError) Unwrap() error { return ErrCurrencyMismatch }

// TransitionError names the rejected state change.
type TransitionError struct {
	From ExpenseStatus
	To   ExpenseStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// InsufficientBudgetError carries the shortfall so the caller can say
// "exceeds remaining budget by X".
type InsufficientBudgetError struct {
	Requested Money
	Available Money
	Shortfall Money
}

func (e *InsufficientBudgetError) Error() string {
	return fmt.Sprintf("insufficient budget: requested %s, available %s, short by %s",
		e.Requested, e.Available, e.Shortfall)
}

func (e *InsufficientBudgetError) Unwrap() error { return ErrInsufficientBudget }

// RangeError reports an amount outside [Min, Max]. Kind is
// ErrBelowSpentAmount or ErrExceedsBudgetCapacity. Unbounded means Max does
// not apply.
type RangeError struct {
	Kind      error
	Requested Money
	Min       Money
	Max       Money
	Unbounded bool
}

func (e *RangeError) Error() string {
	if e.Unbounded {
		return fmt.Sprintf("%v: %s is below the minimum %s", e.Kind, e.Requested, e.Min)
	}

	return fmt.Sprintf("%v: %s is outside the valid range [%s, %s]", e.Kind, e.Requested, e.Min, e.Max)
}

func (e *RangeError) Unwrap() error { return e.Kind }

// DomainError is a kind plus a free-form message, used for the kinds that
// carry no numbers.
type DomainError struct {
	Kind    error
	Field   string
	Message string
}

func (e *DomainError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	}

	return fmt.Sprintf("%v: %s (%s)", e.Kind, e.Message, e.Field)
}

func (e *DomainError) Unwrap() error { return e.Kind }

func NewInvalidInputError(field, message string) error {
	return &DomainError{Kind: ErrInvalidInput, Field: field, Message: message}
}

func NewNotFoundError(entity, id string) error {
	return &DomainError{Kind: ErrNotFound, Field: entity, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

func newDomainError(kind error, format string, args ...any) error {
	return &DomainError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
