package domain

// BudgetStatus is the lifecycle state of a Budget.
//
//	draft -> active -> closed
//	draft | active -> cancelled
type BudgetStatus string

const (
	BudgetDraft     BudgetStatus = "draft"
	BudgetActive    BudgetStatus = "active"
	BudgetClosed    BudgetStatus = "closed"
	BudgetCancelled BudgetStatus = "cancelled"
)

// IsValid checks the status is one of the known values.
func (s BudgetStatus) IsValid() bool {
	switch s {
	case BudgetDraft, BudgetActive, BudgetClosed, BudgetCancelled:
		return true
	}
	return false
}

// AcceptsItems reports whether items may be added or resized.
func (s BudgetStatus) AcceptsItems() bool {
	return s == BudgetDraft || s == BudgetActive
}

// ExpenseStatus is the state of an expense in the approval workflow.
type ExpenseStatus string

const (
	ExpenseDraft    ExpenseStatus = "draft"
	ExpensePending  ExpenseStatus = "pending"
	ExpenseApproved ExpenseStatus = "approved"
	ExpensePaid     ExpenseStatus = "paid"
	ExpenseRejected ExpenseStatus = "rejected"
)

func (s ExpenseStatus) IsValid() bool {
	switch s {
	case ExpenseDraft, ExpensePending, ExpenseApproved, ExpensePaid, ExpenseRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s ExpenseStatus) IsTerminal() bool {
	return s == ExpensePaid || s == ExpenseRejected
}

// IsEditable reports whether amount and descriptive fields may change.
func (s ExpenseStatus) IsEditable() bool {
	return s == ExpenseDraft || s == ExpenseRejected
}

// Decision is an approver action on a submitted expense.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionPay     Decision = "pay"
)

func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject || d == DecisionPay
}

// Target returns the status a decision moves an expense to.
func (d Decision) Target() ExpenseStatus {
	switch d {
	case DecisionApprove:
		return ExpenseApproved
	case DecisionReject:
		return ExpenseRejected
	case DecisionPay:
		return ExpensePaid
	}
	return ""
}

// Health classifies a BudgetItem's consumption.
type Health string

const (
	HealthOvercommitted Health = "OVERCOMMITTED"
	HealthAtRisk        Health = "AT_RISK"
	HealthCaution       Health = "CAUTION"
	HealthUnderutilized Health = "UNDERUTILIZED"
	HealthHealthy       Health = "HEALTHY"
)

// AutoApprover is recorded as approved_by when a submission at or below the
// item's threshold is approved without an approver action.
const AutoApprover = "system:auto-approval"
