package api

import (
	"time"

	"github.com/ubongpr7/ngo-builder-f-sub004/internal/ledger/domain"
	"github.com/ubongpr7/ngo-builder-f-sub004/internal/ledger/service"
)

// Amounts always travel as strings so no float ever touches money.

type CreateBudgetReq struct {
	Title       string `json:"title" binding:"required"`
	Currency    string `json:"currency" binding:"required,len=3"`
	TotalAmount string `json:"total_amount" binding:"required"`
	StartDate   string `json:"start_date" binding:"required"` // YYYY-MM-DD or RFC3339
	EndDate     string `json:"end_date" binding:"required"`
}

type AmountReq struct {
	Amount string `json:"amount" binding:"required"`
}

type AddItemReq struct {
	Category          string  `json:"category" binding:"required"`
	Subcategory       string  `json:"subcategory"`
	Description       string  `json:"description"`
	BudgetedAmount    string  `json:"budgeted_amount" binding:"required"`
	ApprovalThreshold *string `json:"approval_required_threshold"`
	ResponsiblePerson string  `json:"responsible_person"`
}

type AddExpenseReq struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Amount      string `json:"amount" binding:"required"`
	Currency    string `json:"currency"`
	ExpenseDate string `json:"expense_date"`
	ExpenseType string `json:"expense_type"`
	Vendor      string `json:"vendor"`
}

type EditExpenseReq struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Amount      *string `json:"amount"`
	Currency    string  `json:"currency"`
	ExpenseDate *string `json:"expense_date"`
	ExpenseType *string `json:"expense_type"`
	Vendor      *string `json:"vendor"`
}

type DecisionReq struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject pay"`
	Reason   string `json:"reason"`
}

// parseDate accepts a calendar date or a full RFC3339 timestamp.
func parseDate(field, v string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, domain.NewInvalidInputError(field, "expected YYYY-MM-DD or RFC3339")
	}
	return t.UTC(), nil
}

func (r AddExpenseReq) toService() (service.AddExpenseRequest, error) {
	out := service.AddExpenseRequest{
		Title:       r.Title,
		Description: r.Description,
		Amount:      r.Amount,
		Currency:    r.Currency,
		ExpenseType: r.ExpenseType,
		Vendor:      r.Vendor,
	}
	if r.ExpenseDate != "" {
		d, err := parseDate("expense_date", r.ExpenseDate)
		if err != nil {
			return out, err
		}
		out.ExpenseDate = d
	}
	return out, nil
}

func (r EditExpenseReq) toService() (service.EditExpenseRequest, error) {
	out := service.EditExpenseRequest{
		Title:       r.Title,
		Description: r.Description,
		Amount:      r.Amount,
		Currency:    r.Currency,
		ExpenseType: r.ExpenseType,
		Vendor:      r.Vendor,
	}
	if r.ExpenseDate != nil {
		d, err := parseDate("expense_date", *r.ExpenseDate)
		if err != nil {
			return out, err
		}
		out.ExpenseDate = &d
	}
	return out, nil
}

// ---------------------------------------------------------
// Responses

type BudgetResp struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Currency    string     `json:"currency"`
	TotalAmount string     `json:"total_amount"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
	Status      string     `json:"status"`
	ApprovedBy  *string    `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toBudgetResp(b *domain.Budget) BudgetResp {
	return BudgetResp{
		ID:          b.ID,
		Title:       b.Title,
		Currency:    b.Currency,
		TotalAmount: b.Total().StringFixed(),
		StartDate:   b.StartDate,
		EndDate:     b.EndDate,
		Status:      string(b.Status),
		ApprovedBy:  b.ApprovedBy,
		ApprovedAt:  b.ApprovedAt,
		Version:     b.Version,
		CreatedAt:   b.CreatedAt,
	}
}

type ItemResp struct {
	ID                string  `json:"id"`
	BudgetID          string  `json:"budget_id"`
	Category          string  `json:"category"`
	Subcategory       string  `json:"subcategory,omitempty"`
	Description       string  `json:"description,omitempty"`
	BudgetedAmount    string  `json:"budgeted_amount"`
	ApprovalThreshold *string `json:"approval_required_threshold"`
	IsLocked          bool    `json:"is_locked"`
	ResponsiblePerson string  `json:"responsible_person,omitempty"`
	Version           int64   `json:"version"`
}

func toItemResp(item *domain.BudgetItem, currency string) ItemResp {
	r := ItemResp{
		ID:                item.ID,
		BudgetID:          item.BudgetID,
		Category:          item.Category,
		Subcategory:       item.Subcategory,
		Description:       item.Description,
		BudgetedAmount:    item.Budgeted(currency).StringFixed(),
		IsLocked:          item.IsLocked,
		ResponsiblePerson: item.ResponsiblePerson,
		Version:           item.Version,
	}
	if t := item.Threshold(currency); t != nil {
		s := t.StringFixed()
		r.ApprovalThreshold = &s
	}
	return r
}

// LedgerResp is the derived view of one item.
type LedgerResp struct {
	Currency              string `json:"currency"`
	Spent                 string `json:"spent_amount"`
	Approved              string `json:"approved_amount"`
	Pending               string `json:"pending_amount"`
	Draft                 string `json:"draft_amount"`
	Committed             string `json:"committed_amount"`
	Encumbered            string `json:"encumbered_amount"`
	TrulyAvailable        string `json:"truly_available_amount"`
	Variance              string `json:"variance"`
	UtilizationPercentage string `json:"utilization_percentage"`
	SpentPercentage       string `json:"spent_percentage"`
	Health                string `json:"health_status"`
	CanSpend              bool   `json:"can_spend"`
}

func toLedgerResp(l domain.ItemLedger) LedgerResp {
	return LedgerResp{
		Currency:              l.Currency,
		Spent:                 l.Spent.StringFixed(),
		Approved:              l.Approved.StringFixed(),
		Pending:               l.Pending.StringFixed(),
		Draft:                 l.Draft.StringFixed(),
		Committed:             l.Committed.StringFixed(),
		Encumbered:            l.Encumbered.StringFixed(),
		TrulyAvailable:        l.TrulyAvailable.StringFixed(),
		Variance:              l.Variance.StringFixed(),
		UtilizationPercentage: l.UtilizationPercentage.StringFixed(2),
		SpentPercentage:       l.SpentPercentage.StringFixed(2),
		Health:                string(l.Health),
		CanSpend:              l.CanSpend,
	}
}

type ItemSummaryResp struct {
	ItemResp
	Ledger LedgerResp `json:"ledger"`
}

func toItemSummaryResp(s *service.ItemSummary) ItemSummaryResp {
	return ItemSummaryResp{
		ItemResp: toItemResp(&s.Item, s.Budget.Currency),
		Ledger:   toLedgerResp(s.Ledger),
	}
}

type BudgetSummaryResp struct {
	BudgetResp
	TotalAllocated      string            `json:"total_allocated"`
	TotalSpent          string            `json:"total_spent"`
	TotalApproved       string            `json:"total_approved"`
	TotalPending        string            `json:"total_pending"`
	TotalCommitted      string            `json:"total_committed"`
	Remaining           string            `json:"remaining_amount"`
	AllocatedPercentage string            `json:"allocated_percentage"`
	SpentPercentage     string            `json:"spent_percentage"`
	Items               []ItemSummaryResp `json:"items"`
}

func toBudgetSummaryResp(s *service.BudgetSummary) BudgetSummaryResp {
	r := s.Ledger
	out := BudgetSummaryResp{
		BudgetResp:          toBudgetResp(&s.Budget),
		TotalAllocated:      r.TotalAllocated.StringFixed(),
		TotalSpent:          r.TotalSpent.StringFixed(),
		TotalApproved:       r.TotalApproved.StringFixed(),
		TotalPending:        r.TotalPending.StringFixed(),
		TotalCommitted:      r.TotalCommitted.StringFixed(),
		Remaining:           r.Remaining.StringFixed(),
		AllocatedPercentage: r.AllocatedPercentage.StringFixed(2),
		SpentPercentage:     r.SpentPercentage.StringFixed(2),
		Items:               make([]ItemSummaryResp, len(s.Items)),
	}
	// RollupBudget keeps item order.
	for i := range s.Items {
		out.Items[i] = ItemSummaryResp{
			ItemResp: toItemResp(&s.Items[i], s.Budget.Currency),
			Ledger:   toLedgerResp(r.Items[i]),
		}
	}
	return out
}

type ExpenseResp struct {
	ID              string    `json:"id"`
	BudgetItemID    string    `json:"budget_item_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	ExpenseDate     time.Time `json:"expense_date"`
	ExpenseType     string    `json:"expense_type,omitempty"`
	Vendor          *string   `json:"vendor,omitempty"`
	Status          string    `json:"status"`
	SubmittedBy     string    `json:"submitted_by"`
	ApprovedBy      *string   `json:"approved_by,omitempty"`
	RejectionReason *string   `json:"rejection_reason,omitempty"`
	StatusChangedAt time.Time `json:"status_changed_at"`
}

func toExpenseResp(e *domain.Expense) ExpenseResp {
	return ExpenseResp{
		ID:              e.ID,
		BudgetItemID:    e.BudgetItemID,
		Title:           e.Title,
		Description:     e.Description,
		Amount:          e.Money().StringFixed(),
		Currency:        e.Currency,
		ExpenseDate:     e.ExpenseDate,
		ExpenseType:     e.ExpenseType,
		Vendor:          e.Vendor,
		Status:          string(e.Status),
		SubmittedBy:     e.SubmittedBy,
		ApprovedBy:      e.ApprovedBy,
		RejectionReason: e.RejectionReason,
		StatusChangedAt: e.StatusChangedAt,
	}
}
