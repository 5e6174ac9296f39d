package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ubongpr7/ngo-builder-f-sub004/internal/ledger/domain"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorSpec struct {
	status int
	code   string
	title  string
}

var errorSpecs = map[error]errorSpec{
	domain.ErrCurrencyMismatch:         {http.StatusBadRequest, "CURRENCY_MISMATCH", "Currency Mismatch"},
	domain.ErrInvalidTransition:        {http.StatusConflict, "INVALID_TRANSITION", "Invalid Status Transition"},
	domain.ErrInsufficientBudget:       {http.StatusUnprocessableEntity, "INSUFFICIENT_BUDGET", "Insufficient Budget"},
	domain.ErrSelfApprovalNotPermitted: {http.StatusForbidden, "SELF_APPROVAL_NOT_PERMITTED", "Self Approval Not Permitted"},
	domain.ErrBelowSpentAmount:         {http.StatusUnprocessableEntity, "BELOW_SPENT_AMOUNT", "Below Spent Amount"},
	domain.ErrExceedsBudgetCapacity:    {http.StatusUnprocessableEntity, "EXCEEDS_BUDGET_CAPACITY", "Exceeds Budget Capacity"},
	domain.ErrAllocationLockTimeout:    {http.StatusServiceUnavailable, "ALLOCATION_LOCK_TIMEOUT", "Allocation Busy"},
	domain.ErrConcurrentModification:   {http.StatusConflict, "CONCURRENT_MODIFICATION", "Concurrent Modification"},
	domain.ErrNotFound:                 {http.StatusNotFound, "NOT_FOUND", "Not Found"},
	domain.ErrInvalidInput:             {http.StatusBadRequest, "INVALID_INPUT", "Invalid Input"},
	domain.ErrSpendingNotAllowed:       {http.StatusUnprocessableEntity, "SPENDING_NOT_ALLOWED", "Spending Not Allowed"},
	domain.ErrBudgetNotEditable:        {http.StatusConflict, "BUDGET_NOT_EDITABLE", "Budget Not Editable"},
	domain.ErrOutstandingExpenses:      {http.StatusConflict, "OUTSTANDING_EXPENSES", "Outstanding Expenses"},
	domain.ErrApprovalNotPermitted:     {http.StatusForbidden, "APPROVAL_NOT_PERMITTED", "Approval Not Permitted"},
}

// toErrorResponse maps err to a status and body. Unknown errors become an
// opaque 500 so storage details never leak.
func toErrorResponse(err error) (int, ErrorResponse) {
	spec, ok := errorSpecs[domain.KindOf(err)]
	if !ok {
		return http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Title:   "Internal Server Error",
			Message: "the request could not be completed",
		}
	}

	return spec.status, ErrorResponse{
		Code:    spec.code,
		Title:   spec.title,
		Message: err.Error(),
		Details: errorDetails(err),
	}
}

func errorDetails(err error) map[string]any {
	var (
		insufficient *domain.InsufficientBudgetError
		rng          *domain.RangeError
		transition   *domain.TransitionError
		mismatch     *domain.CurrencyMismatchError
		de           *domain.DomainError
	)

	switch {
	case errors.As(err, &insufficient):
		return map[string]any{
			"requested": insufficient.Requested.StringFixed(),
			"available": insufficient.Available.StringFixed(),
			"shortfall": insufficient.Shortfall.StringFixed(),
			"currency":  insufficient.Requested.Currency(),
		}
	case errors.As(err, &rng):
		d := map[string]any{
			"requested": rng.Requested.StringFixed(),
			"min":       rng.Min.StringFixed(),
		}
		if !rng.Unbounded {
			d["max"] = rng.Max.StringFixed()
		}
		return d
	case errors.As(err, &transition):
		return map[string]any{"from": string(transition.From), "to": string(transition.To)}
	case errors.As(err, &mismatch):
		return map[string]any{"left": mismatch.Left, "right": mismatch.Right}
	case errors.As(err, &de) && de.Field != "":
		return map[string]any{"field": de.Field}
	}
	return nil
}

func (h *LedgerHandler) fail(c *gin.Context, err error) {
	status, body := toErrorResponse(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}
