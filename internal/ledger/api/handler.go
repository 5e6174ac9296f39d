package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ubongpr7/ngo-builder-f-sub004/internal/ledger/domain"
	"github.com/ubongpr7/ngo-builder-f-sub004/internal/ledger/service"
)

const (
	// IdentityHeader carries the caller identity, resolved upstream.
	IdentityHeader = "X-User-ID"
	identityKey    = "x-user-id"
)

type LedgerHandler struct {
	svc *service.LedgerService
}

func NewLedgerHandler(svc *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{svc: svc}
}

// RequireIdentity rejects requests without an identity header.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(IdentityHeader))
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Code:    "UNAUTHENTICATED",
				Title:   "Missing Identity",
				Message: IdentityHeader + " header is required",
			})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func caller(c *gin.Context) string {
	return c.GetString(identityKey)
}

// RegisterRoutes mounts the ledger under r. Reads are open; every mutation
// needs an identity.
func (h *LedgerHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/budgets/:id", h.GetBudget)
	r.GET("/items/:id", h.GetItem)
	r.GET("/items/:id/expenses", h.ListExpenses)
	r.GET("/expenses/:id", h.GetExpense)

	w := r.Group("", RequireIdentity())
	{
		w.POST("/budgets", h.CreateBudget)
		w.PATCH("/budgets/:id/total", h.AmendBudgetTotal)
		w.POST("/budgets/:id/approve", h.ApproveBudget)
		w.POST("/budgets/:id/close", h.CloseBudget)
		w.POST("/budgets/:id/cancel", h.CancelBudget)
		w.DELETE("/budgets/:id", h.DeleteBudget)
		w.POST("/budgets/:id/items", h.AddItem)

		w.PATCH("/items/:id/budgeted-amount", h.AmendBudgetedAmount)
		w.POST("/items/:id/lock", h.LockItem)
		w.POST("/items/:id/unlock", h.UnlockItem)
		w.DELETE("/items/:id", h.DeleteItem)
		w.POST("/items/:id/expenses", h.AddExpense)

		w.PATCH("/expenses/:id", h.EditExpense)
		w.POST("/expenses/:id/submit", h.SubmitExpense)
		w.POST("/expenses/:id/decision", h.DecideExpense)
		w.POST("/expenses/:id/resubmit", h.ResubmitExpense)
		w.DELETE("/expenses/:id", h.DeleteExpense)
	}
}

func (h *LedgerHandler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.fail(c, domain.NewInvalidInputError("body", "Invalid request: "+err.Error()))
		return false
	}
	return true
}

// ---------------------------------------------------------
// Budgets

// CreateBudget
// POST /api/v1/budgets
func (h *LedgerHandler) CreateBudget(c *gin.Context) {
	var req CreateBudgetReq
	if !h.bind(c, &req) {
		return
	}

	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		h.fail(c, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		h.fail(c, err)
		return
	}

	b, err := h.svc.CreateBudget(c.Request.Context(), caller(c), service.CreateBudgetRequest{
		Title:       req.Title,
		Currency:    req.Currency,
		TotalAmount: req.TotalAmount,
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, toBudgetResp(b))
}

// GET /api/v1/budgets/:id
func (h *LedgerHandler) GetBudget(c *gin.Context) {
	s, err := h.svc.GetBudgetSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toBudgetSummaryResp(s))
}

// PATCH /api/v1/budgets/:id/total
func (h *LedgerHandler) AmendBudgetTotal(c *gin.Context) {
	var req AmountReq
	if !h.bind(c, &req) {
		return
	}

	b, err := h.svc.AmendBudgetTotal(c.Request.Context(), caller(c), c.Param("id"), req.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toBudgetResp(b))
}

func (h *LedgerHandler) ApproveBudget(c *gin.Context) {
	h.budgetTransition(c, h.svc.ApproveBudget)
}

func (h *LedgerHandler) CloseBudget(c *gin.Context) {
	h.budgetTransition(c, h.svc.CloseBudget)
}

func (h *LedgerHandler) CancelBudget(c *gin.Context) {
	h.budgetTransition(c, h.svc.CancelBudget)
}

type budgetOp func(ctx context.Context, caller, budgetID string) (*domain.Budget, error)

// budgetTransition handles the body-less budget status changes.
func (h *LedgerHandler) budgetTransition(c *gin.Context, op budgetOp) {
	b, err := op(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toBudgetResp(b))
}

// DELETE /api/v1/budgets/:id
func (h *LedgerHandler) DeleteBudget(c *gin.Context) {
	if err := h.svc.DeleteBudget(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------------------------------------------------------
// Items

// POST /api/v1/budgets/:id/items
func (h *LedgerHandler) AddItem(c *gin.Context) {
	var req AddItemReq
	if !h.bind(c, &req) {
		return
	}

	item, err := h.svc.AddBudgetItem(c.Request.Context(), caller(c), c.Param("id"), service.AddItemRequest{
		Category:          req.Category,
		Subcategory:       req.Subcategory,
		Description:       req.Description,
		BudgetedAmount:    req.BudgetedAmount,
		ApprovalThreshold: req.ApprovalThreshold,
		ResponsiblePerson: req.ResponsiblePerson,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	h.respondItem(c, http.StatusCreated, item.ID)
}

// GET /api/v1/items/:id
func (h *LedgerHandler) GetItem(c *gin.Context) {
	h.respondItem(c, http.StatusOK, c.Param("id"))
}

// respondItem renders the item with its freshly derived ledger.
func (h *LedgerHandler) respondItem(c *gin.Context, status int, itemID string) {
	s, err := h.svc.GetItemSummary(c.Request.Context(), itemID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(status, toItemSummaryResp(s))
}

// PATCH /api/v1/items/:id/budgeted-amount
func (h *LedgerHandler) AmendBudgetedAmount(c *gin.Context) {
	var req AmountReq
	if !h.bind(c, &req) {
		return
	}

	item, err := h.svc.AmendBudgetedAmount(c.Request.Context(), caller(c), c.Param("id"), req.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respondItem(c, http.StatusOK, item.ID)
}

func (h *LedgerHandler) LockItem(c *gin.Context) {
	item, err := h.svc.LockItem(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respondItem(c, http.StatusOK, item.ID)
}

func (h *LedgerHandler) UnlockItem(c *gin.Context) {
	item, err := h.svc.UnlockItem(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respondItem(c, http.StatusOK, item.ID)
}

// DELETE /api/v1/items/:id
func (h *LedgerHandler) DeleteItem(c *gin.Context) {
	if err := h.svc.DeleteBudgetItem(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------------------------------------------------------
// Expenses

// GET /api/v1/items/:id/expenses
func (h *LedgerHandler) ListExpenses(c *gin.Context) {
	expenses, err := h.svc.ListExpenses(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	out := make([]ExpenseResp, len(expenses))
	for i := range expenses {
		out[i] = toExpenseResp(&expenses[i])
	}
	c.JSON(http.StatusOK, gin.H{"expenses": out})
}

func (h *LedgerHandler) GetExpense(c *gin.Context) {
	e, err := h.svc.GetExpense(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toExpenseResp(e))
}

// POST /api/v1/items/:id/expenses
func (h *LedgerHandler) AddExpense(c *gin.Context) {
	var req AddExpenseReq
	if !h.bind(c, &req) {
		return
	}

	svcReq, err := req.toService()
	if err != nil {
		h.fail(c, err)
		return
	}

	e, err := h.svc.AddExpense(c.Request.Context(), caller(c), c.Param("id"), svcReq)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toExpenseResp(e))
}

// PATCH /api/v1/expenses/:id
func (h *LedgerHandler) EditExpense(c *gin.Context) {
	var req EditExpenseReq
	if !h.bind(c, &req) {
		return
	}

	svcReq, err := req.toService()
	if err != nil {
		h.fail(c, err)
		return
	}

	e, err := h.svc.EditExpense(c.Request.Context(), caller(c), c.Param("id"), svcReq)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toExpenseResp(e))
}

// POST /api/v1/expenses/:id/submit
func (h *LedgerHandler) SubmitExpense(c *gin.Context) {
	e, err := h.svc.SubmitExpense(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toExpenseResp(e))
}

// POST /api/v1/expenses/:id/decision
func (h *LedgerHandler) DecideExpense(c *gin.Context) {
	var req DecisionReq
	if !h.bind(c, &req) {
		return
	}

	e, err := h.svc.DecideExpense(c.Request.Context(), caller(c), c.Param("id"), service.DecideRequest{
		Decision: domain.Decision(req.Decision),
		Reason:   req.Reason,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toExpenseResp(e))
}

// POST /api/v1/expenses/:id/resubmit
func (h *LedgerHandler) ResubmitExpense(c *gin.Context) {
	e, err := h.svc.ResubmitRejected(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toExpenseResp(e))
}

// DELETE /api/v1/expenses/:id
func (h *LedgerHandler) DeleteExpense(c *gin.Context) {
	if err := h.svc.DeleteDraftExpense(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
