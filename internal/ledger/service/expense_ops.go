package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ubongpr7/ngo-builder-f-sub004/internal/ledger/domain"
)

// AddExpenseRequest carries a new draft. An empty Currency means the
// budget's currency.
type AddExpenseRequest struct {
	Title       string
	Description string
	Amount      string
	Currency    string
	ExpenseDate time.Time
	ExpenseType string
	Vendor      string
}

// EditExpenseRequest changes fields of a draft or rejected expense. Nil
// leaves a field untouched.
type EditExpenseRequest struct {
	Title       *string
	Description *string
	Amount      *string
	Currency    string
	ExpenseDate *time.Time
	ExpenseType *string
	Vendor      *string
}

// DecideRequest is an approver action on a submitted expense.
type DecideRequest struct {
	Decision domain.Decision
	Reason   string
}

// AddExpense records a draft on an item. The draft holds its amount as
// pending until it is submitted or deleted. A locked or exhausted item
// accepts none, and neither does an inactive budget.
func (s *LedgerService) AddExpense(ctx context.Context, caller, itemID string, req AddExpenseRequest) (*domain.Expense, error) {
	var out *domain.Expense
	err := s.guard.Item(ctx, itemID, func(ctx context.Context) error {
		return s.inTx(ctx, func(tx *gorm.DB) error {
			// 1. Load the item and its ledger under the lock
			st, err := s.loadItem(ctx, tx, itemID)
			if err != nil {
				return err
			}

			// 2. The item must still accept spending
			if err := st.ledger.CheckCanSpend(st.budget.Status); err != nil {
				return err
			}

			amount, err := parseAmount(req.Amount, req.Currency, st.budget.Currency)
			if err != nil {
				return err
			}

			// 3. Build the draft
			e, err := domain.NewDraftExpense(st.item, st.budget.Currency, domain.NewExpenseInput{
				Title:       req.Title,
				Description: req.Description,
				Amount:      amount,
				ExpenseDate: req.ExpenseDate,
				ExpenseType: req.ExpenseType,
				Vendor:      req.Vendor,
				SubmittedBy: caller,
			}, s.clock())
			if err != nil {
				return err
			}

			// 4. Persist and fence the item version
			if err := s.expenses.Create(ctx, tx, e); err != nil {
				return err
			}
			if err := s.items.Touch(ctx, tx, st.item); err != nil {
				return err
			}

			out = e
			return nil
		})
	})
	if err != nil {
		s.logRejected("add_expense", err, zap.String("item_id", itemID), zap.String("caller", caller))
		return nil, err
	}

	s.logger.Info("expense drafted",
		zap.String("item_id", itemID),
		zap.String("expense_id", out.ID),
		zap.String("amount", out.Money().String()),
		zap.String("caller", caller),
	)

	return out, nil
}

// expenseUnit runs fn in the guarded unit of the expense's item, with the
// expense taken from the state read inside the transaction.
func (s *LedgerService) expenseUnit(ctx context.Context, expenseID string, fn func(ctx context.Context, tx *gorm.DB, st *itemState, e *domain.Expense) error) error {
	itemID, err := s.expenseItemID(ctx, expenseID)
	if err != nil {
		return err
	}

	return s.guard.Item(ctx, itemID, func(ctx context.Context) error {
		return s.inTx(ctx, func(tx *gorm.DB) error {
			st, err := s.loadItem(ctx, tx, itemID)
			if err != nil {
				return err
			}

			e, err := st.find(expenseID)
			if err != nil {
				return err
			}

			if err := fn(ctx, tx, st, e); err != nil {
				return err
			}

			return s.items.Touch(ctx, tx, st.item)
		})
	})
}

// EditExpense changes a draft or rejected expense. Any other state is frozen.
func (s *LedgerService) EditExpense(ctx context.Context, caller, expenseID string, req EditExpenseRequest) (*domain.Expense, error) {
	var out *domain.Expense
	err := s.expenseUnit(ctx, expenseID, func(ctx context.Context, tx *gorm.DB, st *itemState, e *domain.Expense) error {
		patch := domain.ExpensePatch{
			Title:       req.Title,
			Description: req.Description,
			ExpenseDate: req.ExpenseDate,
			ExpenseType: req.ExpenseType,
			Vendor:      req.Vendor,
		}
		if req.Amount != nil {
			amount, err := parseAmount(*req.Amount, req.Currency, e.Currency)
			if err != nil {
				return err
			}
			patch.Amount = &amount
		}

		if err := e.ApplyPatch(patch); err != nil {
			return err
		}
		if err := s.expenses.Save(ctx, tx, e); err != nil {
			return err
		}

		out = e
		return nil
	})
	if err != nil {
		s.logRejected("edit_expense", err, zap.String("expense_id", expenseID), zap.String("caller", caller))
		return nil, err
	}

	s.logger.Info("expense edited", zap.String("expense_id", expenseID), zap.String("caller", caller))

	return out, nil
}

// SubmitExpense moves a draft to pending, provided the item's truly
// available funds cover it, and approves it on the spot when it does not
// exceed the item's threshold. Submitting an already submitted expense
// fails with InvalidTransition and changes nothing.
func (s *LedgerService) SubmitExpense(ctx context.Context, caller, expenseID string) (*domain.Expense, error) {
	var out *domain.Expense
	err := s.expenseUnit(ctx, expenseID, func(ctx context.Context, tx *gorm.DB, st *itemState, e *domain.Expense) error {
		// 1. Funds check against everything else the item holds
		if err := st.ledger.CheckSubmission(e, st.budget.Status); err != nil {
			return err
		}

		// 2. Transition, auto-approving within the threshold
		now := s.clock()
		if err := e.Submit(now); err != nil {
			return err
		}
		if _, err := e.AutoApprove(st.ledger.Threshold, now); err != nil {
			return err
		}

		// 3. Re-derive: the item may never reserve more than it is budgeted
		if err := st.derive(now); err != nil {
			return err
		}
		if c, _ := st.ledger.Reserved().Cmp(st.ledger.Budgeted); c > 0 {
			return fmt.Errorf("item %s would reserve %s of %s", st.item.ID, st.ledger.Reserved(), st.ledger.Budgeted)
		}

		// 4. Persist
		if err := s.expenses.Save(ctx, tx, e); err != nil {
			return err
		}

		out = e
		return nil
	})
	if err != nil {
		s.logRejected("submit_expense", err, zap.String("expense_id", expenseID), zap.String("caller", caller))
		return nil, err
	}

	s.logger.Info("expense submitted",
		zap.String("expense_id", expenseID),
		zap.String("status", string(out.Status)),
		zap.String("amount", out.Money().String()),
		zap.String("caller", caller),
	)

	return out, nil
}

// DecideExpense applies an approver decision: approve or reject a pending
// expense, reject an approved one, or pay it.
func (s *LedgerService) DecideExpense(ctx context.Context, caller, expenseID string, req DecideRequest) (*domain.Expense, error) {
	if !req.Decision.IsValid() {
		return nil, domain.NewInvalidInputError("decision", fmt.Sprintf("unknown decision %q", req.Decision))
	}

	var out *domain.Expense
	err := s.expenseUnit(ctx, expenseID, func(ctx context.Context, tx *gorm.DB, st *itemState, e *domain.Expense) error {
		now := s.clock()

		var err error
		switch req.Decision {
		case domain.DecisionApprove:
			err = e.Approve(caller, st.ledger.Threshold, now)
		case domain.DecisionReject:
			err = e.Reject(req.Reason, now)
		case domain.DecisionPay:
			err = e.Pay(now)
		}
		if err != nil {
			return err
		}

		if err := s.expenses.Save(ctx, tx, e); err != nil {
			return err
		}

		out = e
		return nil
	})
	if err != nil {
		s.logRejected("decide_expense", err,
			zap.String("expense_id", expenseID),
			zap.String("decision", string(req.Decision)),
			zap.String("target", string(req.Decision.Target())),
			zap.String("caller", caller),
		)
		return nil, err
	}

	s.logger.Info("expense decided",
		zap.String("expense_id", expenseID),
		zap.String("decision", string(req.Decision)),
		zap.String("status", string(out.Status)),
		zap.String("caller", caller),
	)

	return out, nil
}

func (s *LedgerService) ApproveExpense(ctx context.Context, caller, expenseID string) (*domain.Expense, error) {
	return s.DecideExpense(ctx, caller, expenseID, DecideRequest{Decision: domain.DecisionApprove})
}

func (s *LedgerService) RejectExpense(ctx context.Context, caller, expenseID, reason string) (*domain.Expense, error) {
	return s.DecideExpense(ctx, caller, expenseID, DecideRequest{Decision: domain.DecisionReject, Reason: reason})
}

func (s *LedgerService) PayExpense(ctx context.Context, caller, expenseID string) (*domain.Expense, error) {
	return s.DecideExpense(ctx, caller, expenseID, DecideRequest{Decision: domain.DecisionPay})
}

// ResubmitRejected copies a rejected expense into a new draft on the same
// item. The rejected record stays as history.
func (s *LedgerService) ResubmitRejected(ctx context.Context, caller, expenseID string) (*domain.Expense, error) {
	var out *domain.Expense
	err := s.expenseUnit(ctx, expenseID, func(ctx context.Context, tx *gorm.DB, st *itemState, e *domain.Expense) error {
		clone, err := e.CloneAsDraft(caller, s.clock())
		if err != nil {
			return err
		}

		if err := st.ledger.CheckCanSpend(st.budget.Status); err != nil {
			return err
		}

		if err := s.expenses.Create(ctx, tx, clone); err != nil {
			return err
		}

		out = clone
		return nil
	})
	if err != nil {
		s.logRejected("resubmit_rejected", err, zap.String("expense_id", expenseID), zap.String("caller", caller))
		return nil, err
	}

	s.logger.Info("rejected expense redrafted",
		zap.String("expense_id", expenseID),
		zap.String("draft_id", out.ID),
		zap.String("caller", caller),
	)

	return out, nil
}

// DeleteDraftExpense archives a draft. Submitted expenses are history and
// stay.
func (s *LedgerService) DeleteDraftExpense(ctx context.Context, caller, expenseID string) error {
	err := s.expenseUnit(ctx, expenseID, func(ctx context.Context, tx *gorm.DB, _ *itemState, e *domain.Expense) error {
		if e.Status != domain.ExpenseDraft {
			return &domain.TransitionError{From: e.Status, To: domain.ExpenseDraft}
		}
		return s.expenses.Delete(ctx, tx, e.ID)
	})
	if err != nil {
		s.logRejected("delete_draft_expense", err, zap.String("expense_id", expenseID), zap.String("caller", caller))
		return err
	}

	s.logger.Info("draft expense deleted", zap.String("expense_id", expenseID), zap.String("caller", caller))

	return nil
}
