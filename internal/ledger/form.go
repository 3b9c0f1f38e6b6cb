package ledger

import (
	"errors"
	"strings"

	"spendsmart/internal/core"
)

// Messages shown to the user.
const (
	MsgInvalidType   = "Type must be either 'income' or 'expense'"
	MsgInvalidAmount = "Amount must be a positive number"
	MsgAmountTooFine = "Amount must be at least 0.01"
	MsgAmountTooBig  = "Amount must not exceed 100000000000.00"
	MsgEmptyCategory = "Category cannot be empty"
	MsgInvalidDate   = "Date must be in YYYY-MM-DD format"

	MsgAddFailed    = "Failed to add transaction."
	MsgUpdateFailed = "Failed to update transaction."
	MsgDeleteFailed = "Failed to delete transaction."
	MsgBudgetFailed = "Failed to set budget."
	MsgLoadFailed   = "Failed to load transactions."
	MsgBudgetsStale = "Failed to load budgets."
)

// ValidationError is returned when a form is rejected before any request
// is made. Message is the text shown to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// TransactionForm holds the raw field values of the transaction form.
type TransactionForm struct {
	Amount   string
	Type     string
	Category string
	Date     string
}

// FormFor pre-populates the form with the values of tx.
func FormFor(tx core.Transaction) TransactionForm {
	return TransactionForm{
		Amount:   tx.Amount.String(),
		Type:     string(tx.Type),
		Category: tx.Category,
		Date:     tx.Date.String(),
	}
}

// Transaction validates the form and converts it. An empty date is left
// for the server to default.
func (f TransactionForm) Transaction() (core.Transaction, error) {
	typ, err := core.ParseTransactionType(f.Type)
	if err != nil {
		return core.Transaction{}, &ValidationError{Message: MsgInvalidType}
	}
	cents, err := core.ParseDecimalToCents(strings.TrimSpace(f.Amount))
	switch {
	case errors.Is(err, core.ErrAmountBelowCent):
		return core.Transaction{}, &ValidationError{Message: MsgAmountTooFine}
	case errors.Is(err, core.ErrAmountTooLarge):
		return core.Transaction{}, &ValidationError{Message: MsgAmountTooBig}
	case err != nil:
		return core.Transaction{}, &ValidationError{Message: MsgInvalidAmount}
	}
	category := strings.TrimSpace(f.Category)
	if category == "" {
		return core.Transaction{}, &ValidationError{Message: MsgEmptyCategory}
	}
	date, err := core.ParseDate(f.Date)
	if err != nil {
		return core.Transaction{}, &ValidationError{Message: MsgInvalidDate}
	}
	return core.Transaction{
		Amount:   core.Money{Cents: cents},
		Type:     typ,
		Category: category,
		Date:     date,
	}, nil
}

// BudgetForm holds the raw field values of the budget form. It is sent as
// entered; the server validates it.
type BudgetForm struct {
	Category string
	Limit    string
}
