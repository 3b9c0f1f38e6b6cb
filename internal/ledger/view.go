// Package ledger is the view controller of the ledger: it loads records and
// budgets from the API, derives the summary figures, budget progress and
// expense chart from them, and turns form submissions into API calls.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"spendsmart/internal/core"
)

var (
	hundred = decimal.NewFromInt(100)
)

// ViewState holds the records the view renders. Both fields are replaced
// wholesale on every load.
type ViewState struct {
	Transactions []core.Transaction
	Budgets      map[string]core.Money
	// Symbol prefixes every displayed amount.
	Symbol string
}

func NewViewState(symbol string) *ViewState {
	if symbol == "" {
		symbol = core.DefaultCurrencySymbol
	}
	return &ViewState{
		Transactions: []core.Transaction{},
		Budgets:      map[string]core.Money{},
		Symbol:       symbol,
	}
}

// Find returns the loaded transaction with the given id.
func (v *ViewState) Find(id int64) (core.Transaction, bool) {
	for _, tx := range v.Transactions {
		if tx.ID == id {
			return tx, true
		}
	}
	return core.Transaction{}, false
}

func (v *ViewState) Totals() Totals {
	return ComputeTotals(v.Transactions)
}

func (v *ViewState) BudgetProgress() []BudgetLine {
	return ComputeBudgetProgress(v.Transactions, v.Budgets)
}

func (v *ViewState) ExpenseDistribution() Distribution {
	return ComputeDistribution(v.Transactions)
}

// Totals are the summary card figures. Net is always Income minus Expense.
type Totals struct {
	Income  core.Money
	Expense core.Money
	Net     core.Money
}

func ComputeTotals(txs []core.Transaction) Totals {
	var t Totals
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			t.Income = t.Income.Add(tx.Amount)
		case core.Expense:
			t.Expense = t.Expense.Add(tx.Amount)
		}
	}
	t.Net = t.Income.Sub(t.Expense)
	return t
}

// BudgetLine is the progress of one budgeted category.
type BudgetLine struct {
	Category string
	Spent    core.Money
	Limit    core.Money
	// Percent is Spent/Limit*100 rounded to one decimal place. It may
	// exceed 100.
	Percent decimal.Decimal
	// Width is Percent clamped to [0,100] for the progress bar.
	Width decimal.Decimal
	Over  bool
}

// ComputeBudgetProgress returns one line per budgeted category, ordered by
// category name. Spend counts expense records only.
func ComputeBudgetProgress(txs []core.Transaction, budgets map[string]core.Money) []BudgetLine {
	categories := make([]string, 0, len(budgets))
	for c := range budgets {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	lines := make([]BudgetLine, 0, len(categories))
	for _, c := range categories {
		limit := budgets[c]
		spent := core.CategorySpend(txs, c)
		pct := percentOf(spent, limit)
		lines = append(lines, BudgetLine{
			Category: c,
			Spent:    spent,
			Limit:    limit,
			Percent:  pct,
			Width:    clampPercent(pct),
			Over:     spent.Cents > limit.Cents,
		})
	}
	return lines
}

// percentOf treats a non-positive limit as fully used once anything is spent.
func percentOf(spent, limit core.Money) decimal.Decimal {
	if limit.Cents <= 0 {
		if spent.Cents <= 0 {
			return decimal.Zero
		}
		return hundred
	}
	return decimal.NewFromInt(spent.Cents).
		Mul(hundred).
		Div(decimal.NewFromInt(limit.Cents)).
		Round(1)
}

func clampPercent(p decimal.Decimal) decimal.Decimal {
	switch {
	case p.IsNegative():
		return decimal.Zero
	case p.GreaterThan(hundred):
		return hundred
	default:
		return p
	}
}

// Distribution is the expense total per category in first-seen order.
type Distribution struct {
	Labels []string
	Values []core.Money
}

func (d Distribution) Empty() bool {
	return len(d.Labels) == 0
}

func ComputeDistribution(txs []core.Transaction) Distribution {
	var d Distribution
	for _, ca := range core.SpendByCategory(txs) {
		d.Labels = append(d.Labels, ca.Name)
		d.Values = append(d.Values, ca.Amount)
	}
	return d
}
