package ledger

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"

	"spendsmart/internal/core"
)

// Row is one rendered transaction table row.
type Row struct {
	ID        int64
	Date      string
	Amount    string
	Type      string
	TypeLabel string
	Category  string
}

// BudgetRow is one rendered budget progress line.
type BudgetRow struct {
	Category string
	Spent    string
	Limit    string
	Percent  string
	Width    string
	Over     bool
}

// ViewModel is the display form of a ViewState.
type ViewModel struct {
	Income  string
	Expense string
	Net     string
	Rows    []Row
	Budgets []BudgetRow
	Chart   template.HTML
	Form    TransactionForm
	Editing int64
}

func typeLabel(t core.TransactionType) string {
	if t == core.Income {
		return "💰 Income"
	}
	return "💸 Expense"
}

// NewViewModel formats the state for display. chart is the fragment of
// the last chart refresh.
func NewViewModel(v *ViewState, chart template.HTML) ViewModel {
	totals := v.Totals()
	vm := ViewModel{
		Income:  totals.Income.Format(v.Symbol),
		Expense: totals.Expense.Format(v.Symbol),
		Net:     totals.Net.Format(v.Symbol),
		Rows:    make([]Row, 0, len(v.Transactions)),
		Chart:   chart,
	}
	for _, tx := range v.Transactions {
		vm.Rows = append(vm.Rows, Row{
			ID:        tx.ID,
			Date:      tx.Date.String(),
			Amount:    tx.Amount.Format(v.Symbol),
			Type:      string(tx.Type),
			TypeLabel: typeLabel(tx.Type),
			Category:  tx.Category,
		})
	}
	for _, line := range v.BudgetProgress() {
		vm.Budgets = append(vm.Budgets, BudgetRow{
			Category: line.Category,
			Spent:    line.Spent.Format(v.Symbol),
			Limit:    line.Limit.Format(v.Symbol),
			Percent:  line.Percent.StringFixed(1),
			Width:    line.Width.StringFixed(1),
			Over:     line.Over,
		})
	}
	return vm
}

// ControllerView returns the view model of the controller's current state,
// including the form and edit target.
func ControllerView(c *Controller, chart template.HTML) ViewModel {
	vm := NewViewModel(c.State(), chart)
	vm.Form = c.Form()
	vm.Editing, _ = c.Editing()
	return vm
}

// Renderer executes the page and fragment templates.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses templates/*.html from fsys.
func NewRenderer(fsys fs.FS) (*Renderer, error) {
	t, err := template.New("").ParseFS(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: t}, nil
}

// Ledger writes the summary cards, table body, budget list and chart.
func (r *Renderer) Ledger(w io.Writer, vm ViewModel) error {
	return r.tmpl.ExecuteTemplate(w, "ledger", vm)
}

// Fragment writes a single named part: summary, transactions, budgets or
// chart.
func (r *Renderer) Fragment(w io.Writer, name string, vm ViewModel) error {
	return r.tmpl.ExecuteTemplate(w, name, vm)
}

// Page writes a full page template such as index.html or dashboard.html.
func (r *Renderer) Page(w io.Writer, name string, data any) error {
	return r.tmpl.ExecuteTemplate(w, name, data)
}

// IndexPage is the data of the login/register landing page.
type IndexPage struct {
	Flash string
}

// DashboardPage is the data of the server-rendered dashboard.
type DashboardPage struct {
	Username    string
	AuthEnabled bool
	Symbol      string
	View        ViewModel
}
