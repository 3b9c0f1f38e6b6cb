package ledger

import (
	"bytes"
	"strings"
	"testing"

	"spendsmart/internal/core"
	"spendsmart/web"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(web.TemplatesFS)
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	return r
}

func TestRenderer_EmptyLedger(t *testing.T) {
	r := newTestRenderer(t)
	canvas := &HTMLCanvas{}
	state := NewViewState("")
	if err := NewChartView(canvas).Refresh(state.ExpenseDistribution()); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := r.Ledger(&buf, NewViewModel(state, canvas.HTML())); err != nil {
		t.Fatalf("Ledger() error = %v", err)
	}
	out := buf.String()

	for _, id := range []string{"incomeCard", "expenseCard", "netCard"} {
		if !strings.Contains(out, `id="`+id+`">₹0.00<`) {
			t.Errorf("%s should show ₹0.00", id)
		}
	}
	if !strings.Contains(out, "No expense data yet") {
		t.Error("missing chart placeholder")
	}
}

func TestRenderer_Ledger(t *testing.T) {
	r := newTestRenderer(t)
	state := NewViewState("₹")
	state.Transactions = []core.Transaction{
		tx(1, core.Income, 20000, "Salary"),
		tx(2, core.Expense, 15000, "Food"),
		tx(3, core.Expense, 2000, "<script>"),
	}
	state.Budgets = map[string]core.Money{"Food": {Cents: 10000}}

	var buf bytes.Buffer
	if err := r.Ledger(&buf, NewViewModel(state, "")); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		`id="incomeCard">₹200.00<`,
		`id="expenseCard">₹170.00<`,
		`id="netCard">₹30.00<`,
		"💰 Income",
		"💸 Expense",
		`data-id="2"`,
		"<strong>Food</strong>: ₹150.00 / ₹100.00",
		`class="progress-fill over"`,
		"width: 100.0%",
		"&lt;script&gt;",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRenderer_Fragment(t *testing.T) {
	r := newTestRenderer(t)
	state := NewViewState("$")
	state.Transactions = []core.Transaction{tx(1, core.Expense, 5000, "Food")}
	state.Budgets = map[string]core.Money{"Food": {Cents: 10000}}

	var buf bytes.Buffer
	if err := r.Fragment(&buf, "budgets", NewViewModel(state, "")); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `class="progress-fill"`) || !strings.Contains(out, "width: 50.0%") {
		t.Errorf("budget fragment = %s", out)
	}
	if strings.Contains(out, "incomeCard") {
		t.Error("fragment should not include the summary")
	}
}

func TestRenderer_Pages(t *testing.T) {
	r := newTestRenderer(t)

	var buf bytes.Buffer
	if err := r.Page(&buf, "index.html", IndexPage{Flash: "Please log in first."}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Please log in first.") || !strings.Contains(buf.String(), `id="registerTab"`) {
		t.Error("index page missing flash or tabs")
	}

	buf.Reset()
	page := DashboardPage{
		Username:    "alice",
		AuthEnabled: true,
		Symbol:      "₹",
		View:        NewViewModel(NewViewState(""), ""),
	}
	if err := r.Page(&buf, "dashboard.html", page); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"alice", `href="/logout"`, `id="transactionForm"`, `id="budgetForm"`, `id="netCard"`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}
