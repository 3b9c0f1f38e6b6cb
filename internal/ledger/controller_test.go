package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"spendsmart/internal/core"
)

var errBoom = errors.New("boom")

// fakeAPI is an in-memory ledger server.
type fakeAPI struct {
	txs     []core.Transaction
	budgets map[string]core.Money
	nextID  int64

	mu    sync.Mutex
	calls []string

	failList, failBudgets     bool
	failAdd, failUpdate       bool
	failDelete, failSetBudget bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{budgets: map[string]core.Money{}, nextID: 1}
}

func (f *fakeAPI) ListTransactions(context.Context) ([]core.Transaction, error) {
	f.record("list")
	if f.failList {
		return nil, errBoom
	}
	return append([]core.Transaction(nil), f.txs...), nil
}

func (f *fakeAPI) AddTransaction(_ context.Context, tx core.Transaction) (int64, error) {
	f.record("add")
	if f.failAdd {
		return 0, errBoom
	}
	tx.ID = f.nextID
	f.nextID++
	f.txs = append(f.txs, tx.Normalize())
	return tx.ID, nil
}

func (f *fakeAPI) UpdateTransaction(_ context.Context, id int64, tx core.Transaction) error {
	f.record("update")
	if f.failUpdate {
		return errBoom
	}
	for i := range f.txs {
		if f.txs[i].ID == id {
			tx.ID = id
			f.txs[i] = tx.Normalize()
			return nil
		}
	}
	return errBoom
}

func (f *fakeAPI) DeleteTransaction(_ context.Context, id int64) error {
	f.record("delete")
	if f.failDelete {
		return errBoom
	}
	for i := range f.txs {
		if f.txs[i].ID == id {
			f.txs = append(f.txs[:i], f.txs[i+1:]...)
			return nil
		}
	}
	return errBoom
}

func (f *fakeAPI) ListBudgets(context.Context) (map[string]core.Money, error) {
	f.record("budgets")
	if f.failBudgets {
		return nil, errBoom
	}
	out := make(map[string]core.Money, len(f.budgets))
	for k, v := range f.budgets {
		out[k] = v
	}
	return out, nil
}

func (f *fakeAPI) SetBudget(_ context.Context, category, limit string) error {
	f.record("set_budget")
	if f.failSetBudget {
		return errBoom
	}
	cents, err := core.ParseDecimalToCents(limit)
	if err != nil {
		return err
	}
	f.budgets[category] = core.Money{Cents: cents}
	return nil
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAPI) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

type recorder struct {
	messages []string
}

func (r *recorder) Notify(msg string) { r.messages = append(r.messages, msg) }

func (r *recorder) last() string {
	if len(r.messages) == 0 {
		return ""
	}
	return r.messages[len(r.messages)-1]
}

func newTestController(api *fakeAPI) (*Controller, *recorder, *HTMLCanvas) {
	rec := &recorder{}
	canvas := &HTMLCanvas{}
	return NewController(api, rec, WithChart(NewChartView(canvas))), rec, canvas
}

func TestController_Load(t *testing.T) {
	api := newFakeAPI()
	api.txs = []core.Transaction{tx(1, core.Expense, 5000, "Food")}
	api.budgets["Food"] = core.Money{Cents: 10000}
	c, _, canvas := newTestController(api)

	if err := c.Dispatch(context.Background(), EventLoad, nil); err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := len(c.State().Transactions); got != 1 {
		t.Errorf("transactions = %d, want 1", got)
	}
	if got := c.State().Budgets["Food"].Cents; got != 10000 {
		t.Errorf("Food budget = %d, want 10000", got)
	}
	if !strings.Contains(string(canvas.HTML()), "data-chart") {
		t.Errorf("chart not drawn: %s", canvas.HTML())
	}
}

func TestController_Load_PartialFailure(t *testing.T) {
	api := newFakeAPI()
	api.txs = []core.Transaction{tx(1, core.Expense, 5000, "Food")}
	api.failBudgets = true
	c, rec, _ := newTestController(api)
	c.State().Budgets = map[string]core.Money{"Old": {Cents: 1}}

	err := c.Load(context.Background())
	if !errors.Is(err, errBoom) {
		t.Fatalf("Load() error = %v, want %v", err, errBoom)
	}
	if len(c.State().Transactions) != 1 {
		t.Error("successful transaction fetch should replace its cache")
	}
	if _, ok := c.State().Budgets["Old"]; !ok {
		t.Error("failed budget fetch should keep the previous budgets")
	}
	if len(rec.messages) != 1 || rec.messages[0] != MsgLoadFailed {
		t.Errorf("messages = %v, want [%q]", rec.messages, MsgLoadFailed)
	}
}

func TestController_ReloadFailuresAreNotified(t *testing.T) {
	ctx := context.Background()

	api := newFakeAPI()
	c, rec, _ := newTestController(api)
	api.failList = true
	if err := c.Submit(ctx, TransactionForm{Amount: "4", Type: "expense", Category: "Food", Date: "2025-03-01"}); !errors.Is(err, errBoom) {
		t.Fatalf("Submit() error = %v", err)
	}
	if rec.last() != MsgLoadFailed {
		t.Errorf("after failed reload, last message = %q", rec.last())
	}

	api = newFakeAPI()
	c, rec, _ = newTestController(api)
	api.failBudgets = true
	if err := c.SetBudget(ctx, BudgetForm{Category: "Food", Limit: "10"}); !errors.Is(err, errBoom) {
		t.Fatalf("SetBudget() error = %v", err)
	}
	if rec.last() != MsgBudgetsStale {
		t.Errorf("after failed budget reload, last message = %q", rec.last())
	}
}

func TestController_Submit_RejectsBeforeRequest(t *testing.T) {
	api := newFakeAPI()
	c, rec, _ := newTestController(api)

	err := c.Dispatch(context.Background(), EventSubmitTransaction,
		TransactionForm{Amount: "-5", Type: "expense", Category: "Food"})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if len(api.calls) != 0 {
		t.Errorf("no request expected, got %v", api.calls)
	}
	if rec.last() != MsgInvalidAmount {
		t.Errorf("notified %q, want %q", rec.last(), MsgInvalidAmount)
	}
	if c.Form().Amount != "-5" {
		t.Error("rejected form values should be kept")
	}
}

func TestController_Submit_Add(t *testing.T) {
	api := newFakeAPI()
	c, rec, _ := newTestController(api)

	err := c.Submit(context.Background(), TransactionForm{Amount: "12.50", Type: "expense", Category: "Food", Date: "2025-03-01"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if api.count("add") != 1 || api.count("list") != 1 {
		t.Errorf("calls = %v, want one add and a reload", api.calls)
	}
	if got := c.State().Transactions; len(got) != 1 || got[0].Amount.Cents != 1250 {
		t.Errorf("transactions = %+v", got)
	}
	if c.Form() != (TransactionForm{}) {
		t.Errorf("form should be reset, got %+v", c.Form())
	}
	if len(rec.messages) != 0 {
		t.Errorf("unexpected notifications %v", rec.messages)
	}
}

func TestController_Submit_AddFailure(t *testing.T) {
	api := newFakeAPI()
	api.failAdd = true
	c, rec, _ := newTestController(api)

	err := c.Submit(context.Background(), TransactionForm{Amount: "1", Type: "income", Category: "Gift"})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Submit() error = %v", err)
	}
	if rec.last() != MsgAddFailed {
		t.Errorf("notified %q, want %q", rec.last(), MsgAddFailed)
	}
	if api.count("list") != 0 {
		t.Error("failed add should not reload")
	}
}

func TestController_Edit(t *testing.T) {
	api := newFakeAPI()
	api.txs = []core.Transaction{tx(1, core.Expense, 5000, "Food"), tx(2, core.Income, 9000, "Salary")}
	api.nextID = 3
	c, _, _ := newTestController(api)
	ctx := context.Background()
	if err := c.Load(ctx); err != nil {
		t.Fatal(err)
	}

	if err := c.Dispatch(ctx, EventEditTransaction, int64(1)); err != nil {
		t.Fatalf("edit: %v", err)
	}
	want := TransactionForm{Amount: "50.00", Type: "expense", Category: "Food", Date: "2025-03-01"}
	if c.Form() != want {
		t.Errorf("form = %+v, want %+v", c.Form(), want)
	}
	if id, ok := c.Editing(); !ok || id != 1 {
		t.Errorf("Editing() = %d, %v", id, ok)
	}

	form := c.Form()
	form.Amount = "75"
	if err := c.Submit(ctx, form); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if api.count("update") != 1 || api.count("add") != 0 {
		t.Errorf("calls = %v, want an update and no add", api.calls)
	}
	if got, _ := c.State().Find(1); got.Amount.Cents != 7500 {
		t.Errorf("amount = %d, want 7500", got.Amount.Cents)
	}
	if _, ok := c.Editing(); ok {
		t.Error("edit mode should end after a successful update")
	}

	if err := c.Submit(ctx, TransactionForm{Amount: "1", Type: "income", Category: "Gift"}); err != nil {
		t.Fatal(err)
	}
	if api.count("add") != 1 {
		t.Error("the submission after an edit should create")
	}
}

func TestController_Edit_UnknownID(t *testing.T) {
	c, _, _ := newTestController(newFakeAPI())

	if err := c.BeginEdit(42); err == nil {
		t.Fatal("BeginEdit(42) should fail when not loaded")
	}
	if _, ok := c.Editing(); ok {
		t.Error("unknown id should not enter edit mode")
	}
}

func TestController_Edit_Failures(t *testing.T) {
	api := newFakeAPI()
	api.txs = []core.Transaction{tx(1, core.Expense, 5000, "Food")}
	c, rec, _ := newTestController(api)
	ctx := context.Background()
	if err := c.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.BeginEdit(1); err != nil {
		t.Fatal(err)
	}

	if err := c.Submit(ctx, TransactionForm{Amount: "x", Type: "expense", Category: "Food"}); err == nil {
		t.Fatal("invalid edit should fail")
	}
	if rec.last() != MsgInvalidAmount || api.count("update") != 0 {
		t.Errorf("invalid edit: notified %q, calls %v", rec.last(), api.calls)
	}

	api.failUpdate = true
	if err := c.Submit(ctx, TransactionForm{Amount: "5", Type: "expense", Category: "Food"}); err == nil {
		t.Fatal("failed update should return an error")
	}
	if rec.last() != MsgUpdateFailed {
		t.Errorf("notified %q, want %q", rec.last(), MsgUpdateFailed)
	}
	if id, ok := c.Editing(); !ok || id != 1 {
		t.Error("failed update should stay in edit mode")
	}
}

func TestController_Delete(t *testing.T) {
	api := newFakeAPI()
	api.txs = []core.Transaction{tx(1, core.Expense, 5000, "Food"), tx(2, core.Expense, 100, "Fun")}
	c, _, canvas := newTestController(api)
	ctx := context.Background()
	if err := c.Load(ctx); err != nil {
		t.Fatal(err)
	}

	if err := c.Dispatch(ctx, EventDeleteTransaction, int64(1)); err != nil {
		t.Fatalf("delete: %v", err)
	}

	vm := NewViewModel(c.State(), canvas.HTML())
	for _, row := range vm.Rows {
		if row.ID == 1 {
			t.Error("deleted id still rendered")
		}
	}
	if len(vm.Rows) != 1 {
		t.Errorf("rows = %d, want 1", len(vm.Rows))
	}
	if canvas.Live() != 1 {
		t.Errorf("live charts = %d, want 1", canvas.Live())
	}
}

func TestController_Delete_Failure(t *testing.T) {
	api := newFakeAPI()
	api.failDelete = true
	c, rec, _ := newTestController(api)

	if err := c.Delete(context.Background(), 9); err == nil {
		t.Fatal("Delete() should fail")
	}
	if rec.last() != MsgDeleteFailed {
		t.Errorf("notified %q, want %q", rec.last(), MsgDeleteFailed)
	}
	if api.count("list") != 0 {
		t.Error("failed delete should not reload")
	}
}

func TestController_SetBudget(t *testing.T) {
	api := newFakeAPI()
	c, rec, _ := newTestController(api)
	ctx := context.Background()

	if err := c.Dispatch(ctx, EventSubmitBudget, BudgetForm{Category: "Food", Limit: "100"}); err != nil {
		t.Fatalf("set budget: %v", err)
	}
	if got := c.State().Budgets["Food"].Cents; got != 10000 {
		t.Errorf("Food budget = %d, want 10000", got)
	}
	if api.count("list") != 0 || api.count("budgets") != 1 {
		t.Errorf("calls = %v, want only a budget reload", api.calls)
	}
	if c.BudgetForm() != (BudgetForm{}) {
		t.Error("budget form should be reset")
	}

	api.failSetBudget = true
	if err := c.SetBudget(ctx, BudgetForm{Category: "Food", Limit: "5"}); err == nil {
		t.Fatal("SetBudget() should fail")
	}
	if rec.last() != MsgBudgetFailed {
		t.Errorf("notified %q, want %q", rec.last(), MsgBudgetFailed)
	}
	if c.BudgetForm().Limit != "5" {
		t.Error("failed budget form should keep its values")
	}
}

func TestController_Dispatch(t *testing.T) {
	c, _, _ := newTestController(newFakeAPI())
	ctx := context.Background()

	if err := c.Dispatch(ctx, Event("nope"), nil); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("unknown event error = %v", err)
	}
	if err := c.Dispatch(ctx, EventDeleteTransaction, "1"); err == nil {
		t.Error("wrong payload type should fail")
	}

	var seen []Event
	c.On(EventLoad, func(context.Context, any) error {
		seen = append(seen, EventLoad)
		return nil
	})
	if err := c.Dispatch(ctx, EventLoad, nil); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 {
		t.Error("registered handler should replace the default")
	}
}

func TestController_ConcurrentLoadFetchesBoth(t *testing.T) {
	api := newFakeAPI()
	c, _, _ := newTestController(api)
	if err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	calls := append([]string(nil), api.calls...)
	sort.Strings(calls)
	if len(calls) != 2 || calls[0] != "budgets" || calls[1] != "list" {
		t.Errorf("calls = %v", api.calls)
	}
}
