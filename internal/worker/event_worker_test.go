package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"spendsmart/internal/amqp"
	"spendsmart/internal/core"
	"spendsmart/internal/notify"
	"spendsmart/internal/storage/memory"
)

type fakeMirror struct {
	mu      sync.Mutex
	rows    map[int64]core.Transaction
	cleared []int64
	err     error
}

func (f *fakeMirror) Upsert(_ context.Context, tx core.Transaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.rows == nil {
		f.rows = map[int64]core.Transaction{}
	}
	f.rows[tx.ID] = tx
	return "Transactions!A2:F2", nil
}

func (f *fakeMirror) Clear(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	delete(f.rows, id)
	f.cleared = append(f.cleared, id)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []notify.Alert
	err    error
}

func (f *fakeNotifier) Notify(_ context.Context, a notify.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return f.err
}

func expense(owner int64, cents int64, category string) core.Transaction {
	return core.Transaction{
		OwnerID:  owner,
		Amount:   core.Money{Cents: cents},
		Type:     core.Expense,
		Category: category,
		Date:     core.NewDate(2024, 6, 1),
	}
}

func addTx(t *testing.T, store *memory.Store, tx core.Transaction) core.Transaction {
	t.Helper()
	id, err := store.AddTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}
	tx.ID = id
	return tx
}

func TestEventWorker_MirrorsCreatedTransaction(t *testing.T) {
	store := memory.New()
	mirror := &fakeMirror{}
	w := NewEventWorker(store, mirror, nil)

	tx := addTx(t, store, expense(1, 2500, "Food"))
	if err := w.HandleEvent(context.Background(), amqp.NewTransactionEvent(amqp.TransactionCreated, tx)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if got := mirror.rows[tx.ID]; got != tx {
		t.Errorf("mirrored row = %+v, want %+v", got, tx)
	}
}

func TestEventWorker_UsesStoredRecordOnUpdate(t *testing.T) {
	store := memory.New()
	mirror := &fakeMirror{}
	w := NewEventWorker(store, mirror, nil)
	ctx := context.Background()

	tx := addTx(t, store, expense(1, 2500, "Food"))
	stale := tx
	tx.Amount = core.Money{Cents: 9900}
	if err := store.UpdateTransaction(ctx, tx); err != nil {
		t.Fatal(err)
	}

	if err := w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.TransactionUpdated, stale)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if got := mirror.rows[tx.ID].Amount.Cents; got != 9900 {
		t.Errorf("mirrored amount = %d, want 9900", got)
	}
}

func TestEventWorker_SkipsVanishedTransaction(t *testing.T) {
	mirror := &fakeMirror{}
	w := NewEventWorker(memory.New(), mirror, nil)

	gone := expense(1, 100, "Food")
	gone.ID = 77
	if err := w.HandleEvent(context.Background(), amqp.NewTransactionEvent(amqp.TransactionCreated, gone)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if len(mirror.rows) != 0 {
		t.Errorf("nothing should be mirrored, got %v", mirror.rows)
	}
}

func TestEventWorker_ClearsDeletedTransaction(t *testing.T) {
	mirror := &fakeMirror{}
	w := NewEventWorker(memory.New(), mirror, nil)

	deleted := core.Transaction{ID: 5, OwnerID: 1}
	if err := w.HandleEvent(context.Background(), amqp.NewTransactionEvent(amqp.TransactionDeleted, deleted)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if len(mirror.cleared) != 1 || mirror.cleared[0] != 5 {
		t.Errorf("cleared = %v, want [5]", mirror.cleared)
	}
}

func TestEventWorker_MirrorErrorRequeues(t *testing.T) {
	store := memory.New()
	w := NewEventWorker(store, &fakeMirror{err: errors.New("quota exceeded")}, nil)

	tx := addTx(t, store, expense(1, 100, "Food"))
	if err := w.HandleEvent(context.Background(), amqp.NewTransactionEvent(amqp.TransactionCreated, tx)); err == nil {
		t.Error("HandleEvent() should return the mirror error")
	}
}

func TestEventWorker_OverBudgetAlerts(t *testing.T) {
	tests := []struct {
		name      string
		limit     int64
		spend     []int64
		category  string
		wantAlert bool
	}{
		{"under limit", 10000, []int64{5000}, "Food", false},
		{"exactly at limit", 10000, []int64{6000, 4000}, "Food", false},
		{"over limit", 10000, []int64{6000, 4001}, "Food", true},
		{"no budget for category", 0, []int64{999999}, "Food", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := memory.New()
			notifier := &fakeNotifier{}
			w := NewEventWorker(store, nil, notifier)

			if tt.limit > 0 {
				if err := store.SetBudget(ctx, core.Budget{OwnerID: 3, Category: "Food", Limit: core.Money{Cents: tt.limit}}); err != nil {
					t.Fatal(err)
				}
			}
			var last core.Transaction
			for _, cents := range tt.spend {
				last = addTx(t, store, expense(3, cents, tt.category))
			}
			// income never counts against a budget
			addTx(t, store, core.Transaction{OwnerID: 3, Amount: core.Money{Cents: 100000}, Type: core.Income, Category: "Food", Date: core.NewDate(2024, 6, 1)})

			if err := w.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.TransactionCreated, last)); err != nil {
				t.Fatalf("HandleEvent() error = %v", err)
			}

			if got := len(notifier.alerts) > 0; got != tt.wantAlert {
				t.Fatalf("alerted = %v, want %v (alerts %+v)", got, tt.wantAlert, notifier.alerts)
			}
			if tt.wantAlert {
				a := notifier.alerts[0]
				if a.Owner != 3 || a.Category != "Food" || a.Limit.Cents != tt.limit || a.Spent.Cents != 10001 {
					t.Errorf("alert = %+v", a)
				}
			}
		})
	}
}

func TestEventWorker_BudgetSetChecksCategory(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	notifier := &fakeNotifier{}
	w := NewEventWorker(store, nil, notifier)

	addTx(t, store, expense(0, 3000, "Fuel"))
	b := core.Budget{OwnerID: 0, Category: "Fuel", Limit: core.Money{Cents: 2000}}
	if err := store.SetBudget(ctx, b); err != nil {
		t.Fatal(err)
	}

	if err := w.HandleEvent(ctx, amqp.NewBudgetEvent(b)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if len(notifier.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(notifier.alerts))
	}
}

func TestEventWorker_NotifierFailureIsNotRequeued(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	w := NewEventWorker(store, nil, &fakeNotifier{err: errors.New("telegram down")})

	b := core.Budget{OwnerID: 0, Category: "Fuel", Limit: core.Money{Cents: 100}}
	if err := store.SetBudget(ctx, b); err != nil {
		t.Fatal(err)
	}
	addTx(t, store, expense(0, 500, "Fuel"))

	if err := w.HandleEvent(ctx, amqp.NewBudgetEvent(b)); err != nil {
		t.Errorf("HandleEvent() error = %v, want nil", err)
	}
}

func TestEventWorker_Backfill(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	mirror := &fakeMirror{}
	w := NewEventWorker(store, mirror, nil)

	uid, err := store.CreateUser(ctx, core.User{Username: "alice", PasswordHash: "x"})
	if err != nil {
		t.Fatal(err)
	}
	addTx(t, store, expense(0, 100, "Food"))
	addTx(t, store, expense(uid, 200, "Rent"))
	addTx(t, store, expense(uid, 300, "Fuel"))

	if err := w.Backfill(ctx); err != nil {
		t.Fatalf("Backfill() error = %v", err)
	}
	if len(mirror.rows) != 3 {
		t.Errorf("mirrored %d rows, want 3", len(mirror.rows))
	}
}
