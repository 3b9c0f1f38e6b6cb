package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"spendsmart/internal/amqp"
	"spendsmart/internal/auth"
	"spendsmart/internal/core"
	"spendsmart/internal/ports"
	"spendsmart/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
	closed bool
}

func (p *recordingPublisher) Publish(_ context.Context, e *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

// countingStore counts list calls to observe caching.
type countingStore struct {
	*memory.Store
	txLists     int
	budgetLists int
}

func (c *countingStore) ListTransactions(ctx context.Context, owner int64) ([]core.Transaction, error) {
	c.txLists++
	return c.Store.ListTransactions(ctx, owner)
}

func (c *countingStore) ListBudgets(ctx context.Context, owner int64) (map[string]core.Money, error) {
	c.budgetLists++
	return c.Store.ListBudgets(ctx, owner)
}

func food(cents int64) core.Transaction {
	return core.Transaction{
		Amount:   core.Money{Cents: cents},
		Type:     core.Expense,
		Category: " Food ",
		Date:     core.NewDate(2024, 2, 29),
	}
}

func TestLedgerService_AddTransaction(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	s := NewLedgerService(memory.New(), WithPublisher(pub))

	id, err := s.AddTransaction(ctx, 7, food(1250))
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}

	txs, err := s.ListTransactions(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 1 || txs[0].ID != id || txs[0].Category != "Food" || txs[0].OwnerID != 7 {
		t.Fatalf("ListTransactions() = %+v", txs)
	}

	if len(pub.events) != 1 || pub.events[0].Kind != amqp.TransactionCreated || pub.events[0].Transaction.ID != id {
		t.Errorf("published = %+v", pub.events)
	}
}

func TestLedgerService_AddDefaultsDate(t *testing.T) {
	s := NewLedgerService(memory.New())
	tx := food(100)
	tx.Date = core.Date{}

	if _, err := s.AddTransaction(context.Background(), 0, tx); err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}
	txs, _ := s.ListTransactions(context.Background(), 0)
	if got := txs[0].Date.String(); got != core.Today().String() {
		t.Errorf("date = %s, want today", got)
	}
}

func TestLedgerService_Validation(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewLedgerService(memory.New(), WithPublisher(pub))
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*core.Transaction)
		wantErr error
	}{
		{"negative amount", func(tx *core.Transaction) { tx.Amount = core.Money{Cents: -500} }, core.ErrInvalidAmount},
		{"zero amount", func(tx *core.Transaction) { tx.Amount = core.Money{} }, core.ErrInvalidAmount},
		{"bad type", func(tx *core.Transaction) { tx.Type = "transfer" }, core.ErrInvalidType},
		{"blank category", func(tx *core.Transaction) { tx.Category = "   " }, core.ErrEmptyCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := food(100)
			tt.mutate(&tx)
			if _, err := s.AddTransaction(ctx, 0, tx); !errors.Is(err, tt.wantErr) {
				t.Errorf("AddTransaction() error = %v, want %v", err, tt.wantErr)
			}
			if err := s.UpdateTransaction(ctx, 0, 1, tx); !errors.Is(err, tt.wantErr) {
				t.Errorf("UpdateTransaction() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if len(pub.events) != 0 {
		t.Errorf("invalid input must not publish, got %d events", len(pub.events))
	}
}

func TestLedgerService_CacheInvalidation(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: memory.New()}
	s := NewLedgerService(store)

	if _, err := s.ListTransactions(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ListTransactions(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if store.txLists != 1 {
		t.Fatalf("second list should be served from cache, store hit %d times", store.txLists)
	}

	id, _ := s.AddTransaction(ctx, 1, food(100))
	txs, _ := s.ListTransactions(ctx, 1)
	if len(txs) != 1 || store.txLists != 2 {
		t.Fatalf("add must invalidate: txs=%d lists=%d", len(txs), store.txLists)
	}

	updated := food(300)
	if err := s.UpdateTransaction(ctx, 1, id, updated); err != nil {
		t.Fatal(err)
	}
	txs, _ = s.ListTransactions(ctx, 1)
	if txs[0].Amount.Cents != 300 {
		t.Errorf("update must invalidate, amount = %d", txs[0].Amount.Cents)
	}

	if err := s.DeleteTransaction(ctx, 1, id); err != nil {
		t.Fatal(err)
	}
	txs, _ = s.ListTransactions(ctx, 1)
	if len(txs) != 0 {
		t.Errorf("deleted id still listed: %+v", txs)
	}

	if _, err := s.ListBudgets(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.SetBudget(ctx, 1, core.Budget{Category: "Food", Limit: core.Money{Cents: 10000}}); err != nil {
		t.Fatal(err)
	}
	budgets, _ := s.ListBudgets(ctx, 1)
	if budgets["Food"].Cents != 10000 || store.budgetLists != 2 {
		t.Errorf("set budget must invalidate: budgets=%v lists=%d", budgets, store.budgetLists)
	}

	txStats, _ := s.CacheStats()
	if txStats.Hits == 0 || txStats.Misses == 0 {
		t.Errorf("cache stats = %+v", txStats)
	}
}

// pausingStore holds the first list call after it has read from the store
// until release is closed.
type pausingStore struct {
	*memory.Store
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newPausingStore() *pausingStore {
	return &pausingStore{Store: memory.New(), read: make(chan struct{}), release: make(chan struct{})}
}

func (p *pausingStore) hold() {
	first := false
	p.once.Do(func() { first = true })
	if first {
		close(p.read)
		<-p.release
	}
}

func (p *pausingStore) ListTransactions(ctx context.Context, owner int64) ([]core.Transaction, error) {
	txs, err := p.Store.ListTransactions(ctx, owner)
	p.hold()
	return txs, err
}

func (p *pausingStore) ListBudgets(ctx context.Context, owner int64) (map[string]core.Money, error) {
	budgets, err := p.Store.ListBudgets(ctx, owner)
	p.hold()
	return budgets, err
}

func TestLedgerService_SlowReadDoesNotRefillAfterDelete(t *testing.T) {
	ctx := context.Background()
	store := newPausingStore()
	s := NewLedgerService(store)

	id, err := store.Store.AddTransaction(ctx, core.Transaction{OwnerID: 1, Amount: core.Money{Cents: 500}, Type: core.Expense, Category: "Food", Date: core.NewDate(2024, 1, 1)})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan []core.Transaction)
	go func() {
		txs, _ := s.ListTransactions(ctx, 1)
		done <- txs
	}()
	<-store.read

	if err := s.DeleteTransaction(ctx, 1, id); err != nil {
		t.Fatal(err)
	}
	close(store.release)
	if stale := <-done; len(stale) != 1 {
		t.Fatalf("in-flight read = %+v, want the pre-delete list", stale)
	}

	txs, err := s.ListTransactions(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 0 {
		t.Errorf("deleted id %d still listed: %+v", id, txs)
	}
}

func TestLedgerService_SlowReadDoesNotRefillAfterSetBudget(t *testing.T) {
	ctx := context.Background()
	store := newPausingStore()
	s := NewLedgerService(store)

	done := make(chan struct{})
	go func() {
		_, _ = s.ListBudgets(ctx, 1)
		close(done)
	}()
	<-store.read

	if err := s.SetBudget(ctx, 1, core.Budget{Category: "Food", Limit: core.Money{Cents: 2500}}); err != nil {
		t.Fatal(err)
	}
	close(store.release)
	<-done

	budgets, err := s.ListBudgets(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if budgets["Food"].Cents != 2500 {
		t.Errorf("budgets = %v, want Food at 2500", budgets)
	}
}

func TestLedgerService_ListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewLedgerService(memory.New())
	if _, err := s.AddTransaction(ctx, 0, food(100)); err != nil {
		t.Fatal(err)
	}
	if err := s.SetBudget(ctx, 0, core.Budget{Category: "Food", Limit: core.Money{Cents: 100}}); err != nil {
		t.Fatal(err)
	}

	txs, _ := s.ListTransactions(ctx, 0)
	txs[0].Category = "changed"
	budgets, _ := s.ListBudgets(ctx, 0)
	budgets["Food"] = core.Money{Cents: 1}

	txs, _ = s.ListTransactions(ctx, 0)
	budgets, _ = s.ListBudgets(ctx, 0)
	if txs[0].Category != "Food" || budgets["Food"].Cents != 100 {
		t.Errorf("cached values were mutated through returned results")
	}
}

func TestLedgerService_OwnerScoping(t *testing.T) {
	ctx := context.Background()
	s := NewLedgerService(memory.New())

	id, _ := s.AddTransaction(ctx, 1, food(100))
	if err := s.DeleteTransaction(ctx, 2, id); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("DeleteTransaction() by another owner = %v, want ErrNotFound", err)
	}
	if err := s.UpdateTransaction(ctx, 2, id, food(5)); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("UpdateTransaction() by another owner = %v, want ErrNotFound", err)
	}
	txs, _ := s.ListTransactions(ctx, 2)
	if len(txs) != 0 {
		t.Errorf("owner 2 sees %d transactions", len(txs))
	}
}

func TestLedgerService_SetBudgetValidation(t *testing.T) {
	s := NewLedgerService(memory.New())
	ctx := context.Background()

	if err := s.SetBudget(ctx, 0, core.Budget{Category: "Food", Limit: core.Money{}}); !errors.Is(err, core.ErrInvalidLimit) {
		t.Errorf("zero limit error = %v, want ErrInvalidLimit", err)
	}
	if err := s.SetBudget(ctx, 0, core.Budget{Category: "", Limit: core.Money{Cents: 5}}); !errors.Is(err, core.ErrEmptyCategory) {
		t.Errorf("empty category error = %v, want ErrEmptyCategory", err)
	}
}

func TestLedgerService_PublishFailureIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("circuit breaker is open")}
	s := NewLedgerService(memory.New(), WithPublisher(pub))

	if _, err := s.AddTransaction(context.Background(), 0, food(100)); err != nil {
		t.Errorf("AddTransaction() error = %v, want nil when publishing fails", err)
	}
	if err := s.SetBudget(context.Background(), 0, core.Budget{Category: "Food", Limit: core.Money{Cents: 1}}); err != nil {
		t.Errorf("SetBudget() error = %v, want nil when publishing fails", err)
	}
	if len(pub.events) != 2 {
		t.Errorf("publish attempts = %d, want 2", len(pub.events))
	}
}

func TestLedgerService_Accounts(t *testing.T) {
	ctx := context.Background()
	s := NewLedgerService(memory.New(), WithTokens(auth.NewTokens("0123456789abcdef", time.Hour)))

	u, err := s.Register(ctx, "  alice ", "password123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if u.Username != "alice" || u.ID == 0 || u.PasswordHash == "password123" {
		t.Errorf("Register() = %+v", u)
	}

	if _, err := s.Register(ctx, "alice", "password123"); !errors.Is(err, ports.ErrUsernameTaken) {
		t.Errorf("duplicate Register() = %v, want ErrUsernameTaken", err)
	}
	if _, err := s.Register(ctx, "al", "password123"); !errors.Is(err, core.ErrInvalidUsername) {
		t.Errorf("short username = %v, want ErrInvalidUsername", err)
	}
	if _, err := s.Register(ctx, "bobby", "short"); !errors.Is(err, core.ErrPasswordTooShort) {
		t.Errorf("short password = %v, want ErrPasswordTooShort", err)
	}

	sess, err := s.Login(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	id, err := s.Authenticate(sess.Token)
	if err != nil || id.UserID != u.ID || id.Username != "alice" {
		t.Errorf("Authenticate() = %+v, %v", id, err)
	}

	if _, err := s.Login(ctx, "alice", "wrong-password"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("wrong password = %v, want ErrInvalidCredentials", err)
	}
	if _, err := s.Login(ctx, "nobody", "password123"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("unknown user = %v, want ErrInvalidCredentials", err)
	}
}

func TestLedgerService_AuthDisabled(t *testing.T) {
	s := NewLedgerService(memory.New())
	if s.AuthEnabled() {
		t.Fatal("AuthEnabled() = true without tokens")
	}
	if _, err := s.Register(context.Background(), "alice", "password123"); !errors.Is(err, ErrAuthDisabled) {
		t.Errorf("Register() = %v, want ErrAuthDisabled", err)
	}
	if _, err := s.Authenticate("x"); !errors.Is(err, ErrAuthDisabled) {
		t.Errorf("Authenticate() = %v, want ErrAuthDisabled", err)
	}
}

func TestLedgerService_Close(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewLedgerService(memory.New(), WithPublisher(pub))
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !pub.closed {
		t.Error("Close() should close the publisher")
	}
}
