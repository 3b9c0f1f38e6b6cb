// Package storetest holds the behavioural checks every ports.Store
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"testing"

	"spendsmart/internal/core"
	"spendsmart/internal/ports"
)

// Run exercises s against the ports.Store contract. s must be empty.
func Run(t *testing.T, s ports.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := s.Ping(ctx); err != nil {
			t.Fatalf("ping: %v", err)
		}
	})

	t.Run("Transactions", func(t *testing.T) {
		testTransactions(ctx, t, s)
	})

	t.Run("Budgets", func(t *testing.T) {
		testBudgets(ctx, t, s)
	})

	t.Run("Users", func(t *testing.T) {
		testUsers(ctx, t, s)
	})

	t.Run("Reset", func(t *testing.T) {
		if _, err := s.AddTransaction(ctx, tx(7, core.Income, 100, "Salary")); err != nil {
			t.Fatalf("add: %v", err)
		}
		if err := s.Reset(ctx); err != nil {
			t.Fatalf("reset: %v", err)
		}
		txs, err := s.ListTransactions(ctx, 7)
		if err != nil || len(txs) != 0 {
			t.Fatalf("expected no transactions after reset, got %v (err=%v)", txs, err)
		}
		users, err := s.ListUsers(ctx)
		if err != nil || len(users) != 0 {
			t.Fatalf("expected no users after reset, got %v (err=%v)", users, err)
		}
		budgets, err := s.ListBudgets(ctx, 1)
		if err != nil || len(budgets) != 0 {
			t.Fatalf("expected no budgets after reset, got %v (err=%v)", budgets, err)
		}
	})
}

func tx(owner int64, typ core.TransactionType, cents int64, category string) core.Transaction {
	return core.Transaction{
		OwnerID:  owner,
		Type:     typ,
		Amount:   core.Money{Cents: cents},
		Category: category,
		Date:     core.NewDate(2025, 3, 14),
	}
}

func testTransactions(ctx context.Context, t *testing.T, s ports.Store) {
	empty, err := s.ListTransactions(ctx, 1)
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty list, got %d", len(empty))
	}

	inputs := []core.Transaction{
		tx(1, core.Income, 300000, "Salary"),
		tx(1, core.Expense, 5000, "Food"),
		tx(2, core.Expense, 999, "Other owner"),
		tx(1, core.Expense, 120000, "Rent"),
	}
	ids := make([]int64, len(inputs))
	for i, in := range inputs {
		id, err := s.AddTransaction(ctx, in)
		if err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
		if id <= 0 {
			t.Fatalf("add %d: expected positive id, got %d", i, id)
		}
		for j := 0; j < i; j++ {
			if ids[j] == id {
				t.Fatalf("duplicate id %d", id)
			}
		}
		ids[i] = id
	}

	got, err := s.ListTransactions(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 transactions for owner 1, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].ID >= got[i].ID {
			t.Fatalf("transactions not ordered by id: %d before %d", got[i-1].ID, got[i].ID)
		}
	}
	first := got[0]
	if first.ID != ids[0] || first.Type != core.Income || first.Amount.Cents != 300000 ||
		first.Category != "Salary" || first.Date.String() != "2025-03-14" || first.OwnerID != 1 {
		t.Fatalf("unexpected first transaction %+v", first)
	}

	upd := tx(1, core.Expense, 4500, "Groceries")
	upd.ID = ids[1]
	upd.Date = core.NewDate(2025, 4, 1)
	if err := s.UpdateTransaction(ctx, upd); err != nil {
		t.Fatalf("update: %v", err)
	}
	fetched, err := s.GetTransaction(ctx, 1, ids[1])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Amount.Cents != 4500 || fetched.Category != "Groceries" || fetched.Date.String() != "2025-04-01" {
		t.Fatalf("update not applied: %+v", fetched)
	}

	missing := upd
	missing.ID = ids[len(ids)-1] + 1000
	if err := s.UpdateTransaction(ctx, missing); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("update unknown id: expected ErrNotFound, got %v", err)
	}
	foreign := upd
	foreign.OwnerID = 2
	if err := s.UpdateTransaction(ctx, foreign); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("update foreign record: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetTransaction(ctx, 2, ids[0]); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("get foreign record: expected ErrNotFound, got %v", err)
	}

	if err := s.DeleteTransaction(ctx, 1, ids[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteTransaction(ctx, 1, ids[0]); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteTransaction(ctx, 1, ids[2]); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("delete foreign record: expected ErrNotFound, got %v", err)
	}
	got, err = s.ListTransactions(ctx, 1)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	for _, tx := range got {
		if tx.ID == ids[0] {
			t.Fatalf("deleted id %d still listed", ids[0])
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 transactions after delete, got %d", len(got))
	}
}

func testBudgets(ctx context.Context, t *testing.T, s ports.Store) {
	set := func(owner int64, cat string, cents int64) {
		t.Helper()
		if err := s.SetBudget(ctx, core.Budget{OwnerID: owner, Category: cat, Limit: core.Money{Cents: cents}}); err != nil {
			t.Fatalf("set budget %s: %v", cat, err)
		}
	}
	set(1, "Food", 10000)
	set(1, "Rent", 150000)
	set(1, "Food", 20000)
	set(3, "Food", 1)

	got, err := s.ListBudgets(ctx, 1)
	if err != nil {
		t.Fatalf("list budgets: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 budgets, got %v", got)
	}
	if got["Food"].Cents != 20000 {
		t.Fatalf("last write should win, got %d", got["Food"].Cents)
	}
	if got["Rent"].Cents != 150000 {
		t.Fatalf("unexpected Rent limit %d", got["Rent"].Cents)
	}
	none, err := s.ListBudgets(ctx, 99)
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no budgets for unknown owner, got %v (err=%v)", none, err)
	}
}

func testUsers(ctx context.Context, t *testing.T, s ports.Store) {
	id, err := s.CreateUser(ctx, core.User{Username: "alice", PasswordHash: "hash-a"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive user id, got %d", id)
	}
	if _, err := s.CreateUser(ctx, core.User{Username: "alice", PasswordHash: "other"}); !errors.Is(err, ports.ErrUsernameTaken) {
		t.Fatalf("duplicate user: expected ErrUsernameTaken, got %v", err)
	}
	if _, err := s.CreateUser(ctx, core.User{Username: "bob", PasswordHash: "hash-b"}); err != nil {
		t.Fatalf("create bob: %v", err)
	}

	u, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.ID != id || u.PasswordHash != "hash-a" {
		t.Fatalf("unexpected user %+v", u)
	}
	if _, err := s.GetUserByUsername(ctx, "carol"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("missing user: expected ErrNotFound, got %v", err)
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 || users[0].Username != "alice" || users[1].Username != "bob" {
		t.Fatalf("unexpected users %+v", users)
	}
}
