// Package ports declares the storage interfaces implemented by every
// backend under internal/storage.
package ports

import (
	"context"
	"errors"

	"spendsmart/internal/core"
)

var (
	// ErrNotFound is returned when an id or username has no record.
	ErrNotFound = errors.New("not found")
	// ErrUsernameTaken is returned by CreateUser for a duplicate username.
	ErrUsernameTaken = errors.New("username already taken")
)

// Ports for storage adapters.
type (
	TransactionStore interface {
		// ListTransactions returns the owner's transactions ordered by id.
		ListTransactions(ctx context.Context, owner int64) ([]core.Transaction, error)
		// AddTransaction stores tx and returns the assigned id.
		AddTransaction(ctx context.Context, tx core.Transaction) (int64, error)
		// UpdateTransaction replaces every field of the record with tx.ID.
		UpdateTransaction(ctx context.Context, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, owner, id int64) error
		GetTransaction(ctx context.Context, owner, id int64) (core.Transaction, error)
	}

	BudgetStore interface {
		// ListBudgets returns the owner's category to limit mapping.
		ListBudgets(ctx context.Context, owner int64) (map[string]core.Money, error)
		// SetBudget inserts or replaces the limit of b.Category.
		SetBudget(ctx context.Context, b core.Budget) error
	}

	UserStore interface {
		CreateUser(ctx context.Context, u core.User) (int64, error)
		GetUserByUsername(ctx context.Context, username string) (core.User, error)
		ListUsers(ctx context.Context) ([]core.User, error)
	}

	// Store is the full persistence surface of the ledger.
	Store interface {
		TransactionStore
		BudgetStore
		UserStore
		Ping(ctx context.Context) error
		// Reset removes every user, transaction and budget.
		Reset(ctx context.Context) error
		Close() error
	}
)
