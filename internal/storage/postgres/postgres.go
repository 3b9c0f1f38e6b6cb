// Package postgres implements ports.Store on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"spendsmart/internal/core"
	"spendsmart/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

var _ ports.Store = (*Store)(nil)

// Connect opens a pool, verifies it and applies the schema.
func Connect(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) ListTransactions(ctx context.Context, owner int64) ([]core.Transaction, error) {
	query := `
		SELECT id, owner_id, amount_cents, type, category, date
		FROM transactions WHERE owner_id = $1
		ORDER BY id
	`
	rows, err := s.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Store) GetTransaction(ctx context.Context, owner, id int64) (core.Transaction, error) {
	query := `
		SELECT id, owner_id, amount_cents, type, category, date
		FROM transactions WHERE owner_id = $1 AND id = $2
	`
	tx, err := scanTransaction(s.pool.QueryRow(ctx, query, owner, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, ports.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("query error: %w", err)
	}
	return tx, nil
}

func (s *Store) AddTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	query := `
		INSERT INTO transactions (owner_id, amount_cents, type, category, date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id int64
	err := s.pool.QueryRow(ctx, query, tx.OwnerID, tx.Amount.Cents, string(tx.Type), tx.Category, tx.Date.Time).
		Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	return id, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	query := `
		UPDATE transactions
		SET amount_cents = $1, type = $2, category = $3, date = $4
		WHERE owner_id = $5 AND id = $6
	`
	tag, err := s.pool.Exec(ctx, query, tx.Amount.Cents, string(tx.Type), tx.Category, tx.Date.Time, tx.OwnerID, tx.ID)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", tx.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, owner, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transactions WHERE owner_id = $1 AND id = $2`, owner, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (s *Store) ListBudgets(ctx context.Context, owner int64) (map[string]core.Money, error) {
	rows, err := s.pool.Query(ctx, `SELECT category, limit_cents FROM budgets WHERE owner_id = $1`, owner)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	out := make(map[string]core.Money)
	for rows.Next() {
		var (
			cat   string
			cents int64
		)
		if err := rows.Scan(&cat, &cents); err != nil {
			return nil, err
		}
		out[cat] = core.Money{Cents: cents}
	}
	return out, rows.Err()
}

func (s *Store) SetBudget(ctx context.Context, b core.Budget) error {
	query := `
		INSERT INTO budgets (owner_id, category, limit_cents)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id, category) DO UPDATE SET limit_cents = EXCLUDED.limit_cents
	`
	if _, err := s.pool.Exec(ctx, query, b.OwnerID, b.Category, b.Limit.Cents); err != nil {
		return fmt.Errorf("set budget %q: %w", b.Category, err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u core.User) (int64, error) {
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	query := `
		INSERT INTO users (username, password_hash, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	var id int64
	err := s.pool.QueryRow(ctx, query, u.Username, u.PasswordHash, created).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, ports.ErrUsernameTaken
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = $1
	`
	var u core.User
	err := s.pool.QueryRow(ctx, query, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.User{}, ports.ErrNotFound
		}
		return core.User{}, fmt.Errorf("query error: %w", err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, username, password_hash, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE transactions, budgets, users RESTART IDENTITY`)
	return err
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		tx   core.Transaction
		typ  string
		date time.Time
	)
	if err := row.Scan(&tx.ID, &tx.OwnerID, &tx.Amount.Cents, &typ, &tx.Category, &date); err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.TransactionType(typ)
	tx.Date = core.NewDate(date.Year(), int(date.Month()), date.Day())
	return tx, nil
}
