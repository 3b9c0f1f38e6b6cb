package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spendsmart/internal/core"
	"spendsmart/internal/ports"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the ports.Store backed by a single SQLite file.
type SQLiteRepository struct {
	db   *sql.DB
	path string
}

var _ ports.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serialises writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, path: dbPath}, nil
}

// Path returns the database file location.
func (r *SQLiteRepository) Path() string { return r.path }

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, owner int64) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, listTransactionsSQL, owner)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	txs, err := scanTransactions(rows)
	if err != nil {
		return nil, fmt.Errorf("scan transactions: %w", err)
	}
	return txs, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, owner, id int64) (core.Transaction, error) {
	tx, err := scanTransaction(r.db.QueryRowContext(ctx, getTransactionSQL, owner, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ports.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return tx, nil
}

func (r *SQLiteRepository) AddTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	res, err := r.db.ExecContext(ctx, insertTransactionSQL,
		tx.OwnerID, tx.Amount.Cents, string(tx.Type), tx.Category, tx.Date.String())
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read transaction id: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", id,
		"type", tx.Type,
		"amount_cents", tx.Amount.Cents,
		"category", tx.Category)

	return id, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	res, err := r.db.ExecContext(ctx, updateTransactionSQL,
		tx.Amount.Cents, string(tx.Type), tx.Category, tx.Date.String(), tx.OwnerID, tx.ID)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", tx.ID, err)
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, owner, id int64) error {
	res, err := r.db.ExecContext(ctx, deleteTransactionSQL, owner, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, owner int64) (map[string]core.Money, error) {
	rows, err := r.db.QueryContext(ctx, listBudgetsSQL, owner)
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
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out[cat] = core.Money{Cents: cents}
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SetBudget(ctx context.Context, b core.Budget) error {
	if _, err := r.db.ExecContext(ctx, upsertBudgetSQL, b.OwnerID, b.Category, b.Limit.Cents); err != nil {
		return fmt.Errorf("set budget %q: %w", b.Category, err)
	}
	return nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (int64, error) {
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := r.db.ExecContext(ctx, insertUserSQL, u.Username, u.PasswordHash, created.Unix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, ports.ErrUsernameTaken
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, getUserSQL, username))
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ports.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, listUsersSQL)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Reset(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()
	for _, stmt := range resetSQL {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	return tx.Commit()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}
