package storage

import (
	"database/sql"
	"time"

	"spendsmart/internal/core"
)

const (
	listTransactionsSQL = `SELECT id, owner_id, amount_cents, type, category, date
FROM transactions WHERE owner_id = ? ORDER BY id`

	getTransactionSQL = `SELECT id, owner_id, amount_cents, type, category, date
FROM transactions WHERE owner_id = ? AND id = ?`

	insertTransactionSQL = `INSERT INTO transactions (owner_id, amount_cents, type, category, date)
VALUES (?, ?, ?, ?, ?)`

	updateTransactionSQL = `UPDATE transactions
SET amount_cents = ?, type = ?, category = ?, date = ?
WHERE owner_id = ? AND id = ?`

	deleteTransactionSQL = `DELETE FROM transactions WHERE owner_id = ? AND id = ?`

	listBudgetsSQL = `SELECT category, limit_cents FROM budgets WHERE owner_id = ?`

	upsertBudgetSQL = `INSERT INTO budgets (owner_id, category, limit_cents) VALUES (?, ?, ?)
ON CONFLICT (owner_id, category) DO UPDATE SET limit_cents = excluded.limit_cents`

	insertUserSQL = `INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`

	getUserSQL = `SELECT id, username, password_hash, created_at FROM users WHERE username = ?`

	listUsersSQL = `SELECT id, username, password_hash, created_at FROM users ORDER BY id`
)

var resetSQL = []string{
	`DELETE FROM transactions`,
	`DELETE FROM budgets`,
	`DELETE FROM users`,
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx   core.Transaction
		typ  string
		date string
	)
	if err := row.Scan(&tx.ID, &tx.OwnerID, &tx.Amount.Cents, &typ, &tx.Category, &date); err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.TransactionType(typ)
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Date = d
	return tx, nil
}

func scanUser(row rowScanner) (core.User, error) {
	var (
		u       core.User
		created int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created); err != nil {
		return core.User{}, err
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return u, nil
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
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
