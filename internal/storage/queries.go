package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Rows as stored. Text columns hold the wire formats of core types.
type (
	User struct {
		ID           string
		FirstName    string
		LastName     string
		Email        string
		PhoneNumber  sql.NullString
		PasswordHash string
	}

	Transaction struct {
		ID          string
		UserID      string
		Description string
		Amount      string
		Date        string
		Category    sql.NullString
		CreatedAt   string
		UpdatedAt   sql.NullString
	}

	MonthAmount struct {
		Month  string
		Amount string
	}
)

const createUser = `INSERT INTO users (id, first_name, last_name, email, phone_number, password_hash)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateUser(ctx context.Context, u User) error {
	_, err := q.db.ExecContext(ctx, createUser, u.ID, u.FirstName, u.LastName, u.Email, u.PhoneNumber, u.PasswordHash)
	return err
}

const userColumns = `id, first_name, last_name, email, phone_number, password_hash`

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = ? COLLATE NOCASE`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PhoneNumber, &u.PasswordHash)
	return u, err
}

const createTransaction = `INSERT INTO transactions (id, user_id, description, amount, date, category, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTransaction(ctx context.Context, t Transaction) error {
	_, err := q.db.ExecContext(ctx, createTransaction, t.ID, t.UserID, t.Description, t.Amount, t.Date, t.Category, t.CreatedAt)
	return err
}

const transactionColumns = `id, user_id, description, amount, date, category, created_at, updated_at`

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	var t Transaction
	err := q.db.QueryRowContext(ctx, getTransaction, id).Scan(
		&t.ID, &t.UserID, &t.Description, &t.Amount, &t.Date, &t.Category, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

const updateTransaction = `UPDATE transactions
SET description = ?, amount = ?, date = ?, category = ?, updated_at = ?
WHERE id = ?`

func (q *Queries) UpdateTransaction(ctx context.Context, t Transaction) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTransaction, t.Description, t.Amount, t.Date, t.Category, t.UpdatedAt, t.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listTransactionsByUser = `SELECT ` + transactionColumns + `
FROM transactions WHERE user_id = ? ORDER BY date DESC, id ASC`

func (q *Queries) ListTransactionsByUser(ctx context.Context, userID string) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Description, &t.Amount, &t.Date, &t.Category, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// Amounts stay text so the caller can sum them exactly.
const listMonthAmounts = `SELECT substr(date, 1, 7) AS month, amount
FROM transactions WHERE user_id = ? ORDER BY month ASC`

func (q *Queries) ListMonthAmounts(ctx context.Context, userID string) ([]MonthAmount, error) {
	rows, err := q.db.QueryContext(ctx, listMonthAmounts, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MonthAmount
	for rows.Next() {
		var m MonthAmount
		if err := rows.Scan(&m.Month, &m.Amount); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
