package storage

import (
	"context"
)

const getUserByUsername = `SELECT id, username FROM users WHERE username = ?`

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByUsername, username)
	var i User
	err := row.Scan(&i.ID, &i.Username)
	return i, err
}

const getUserByID = `SELECT id, username FROM users WHERE id = ?`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	var i User
	err := row.Scan(&i.ID, &i.Username)
	return i, err
}

// A conflicting username yields sql.ErrNoRows instead of a constraint error.
const createUser = `INSERT INTO users (username) VALUES (?)
ON CONFLICT(username) DO NOTHING
RETURNING id, username`

func (q *Queries) CreateUser(ctx context.Context, username string) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser, username)
	var i User
	err := row.Scan(&i.ID, &i.Username)
	return i, err
}

const countUsersByUsername = `SELECT COUNT(*) FROM users WHERE username = ?`

func (q *Queries) CountUsersByUsername(ctx context.Context, username string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countUsersByUsername, username)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listAmountsByUser = `SELECT amount FROM expenses WHERE user_id = ? ORDER BY id`

func (q *Queries) ListAmountsByUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listAmountsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return nil, err
		}
		items = append(items, amount)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createExpense = `INSERT INTO expenses (user_id, date, description, amount, running_total)
VALUES (?, ?, ?, ?, ?)
RETURNING id, user_id, date, description, amount, running_total`

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (Expense, error) {
	row := q.db.QueryRowContext(ctx, createExpense,
		arg.UserID,
		arg.Date,
		arg.Description,
		arg.Amount,
		arg.RunningTotal,
	)
	var i Expense
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Date,
		&i.Description,
		&i.Amount,
		&i.RunningTotal,
	)
	return i, err
}

const getExpenseForUser = `SELECT id, user_id, date, description, amount, running_total
FROM expenses WHERE id = ? AND user_id = ?`

func (q *Queries) GetExpenseForUser(ctx context.Context, id, userID int64) (Expense, error) {
	row := q.db.QueryRowContext(ctx, getExpenseForUser, id, userID)
	var i Expense
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Date,
		&i.Description,
		&i.Amount,
		&i.RunningTotal,
	)
	return i, err
}

const deleteExpenseForUser = `DELETE FROM expenses WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteExpenseForUser(ctx context.Context, id, userID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpenseForUser, id, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listExpensesByUser = `SELECT id, user_id, date, description, amount, running_total
FROM expenses WHERE user_id = ? ORDER BY id`

func (q *Queries) ListExpensesByUser(ctx context.Context, userID int64) ([]Expense, error) {
	return q.listExpenses(ctx, listExpensesByUser, userID)
}

const listExpensesByUserAfter = `SELECT id, user_id, date, description, amount, running_total
FROM expenses WHERE user_id = ? AND id > ? ORDER BY id`

func (q *Queries) ListExpensesByUserAfter(ctx context.Context, userID, afterID int64) ([]Expense, error) {
	return q.listExpenses(ctx, listExpensesByUserAfter, userID, afterID)
}

func (q *Queries) listExpenses(ctx context.Context, query string, args ...interface{}) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		var i Expense
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Date,
			&i.Description,
			&i.Amount,
			&i.RunningTotal,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateRunningTotal = `UPDATE expenses SET running_total = ? WHERE id = ?`

func (q *Queries) UpdateRunningTotal(ctx context.Context, id int64, runningTotal string) error {
	_, err := q.db.ExecContext(ctx, updateRunningTotal, runningTotal, id)
	return err
}

const listAllExpensesWithUsername = `SELECT e.id, e.user_id, e.date, e.description, e.amount, e.running_total, u.username
FROM expenses e
JOIN users u ON e.user_id = u.id
ORDER BY e.id`

func (q *Queries) ListAllExpensesWithUsername(ctx context.Context) ([]ExpenseWithUsername, error) {
	rows, err := q.db.QueryContext(ctx, listAllExpensesWithUsername)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ExpenseWithUsername
	for rows.Next() {
		var i ExpenseWithUsername
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Date,
			&i.Description,
			&i.Amount,
			&i.RunningTotal,
			&i.Username,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
