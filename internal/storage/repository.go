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

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/log"

	_ "modernc.org/sqlite"
)

// connParams are applied to every pooled connection. IMMEDIATE transactions
// take the write lock up front so read-then-write units cannot interleave.
const connParams = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dataSourceName(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Debug("SQLite repository ready", log.FieldDBPath, dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func dataSourceName(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + connParams
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// WithTx runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back on error or panic, so callers never observe a
// partial unit of work.
func (r *SQLiteRepository) WithTx(ctx context.Context, fn func(tx *LedgerTx) error) (err error) {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.StorageError{Op: "begin", Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&LedgerTx{q: r.queries.WithTx(sqlTx)}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Rollback failed", log.FieldError, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return &core.StorageError{Op: "commit", Err: err}
	}
	return nil
}

// ListExpenses returns a user's expenses in ID order.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	rows, err := r.queries.ListExpensesByUser(ctx, userID)
	if err != nil {
		return nil, &core.StorageError{Op: "list expenses", Err: err}
	}
	return toCoreExpenses(rows)
}

// ListAllExpenses returns every expense whose owner exists, joined with the
// owner's username, in expense ID order.
func (r *SQLiteRepository) ListAllExpenses(ctx context.Context) ([]core.LedgerRow, error) {
	rows, err := r.queries.ListAllExpensesWithUsername(ctx)
	if err != nil {
		return nil, &core.StorageError{Op: "list all expenses", Err: err}
	}

	out := make([]core.LedgerRow, 0, len(rows))
	for _, row := range rows {
		e, err := toCoreExpense(row.Expense)
		if err != nil {
			return nil, err
		}
		out = append(out, core.LedgerRow{Expense: e, Username: row.Username})
	}
	return out, nil
}

// CountUsers returns how many users carry exactly username.
func (r *SQLiteRepository) CountUsers(ctx context.Context, username string) (int64, error) {
	n, err := r.queries.CountUsersByUsername(ctx, username)
	if err != nil {
		return 0, &core.StorageError{Op: "count users", Err: err}
	}
	return n, nil
}

// LedgerTx exposes the ledger queries of one open transaction in domain
// types. It is only valid inside the WithTx callback that received it.
type LedgerTx struct {
	q *Queries
}

// UserByUsername looks up a user by exact username.
func (t *LedgerTx) UserByUsername(ctx context.Context, username string) (core.User, bool, error) {
	u, err := t.q.GetUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, false, nil
	}
	if err != nil {
		return core.User{}, false, &core.StorageError{Op: "get user", Err: err}
	}
	return core.User{ID: u.ID, Username: u.Username}, true, nil
}

func (t *LedgerTx) UserByID(ctx context.Context, id int64) (core.User, bool, error) {
	u, err := t.q.GetUserByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, false, nil
	}
	if err != nil {
		return core.User{}, false, &core.StorageError{Op: "get user", Err: err}
	}
	return core.User{ID: u.ID, Username: u.Username}, true, nil
}

// InsertUser creates username. created is false when the username already
// existed, in which case the existing user is returned.
func (t *LedgerTx) InsertUser(ctx context.Context, username string) (user core.User, created bool, err error) {
	u, err := t.q.CreateUser(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		existing, found, err := t.UserByUsername(ctx, username)
		if err != nil {
			return core.User{}, false, err
		}
		if !found {
			return core.User{}, false, &core.StorageError{Op: "create user", Err: fmt.Errorf("username %q conflicted but is missing", username)}
		}
		return existing, false, nil
	}
	if err != nil {
		return core.User{}, false, &core.StorageError{Op: "create user", Err: err}
	}
	return core.User{ID: u.ID, Username: u.Username}, true, nil
}

// UserAmounts returns the amounts of a user's expenses in ID order.
func (t *LedgerTx) UserAmounts(ctx context.Context, userID int64) ([]decimal.Decimal, error) {
	raw, err := t.q.ListAmountsByUser(ctx, userID)
	if err != nil {
		return nil, &core.StorageError{Op: "list amounts", Err: err}
	}
	out := make([]decimal.Decimal, len(raw))
	for i, s := range raw {
		d, err := decodeDecimal(s)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// InsertExpense persists e and returns it with its assigned ID.
func (t *LedgerTx) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	row, err := t.q.CreateExpense(ctx, CreateExpenseParams{
		UserID:       e.UserID,
		Date:         e.Date.String(),
		Description:  e.Description,
		Amount:       e.Amount.String(),
		RunningTotal: e.RunningTotal.String(),
	})
	if err != nil {
		return core.Expense{}, &core.StorageError{Op: "create expense", Err: err}
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		log.FieldExpenseID, row.ID,
		log.FieldUserID, row.UserID,
		log.FieldAmount, row.Amount,
		log.FieldRunningTotal, row.RunningTotal)

	return toCoreExpense(row)
}

// ExpenseForUser finds an expense only when it belongs to userID.
func (t *LedgerTx) ExpenseForUser(ctx context.Context, id, userID int64) (core.Expense, bool, error) {
	row, err := t.q.GetExpenseForUser(ctx, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, false, nil
	}
	if err != nil {
		return core.Expense{}, false, &core.StorageError{Op: "get expense", Err: err}
	}
	e, err := toCoreExpense(row)
	if err != nil {
		return core.Expense{}, false, err
	}
	return e, true, nil
}

// DeleteExpense removes an expense owned by userID and reports whether a row
// was removed.
func (t *LedgerTx) DeleteExpense(ctx context.Context, id, userID int64) (bool, error) {
	n, err := t.q.DeleteExpenseForUser(ctx, id, userID)
	if err != nil {
		return false, &core.StorageError{Op: "delete expense", Err: err}
	}
	return n > 0, nil
}

func (t *LedgerTx) ExpensesForUser(ctx context.Context, userID int64) ([]core.Expense, error) {
	rows, err := t.q.ListExpensesByUser(ctx, userID)
	if err != nil {
		return nil, &core.StorageError{Op: "list expenses", Err: err}
	}
	return toCoreExpenses(rows)
}

// ExpensesAfter returns the user's expenses with an ID greater than afterID.
func (t *LedgerTx) ExpensesAfter(ctx context.Context, userID, afterID int64) ([]core.Expense, error) {
	rows, err := t.q.ListExpensesByUserAfter(ctx, userID, afterID)
	if err != nil {
		return nil, &core.StorageError{Op: "list expenses", Err: err}
	}
	return toCoreExpenses(rows)
}

func (t *LedgerTx) SetRunningTotal(ctx context.Context, id int64, total decimal.Decimal) error {
	if err := t.q.UpdateRunningTotal(ctx, id, total.String()); err != nil {
		return &core.StorageError{Op: "update running total", Err: err}
	}
	return nil
}

func toCoreExpenses(rows []Expense) ([]core.Expense, error) {
	out := make([]core.Expense, 0, len(rows))
	for _, row := range rows {
		e, err := toCoreExpense(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func toCoreExpense(row Expense) (core.Expense, error) {
	amount, err := decodeDecimal(row.Amount)
	if err != nil {
		return core.Expense{}, err
	}
	total, err := decodeDecimal(row.RunningTotal)
	if err != nil {
		return core.Expense{}, err
	}
	var date core.Date
	if row.Date != "" {
		if date, err = core.ParseDate(row.Date); err != nil {
			return core.Expense{}, &core.StorageError{Op: "decode date", Err: fmt.Errorf("expense %d: %q", row.ID, row.Date)}
		}
	}
	return core.Expense{
		ID:           row.ID,
		UserID:       row.UserID,
		Date:         date,
		Description:  row.Description,
		Amount:       amount,
		RunningTotal: total,
	}, nil
}

func decodeDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &core.StorageError{Op: "decode amount", Err: err}
	}
	return d, nil
}
