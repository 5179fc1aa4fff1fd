package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/amqp"
	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

// EventPublisher announces committed ledger changes.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev amqp.LedgerEvent) error
}

type Options struct {
	AmountPolicy core.AmountPolicy
	Strategy     core.RecomputeStrategy
	// UserCache memoizes username to user ID. Nil disables caching.
	UserCache cache.Cache[int64]
	// Publisher is optional; events are best effort.
	Publisher EventPublisher
	// Now supplies the default expense date. Defaults to time.Now.
	Now func() time.Time
}

// LedgerService owns users and their expenses and keeps every running total
// equal to the prefix sum of its owner's amounts.
type LedgerService struct {
	storage   *storage.SQLiteRepository
	policy    core.AmountPolicy
	strategy  core.RecomputeStrategy
	users     cache.Cache[int64]
	publisher EventPublisher
	now       func() time.Time

	// afterDelete runs between removing a row and repairing totals.
	afterDelete func(ctx context.Context) error
}

func NewLedgerService(repo *storage.SQLiteRepository, opts Options) *LedgerService {
	s := &LedgerService{
		storage:   repo,
		policy:    opts.AmountPolicy,
		strategy:  opts.Strategy,
		users:     opts.UserCache,
		publisher: opts.Publisher,
		now:       opts.Now,
	}
	if s.strategy == "" {
		s.strategy = core.Rescan
	}
	if s.users == nil {
		s.users = cache.Nop[int64]{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Login resolves username to a user, registering it on first sight.
func (s *LedgerService) Login(ctx context.Context, username string) (core.Login, error) {
	if err := core.ValidateUsername(username); err != nil {
		return core.Login{}, err
	}

	if id, ok := s.users.Get(username); ok {
		return core.Login{UserID: id, Username: username}, nil
	}

	var login core.Login
	err := s.storage.WithTx(ctx, func(tx *storage.LedgerTx) error {
		u, found, err := tx.UserByUsername(ctx, username)
		if err != nil {
			return err
		}
		if found {
			login = core.Login{UserID: u.ID, Username: u.Username}
			return nil
		}

		// A concurrent login may have won the insert; InsertUser then
		// returns that user with created=false.
		u, created, err := tx.InsertUser(ctx, username)
		if err != nil {
			return err
		}
		login = core.Login{UserID: u.ID, Username: u.Username, IsNew: created}
		return nil
	})
	if err != nil {
		return core.Login{}, fmt.Errorf("login %q: %w", username, err)
	}

	s.users.Set(username, login.UserID)

	if login.IsNew {
		logger(ctx).InfoContext(ctx, "Registered new user", log.NewFields().
			WithOperation(log.OpLogin).
			WithUser(login.UserID).
			With(log.FieldUsername, login.Username).
			ToSlice()...)
	}
	return login, nil
}

// AddExpense appends an expense to the user's ledger. A zero date means today.
func (s *LedgerService) AddExpense(ctx context.Context, in core.NewExpense) (core.Expense, error) {
	if in.Date.IsEmpty() {
		in.Date = core.DateOf(s.now())
	}
	if err := in.Validate(s.policy); err != nil {
		return core.Expense{}, err
	}

	var created core.Expense
	err := s.storage.WithTx(ctx, func(tx *storage.LedgerTx) error {
		if _, found, err := tx.UserByID(ctx, in.UserID); err != nil {
			return err
		} else if !found {
			return &core.NotFoundError{Resource: "user", ID: in.UserID, Err: core.ErrUserNotFound}
		}

		amounts, err := tx.UserAmounts(ctx, in.UserID)
		if err != nil {
			return err
		}

		created, err = tx.InsertExpense(ctx, core.Expense{
			UserID:       in.UserID,
			Date:         in.Date,
			Description:  in.Description,
			Amount:       in.Amount,
			RunningTotal: core.SumAmounts(amounts).Add(in.Amount),
		})
		return err
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("add expense: %w", err)
	}

	logger(ctx).InfoContext(ctx, "Expense added", log.NewFields().
		WithOperation(log.OpCreate).
		WithUser(created.UserID).
		WithExpense(created.ID, created.Date.String(), created.Amount.String(), created.RunningTotal.String()).
		ToSlice()...)

	s.publish(ctx, *amqp.NewExpenseAddedEvent(created.UserID, created.ID))
	return created, nil
}

// ListExpenses returns the user's expenses in ID order.
func (s *LedgerService) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	expenses, err := s.storage.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// ListAllExpenses returns every expense with its owner's username in ID order.
func (s *LedgerService) ListAllExpenses(ctx context.Context) ([]core.LedgerRow, error) {
	rows, err := s.storage.ListAllExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list all expenses: %w", err)
	}
	return rows, nil
}

// DeleteExpense removes one of the user's expenses and rewrites the running
// totals of the rest in the same transaction. An expense owned by someone
// else is reported as not found.
func (s *LedgerService) DeleteExpense(ctx context.Context, userID, expenseID int64) (core.DeleteResult, error) {
	result := core.DeleteResult{ExpenseID: expenseID}

	err := s.storage.WithTx(ctx, func(tx *storage.LedgerTx) error {
		target, found, err := tx.ExpenseForUser(ctx, expenseID, userID)
		if err != nil {
			return err
		}
		if !found {
			return &core.NotFoundError{Resource: "expense", ID: expenseID, Err: core.ErrExpenseNotFound}
		}

		if _, err := tx.DeleteExpense(ctx, expenseID, userID); err != nil {
			return err
		}

		if s.afterDelete != nil {
			if err := s.afterDelete(ctx); err != nil {
				return err
			}
		}

		result.Recomputed, err = s.recompute(ctx, tx, target)
		return err
	})
	if err != nil {
		return core.DeleteResult{}, fmt.Errorf("delete expense %d: %w", expenseID, err)
	}

	logger(ctx).InfoContext(ctx, "Expense deleted", log.NewFields().
		WithOperation(log.OpDelete).
		WithUser(userID).
		With(log.FieldExpenseID, expenseID).
		With(log.FieldRecomputed, result.Recomputed).
		With(log.FieldStrategy, s.strategy.String()).
		ToSlice()...)

	s.publish(ctx, *amqp.NewExpenseDeletedEvent(userID, expenseID, result.Recomputed))
	return result, nil
}

// recompute repairs the totals left stale by deleting removed and returns
// how many rows it rewrote.
func (s *LedgerService) recompute(ctx context.Context, tx *storage.LedgerTx, removed core.Expense) (int, error) {
	var (
		rows []core.Expense
		err  error
	)

	switch s.strategy {
	case core.Incremental:
		rows, err = tx.ExpensesAfter(ctx, removed.UserID, removed.ID)
		if err != nil {
			return 0, err
		}
		current := make([]decimal.Decimal, len(rows))
		for i, e := range rows {
			current[i] = e.RunningTotal
		}
		return len(rows), writeTotals(ctx, tx, rows, core.ShiftTotals(current, removed.Amount.Neg()))
	default:
		rows, err = tx.ExpensesForUser(ctx, removed.UserID)
		if err != nil {
			return 0, err
		}
		amounts := make([]decimal.Decimal, len(rows))
		for i, e := range rows {
			amounts[i] = e.Amount
		}
		return len(rows), writeTotals(ctx, tx, rows, core.RunningTotals(amounts))
	}
}

func writeTotals(ctx context.Context, tx *storage.LedgerTx, rows []core.Expense, totals []decimal.Decimal) error {
	for i, e := range rows {
		if err := tx.SetRunningTotal(ctx, e.ID, totals[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *LedgerService) publish(ctx context.Context, ev amqp.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		logger(ctx).WarnContext(ctx, "Failed to publish ledger event", log.NewFields().
			WithOperation(log.OpPublish).
			WithError(err).
			WithErrorType(log.ErrorTypeNetwork).
			With(log.FieldEventType, ev.Type).
			With(log.FieldExpenseID, ev.ExpenseID).
			ToSlice()...)
	}
}

// logger returns the request logger from ctx under the ledger component.
func logger(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentLedger)
}

// Close closes storage and, when it can be closed, the publisher.
func (s *LedgerService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
