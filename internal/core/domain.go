package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the persisted form of an expense date.
const DateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	User struct {
		ID       int64
		Username string
	}

	// Expense is a persisted ledger entry. RunningTotal is the sum of the
	// owner's amounts up to and including this entry, in ID order.
	Expense struct {
		ID           int64
		UserID       int64
		Date         Date
		Description  string
		Amount       decimal.Decimal
		RunningTotal decimal.Decimal
	}

	// NewExpense carries the caller supplied fields of an expense to be added.
	// A zero Date means today.
	NewExpense struct {
		UserID      int64
		Date        Date
		Description string
		Amount      decimal.Decimal
	}

	// LedgerRow is one line of the all-users view.
	LedgerRow struct {
		Expense
		Username string
	}

	// Login is the outcome of resolving a username.
	Login struct {
		UserID   int64
		Username string
		IsNew    bool
	}

	DeleteResult struct {
		ExpenseID  int64
		Recomputed int
	}
)

var (
	ErrEmptyUsername = errors.New("empty username")
	ErrInvalidDate   = errors.New("invalid date")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Err: ErrInvalidDate}
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// ValidateUsername accepts any text that is not blank. The username is kept
// exactly as typed; lookups are case sensitive.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return &ValidationError{Field: "username", Err: ErrEmptyUsername}
	}
	return nil
}

// Validate checks the fields of a new expense against policy. The date is
// expected to be resolved already.
func (e NewExpense) Validate(policy AmountPolicy) error {
	if e.UserID <= 0 {
		return &NotFoundError{Resource: "user", ID: e.UserID, Err: ErrUserNotFound}
	}
	if err := e.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Err: err}
	}
	if err := CheckAmountRange(e.Amount); err != nil {
		return err
	}
	return policy.Check(e.Amount)
}
