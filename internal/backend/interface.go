package backend

import (
	"context"
	"time"

	"ledger/internal/core"
	"ledger/internal/sheets"
)

// Ledger is the set of ledger operations front ends depend on.
type Ledger interface {
	Login(ctx context.Context, username string) (core.Login, error)
	AddExpense(ctx context.Context, in core.NewExpense) (core.Expense, error)
	ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error)
	ListAllExpenses(ctx context.Context) ([]core.LedgerRow, error)
	DeleteExpense(ctx context.Context, userID, expenseID int64) (core.DeleteResult, error)
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// LedgerResult contains the ledger and the function that releases it.
type LedgerResult struct {
	Ledger  Ledger
	Cleanup CleanupFunc
}

// Factory creates ledgers and mirrors based on configuration
type Factory interface {
	CreateLedger(ctx context.Context, config Config) (*LedgerResult, error)
	CreateMirror(ctx context.Context, config Config) (sheets.LedgerMirror, error)
}

// Config holds configuration for backend creation
type Config struct {
	// SQLite
	SQLiteDBPath string

	// Ledger policy
	AmountPolicy      core.AmountPolicy
	RecomputeStrategy core.RecomputeStrategy

	// User directory cache; size 0 disables it
	UserCacheSize int
	UserCacheTTL  time.Duration

	// AMQP; empty URL disables events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Mirror
	Mirror              MirrorType
	GoogleSpreadsheetID string
	GoogleSheetName     string
}

// MirrorType selects where the worker mirrors the ledger.
type MirrorType string

const (
	SheetsMirror MirrorType = "sheets"
	MemoryMirror MirrorType = "memory"
)

// String implements fmt.Stringer
func (mt MirrorType) String() string {
	return string(mt)
}

// IsValid returns true if the mirror type is valid
func (mt MirrorType) IsValid() bool {
	switch mt {
	case SheetsMirror, MemoryMirror:
		return true
	default:
		return false
	}
}
