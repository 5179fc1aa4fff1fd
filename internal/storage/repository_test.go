package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ledger/internal/core"
)

// RepositoryTestSuite runs against a fresh database file per test
type RepositoryTestSuite struct {
	suite.Suite
	path string
	repo *SQLiteRepository
	ctx  context.Context
}

func (s *RepositoryTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.path = filepath.Join(s.T().TempDir(), "ledger.db")
	repo, err := NewSQLiteRepository(s.path)
	require.NoError(s.T(), err, "failed to create test repository")
	s.repo = repo
}

func (s *RepositoryTestSuite) TearDownTest() {
	if s.repo != nil {
		s.repo.Close()
	}
}

func (s *RepositoryTestSuite) insertUser(name string) core.User {
	var user core.User
	err := s.repo.WithTx(s.ctx, func(tx *LedgerTx) error {
		u, created, err := tx.InsertUser(s.ctx, name)
		require.True(s.T(), created)
		user = u
		return err
	})
	require.NoError(s.T(), err)
	return user
}

func (s *RepositoryTestSuite) insertExpense(userID int64, amount, total string) core.Expense {
	var out core.Expense
	err := s.repo.WithTx(s.ctx, func(tx *LedgerTx) error {
		e, err := tx.InsertExpense(s.ctx, core.Expense{
			UserID:       userID,
			Date:         core.NewDate(2025, 6, 1),
			Description:  "item",
			Amount:       decimal.RequireFromString(amount),
			RunningTotal: decimal.RequireFromString(total),
		})
		out = e
		return err
	})
	require.NoError(s.T(), err)
	return out
}

func (s *RepositoryTestSuite) TestMigrationsAreIdempotent() {
	version, err := RunMigrations(s.path)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint(1), version)

	again, err := NewSQLiteRepository(s.path)
	require.NoError(s.T(), err)
	again.Close()
}

func (s *RepositoryTestSuite) TestInsertUserConflictReturnsExisting() {
	alice := s.insertUser("alice")

	err := s.repo.WithTx(s.ctx, func(tx *LedgerTx) error {
		u, created, err := tx.InsertUser(s.ctx, "alice")
		require.NoError(s.T(), err)
		assert.False(s.T(), created)
		assert.Equal(s.T(), alice.ID, u.ID)
		return nil
	})
	require.NoError(s.T(), err)

	n, err := s.repo.CountUsers(s.ctx, "alice")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), n)
}

func (s *RepositoryTestSuite) TestUsernameLookupIsExact() {
	s.insertUser("Alice")

	err := s.repo.WithTx(s.ctx, func(tx *LedgerTx) error {
		_, found, err := tx.UserByUsername(s.ctx, "alice")
		assert.False(s.T(), found)
		return err
	})
	require.NoError(s.T(), err)
}

func (s *RepositoryTestSuite) TestExpenseRoundTripKeepsDecimals() {
	alice := s.insertUser("alice")
	e := s.insertExpense(alice.ID, "0.10", "0.10")
	s.insertExpense(alice.ID, "0.20", "0.30")

	got, err := s.repo.ListExpenses(s.ctx, alice.ID)
	require.NoError(s.T(), err)
	require.Len(s.T(), got, 2)
	assert.Equal(s.T(), e.ID, got[0].ID)
	assert.Equal(s.T(), "2025-06-01", got[0].Date.String())
	assert.True(s.T(), got[1].RunningTotal.Equal(decimal.RequireFromString("0.3")))
}

func (s *RepositoryTestSuite) TestWithTxRollsBackOnError() {
	alice := s.insertUser("alice")
	boom := errors.New("boom")

	err := s.repo.WithTx(s.ctx, func(tx *LedgerTx) error {
		_, err := tx.InsertExpense(s.ctx, core.Expense{
			UserID:       alice.ID,
			Date:         core.NewDate(2025, 1, 1),
			Amount:       decimal.NewFromInt(1),
			RunningTotal: decimal.NewFromInt(1),
		})
		require.NoError(s.T(), err)
		return boom
	})
	assert.ErrorIs(s.T(), err, boom)

	got, err := s.repo.ListExpenses(s.ctx, alice.ID)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), got)
}

func (s *RepositoryTestSuite) TestWithTxRollsBackOnPanic() {
	alice := s.insertUser("alice")

	assert.Panics(s.T(), func() {
		_ = s.repo.WithTx(s.ctx, func(tx *LedgerTx) error {
			_, _ = tx.InsertExpense(s.ctx, core.Expense{
				UserID:       alice.ID,
				Date:         core.NewDate(2025, 1, 1),
				Amount:       decimal.NewFromInt(1),
				RunningTotal: decimal.NewFromInt(1),
			})
			panic("mid-transaction")
		})
	})

	got, err := s.repo.ListExpenses(s.ctx, alice.ID)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), got)
}

func (s *RepositoryTestSuite) TestForeignKeysEnforced() {
	err := s.repo.WithTx(s.ctx, func(tx *LedgerTx) error {
		_, err := tx.InsertExpense(s.ctx, core.Expense{
			UserID:       999,
			Date:         core.NewDate(2025, 1, 1),
			Amount:       decimal.NewFromInt(1),
			RunningTotal: decimal.NewFromInt(1),
		})
		return err
	})
	assert.True(s.T(), core.IsStorage(err), "expected storage error, got %v", err)
}

func (s *RepositoryTestSuite) TestDeleteIsScopedToOwner() {
	alice := s.insertUser("alice")
	bob := s.insertUser("bob")
	e := s.insertExpense(bob.ID, "5", "5")

	err := s.repo.WithTx(s.ctx, func(tx *LedgerTx) error {
		_, found, err := tx.ExpenseForUser(s.ctx, e.ID, alice.ID)
		require.NoError(s.T(), err)
		assert.False(s.T(), found)

		deleted, err := tx.DeleteExpense(s.ctx, e.ID, alice.ID)
		assert.False(s.T(), deleted)
		return err
	})
	require.NoError(s.T(), err)

	got, err := s.repo.ListExpenses(s.ctx, bob.ID)
	require.NoError(s.T(), err)
	assert.Len(s.T(), got, 1)
}

func (s *RepositoryTestSuite) TestListAllExpensesExcludesOrphans() {
	alice := s.insertUser("alice")
	bob := s.insertUser("bob")
	s.insertExpense(bob.ID, "2", "2")
	s.insertExpense(alice.ID, "1", "1")

	// A plain connection has foreign keys off, which lets us plant an orphan.
	raw, err := sql.Open("sqlite", s.path)
	require.NoError(s.T(), err)
	defer raw.Close()
	_, err = raw.Exec(`INSERT INTO expenses (user_id, date, description, amount, running_total)
		VALUES (404, '2025-01-01', 'orphan', '9', '9')`)
	require.NoError(s.T(), err)

	rows, err := s.repo.ListAllExpenses(s.ctx)
	require.NoError(s.T(), err)
	require.Len(s.T(), rows, 2)
	assert.Equal(s.T(), "bob", rows[0].Username)
	assert.Equal(s.T(), "alice", rows[1].Username)
	assert.Less(s.T(), rows[0].ID, rows[1].ID)
}

func (s *RepositoryTestSuite) TestExpensesAfter() {
	alice := s.insertUser("alice")
	first := s.insertExpense(alice.ID, "1", "1")
	s.insertExpense(alice.ID, "2", "3")
	s.insertExpense(alice.ID, "3", "6")

	err := s.repo.WithTx(s.ctx, func(tx *LedgerTx) error {
		after, err := tx.ExpensesAfter(s.ctx, alice.ID, first.ID)
		require.NoError(s.T(), err)
		assert.Len(s.T(), after, 2)

		amounts, err := tx.UserAmounts(s.ctx, alice.ID)
		require.NoError(s.T(), err)
		assert.True(s.T(), core.SumAmounts(amounts).Equal(decimal.NewFromInt(6)))
		return nil
	})
	require.NoError(s.T(), err)
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func TestDataSourceName(t *testing.T) {
	assert.Equal(t, "a.db?"+connParams, dataSourceName("a.db"))
	assert.Equal(t, "file:a.db?mode=rwc&"+connParams, dataSourceName("file:a.db?mode=rwc"))
}
