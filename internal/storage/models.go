package storage

// Row types mirror the tables. Amounts are kept as canonical decimal text.
type (
	User struct {
		ID       int64
		Username string
	}

	Expense struct {
		ID           int64
		UserID       int64
		Date         string
		Description  string
		Amount       string
		RunningTotal string
	}

	ExpenseWithUsername struct {
		Expense
		Username string
	}

	CreateExpenseParams struct {
		UserID       int64
		Date         string
		Description  string
		Amount       string
		RunningTotal string
	}
)
