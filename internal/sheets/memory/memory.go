package memory

import (
	"context"
	"sync"

	"ledger/internal/core"
	ports "ledger/internal/sheets"
)

var _ ports.LedgerMirror = (*Store)(nil)

// Store keeps the last mirrored snapshot in memory.
type Store struct {
	mu           sync.Mutex
	rows         []core.LedgerRow
	replacements int
}

func New() *Store {
	return &Store{}
}

// Replace stores a copy of rows.
func (s *Store) Replace(ctx context.Context, rows []core.LedgerRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append([]core.LedgerRow(nil), rows...)
	s.replacements++
	return nil
}

// Rows returns the current snapshot.
func (s *Store) Rows() []core.LedgerRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.LedgerRow(nil), s.rows...)
}

func (s *Store) Replacements() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replacements
}
