package sheets

import (
	"context"

	"ledger/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerMirror holds a read-only copy of the all-users ledger view.
	LedgerMirror interface {
		// Replace overwrites the mirror with rows, in order.
		Replace(ctx context.Context, rows []core.LedgerRow) error
	}
)
