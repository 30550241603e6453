// Package journal persists an immutable audit trail of committed
// engine operations. The in-process ledger remains the source of truth;
// the journal is observational. Implementations include PostgreSQL and
// in-memory (for testing and development).
package journal

import (
	"context"

	"github.com/atmx/synth-engine/internal/model"
)

// Store is the journal persistence interface.
type Store interface {
	// Append records one committed operation.
	Append(ctx context.Context, entry *model.JournalEntry) error

	// ListByUser returns all entries affecting a user, oldest first.
	// Entries where the user acted as liquidator are included.
	ListByUser(ctx context.Context, user string) ([]model.JournalEntry, error)
}
