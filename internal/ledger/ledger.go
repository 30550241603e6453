// Package ledger holds the in-process store of user positions: per-user
// collateral-by-asset balances, per-user debt, and the approved
// collateral asset set.
//
// The ledger is the engine's source of truth for its entire lifetime.
// Mutations arrive as a single Apply of fully-staged positions under
// the write lock, so readers never observe a half-completed operation.
package ledger

import (
	"sync"

	"github.com/atmx/synth-engine/internal/model"
)

// Ledger is the position store. The approved asset list is fixed at
// construction and keeps its construction order for deterministic
// enumeration.
type Ledger struct {
	mu        sync.RWMutex
	assets    []string
	approved  map[string]bool
	positions map[string]model.Position
}

// New creates a ledger with the given ordered approved-asset list.
func New(assets []string) *Ledger {
	approved := make(map[string]bool, len(assets))
	for _, a := range assets {
		approved[a] = true
	}
	return &Ledger{
		assets:    append([]string(nil), assets...),
		approved:  approved,
		positions: make(map[string]model.Position),
	}
}

// Assets returns the approved assets in construction order.
func (l *Ledger) Assets() []string {
	return append([]string(nil), l.assets...)
}

// Approved reports whether an asset is in the approved set.
func (l *Ledger) Approved(asset string) bool {
	return l.approved[asset]
}

// Position returns a deep copy of a user's position. Users without a
// recorded position get an empty one.
func (l *Ledger) Position(user string) model.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.positions[user]
	if !ok {
		return model.NewPosition()
	}
	return p.Clone()
}

// Apply commits fully-staged positions in one step. Staged positions
// replace the stored ones wholesale; the commit is all-or-nothing with
// respect to readers.
func (l *Ledger) Apply(staged map[string]model.Position) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for user, p := range staged {
		l.positions[user] = p.Clone()
	}
}
