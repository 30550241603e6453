package journal

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/synth-engine/internal/model"
)

func entry(id, op, user, counterparty string) *model.JournalEntry {
	return &model.JournalEntry{
		ID:           id,
		Op:           op,
		User:         user,
		Counterparty: counterparty,
		Amount:       decimal.NewFromInt(1),
		Timestamp:    time.Now().UTC(),
	}
}

func TestMemoryStore_ListByUser(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Append(ctx, entry("1", "deposit", "alice", "")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append(ctx, entry("2", "mint", "bob", "")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append(ctx, entry("3", "liquidate", "alice", "bob")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	alice, err := store.ListByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(alice) != 2 || alice[0].ID != "1" || alice[1].ID != "3" {
		t.Errorf("alice entries: got %+v", alice)
	}

	// Counterparty matches count: bob sees the liquidation it acted in.
	bob, err := store.ListByUser(ctx, "bob")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(bob) != 2 || bob[0].ID != "2" || bob[1].ID != "3" {
		t.Errorf("bob entries: got %+v", bob)
	}

	none, err := store.ListByUser(ctx, "carol")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("carol entries: got %+v", none)
	}
}

func TestMemoryStore_AppendCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	e := entry("1", "deposit", "alice", "")
	if err := store.Append(ctx, e); err != nil {
		t.Fatalf("Append: %v", err)
	}
	e.Op = "mutated"

	got, err := store.ListByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(got) != 1 || got[0].Op != "deposit" {
		t.Errorf("stored entry should not alias the caller's: %+v", got)
	}
}
