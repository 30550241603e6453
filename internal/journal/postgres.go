package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/synth-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL. Amounts are stored
// as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed journal.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// InitSchema creates the journal table if it does not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS journal_entries (
			id            UUID PRIMARY KEY,
			op            TEXT NOT NULL,
			user_id       TEXT NOT NULL,
			counterparty  TEXT NOT NULL DEFAULT '',
			asset         TEXT NOT NULL DEFAULT '',
			amount        NUMERIC NOT NULL,
			health_factor TEXT NOT NULL DEFAULT '',
			timestamp     TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_journal_user ON journal_entries (user_id, timestamp);
		CREATE INDEX IF NOT EXISTS idx_journal_counterparty ON journal_entries (counterparty, timestamp);
	`)
	if err != nil {
		return fmt.Errorf("init journal schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, e *model.JournalEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO journal_entries (id, op, user_id, counterparty, asset, amount, health_factor, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7, $8)`,
		e.ID, e.Op, e.User, e.Counterparty, e.Asset,
		e.Amount.String(), e.HealthFactor, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append journal entry %s: %w", e.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, user string) ([]model.JournalEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, op, user_id, counterparty, asset, amount::TEXT, health_factor, timestamp
		 FROM journal_entries
		 WHERE user_id = $1 OR counterparty = $1
		 ORDER BY timestamp`, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.JournalEntry
	for rows.Next() {
		var e model.JournalEntry
		var amountS string
		if err := rows.Scan(&e.ID, &e.Op, &e.User, &e.Counterparty, &e.Asset,
			&amountS, &e.HealthFactor, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Amount, _ = decimal.NewFromString(amountS)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
