package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/forensics-engine/pkg/models"
)

// schemaSQL holds the DDL for the staging table analysts bulk-load
// transfers into before triggering a database-backed run.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS staged_transactions (
	transaction_id TEXT PRIMARY KEY,
	sender_id      TEXT NOT NULL,
	receiver_id    TEXT NOT NULL,
	amount         DOUBLE PRECISION NOT NULL,
	ts             TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_staged_transactions_ts ON staged_transactions (ts);
`

type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("Successfully connected to PostgreSQL for Forensics Engine")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates the staging table if it does not exist.
func (s *PostgresStore) InitSchema() error {
	_, err := s.pool.Exec(context.Background(), schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("[DB] staging schema initialized")
	return nil
}

// StageTransactions bulk-upserts transfers into the staging table so a
// later database-backed run can pick them up.
func (s *PostgresStore) StageTransactions(ctx context.Context, txs []models.Transaction) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	upsertSQL := `
		INSERT INTO staged_transactions (transaction_id, sender_id, receiver_id, amount, ts)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (transaction_id) DO UPDATE
		SET sender_id = EXCLUDED.sender_id,
		    receiver_id = EXCLUDED.receiver_id,
		    amount = EXCLUDED.amount,
		    ts = EXCLUDED.ts;
	`
	for _, t := range txs {
		if _, err := tx.Exec(ctx, upsertSQL, t.ID, t.SenderID, t.ReceiverID, t.Amount, t.Timestamp); err != nil {
			return fmt.Errorf("failed to stage transaction %s: %v", t.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// LoadTransactions reads up to limit staged transfers ordered by timestamp
// and applies the same validity rules as the CSV parser: non-positive
// amounts and self-transfers are dropped, not errors. The returned stats
// mirror the CSV parse report so both ingestion paths look the same to
// the pipeline.
func (s *PostgresStore) LoadTransactions(ctx context.Context, limit int) ([]models.Transaction, models.ParseStats, error) {
	stats := models.ParseStats{}

	sql := `
		SELECT transaction_id, sender_id, receiver_id, amount, ts
		FROM staged_transactions
		ORDER BY ts, transaction_id
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to query staged transactions: %v", err)
	}
	defer rows.Close()

	txs := make([]models.Transaction, 0)
	for rows.Next() {
		var (
			t  models.Transaction
			ts time.Time
		)
		if err := rows.Scan(&t.ID, &t.SenderID, &t.ReceiverID, &t.Amount, &ts); err != nil {
			return nil, stats, err
		}
		t.Timestamp = ts.UTC()
		stats.TotalRows++

		if t.Amount <= 0 {
			stats.DroppedRows++
			stats.NegativeAmounts++
			stats.Warnings = append(stats.Warnings, fmt.Sprintf("transaction %s: non-positive amount %.2f", t.ID, t.Amount))
			continue
		}
		if t.SenderID == t.ReceiverID {
			stats.DroppedRows++
			stats.SelfTransactions++
			stats.Warnings = append(stats.Warnings, fmt.Sprintf("transaction %s: sender equals receiver", t.ID))
			continue
		}
		stats.ValidRows++
		txs = append(txs, t)
	}
	if rows.Err() != nil {
		return nil, stats, rows.Err()
	}
	return txs, stats, nil
}

// StagedCount reports how many transfers are currently staged.
func (s *PostgresStore) StagedCount(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM staged_transactions`).Scan(&n)
	return n, err
}
