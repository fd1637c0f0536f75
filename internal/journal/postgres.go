package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/waypost-systems/waypost/internal/models"
)

// PostgresJournal stores entries in a single events table. The unique
// index on idempotency_key is what serializes concurrent appends for the
// same key: the insert either wins or observes the winner's row.
type PostgresJournal struct {
	pool *pgxpool.Pool
}

// NewPostgresJournal connects a pgx pool and verifies it with a ping.
func NewPostgresJournal(ctx context.Context, connString string) (*PostgresJournal, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresJournal{pool: pool}, nil
}

// NewPostgresJournalFromPool wraps an existing pool (shared with the
// delivery ledger).
func NewPostgresJournalFromPool(pool *pgxpool.Pool) *PostgresJournal {
	return &PostgresJournal{pool: pool}
}

// Pool exposes the underlying pool so the ledger can share it.
func (j *PostgresJournal) Pool() *pgxpool.Pool {
	return j.pool
}

func (j *PostgresJournal) Close() {
	j.pool.Close()
}

// Append inserts raw payload and normalized record in one row. On key
// conflict the insert is a no-op and the existing entry is returned with
// Duplicate set.
func (j *PostgresJournal) Append(ctx context.Context, raw models.RawEvent, record *models.NormalizedRecord) (*Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := KeyFor(raw.Payload)

	recordJSON, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	query := `
		INSERT INTO events (idempotency_key, raw_payload, source_ip, record, received_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING created_at
	`

	var createdAt time.Time
	err = j.pool.QueryRow(ctx, query, key, raw.Payload, raw.SourceIP, recordJSON, raw.ReceivedAt.UTC()).Scan(&createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the insert race or a genuine replay: read the winner's row.
		existing, lookupErr := j.Lookup(ctx, key)
		if lookupErr != nil {
			return nil, fmt.Errorf("failed to read existing entry: %w", lookupErr)
		}
		existing.Duplicate = true
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to append journal entry: %w", err)
	}

	return &Entry{
		Key:       key,
		Raw:       raw,
		Record:    record,
		CreatedAt: createdAt,
	}, nil
}

// Lookup fetches an entry by idempotency key.
func (j *PostgresJournal) Lookup(ctx context.Context, key string) (*Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT raw_payload, source_ip, record, received_at, created_at
		FROM events
		WHERE idempotency_key = $1
	`

	var (
		entry      Entry
		recordJSON []byte
	)
	entry.Key = key
	err := j.pool.QueryRow(ctx, query, key).Scan(
		&entry.Raw.Payload,
		&entry.Raw.SourceIP,
		&recordJSON,
		&entry.Raw.ReceivedAt,
		&entry.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up journal entry: %w", err)
	}

	var record models.NormalizedRecord
	if err := json.Unmarshal(recordJSON, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	entry.Record = &record

	return &entry, nil
}
