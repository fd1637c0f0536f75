package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/waypost-systems/waypost/internal/models"
)

// PostgresLedger stores delivery statuses in the deliveries table,
// sharing the journal's connection pool.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

// Set upserts the status for a (key, sink) pair. The primary key makes
// the last attempt's outcome win without lost updates.
func (l *PostgresLedger) Set(ctx context.Context, status models.DeliveryStatus) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO deliveries (idempotency_key, sink, state, reason, attempts, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (idempotency_key, sink) DO UPDATE SET
			state = EXCLUDED.state,
			reason = EXCLUDED.reason,
			attempts = EXCLUDED.attempts,
			updated_at = EXCLUDED.updated_at
	`

	updatedAt := status.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := l.pool.Exec(ctx, query,
		status.Key, status.Sink, string(status.State), status.Reason, status.Attempts, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert delivery status: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Get(ctx context.Context, key, sink string) (*models.DeliveryStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT idempotency_key, sink, state, reason, attempts, updated_at
		FROM deliveries
		WHERE idempotency_key = $1 AND sink = $2
	`

	status, err := scanStatus(l.pool.QueryRow(ctx, query, key, sink))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery status: %w", err)
	}
	return status, nil
}

// ListFailed returns failed deliveries, oldest first, for re-drive
// tooling.
func (l *PostgresLedger) ListFailed(ctx context.Context, limit int) ([]models.DeliveryStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT idempotency_key, sink, state, reason, attempts, updated_at
		FROM deliveries
		WHERE state = 'failed'
		ORDER BY updated_at ASC
		LIMIT $1
	`

	rows, err := l.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed deliveries: %w", err)
	}
	defer rows.Close()

	var statuses []models.DeliveryStatus
	for rows.Next() {
		status, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery status: %w", err)
		}
		statuses = append(statuses, *status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deliveries: %w", err)
	}
	return statuses, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatus(row rowScanner) (*models.DeliveryStatus, error) {
	var (
		status models.DeliveryStatus
		state  string
	)
	err := row.Scan(&status.Key, &status.Sink, &state, &status.Reason, &status.Attempts, &status.UpdatedAt)
	if err != nil {
		return nil, err
	}
	status.State = models.DeliveryState(state)
	return &status, nil
}
