package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/waypost-systems/waypost/internal/models"
)

// MemoryLedger is a mutex-guarded in-memory Ledger for tests and
// single-binary development.
type MemoryLedger struct {
	mu       sync.Mutex
	statuses map[statusKey]models.DeliveryStatus
}

type statusKey struct {
	key  string
	sink string
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		statuses: make(map[statusKey]models.DeliveryStatus),
	}
}

func (l *MemoryLedger) Set(ctx context.Context, status models.DeliveryStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses[statusKey{key: status.Key, sink: status.Sink}] = status
	return nil
}

func (l *MemoryLedger) Get(ctx context.Context, key, sink string) (*models.DeliveryStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	status, ok := l.statuses[statusKey{key: key, sink: sink}]
	if !ok {
		return nil, ErrNotFound
	}
	return &status, nil
}

func (l *MemoryLedger) ListFailed(ctx context.Context, limit int) ([]models.DeliveryStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var failed []models.DeliveryStatus
	for _, status := range l.statuses {
		if status.State == models.DeliveryFailed {
			failed = append(failed, status)
		}
	}
	sort.Slice(failed, func(i, j int) bool {
		return failed[i].UpdatedAt.Before(failed[j].UpdatedAt)
	})
	if len(failed) > limit {
		failed = failed[:limit]
	}
	return failed, nil
}
