package journal

import (
	"context"
	"sync"
	"time"

	"github.com/waypost-systems/waypost/internal/models"
)

// MemoryJournal is a mutex-guarded in-memory Journal for tests and
// single-binary development. Append and Lookup copy entries so callers
// can't mutate stored state.
type MemoryJournal struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		entries: make(map[string]*Entry),
	}
}

func (j *MemoryJournal) Append(ctx context.Context, raw models.RawEvent, record *models.NormalizedRecord) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := KeyFor(raw.Payload)

	j.mu.Lock()
	defer j.mu.Unlock()

	if existing, ok := j.entries[key]; ok {
		copied := *existing
		copied.Duplicate = true
		return &copied, nil
	}

	entry := &Entry{
		Key:       key,
		Raw:       raw,
		Record:    record,
		CreatedAt: time.Now().UTC(),
	}
	j.entries[key] = entry

	copied := *entry
	return &copied, nil
}

func (j *MemoryJournal) Lookup(ctx context.Context, key string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	entry, ok := j.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *entry
	return &copied, nil
}

func (j *MemoryJournal) Close() {}

// Len reports the number of stored entries. Test helper.
func (j *MemoryJournal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}
