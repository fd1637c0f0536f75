// Package journal is the append-only durability log for accepted webhook
// events. Once Append returns, the raw payload and its normalized record
// are on stable storage and the caller may be acked.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/waypost-systems/waypost/internal/models"
)

var (
	// ErrNotFound is returned by Lookup when no entry exists for a key.
	ErrNotFound = errors.New("journal entry not found")
)

// keyNamespace is the fixed UUIDv5 namespace for idempotency keys.
// Changing it would re-key every inbound event, so it never changes.
var keyNamespace = uuid.MustParse("8b4a9c62-1f30-4f6e-9d5a-2e7c41b80a13")

// Entry is a durable journal row. Raw and Record are written atomically:
// no reader ever observes one without the other.
type Entry struct {
	Key       string
	Raw       models.RawEvent
	Record    *models.NormalizedRecord
	CreatedAt time.Time

	// Duplicate is set by Append when an entry with the same idempotency
	// key already existed. The dispatcher is not re-invoked for duplicates.
	Duplicate bool
}

// Journal persists accepted events keyed by idempotency key. Append is
// idempotent: replays of the same webhook delivery return the existing
// entry with Duplicate set instead of creating a second row. Concurrent
// appends that share a key serialize inside the implementation; unrelated
// keys proceed in parallel.
type Journal interface {
	Append(ctx context.Context, raw models.RawEvent, record *models.NormalizedRecord) (*Entry, error)
	Lookup(ctx context.Context, key string) (*Entry, error)
	Close()
}

// KeyFor derives the deterministic idempotency key for a raw payload:
// a UUIDv5 over the source event id when the payload carries one, else
// over the payload bytes themselves.
func KeyFor(raw []byte) string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.ID != "" {
		return uuid.NewSHA1(keyNamespace, []byte(probe.ID)).String()
	}
	return uuid.NewSHA1(keyNamespace, raw).String()
}
