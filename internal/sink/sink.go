// Package sink defines the downstream delivery targets for normalized
// records and their concrete implementations.
package sink

import (
	"context"

	"github.com/waypost-systems/waypost/internal/journal"
)

// Sink delivers one journal entry to a downstream system. Implementations
// must be idempotent with respect to the entry's idempotency key: a
// retried Deliver must not create duplicate downstream rows.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, entry *journal.Entry) error
}
