// Package ledger tracks per-sink delivery outcomes for each journal
// entry. It is the only state mutated by concurrent dispatch attempts;
// updates to a (key, sink) pair are last-write-wins.
package ledger

import (
	"context"
	"errors"

	"github.com/waypost-systems/waypost/internal/models"
)

// ErrNotFound is returned by Get when no delivery has been recorded for
// the (key, sink) pair.
var ErrNotFound = errors.New("delivery status not found")

// Ledger persists DeliveryStatus rows. Set is an upsert; failed rows are
// retained for re-drive and never deleted by the pipeline.
type Ledger interface {
	Set(ctx context.Context, status models.DeliveryStatus) error
	Get(ctx context.Context, key, sink string) (*models.DeliveryStatus, error)
	ListFailed(ctx context.Context, limit int) ([]models.DeliveryStatus, error)
}
