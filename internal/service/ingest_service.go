// Package service wires the normalize → journal → dispatch pipeline
// behind the webhook endpoint.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/waypost-systems/waypost/internal/dispatch"
	"github.com/waypost-systems/waypost/internal/journal"
	"github.com/waypost-systems/waypost/internal/logging"
	"github.com/waypost-systems/waypost/internal/metrics"
	"github.com/waypost-systems/waypost/internal/models"
	"github.com/waypost-systems/waypost/internal/normalizer"
)

// RejectArchiver stores rejected raw payloads for audit. Implemented by
// the archive sink; nil when archive-on-reject is disabled.
type RejectArchiver interface {
	ArchiveRaw(ctx context.Context, raw models.RawEvent) error
}

// IngestResult is returned to the webhook producer on acceptance.
type IngestResult struct {
	Key       string `json:"idempotency_key"`
	Duplicate bool   `json:"duplicate"`
}

// IngestService accepts raw webhook payloads and drives them through the
// pipeline. The ack boundary is the durable journal append: dispatch to
// sinks happens in the background after Ingest returns.
type IngestService struct {
	journal    journal.Journal
	dispatcher *dispatch.Dispatcher
	archiver   RejectArchiver
	logger     *logging.Logger

	// inflight tracks background dispatches so Stop can drain them.
	inflight sync.WaitGroup
}

func NewIngestService(j journal.Journal, d *dispatch.Dispatcher, logger *logging.Logger) *IngestService {
	if logger == nil {
		logger = logging.Default()
	}
	return &IngestService{
		journal:    j,
		dispatcher: d,
		logger:     logger,
	}
}

// SetRejectArchiver enables archival of rejected payloads.
func (s *IngestService) SetRejectArchiver(a RejectArchiver) {
	s.archiver = a
}

// Ingest normalizes and durably stores one webhook payload.
//
// A *normalizer.ValidationError return means the payload was rejected and
// nothing reached the journal or the structured sinks (the raw bytes may
// still be archived for audit). Any other error is a durability failure:
// the producer should retry the whole delivery. On success the entry is
// durable and dispatch has been started in the background; an idempotent
// replay returns the existing key with Duplicate set and does not
// re-invoke the dispatcher.
func (s *IngestService) Ingest(ctx context.Context, raw models.RawEvent) (*IngestResult, error) {
	metrics.EventBytesTotal.Add(float64(len(raw.Payload)))

	record, err := normalizer.Normalize(raw.Payload)
	if err != nil {
		var verr *normalizer.ValidationError
		if errors.As(err, &verr) {
			metrics.EventsTotal.WithLabelValues("rejected").Inc()
			metrics.NormalizationErrors.WithLabelValues(string(verr.Reason)).Inc()
			s.archiveReject(ctx, raw)
			return nil, err
		}
		return nil, fmt.Errorf("normalize: %w", err)
	}

	start := time.Now()
	entry, err := s.journal.Append(ctx, raw, record)
	metrics.JournalDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.JournalErrors.Inc()
		metrics.EventsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("journal append: %w", err)
	}

	if entry.Duplicate {
		// Existing-entry short-circuit: the first ingestion already
		// dispatched (or is dispatching) this key.
		metrics.DuplicateEvents.Inc()
		metrics.EventsTotal.WithLabelValues("duplicate").Inc()
		return &IngestResult{Key: entry.Key, Duplicate: true}, nil
	}

	metrics.EventsTotal.WithLabelValues("accepted").Inc()
	s.logger.InfoContext(ctx, "event accepted",
		logging.Key(entry.Key), logging.UserID(record.UserID()),
		logging.FieldStatus, string(record.Location.EventType))

	// Durability is achieved; dispatch must survive a disconnecting
	// caller, so it runs on a context detached from the request's
	// cancellation.
	dispatchCtx := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.dispatcher.Dispatch(dispatchCtx, entry)
	}()

	return &IngestResult{Key: entry.Key}, nil
}

// archiveReject stores a rejected payload in the background when the
// archiver is configured. Failures are logged only: rejection archival is
// best-effort audit, not part of the acceptance contract.
func (s *IngestService) archiveReject(ctx context.Context, raw models.RawEvent) {
	if s.archiver == nil {
		return
	}
	archiveCtx := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := s.archiver.ArchiveRaw(archiveCtx, raw); err != nil {
			s.logger.WarnContext(archiveCtx, "failed to archive rejected payload", logging.Error(err))
		}
	}()
}

// Stop blocks until all background dispatches and archivals finish.
func (s *IngestService) Stop() {
	s.inflight.Wait()
}
