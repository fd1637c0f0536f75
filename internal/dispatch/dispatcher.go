// Package dispatch fans a journal entry out to every registered sink with
// bounded retries, recording each outcome in the delivery ledger.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/waypost-systems/waypost/internal/journal"
	"github.com/waypost-systems/waypost/internal/ledger"
	"github.com/waypost-systems/waypost/internal/logging"
	"github.com/waypost-systems/waypost/internal/metrics"
	"github.com/waypost-systems/waypost/internal/models"
	"github.com/waypost-systems/waypost/internal/sink"
)

// Config is the retry policy shared by all sinks. Immutable after start.
type Config struct {
	// MaxAttempts is the total number of delivery calls per sink,
	// including the first one. Minimum 1.
	MaxAttempts int

	// BackoffBase is the initial retry interval; BackoffCap bounds its
	// exponential growth.
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// AttemptTimeout bounds each individual sink call. A timed-out call
	// counts as a failed attempt.
	AttemptTimeout time.Duration
}

// DefaultConfig returns the retry policy used when config is silent.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		BackoffBase:    200 * time.Millisecond,
		BackoffCap:     10 * time.Second,
		AttemptTimeout: 10 * time.Second,
	}
}

// Dispatcher delivers journal entries to a fixed set of sinks assembled
// at startup. Sinks succeed or fail independently; no outcome is ever
// rolled back because a sibling failed.
type Dispatcher struct {
	sinks  []sink.Sink
	ledger ledger.Ledger
	cfg    Config
	logger *logging.Logger
}

func New(sinks []sink.Sink, statusLedger ledger.Ledger, cfg Config, logger *logging.Logger) *Dispatcher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		sinks:  sinks,
		ledger: statusLedger,
		cfg:    cfg,
		logger: logger,
	}
}

// Dispatch runs one delivery per sink concurrently and blocks until all
// have reached a terminal state. The returned map holds the final status
// per sink name. Callers on the ack path invoke it from a goroutine with
// a context detached from the HTTP request.
func (d *Dispatcher) Dispatch(ctx context.Context, entry *journal.Entry) map[string]models.DeliveryStatus {
	results := make(map[string]models.DeliveryStatus, len(d.sinks))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, s := range d.sinks {
		wg.Add(1)
		go func(s sink.Sink) {
			defer wg.Done()
			status := d.deliver(ctx, s, entry)
			mu.Lock()
			results[s.Name()] = status
			mu.Unlock()
		}(s)
	}
	wg.Wait()

	return results
}

// deliver runs the retry loop for one sink and persists the outcome.
func (d *Dispatcher) deliver(ctx context.Context, s sink.Sink, entry *journal.Entry) models.DeliveryStatus {
	// Sinks without native dedup are protected here: a re-dispatched
	// entry skips any sink that already acknowledged it.
	if prev, err := d.ledger.Get(ctx, entry.Key, s.Name()); err == nil && prev.State == models.DeliveryDelivered {
		return *prev
	} else if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		d.logger.WarnContext(ctx, "ledger read failed, delivering anyway",
			logging.Sink(s.Name()), logging.Key(entry.Key), logging.Error(err))
	}

	status := models.DeliveryStatus{
		Key:   entry.Key,
		Sink:  s.Name(),
		State: models.DeliveryPending,
	}
	d.record(ctx, status)

	start := time.Now()
	attempts := 0

	operation := func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
		defer cancel()

		err := s.Deliver(attemptCtx, entry)
		if err != nil {
			metrics.DispatchAttempts.WithLabelValues(s.Name(), "error").Inc()
			return err
		}
		metrics.DispatchAttempts.WithLabelValues(s.Name(), "ok").Inc()
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.cfg.BackoffBase
	bo.MaxInterval = d.cfg.BackoffCap
	bo.MaxElapsedTime = 0 // attempt count is the only bound

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(d.cfg.MaxAttempts-1)), ctx))

	status.Attempts = attempts
	status.UpdatedAt = time.Now().UTC()
	metrics.DeliveryDuration.WithLabelValues(s.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		status.State = models.DeliveryFailed
		status.Reason = err.Error()
		metrics.DeliveriesFailed.WithLabelValues(s.Name()).Inc()
		d.logger.ErrorContext(ctx, "delivery failed, retries exhausted",
			logging.Sink(s.Name()), logging.Key(entry.Key),
			logging.Reason(status.Reason), logging.FieldAttempts, attempts)
	} else {
		status.State = models.DeliveryDelivered
		status.Reason = ""
		d.logger.DebugContext(ctx, "delivered",
			logging.Sink(s.Name()), logging.Key(entry.Key), logging.FieldAttempts, attempts)
	}

	d.record(ctx, status)
	return status
}

// record writes a status to the ledger. Ledger failures are logged but do
// not change the delivery outcome.
func (d *Dispatcher) record(ctx context.Context, status models.DeliveryStatus) {
	if err := d.ledger.Set(ctx, status); err != nil {
		d.logger.ErrorContext(ctx, "failed to persist delivery status",
			logging.Sink(status.Sink), logging.Key(status.Key), logging.Error(err))
	}
}
