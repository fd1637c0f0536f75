package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/waypost-systems/waypost/internal/journal"
)

// LookupSink upserts the LocationRecord into Redis for low-latency reads.
// Two keys are written per event: a per-timestamp key and a latest-position
// key. SET is a natural upsert, so retries are harmless.
type LookupSink struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLookupSink connects to Redis using a URL
// (redis://[:password@]host:port/db) and verifies the connection.
func NewLookupSink(redisURL string, ttl time.Duration) (*LookupSink, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &LookupSink{client: client, ttl: ttl}, nil
}

// NewLookupSinkWithClient wraps an existing client. Used by tests with
// miniredis.
func NewLookupSinkWithClient(client *redis.Client, ttl time.Duration) *LookupSink {
	return &LookupSink{client: client, ttl: ttl}
}

func (s *LookupSink) Name() string { return "lookup" }

func (s *LookupSink) Deliver(ctx context.Context, entry *journal.Entry) error {
	loc := entry.Record.Location

	data, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("marshal location record: %w", err)
	}

	eventKey := fmt.Sprintf("location:%s:%d", loc.UserID, loc.Timestamp.UnixMilli())
	latestKey := fmt.Sprintf("location:latest:%s", loc.UserID)

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, eventKey, data, s.ttl)
	pipe.Set(ctx, latestKey, data, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis upsert failed: %w", err)
	}
	return nil
}

func (s *LookupSink) Close() error {
	return s.client.Close()
}
