package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/waypost-systems/waypost/internal/journal"
	natsclient "github.com/waypost-systems/waypost/internal/messaging/nats"
)

// StreamSink publishes geofence events to JetStream, one subject per user
// so consumers get per-user ordering. Non-geofence events are acknowledged
// without publishing. The idempotency key rides as the JetStream message
// id for broker-side dedup within the duplicate window.
type StreamSink struct {
	js *natsclient.JetStreamClient
}

// NewStreamSink ensures the location events stream exists and returns the
// sink.
func NewStreamSink(ctx context.Context, js *natsclient.JetStreamClient) (*StreamSink, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream client is nil")
	}
	if _, err := js.CreateOrUpdateStream(ctx, natsclient.LocationEventsStream); err != nil {
		return nil, fmt.Errorf("create location events stream: %w", err)
	}
	return &StreamSink{js: js}, nil
}

func (s *StreamSink) Name() string { return "stream" }

func (s *StreamSink) Deliver(ctx context.Context, entry *journal.Entry) error {
	loc := entry.Record.Location
	if !loc.EventType.IsGeofence() {
		return nil
	}

	data, err := json.Marshal(entry.Record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	subject := fmt.Sprintf("locations.geofence.%s", loc.UserID)
	if _, err := s.js.Publish(ctx, subject, entry.Key, data); err != nil {
		return fmt.Errorf("publish geofence event: %w", err)
	}
	return nil
}
