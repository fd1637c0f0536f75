package sink_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waypost-systems/waypost/internal/journal"
	"github.com/waypost-systems/waypost/internal/models"
	"github.com/waypost-systems/waypost/internal/sink"
)

func locationEntry(key, userID string, ts time.Time, eventType models.EventType) *journal.Entry {
	return &journal.Entry{
		Key: key,
		Raw: models.RawEvent{Payload: []byte(`{"id":"` + key + `"}`)},
		Record: &models.NormalizedRecord{
			Location: models.LocationRecord{
				UserID:    userID,
				Latitude:  37.7749,
				Longitude: -122.4194,
				Timestamp: ts,
				EventType: eventType,
			},
		},
	}
}

func TestLookupSink_Deliver(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := sink.NewLookupSinkWithClient(client, time.Hour)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := locationEntry("key-1", "u-1", ts, models.EventLocationUpdate)

	require.NoError(t, s.Deliver(context.Background(), entry))

	eventKey := "location:u-1:" + "1709294400000"
	latestKey := "location:latest:u-1"

	for _, key := range []string{eventKey, latestKey} {
		raw, err := mr.Get(key)
		require.NoError(t, err, "expected key %s", key)

		var loc models.LocationRecord
		require.NoError(t, json.Unmarshal([]byte(raw), &loc))
		assert.Equal(t, "u-1", loc.UserID)
		assert.InDelta(t, 37.7749, loc.Latitude, 1e-9)

		ttl := mr.TTL(key)
		assert.Equal(t, time.Hour, ttl)
	}
}

func TestLookupSink_LatestKeyTracksNewestDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := sink.NewLookupSinkWithClient(client, 0)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Deliver(ctx, locationEntry("key-1", "u-1", base, models.EventLocationUpdate)))
	require.NoError(t, s.Deliver(ctx, locationEntry("key-2", "u-1", base.Add(time.Minute), models.EventLocationUpdate)))

	raw, err := mr.Get("location:latest:u-1")
	require.NoError(t, err)
	var loc models.LocationRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &loc))
	assert.Equal(t, base.Add(time.Minute), loc.Timestamp.UTC())

	// Both per-timestamp keys survive.
	_, err = mr.Get("location:u-1:1709294400000")
	assert.NoError(t, err)
	_, err = mr.Get("location:u-1:1709294460000")
	assert.NoError(t, err)
}

func TestLookupSink_RedeliveryIsIdempotent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := sink.NewLookupSinkWithClient(client, 0)
	ctx := context.Background()
	entry := locationEntry("key-1", "u-1", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), models.EventLocationUpdate)

	require.NoError(t, s.Deliver(ctx, entry))
	before, err := mr.Get("location:latest:u-1")
	require.NoError(t, err)

	require.NoError(t, s.Deliver(ctx, entry))
	after, err := mr.Get("location:latest:u-1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLookupSink_ErrorWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := sink.NewLookupSinkWithClient(client, 0)
	mr.Close()

	err := s.Deliver(context.Background(), locationEntry("key-1", "u-1", time.Now(), models.EventLocationUpdate))
	assert.Error(t, err)
}
