package sink

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/waypost-systems/waypost/internal/journal"
	"github.com/waypost-systems/waypost/internal/models"
)

func TestStreamSink_SkipsNonGeofenceEvents(t *testing.T) {
	// js stays nil: a non-geofence event must be acknowledged without ever
	// touching the broker.
	s := &StreamSink{}

	entry := &journal.Entry{
		Key: "key-1",
		Record: &models.NormalizedRecord{
			Location: models.LocationRecord{
				UserID:    "u-1",
				Timestamp: time.Now().UTC(),
				EventType: models.EventLocationUpdate,
			},
		},
	}

	assert.NoError(t, s.Deliver(context.Background(), entry))
}

func TestStreamSink_Name(t *testing.T) {
	s := &StreamSink{}
	assert.Equal(t, "stream", s.Name())
}
