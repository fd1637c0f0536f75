package normalizer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waypost-systems/waypost/internal/models"
	"github.com/waypost-systems/waypost/internal/normalizer"
)

func validPayload() string {
	return `{
		"id": "evt-001",
		"MMUserId": "12345",
		"type": "location.updated",
		"created_at": "2024-03-01T12:00:00Z",
		"live": "TRUE",
		"location": {
			"coordinates": {
				"latitude": "37.7749",
				"longitude": "-122.4194"
			}
		},
		"trip": {
			"_id": "trip-9",
			"externalId": "ext-9",
			"MMUserId": "12345",
			"createdAt": "2024-03-01T11:00:00Z",
			"updatedAt": "2024-03-01T12:00:00Z",
			"startedAt": "2024-03-01T11:05:00Z",
			"metadata": {"route_session_type": "delivery"}
		}
	}`
}

func TestNormalize_FullPayload(t *testing.T) {
	record, err := normalizer.Normalize([]byte(validPayload()))
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, "12345", record.Location.UserID)
	assert.InDelta(t, 37.7749, record.Location.Latitude, 1e-9)
	assert.InDelta(t, -122.4194, record.Location.Longitude, 1e-9)
	assert.Equal(t, models.EventLocationUpdate, record.Location.EventType)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), record.Location.Timestamp)

	require.NotNil(t, record.Trip)
	assert.Equal(t, "trip-9", record.Trip.TripID)
	assert.Equal(t, "ext-9", record.Trip.ExternalID)
	assert.Equal(t, "12345", record.Trip.UserID)
	assert.Equal(t, "delivery", record.Trip.RouteSessionType)
	assert.False(t, record.Trip.UpdatedAt.Before(record.Trip.CreatedAt))

	require.NotNil(t, record.User)
	assert.Equal(t, "12345", record.User.UserID)
	assert.Equal(t, "evt-001", record.User.EventID)
	assert.True(t, record.User.Live)

	// All sub-records agree on the user.
	assert.Equal(t, record.Location.UserID, record.Trip.UserID)
	assert.Equal(t, record.Location.UserID, record.User.UserID)
}

func TestNormalize_MinimalPayload(t *testing.T) {
	payload := `{
		"user_id": "u-7",
		"type": "location_update",
		"created_at": "2024-03-01T12:00:00Z",
		"location": {"coordinates": {"latitude": 10.5, "longitude": 20.25}}
	}`

	record, err := normalizer.Normalize([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, "u-7", record.Location.UserID)
	assert.InDelta(t, 10.5, record.Location.Latitude, 1e-9)
	assert.Nil(t, record.Trip)
	assert.Nil(t, record.User, "no source event id means no user record")
}

func TestNormalize_Rejections(t *testing.T) {
	testCases := []struct {
		name    string
		payload string
		reason  normalizer.Reason
		field   string
	}{
		{
			name:    "malformed json",
			payload: `{"location":`,
			reason:  normalizer.ReasonParseError,
		},
		{
			name:    "not an object",
			payload: `[1, 2, 3]`,
			reason:  normalizer.ReasonParseError,
		},
		{
			name:    "missing user id",
			payload: `{"type":"location.updated","created_at":"2024-03-01T12:00:00Z","location":{"coordinates":{"latitude":1,"longitude":2}}}`,
			reason:  normalizer.ReasonMissingField,
			field:   "MMUserId",
		},
		{
			name:    "missing coordinates",
			payload: `{"MMUserId":"1","type":"location.updated","created_at":"2024-03-01T12:00:00Z","location":{}}`,
			reason:  normalizer.ReasonMissingField,
			field:   "location.coordinates",
		},
		{
			name:    "latitude out of range",
			payload: `{"MMUserId":"1","type":"location.updated","created_at":"2024-03-01T12:00:00Z","location":{"coordinates":{"latitude":200,"longitude":2}}}`,
			reason:  normalizer.ReasonOutOfRange,
			field:   "location.coordinates.latitude",
		},
		{
			name:    "longitude out of range",
			payload: `{"MMUserId":"1","type":"location.updated","created_at":"2024-03-01T12:00:00Z","location":{"coordinates":{"latitude":1,"longitude":-180.01}}}`,
			reason:  normalizer.ReasonOutOfRange,
			field:   "location.coordinates.longitude",
		},
		{
			name:    "non-numeric latitude",
			payload: `{"MMUserId":"1","type":"location.updated","created_at":"2024-03-01T12:00:00Z","location":{"coordinates":{"latitude":"north","longitude":2}}}`,
			reason:  normalizer.ReasonTypeMismatch,
			field:   "location.coordinates.latitude",
		},
		{
			name:    "unparseable timestamp",
			payload: `{"MMUserId":"1","type":"location.updated","created_at":"yesterday","location":{"coordinates":{"latitude":1,"longitude":2}}}`,
			reason:  normalizer.ReasonBadTimestamp,
			field:   "created_at",
		},
		{
			name:    "missing event type",
			payload: `{"MMUserId":"1","created_at":"2024-03-01T12:00:00Z","location":{"coordinates":{"latitude":1,"longitude":2}}}`,
			reason:  normalizer.ReasonMissingField,
			field:   "type",
		},
		{
			name:    "bad liveness flag",
			payload: `{"id":"e1","MMUserId":"1","type":"location.updated","created_at":"2024-03-01T12:00:00Z","live":"maybe","location":{"coordinates":{"latitude":1,"longitude":2}}}`,
			reason:  normalizer.ReasonTypeMismatch,
			field:   "live",
		},
		{
			name:    "trip user mismatch",
			payload: `{"MMUserId":"1","type":"location.updated","created_at":"2024-03-01T12:00:00Z","location":{"coordinates":{"latitude":1,"longitude":2}},"trip":{"_id":"t1","MMUserId":"2","createdAt":"2024-03-01T11:00:00Z","updatedAt":"2024-03-01T12:00:00Z","startedAt":"2024-03-01T11:00:00Z"}}`,
			reason:  normalizer.ReasonTypeMismatch,
			field:   "trip.MMUserId",
		},
		{
			name:    "trip updated before created",
			payload: `{"MMUserId":"1","type":"location.updated","created_at":"2024-03-01T12:00:00Z","location":{"coordinates":{"latitude":1,"longitude":2}},"trip":{"_id":"t1","createdAt":"2024-03-01T12:00:00Z","updatedAt":"2024-03-01T11:00:00Z","startedAt":"2024-03-01T11:00:00Z"}}`,
			reason:  normalizer.ReasonOutOfRange,
			field:   "trip.updatedAt",
		},
		{
			name:    "trip missing id",
			payload: `{"MMUserId":"1","type":"location.updated","created_at":"2024-03-01T12:00:00Z","location":{"coordinates":{"latitude":1,"longitude":2}},"trip":{"createdAt":"2024-03-01T11:00:00Z","updatedAt":"2024-03-01T12:00:00Z","startedAt":"2024-03-01T11:00:00Z"}}`,
			reason:  normalizer.ReasonMissingField,
			field:   "trip._id",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			record, err := normalizer.Normalize([]byte(tc.payload))
			assert.Nil(t, record)
			require.Error(t, err)

			var verr *normalizer.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.reason, verr.Reason)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestNormalize_EventTypeMapping(t *testing.T) {
	testCases := []struct {
		wire     string
		expected models.EventType
		geofence bool
	}{
		{wire: "location.updated", expected: models.EventLocationUpdate},
		{wire: "location_update", expected: models.EventLocationUpdate},
		{wire: "user.entered_geofence", expected: models.EventGeofenceEnter, geofence: true},
		{wire: "geofence_enter", expected: models.EventGeofenceEnter, geofence: true},
		{wire: "user.exited_geofence", expected: models.EventGeofenceExit, geofence: true},
		{wire: "geofence_exit", expected: models.EventGeofenceExit, geofence: true},
		{wire: "trip.completed", expected: models.EventType("trip.completed")},
	}

	for _, tc := range testCases {
		t.Run(tc.wire, func(t *testing.T) {
			payload := `{"MMUserId":"1","type":"` + tc.wire + `","created_at":"2024-03-01T12:00:00Z","location":{"coordinates":{"latitude":1,"longitude":2}}}`
			record, err := normalizer.Normalize([]byte(payload))
			require.NoError(t, err)
			assert.Equal(t, tc.expected, record.Location.EventType)
			assert.Equal(t, tc.geofence, record.Location.EventType.IsGeofence())
		})
	}
}

func TestNormalize_UnixTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		createdAt string
	}{
		{"number", `1709294400`},
		{"numeric string", `"1709294400"`},
		{"padded numeric string", `" 1709294400 "`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload := `{"MMUserId":"1","type":"location.updated","created_at":` + tc.createdAt + `,"location":{"coordinates":{"latitude":1,"longitude":2}}}`
			record, err := normalizer.Normalize([]byte(payload))
			require.NoError(t, err)
			assert.Equal(t, want, record.Location.Timestamp)
		})
	}
}

func TestNormalize_FlattenedLocationPayload(t *testing.T) {
	payload := `{"location":{"user_id":"12345","latitude":37.7749,"longitude":-122.4194,"event_type":"location_update"}}`
	before := time.Now().UTC()
	record, err := normalizer.Normalize([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, "12345", record.Location.UserID)
	assert.InDelta(t, 37.7749, record.Location.Latitude, 1e-9)
	assert.InDelta(t, -122.4194, record.Location.Longitude, 1e-9)
	assert.Equal(t, models.EventLocationUpdate, record.Location.EventType)
	assert.False(t, record.Location.EventType.IsGeofence())
	assert.Nil(t, record.Trip)
	assert.Nil(t, record.User)

	// No created_at in the payload: timestamp defaults to receipt time.
	assert.False(t, record.Location.Timestamp.Before(before))
	assert.False(t, record.Location.Timestamp.After(time.Now().UTC()))
}

func TestNormalize_FlattenedOutOfRange(t *testing.T) {
	payload := `{"location":{"user_id":"12345","latitude":91,"longitude":0,"event_type":"location_update"}}`
	_, err := normalizer.Normalize([]byte(payload))
	var verr *normalizer.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, normalizer.ReasonOutOfRange, verr.Reason)
	assert.Equal(t, "location.latitude", verr.Field)
}

func TestNormalize_BoundaryCoordinates(t *testing.T) {
	payload := `{"MMUserId":"1","type":"location.updated","created_at":"2024-03-01T12:00:00Z","location":{"coordinates":{"latitude":-90,"longitude":180}}}`
	record, err := normalizer.Normalize([]byte(payload))
	require.NoError(t, err)
	assert.InDelta(t, -90.0, record.Location.Latitude, 1e-9)
	assert.InDelta(t, 180.0, record.Location.Longitude, 1e-9)
}
