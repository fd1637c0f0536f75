// Package normalizer converts loosely-typed inbound webhook payloads into
// the canonical NormalizedRecord, or rejects them with a typed reason.
package normalizer

import (
	"fmt"
	"time"

	"github.com/waypost-systems/waypost/internal/models"
)

// Reason is a machine-readable rejection code surfaced to the webhook
// producer.
type Reason string

const (
	ReasonParseError   Reason = "parse_error"
	ReasonMissingField Reason = "missing_field"
	ReasonOutOfRange   Reason = "out_of_range"
	ReasonBadTimestamp Reason = "bad_timestamp"
	ReasonTypeMismatch Reason = "type_mismatch"
)

// ValidationError describes why a payload was rejected. It is a caller-data
// problem and is never retryable.
type ValidationError struct {
	Reason Reason
	Field  string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Field)
}

func reject(reason Reason, field string) error {
	return &ValidationError{Reason: reason, Field: field}
}

// eventTypes maps the producer's wire names onto canonical event types.
// Canonical names map to themselves so replayed normalized payloads keep
// working.
var eventTypes = map[string]models.EventType{
	"location.updated":      models.EventLocationUpdate,
	"location_update":       models.EventLocationUpdate,
	"user.entered_geofence": models.EventGeofenceEnter,
	"geofence_enter":        models.EventGeofenceEnter,
	"user.exited_geofence":  models.EventGeofenceExit,
	"geofence_exit":         models.EventGeofenceExit,
}

// Normalize parses raw webhook bytes into a complete NormalizedRecord.
// All failures come back as *ValidationError and a
// returned record always satisfies the shared-user-id invariant. A
// payload without created_at is stamped with the receipt time. A
// LocationRecord must be derivable; trip and user sub-records are attached
// when the payload carries them, and a present-but-invalid sub-object
// rejects the whole event rather than producing a partial record.
func Normalize(raw []byte) (*models.NormalizedRecord, error) {
	payload, err := parseObject(raw)
	if err != nil {
		return nil, reject(ReasonParseError, "")
	}

	// Older producers nest coordinates under location.coordinates and put
	// the user id and type at the top level; flattened producers hang
	// everything directly off location.
	loc, _ := dig(payload, "location")

	userID, ok := asString(firstOf(payload, "MMUserId", "user_id"))
	if !ok || userID == "" {
		userID, ok = asString(firstOf(loc, "MMUserId", "user_id"))
	}
	if !ok || userID == "" {
		return nil, reject(ReasonMissingField, "MMUserId")
	}

	coords, prefix := loc, "location."
	if nested, ok := dig(payload, "location", "coordinates"); ok {
		coords, prefix = nested, "location.coordinates."
	} else if _, flat := loc["latitude"]; !flat {
		return nil, reject(ReasonMissingField, "location.coordinates")
	}

	lat, err := coordinate(coords, "latitude", 90, prefix)
	if err != nil {
		return nil, err
	}
	lon, err := coordinate(coords, "longitude", 180, prefix)
	if err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	if _, present := payload["created_at"]; present {
		ts, err = timestamp(payload, "created_at")
		if err != nil {
			return nil, err
		}
	}

	rawType, ok := asString(payload["type"])
	if !ok || rawType == "" {
		rawType, ok = asString(loc["event_type"])
	}
	if !ok || rawType == "" {
		return nil, reject(ReasonMissingField, "type")
	}
	eventType, known := eventTypes[rawType]
	if !known {
		// Open enum: unknown producer types pass through verbatim.
		eventType = models.EventType(rawType)
	}

	record := &models.NormalizedRecord{
		Location: models.LocationRecord{
			UserID:    userID,
			Latitude:  lat,
			Longitude: lon,
			Timestamp: ts,
			EventType: eventType,
		},
	}

	if tripObj, ok := dig(payload, "trip"); ok {
		trip, err := normalizeTrip(tripObj, userID)
		if err != nil {
			return nil, err
		}
		record.Trip = trip
	}

	if eventID, ok := asString(payload["id"]); ok && eventID != "" {
		live, err := liveness(payload)
		if err != nil {
			return nil, err
		}
		record.User = &models.UserRecord{
			UserID:    userID,
			EventID:   eventID,
			CreatedAt: ts,
			Live:      live,
		}
	}

	return record, nil
}

// coordinate coerces and range-checks a latitude or longitude value.
func coordinate(coords map[string]any, field string, bound float64, prefix string) (float64, error) {
	v, present := coords[field]
	if !present {
		return 0, reject(ReasonMissingField, prefix+field)
	}
	f, ok := asFloat(v)
	if !ok {
		return 0, reject(ReasonTypeMismatch, prefix+field)
	}
	if f < -bound || f > bound {
		return 0, reject(ReasonOutOfRange, prefix+field)
	}
	return f, nil
}

func timestamp(obj map[string]any, field string) (time.Time, error) {
	v, present := obj[field]
	if !present {
		return time.Time{}, reject(ReasonMissingField, field)
	}
	t, ok := asTime(v)
	if !ok {
		return time.Time{}, reject(ReasonBadTimestamp, field)
	}
	return t, nil
}

func liveness(payload map[string]any) (bool, error) {
	v, present := payload["live"]
	if !present {
		return false, nil
	}
	live, ok := asBool(v)
	if !ok {
		return false, reject(ReasonTypeMismatch, "live")
	}
	return live, nil
}

// normalizeTrip validates a present trip object. The trip's user must match
// the event's user; a mismatch or incomplete trip rejects the whole event.
func normalizeTrip(trip map[string]any, userID string) (*models.TripRecord, error) {
	tripID, ok := asString(firstOf(trip, "_id", "id"))
	if !ok || tripID == "" {
		return nil, reject(ReasonMissingField, "trip._id")
	}

	tripUser, ok := asString(firstOf(trip, "MMUserId", "user_id"))
	if !ok || tripUser == "" {
		tripUser = userID
	}
	if tripUser != userID {
		return nil, reject(ReasonTypeMismatch, "trip.MMUserId")
	}

	createdAt, err := timestamp(trip, "createdAt")
	if err != nil {
		return nil, err
	}
	updatedAt, err := timestamp(trip, "updatedAt")
	if err != nil {
		return nil, err
	}
	startedAt, err := timestamp(trip, "startedAt")
	if err != nil {
		return nil, err
	}
	if updatedAt.Before(createdAt) {
		return nil, reject(ReasonOutOfRange, "trip.updatedAt")
	}

	record := &models.TripRecord{
		TripID:    tripID,
		UserID:    tripUser,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		StartedAt: startedAt,
	}
	if ext, ok := asString(trip["externalId"]); ok {
		record.ExternalID = ext
	}
	if meta, ok := dig(trip, "metadata"); ok {
		if rst, ok := asString(meta["route_session_type"]); ok {
			record.RouteSessionType = rst
		}
	}
	return record, nil
}
