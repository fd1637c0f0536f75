package models

import "time"

// EventType classifies an inbound webhook event. The set is open: the
// producer may introduce new types, so unknown non-empty values pass
// through unchanged.
type EventType string

const (
	EventLocationUpdate EventType = "location_update"
	EventGeofenceEnter  EventType = "geofence_enter"
	EventGeofenceExit   EventType = "geofence_exit"
)

// IsGeofence reports whether the event should be published to the
// geofence stream.
func (t EventType) IsGeofence() bool {
	return t == EventGeofenceEnter || t == EventGeofenceExit
}

// RawEvent is the unmodified inbound payload plus receipt metadata.
// It is immutable once accepted; the journal owns the canonical copy.
type RawEvent struct {
	Payload    []byte    `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
	SourceIP   string    `json:"source_ip,omitempty"`
}

// LocationRecord is the mandatory positional sub-record of a normalized
// event.
type LocationRecord struct {
	UserID    string    `json:"user_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
	EventType EventType `json:"event_type"`
}

// TripRecord describes the trip an event belongs to. Optional: only
// attached when the inbound payload carries a complete trip object.
type TripRecord struct {
	TripID           string    `json:"trip_id"`
	ExternalID       string    `json:"external_id,omitempty"`
	UserID           string    `json:"user_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	StartedAt        time.Time `json:"started_at"`
	RouteSessionType string    `json:"route_session_type,omitempty"`
}

// UserRecord captures per-user liveness metadata. Optional.
type UserRecord struct {
	UserID    string    `json:"user_id"`
	EventID   string    `json:"event_id"`
	CreatedAt time.Time `json:"created_at"`
	Live      bool      `json:"live"`
}

// NormalizedRecord is the canonical structured form of an accepted event.
// Location is always present; Trip and User are attached only when the
// payload yields complete, user-consistent sub-records.
type NormalizedRecord struct {
	Location LocationRecord `json:"location"`
	Trip     *TripRecord    `json:"trip,omitempty"`
	User     *UserRecord    `json:"user,omitempty"`
}

// UserID returns the user identifier shared by all sub-records.
func (r *NormalizedRecord) UserID() string {
	return r.Location.UserID
}

// DeliveryState is the lifecycle state of one (record, sink) delivery.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryFailed    DeliveryState = "failed"
)

// DeliveryStatus records the outcome of delivering a normalized record to
// a single sink. Failed entries are retained for re-drive.
type DeliveryStatus struct {
	Key       string        `json:"idempotency_key"`
	Sink      string        `json:"sink"`
	State     DeliveryState `json:"state"`
	Reason    string        `json:"reason,omitempty"`
	Attempts  int           `json:"attempts"`
	UpdatedAt time.Time     `json:"updated_at"`
}
