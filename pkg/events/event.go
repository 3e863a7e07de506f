// Package events implements the Event Store, Event Router, and Event
// Mesh (spec.md §4.B/C/D), grounded on the original events/{store,
// router,mesh,processor}.rs.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is an immutable fact published onto the mesh (spec.md §3).
type Event struct {
	ID            uuid.UUID              `json:"id"`
	Timestamp     time.Time              `json:"timestamp"`
	EventType     string                 `json:"event_type"`
	Source        string                 `json:"source"`
	Payload       map[string]interface{} `json:"payload"`
	CorrelationID *uuid.UUID             `json:"correlation_id,omitempty"`
	CausationID   *uuid.UUID             `json:"causation_id,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// NewEvent constructs an Event with a fresh id and the current
// timestamp.
func NewEvent(eventType, source string, payload map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Source:    source,
		Payload:   payload,
		Metadata:  map[string]interface{}{},
	}
}

// WithCorrelation sets the correlation id grouping this event into a
// logical workflow.
func (e *Event) WithCorrelation(id uuid.UUID) *Event {
	e.CorrelationID = &id
	return e
}

// CausedBy sets the causation id of the event that triggered this one.
func (e *Event) CausedBy(id uuid.UUID) *Event {
	e.CausationID = &id
	return e
}

// StreamKey returns the logical stream this event belongs to, derived
// from its type family (spec.md §4.D, §6).
func StreamKey(eventType string) string {
	switch family(eventType) {
	case "service":
		return "events:service"
	case "task":
		return "events:task"
	case "learning":
		return "events:learning"
	case "collaboration":
		return "events:collaboration"
	default:
		return "events:system"
	}
}

// family classifies an event type string into one of the five stream
// families by its conventional prefix (e.g. "ServiceFailure" ->
// "service", "TaskCompleted" -> "task").
func family(eventType string) string {
	for _, prefix := range []struct {
		p string
		f string
	}{
		{"Service", "service"},
		{"Task", "task"},
		{"Learning", "learning"},
		{"Improvements", "learning"},
		{"Collaboration", "collaboration"},
		{"Fix", "collaboration"},
		{"Solutions", "collaboration"},
		{"RootCause", "collaboration"},
	} {
		if len(eventType) >= len(prefix.p) && eventType[:len(prefix.p)] == prefix.p {
			return prefix.f
		}
	}
	return "system"
}
