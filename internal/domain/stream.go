// Package domain contains the data shared between the stream, the platform
// client and the webhook.
package domain

import (
	"encoding/json"
	"strings"
)

// EventType is the kind of change carried by a stream event.
type EventType string

// Stream event types.
const (
	EventTypeCreate EventType = "create"
	EventTypeUpdate EventType = "update"
	EventTypeDelete EventType = "delete"
)

// IncidentPrefix prefixes the STIX identifier of every incident.
const IncidentPrefix = "incident--"

// StreamEvent is one decoded message of the platform live stream.
type StreamEvent struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
	Data    EventData `json:"data"`
}

// EventData is the STIX object the event is about.
type EventData struct {
	ID          string                     `json:"id"`
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Created     string                     `json:"created"`
	Modified    string                     `json:"modified"`
	Revoked     bool                       `json:"revoked"`
	Confidence  int                        `json:"confidence"`
	FirstSeen   string                     `json:"first_seen"`
	LastSeen    string                     `json:"last_seen"`
	Extensions  map[string]json.RawMessage `json:"extensions"`
}

// IsIncident reports whether the event subject is an incident.
func (d EventData) IsIncident() bool {
	return strings.HasPrefix(d.ID, IncidentPrefix)
}

// IncidentExtension is the platform extension attached to incidents.
type IncidentExtension struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id"`
	IsInferred bool   `json:"is_inferred"`
}
