// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies what happened.
type EventType string

const (
	EventDeviceRegistered  EventType = "device.registered"
	EventDeviceSkipped     EventType = "device.skipped"
	EventRegistryRescanned EventType = "registry.rescanned"
	EventCommandCompleted  EventType = "command.completed"
	EventCommandFailed     EventType = "command.failed"
)

// Event is a notification fanned out to websocket clients and MQTT.
type Event struct {
	ID        uuid.UUID              `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent creates an event stamped with a fresh id and the current time.
func NewEvent(eventType EventType, source string, data map[string]interface{}) Event {
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now(),
	}
}
