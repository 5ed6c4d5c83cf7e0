// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/peckboard/internal/logic"
)

// Topic is the MQTT topic for peck events.
const Topic = "peckboard/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "peckboard/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a peck event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(peck logic.Peck) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "MONITOR_STOPPED"
	Reason     string // e.g., "SIGTERM", or the monitor's error
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Peck PeckPayload `json:"peck"`
}

// PeckPayload contains the peck event details.
type PeckPayload struct {
	Timestamp string `json:"timestamp"`
	Position  string `json:"position"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// FormatPayload creates the JSON payload for a peck event.
func FormatPayload(peck logic.Peck) ([]byte, error) {
	payload := Payload{
		Peck: PeckPayload{
			Timestamp: peck.Timestamp.UTC().Format(time.RFC3339Nano),
			Position:  peck.Position.String(),
			From:      peck.From.String(),
			To:        peck.To.String(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
