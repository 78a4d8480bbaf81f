// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/mercer/diag-rig/internal/input"
)

// TopicEvents is the MQTT topic for input events.
const TopicEvents = "lab/diag-rig/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "lab/diag-rig/system"

// TopicCommand is the MQTT topic the rig subscribes to for remote commands.
// Payloads use the same text protocol as the serial console.
const TopicCommand = "lab/diag-rig/cmd"

// Publisher publishes rig events to MQTT.
type Publisher interface {
	// PublishEvent sends an input event to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishEvent(event input.Event, at time.Time) error

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
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "EMERGENCY"
	Reason     string // e.g., "SIGTERM", or the safety trip reason
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// EventPayload represents the MQTT message payload structure for input events.
type EventPayload struct {
	Input InputPayload `json:"input"`
}

// InputPayload contains the input event details. Button and DurationMs are
// set for button events, Command for console commands.
type InputPayload struct {
	Timestamp  string `json:"timestamp"`
	Tick       uint32 `json:"tick"`
	Event      string `json:"event"`
	Button     string `json:"button,omitempty"`
	DurationMs uint32 `json:"duration_ms,omitempty"`
	Command    string `json:"command,omitempty"`
}

// FormatEventPayload creates the JSON payload for an input event.
func FormatEventPayload(event input.Event, at time.Time) ([]byte, error) {
	payload := EventPayload{
		Input: InputPayload{
			Timestamp: at.UTC().Format(time.RFC3339),
			Tick:      event.Tick,
			Event:     string(event.Type),
		},
	}

	switch event.Type {
	case input.EventCommand:
		payload.Input.Command = event.Command
	case input.EventEmergency:
		// No button attribution: the stop may come from the panel switch,
		// the console, or a remote command.
	default:
		payload.Input.Button = event.Button.String()
		payload.Input.DurationMs = event.DurationMs
	}

	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events that don't carry a full status snapshot.
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
