package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output, shared by
// the web endpoint and MQTT system events.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details. Event and Reason are only set on
// system events.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Overall       string        `json:"overall"`
	Parameters    []ParamJSON   `json:"parameters"`
	Emergency     EmergencyJSON `json:"emergency"`
	Channels      []bool        `json:"channels"`
	LoopCount     uint32        `json:"loop_count"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Counts        CountsJSON    `json:"event_counts"`
	Config        ConfigJSON    `json:"config"`
}

// ParamJSON is the JSON representation of one safety parameter.
type ParamJSON struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Status     string  `json:"status"`
	Violations uint32  `json:"violations"`
}

// EmergencyJSON reports the shutdown latch.
type EmergencyJSON struct {
	Tripped bool   `json:"tripped"`
	Reason  string `json:"reason,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of input event counts.
type CountsJSON struct {
	Presses      int `json:"presses"`
	Releases     int `json:"releases"`
	LongPresses  int `json:"long_presses"`
	DoubleClicks int `json:"double_clicks"`
	Commands     int `json:"commands"`
	Emergencies  int `json:"emergencies"`
	Dropped      int `json:"dropped"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs      int64  `json:"tick_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	SafetyMs    int64  `json:"safety_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	StatusMs    int64  `json:"status_ms"`
	Broker      string `json:"broker,omitempty"`
	HTTPAddr    string `json:"http_addr,omitempty"`
	SerialDev   string `json:"serial_dev,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	params := make([]ParamJSON, len(snap.Params))
	for i, p := range snap.Params {
		params[i] = ParamJSON{
			Name:       p.Name,
			Value:      p.Value,
			Status:     p.Status,
			Violations: p.Violations,
		}
	}
	states := make([]bool, len(snap.Channels))
	copy(states, snap.Channels[:])

	return StatusInner{
		Overall:    snap.Overall,
		Parameters: params,
		Emergency: EmergencyJSON{
			Tripped: snap.Emergency,
			Reason:  snap.EmergencyReason,
		},
		Channels:      states,
		LoopCount:     snap.LoopCount,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Presses:      snap.Counts.Presses,
			Releases:     snap.Counts.Releases,
			LongPresses:  snap.Counts.LongPresses,
			DoubleClicks: snap.Counts.DoubleClicks,
			Commands:     snap.Counts.Commands,
			Emergencies:  snap.Counts.Emergencies,
			Dropped:      snap.Counts.Dropped,
		},
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			DebounceMs:  snap.Config.DebounceMs,
			SafetyMs:    snap.Config.SafetyMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			StatusMs:    snap.Config.StatusMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			SerialDev:   snap.Config.SerialDev,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
