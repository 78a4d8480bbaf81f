// Package status tracks daemon state for the HTTP and MQTT consumers.
package status

import (
	"sync"
	"time"

	"github.com/mercer/diag-rig/internal/channels"
	"github.com/mercer/diag-rig/internal/input"
	"github.com/mercer/diag-rig/internal/safety"
)

// Config echoes the daemon configuration for display.
type Config struct {
	TickMs      int64
	DebounceMs  int64
	SafetyMs    int64
	HeartbeatMs int64
	StatusMs    int64
	Broker      string
	HTTPAddr    string
	SerialDev   string
}

// ParamView is a display copy of one safety parameter.
type ParamView struct {
	Name       string
	Value      float64
	Status     string
	Violations uint32
}

// Snapshot is a point-in-time view of daemon state. It is a value type and
// safe to use after the tracker lock is released.
type Snapshot struct {
	Overall         string
	Params          []ParamView
	LoopCount       uint32
	UptimeMs        uint32
	Channels        [channels.Count]bool
	Emergency       bool
	EmergencyReason string
	Counts          input.Counts
	MQTTConnected   bool
	StartTime       time.Time
	Now             time.Time
	Config          Config
}

// Uptime returns the loop uptime as a duration.
func (s Snapshot) Uptime() time.Duration {
	return time.Duration(s.UptimeMs) * time.Millisecond
}

// Tracker holds mutable daemon state behind an RWMutex. The scheduler
// goroutine writes; the HTTP handlers and shutdown paths read.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a tracker with the given start time and config echo.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{snap: Snapshot{
		Overall:   safety.LevelOK.String(),
		StartTime: startTime,
		Config:    cfg,
	}}
}

// SetLoop records the loop counter and uptime.
func (t *Tracker) SetLoop(count, uptimeMs uint32) {
	t.mu.Lock()
	t.snap.LoopCount = count
	t.snap.UptimeMs = uptimeMs
	t.mu.Unlock()
}

// SetSafety records the aggregate and per-parameter safety state. The view
// slice is rebuilt on every call, never mutated in place, so previously
// returned snapshots stay valid.
func (t *Tracker) SetSafety(overall safety.Level, params []safety.ParamData) {
	views := make([]ParamView, len(params))
	for i, d := range params {
		views[i] = ParamView{
			Name:       safety.Parameter(i).String(),
			Value:      d.Value,
			Status:     d.Status.String(),
			Violations: d.Violations,
		}
	}
	t.mu.Lock()
	t.snap.Overall = overall.String()
	t.snap.Params = views
	t.mu.Unlock()
}

// SetChannels records the channel enable states.
func (t *Tracker) SetChannels(states [channels.Count]bool) {
	t.mu.Lock()
	t.snap.Channels = states
	t.mu.Unlock()
}

// SetEmergency marks the system as tripped with the given reason.
func (t *Tracker) SetEmergency(reason string) {
	t.mu.Lock()
	t.snap.Emergency = true
	t.snap.EmergencyReason = reason
	t.mu.Unlock()
}

// SetCounts records the input event tallies.
func (t *Tracker) SetCounts(c input.Counts) {
	t.mu.Lock()
	t.snap.Counts = c
	t.mu.Unlock()
}

// SetMQTTConnected records the broker connection state.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a copy of the current state with Now set to the current
// time.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
