// Package metrics exposes Prometheus collectors for the control loop.
// Collectors register on the default registry at init; the web server
// serves them at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoopIterations counts completed control loop passes.
	LoopIterations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rig_loop_iterations_total",
		Help: "Control loop iterations completed.",
	})

	// InputEvents counts input events by type (PRESS, RELEASE, COMMAND, ...).
	InputEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rig_input_events_total",
		Help: "Input events processed, by event type.",
	}, []string{"type"})

	// QueueDrops mirrors the event queue drop counter. A gauge because the
	// queue owns the count; the loop copies it out each pass.
	QueueDrops = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rig_input_queue_dropped_total",
		Help: "Input events rejected because the queue was full.",
	})

	// SafetyViolations mirrors the monitor's violation total.
	SafetyViolations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rig_safety_violations_total",
		Help: "Threshold violations recorded by the safety monitor.",
	})

	// SafetyLevel is the overall safety status: 0=OK 1=WARNING 2=CRITICAL 3=EMERGENCY.
	SafetyLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rig_safety_level",
		Help: "Overall safety status (0=OK, 1=WARNING, 2=CRITICAL, 3=EMERGENCY).",
	})

	// EmergencyTripped is 1 once an emergency shutdown has run.
	EmergencyTripped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rig_emergency_tripped",
		Help: "Whether an emergency shutdown has been executed (0 or 1).",
	})

	// MQTTConnected is 1 while the broker connection is up.
	MQTTConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rig_mqtt_connected",
		Help: "Whether the MQTT broker connection is up (0 or 1).",
	})
)
