package internal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mercer/diag-rig/internal/channels"
	"github.com/mercer/diag-rig/internal/emergency"
	"github.com/mercer/diag-rig/internal/hal"
	"github.com/mercer/diag-rig/internal/input"
	"github.com/mercer/diag-rig/internal/loop"
	"github.com/mercer/diag-rig/internal/mqtt"
	"github.com/mercer/diag-rig/internal/safety"
	"github.com/mercer/diag-rig/internal/status"
)

var rigTime = time.Date(2026, 3, 2, 8, 0, 5, 0, time.UTC)

// rig is the full daemon graph on fakes, wired the way cmd/diag-rig wires
// the real hardware.
type rig struct {
	io      *hal.FakeIO
	adc     *hal.FakeADC
	clock   *hal.FakeClock
	serial  *hal.FakeSerial
	disp    *hal.FakeDisplay
	engine  *input.Engine
	monitor *safety.Monitor
	coord   *emergency.Coordinator
	bank    *channels.Bank
	tracker *status.Tracker
	pub     *mqtt.FakePublisher
	remote  chan string
	runner  *loop.Runner
}

func newRig(t *testing.T) *rig {
	t.Helper()

	r := &rig{
		io:     hal.NewFakeIO(),
		adc:    hal.NewFakeADC(),
		clock:  &hal.FakeClock{},
		serial: &hal.FakeSerial{},
		disp:   &hal.FakeDisplay{},
		pub:    mqtt.NewFakePublisher(),
		remote: make(chan string, 8),
	}

	for _, pin := range []hal.Pin{hal.PinBtnUser, hal.PinBtnReset, hal.PinBtnMode, hal.PinEmergency} {
		r.io.ConfigureInput(pin, hal.PullUp)
	}
	for _, pin := range []hal.Pin{
		hal.PinLEDStatus, hal.PinLEDError, hal.PinLEDComm, hal.PinLEDPower,
		hal.PinChannel0, hal.PinChannel1, hal.PinChannel2, hal.PinChannel3,
		hal.PinRelay1, hal.PinRelay2, hal.PinBuzzer, hal.PinFan,
	} {
		r.io.ConfigureOutput(pin)
	}

	// Nominal bench readings.
	r.adc.SetValue(hal.ADCVoltage, 24.0)
	r.adc.SetValue(hal.ADCCurrent, 1.0)
	r.adc.SetValue(hal.ADCTemperature, 30.0)

	r.bank = channels.New(r.io)
	r.tracker = status.NewTracker(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), status.Config{})
	r.engine = input.New(r.io, input.DefaultConfig())
	r.monitor = safety.New(r.adc, r.io)
	r.coord = emergency.New(r.io, r.disp)

	r.runner = loop.New(loop.DefaultConfig(), loop.Deps{
		Clock:   r.clock,
		IO:      r.io,
		ADC:     r.adc,
		Serial:  r.serial,
		Engine:  r.engine,
		Monitor: r.monitor,
		Bank:    r.bank,
		Tracker: r.tracker,
		Pub:     r.pub,
		Conn:    r.pub,
		Remote:  r.remote,
		Now:     func() time.Time { return rigTime },
	})

	r.coord.SetStop(r.runner.RequestStop)
	r.coord.Register(func(reason string) {
		r.bank.DisableAll()
		r.tracker.SetEmergency(reason)
	})
	r.coord.Register(func(reason string) {
		snap := r.tracker.Snapshot()
		r.pub.PublishSystem(mqtt.SystemEvent{
			Timestamp:  rigTime,
			Event:      "EMERGENCY",
			Reason:     reason,
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "EMERGENCY", reason),
		})
	})
	r.monitor.OnEmergency(r.coord.Shutdown)
	r.engine.OnEmergency(func() { r.coord.Shutdown("Emergency stop requested") })
	r.engine.OnUserToggle(func() {
		r.bank.ToggleAll()
		r.io.Toggle(hal.PinLEDComm)
	})
	r.engine.OnStatusRequest(r.runner.LogStatus)
	r.engine.OnChannelCommand(r.bank.Set)

	if st := r.engine.BindInterrupts(); st != hal.StatusOK {
		t.Fatalf("bind interrupts: %s", st)
	}
	return r
}

// run executes the loop to completion, guarded against a missing stop.
func (r *rig) run(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		r.runner.Run()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}

// runFor runs the loop until the fake clock reaches deadline ticks.
func (r *rig) runFor(t *testing.T, deadline uint32) {
	t.Helper()
	r.clock.OnSleep = func() {
		if r.clock.Now >= deadline {
			r.runner.RequestStop()
		}
	}
	r.run(t)
}

// TestFullFlowVoltageLadder drives the bus voltage through the warning,
// critical and emergency thresholds over successive safety checks and
// verifies the single resulting shutdown.
func TestFullFlowVoltageLadder(t *testing.T) {
	r := newRig(t)
	r.bank.Set(0, true)

	// One reading per 500ms safety check: nominal, warning, critical,
	// emergency.
	r.adc.Queue(hal.ADCVoltage, 20.0, 28.0, 31.0, 36.0)

	r.runFor(t, 3000)

	if !r.coord.Tripped() {
		t.Fatal("coordinator should have tripped")
	}
	wantReason := "VOLTAGE 36.00 exceeded emergency threshold 35.00"
	if r.coord.Reason() != wantReason {
		t.Errorf("reason: got %q, want %q", r.coord.Reason(), wantReason)
	}
	if got := r.monitor.TotalViolations(); got != 3 {
		t.Errorf("violations: got %d, want 3", got)
	}

	// Exactly one emergency event, retained, and nothing after it.
	if len(r.pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(r.pub.SystemEvents))
	}
	ev := r.pub.SystemEvents[0]
	if ev.Event != "EMERGENCY" || !ev.Retained || ev.Reason != wantReason {
		t.Errorf("unexpected emergency event: %+v", ev)
	}

	// Outputs safed, alarm raised, heartbeat silenced.
	for i, on := range r.bank.States() {
		if on {
			t.Errorf("channel %d should be disabled", i)
		}
	}
	if r.io.Level(hal.PinChannel0) {
		t.Error("channel 0 pin should be low")
	}
	if !r.io.Level(hal.PinBuzzer) {
		t.Error("buzzer should be on")
	}
	if !r.io.Level(hal.PinLEDError) {
		t.Error("error LED should be on")
	}
	if r.io.Level(hal.PinLEDStatus) {
		t.Error("status LED should be off")
	}

	// Tracker carries the post-trip state.
	snap := r.tracker.Snapshot()
	if snap.Overall != "EMERGENCY" {
		t.Errorf("overall: got %s", snap.Overall)
	}
	if !snap.Emergency || snap.EmergencyReason != wantReason {
		t.Errorf("tracker emergency: tripped=%v reason=%q", snap.Emergency, snap.EmergencyReason)
	}
	if len(snap.Params) == 0 {
		t.Fatal("tracker should carry parameter views")
	}
	v := snap.Params[0]
	if v.Name != "VOLTAGE" || v.Value != 36.0 || v.Status != "EMERGENCY" || v.Violations != 3 {
		t.Errorf("voltage view: %+v", v)
	}
}

func TestEmergencyPayloadCarriesTrip(t *testing.T) {
	r := newRig(t)
	r.adc.Queue(hal.ADCVoltage, 36.0)

	r.runFor(t, 1000)

	if len(r.pub.SystemPayloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(r.pub.SystemPayloads))
	}
	var parsed status.StatusJSON
	if err := json.Unmarshal(r.pub.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "EMERGENCY" {
		t.Errorf("payload event: got %s", parsed.Status.Event)
	}
	if !parsed.Status.Emergency.Tripped {
		t.Error("payload should record the trip")
	}
	if parsed.Status.Emergency.Reason != "VOLTAGE 36.00 exceeded emergency threshold 35.00" {
		t.Errorf("payload reason: got %q", parsed.Status.Emergency.Reason)
	}
}

// TestEmergencyButtonDuringRun fires the panel switch edge mid-run.
func TestEmergencyButtonDuringRun(t *testing.T) {
	r := newRig(t)
	r.bank.Set(0, true)

	fired := false
	r.clock.OnSleep = func() {
		if r.clock.Now == 300 && !fired {
			fired = true
			r.io.FireEdge(hal.PinEmergency, hal.EdgeFalling)
		}
		if r.clock.Now >= 2000 {
			r.runner.RequestStop()
		}
	}
	r.run(t)

	if !r.coord.Tripped() {
		t.Fatal("coordinator should have tripped")
	}
	if r.coord.Reason() != "Emergency stop requested" {
		t.Errorf("reason: got %q", r.coord.Reason())
	}
	if len(r.pub.SystemEvents) != 1 || r.pub.SystemEvents[0].Event != "EMERGENCY" {
		t.Fatalf("expected 1 emergency event, got %v", r.pub.SystemEvents)
	}
	if r.bank.States()[0] {
		t.Error("channel 0 should be disabled")
	}
	if !r.io.Level(hal.PinBuzzer) {
		t.Error("buzzer should be on")
	}

	// The trip lands during the sleep after the third pass.
	if got := r.runner.LoopCount(); got != 3 {
		t.Errorf("loop count: got %d, want 3", got)
	}
}

func TestSerialCommandsDuringRun(t *testing.T) {
	r := newRig(t)
	r.serial.RxData = []byte("CHANNEL 1 ON\r\nSTATUS\n")

	r.runFor(t, 500)

	if !r.bank.States()[1] {
		t.Error("channel 1 should be on")
	}
	if !r.io.Level(hal.PinChannel1) {
		t.Error("channel 1 pin should be high")
	}

	if len(r.pub.Events) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(r.pub.Events))
	}
	if r.pub.Events[0].Type != input.EventCommand || r.pub.Events[0].Command != "CHANNEL 1 ON" {
		t.Errorf("event 0: %+v", r.pub.Events[0])
	}
	if r.pub.Events[1].Command != "STATUS" {
		t.Errorf("event 1: %+v", r.pub.Events[1])
	}

	expected := `{"input":{"timestamp":"2026-03-02T08:00:05Z","tick":0,"event":"COMMAND","command":"CHANNEL 1 ON"}}`
	if string(r.pub.Payloads[0]) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", r.pub.Payloads[0], expected)
	}

	snap := r.tracker.Snapshot()
	if snap.Counts.Commands != 2 {
		t.Errorf("command count: got %d, want 2", snap.Counts.Commands)
	}
}

func TestRemoteCommandDuringRun(t *testing.T) {
	r := newRig(t)
	r.remote <- "CHANNEL 3 ON"

	r.runFor(t, 500)

	if !r.bank.States()[3] {
		t.Error("channel 3 should be on")
	}
	if len(r.pub.Events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(r.pub.Events))
	}
	if r.pub.Events[0].Type != input.EventCommand || r.pub.Events[0].Port != 1 {
		t.Errorf("remote command event: %+v", r.pub.Events[0])
	}
}

// TestCleanRunNoFaults verifies a fault-free run: no trip, no system events
// before the reporting intervals, heartbeat LED blinking.
func TestCleanRunNoFaults(t *testing.T) {
	r := newRig(t)
	r.bank.Set(2, true)

	r.runFor(t, 1100)

	if r.coord.Tripped() {
		t.Fatal("nothing should have tripped")
	}
	if len(r.pub.SystemEvents) != 0 {
		t.Errorf("expected no system events, got %d", len(r.pub.SystemEvents))
	}
	if got := r.runner.LoopCount(); got != 11 {
		t.Errorf("loop count: got %d, want 11", got)
	}
	if !r.io.Level(hal.PinLEDStatus) {
		t.Error("status LED should be on after the first heartbeat")
	}
	if !r.bank.States()[2] {
		t.Error("channel 2 should still be on")
	}

	snap := r.tracker.Snapshot()
	if snap.Overall != "OK" {
		t.Errorf("overall: got %s", snap.Overall)
	}
	if !snap.Channels[2] {
		t.Error("tracker should record channel 2 on")
	}
}

func TestStatusEventPublishedAtInterval(t *testing.T) {
	r := newRig(t)

	r.runFor(t, 5100)

	var statusEvents []mqtt.SystemEvent
	for _, ev := range r.pub.SystemEvents {
		if ev.Event == "STATUS" {
			statusEvents = append(statusEvents, ev)
		}
	}
	if len(statusEvents) != 1 {
		t.Fatalf("expected 1 status event, got %d", len(statusEvents))
	}
	if !statusEvents[0].Retained {
		t.Error("status event should be retained")
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(statusEvents[0].RawPayload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "STATUS" {
		t.Errorf("payload event: got %s", parsed.Status.Event)
	}
	if parsed.Status.Overall != "OK" {
		t.Errorf("payload overall: got %s", parsed.Status.Overall)
	}
	if parsed.Status.LoopCount == 0 {
		t.Error("payload should carry the loop count")
	}
}
