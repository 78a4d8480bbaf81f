// Package loop runs the cooperative control loop. One pass services input,
// console and remote commands, safety checks and periodic reporting, then
// sleeps whatever remains of the tick budget. All scheduling is driven by the
// injected clock so the loop can be stepped deterministically in tests.
package loop

import (
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mercer/diag-rig/internal/channels"
	"github.com/mercer/diag-rig/internal/hal"
	"github.com/mercer/diag-rig/internal/input"
	"github.com/mercer/diag-rig/internal/metrics"
	"github.com/mercer/diag-rig/internal/mqtt"
	"github.com/mercer/diag-rig/internal/safety"
	"github.com/mercer/diag-rig/internal/status"
)

// Port identifiers passed to the command parser.
const (
	serialPortID = 0
	remotePortID = 1
)

// maxLineLen bounds console line assembly; longer input is discarded.
const maxLineLen = 128

// Config holds the loop intervals in milliseconds.
type Config struct {
	TickBudgetMs     uint32
	SafetyIntervalMs uint32
	HeartbeatMs      uint32 // 0 disables the heartbeat
	StatusIntervalMs uint32
	SelfTestMs       uint32 // 0 disables the periodic self-test
}

// DefaultConfig returns the stock intervals.
func DefaultConfig() Config {
	return Config{
		TickBudgetMs:     100,
		SafetyIntervalMs: 500,
		HeartbeatMs:      1000,
		StatusIntervalMs: 5000,
		SelfTestMs:       5000,
	}
}

// Deps are the collaborators the loop services each pass. Serial, Pub, Conn
// and Remote may be nil when the corresponding transport is disabled.
type Deps struct {
	Clock   hal.Clock
	IO      hal.DigitalIO
	ADC     hal.AnalogIn
	Serial  hal.SerialPort
	Engine  *input.Engine
	Monitor *safety.Monitor
	Bank    *channels.Bank
	Tracker *status.Tracker
	Pub     mqtt.Publisher
	Conn    mqtt.ConnectionStatus
	Remote  <-chan string
	Now     func() time.Time // defaults to time.Now
}

// Runner owns the loop state. RequestStop is safe to call from other
// goroutines (signal handler, emergency coordinator); everything else runs
// on the loop goroutine.
type Runner struct {
	cfg  Config
	deps Deps

	stopFlag  atomic.Bool
	loopCount atomic.Uint32

	startTick      uint32
	lastSafety     uint32
	lastHeartbeat  uint32
	lastStatus     uint32
	lastSelfTest   uint32
	heartbeatCount int
	selfTestFails  int

	lineBuf []byte
}

// New creates a Runner. The current clock tick becomes the zero point for
// uptime and all interval timers.
func New(cfg Config, deps Deps) *Runner {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	start := deps.Clock.Ticks()
	return &Runner{
		cfg:           cfg,
		deps:          deps,
		startTick:     start,
		lastSafety:    start,
		lastHeartbeat: start,
		lastStatus:    start,
		lastSelfTest:  start,
	}
}

// Run executes the loop until RequestStop is called. Each pass is padded to
// the tick budget; a pass that overruns proceeds immediately so the intervals
// self-correct instead of drifting.
func (r *Runner) Run() {
	log.Printf("loop: running (tick=%dms safety=%dms heartbeat=%dms status=%dms)",
		r.cfg.TickBudgetMs, r.cfg.SafetyIntervalMs, r.cfg.HeartbeatMs, r.cfg.StatusIntervalMs)

	for !r.stopFlag.Load() {
		begin := r.deps.Clock.Ticks()
		r.step(begin)
		r.sleepRemainder(begin)
	}

	log.Printf("loop: stopped after %d iterations", r.loopCount.Load())
}

// RequestStop asks the loop to exit after the current pass. Idempotent.
func (r *Runner) RequestStop() {
	if !r.stopFlag.Swap(true) {
		log.Printf("loop: stop requested")
	}
}

// StopRequested reports whether RequestStop has been called.
func (r *Runner) StopRequested() bool {
	return r.stopFlag.Load()
}

// LoopCount returns the number of completed passes.
func (r *Runner) LoopCount() uint32 {
	return r.loopCount.Load()
}

// Uptime returns milliseconds since the runner was created.
func (r *Runner) Uptime() uint32 {
	return r.deps.Clock.Ticks() - r.startTick
}

// step services everything due at the given tick. Split from Run so tests
// can drive passes without real sleeps.
func (r *Runner) step(now uint32) {
	r.deps.Engine.Update(now)
	r.pollSerial(now)
	r.drainRemote(now)
	r.drainEvents(now)
	r.checkSafety(now)

	count := r.loopCount.Add(1)
	metrics.LoopIterations.Inc()
	r.refreshTracker(now, count)

	// A stop request during this pass (emergency trip, signal) ends the
	// periodic emissions immediately; the alarm indicators must stand.
	if r.stopFlag.Load() {
		return
	}

	r.heartbeat(now)
	r.updateStatus(now)
	r.selfTest(now)
}

// sleepRemainder pads the pass out to the tick budget.
func (r *Runner) sleepRemainder(begin uint32) {
	elapsed := r.deps.Clock.Ticks() - begin
	if elapsed < r.cfg.TickBudgetMs {
		r.deps.Clock.Sleep(r.cfg.TickBudgetMs - elapsed)
	} else if elapsed > r.cfg.TickBudgetMs {
		log.Printf("loop: pass overran tick budget (%dms > %dms)", elapsed, r.cfg.TickBudgetMs)
	}
}

func (r *Runner) drainEvents(now uint32) {
	for {
		ev, ok := r.deps.Engine.Next()
		if !ok {
			return
		}
		r.handleEvent(now, ev)
	}
}

func (r *Runner) handleEvent(now uint32, ev input.Event) {
	metrics.InputEvents.WithLabelValues(string(ev.Type)).Inc()

	switch ev.Type {
	case input.EventPress:
		log.Printf("input: %s pressed (tick %d)", ev.Button, ev.Tick)
	case input.EventRelease:
		log.Printf("input: %s released after %dms", ev.Button, ev.DurationMs)
	case input.EventLongPress:
		log.Printf("input: %s long press (%dms)", ev.Button, ev.DurationMs)
		// Holding a button is the panel gesture for a full status dump.
		r.LogStatus()
	case input.EventDoubleClick:
		log.Printf("input: %s double click", ev.Button)
	case input.EventEmergency:
		log.Printf("input: EMERGENCY STOP (tick %d)", ev.Tick)
	}

	if r.deps.Pub != nil {
		if err := r.deps.Pub.PublishEvent(ev, r.deps.Now()); err != nil {
			log.Printf("publish error: %v", err)
			// Don't crash on publish failure
		}
	}
}

// pollSerial reads whatever console bytes arrived since the last pass and
// feeds complete lines to the command parser.
func (r *Runner) pollSerial(now uint32) {
	if r.deps.Serial == nil {
		return
	}

	var buf [64]byte
	n, st := r.deps.Serial.Read(buf[:], 0)
	if st != hal.StatusOK {
		if st != hal.StatusTimeout {
			log.Printf("serial: read failed: %s", st)
		}
		return
	}

	for _, b := range buf[:n] {
		if b == '\n' {
			line := strings.TrimRight(string(r.lineBuf), "\r")
			r.lineBuf = r.lineBuf[:0]
			r.deps.Engine.ProcessCommand(now, serialPortID, line)
			continue
		}
		r.lineBuf = append(r.lineBuf, b)
		if len(r.lineBuf) > maxLineLen {
			log.Printf("serial: line too long, discarding %d bytes", len(r.lineBuf))
			r.lineBuf = r.lineBuf[:0]
		}
	}
}

func (r *Runner) drainRemote(now uint32) {
	if r.deps.Remote == nil {
		return
	}
	for {
		select {
		case cmd := <-r.deps.Remote:
			r.deps.Engine.ProcessCommand(now, remotePortID, cmd)
		default:
			return
		}
	}
}

func (r *Runner) checkSafety(now uint32) {
	if now-r.lastSafety < r.cfg.SafetyIntervalMs {
		return
	}
	r.lastSafety = now

	r.deps.Monitor.Check(now)
	metrics.SafetyLevel.Set(float64(r.deps.Monitor.Overall()))
	metrics.SafetyViolations.Set(float64(r.deps.Monitor.TotalViolations()))
	r.deps.Tracker.SetSafety(r.deps.Monitor.Overall(), r.deps.Monitor.Params())
}

// refreshTracker pushes the per-pass state the web and MQTT consumers read.
func (r *Runner) refreshTracker(now, count uint32) {
	r.deps.Tracker.SetLoop(count, now-r.startTick)

	counts := r.deps.Engine.Counts()
	r.deps.Tracker.SetCounts(counts)
	metrics.QueueDrops.Set(float64(counts.Dropped))

	r.deps.Tracker.SetChannels(r.deps.Bank.States())

	if r.deps.Conn != nil {
		connected := r.deps.Conn.IsConnected()
		r.deps.Tracker.SetMQTTConnected(connected)
		if connected {
			metrics.MQTTConnected.Set(1)
		} else {
			metrics.MQTTConnected.Set(0)
		}
	}
}

func (r *Runner) heartbeat(now uint32) {
	if r.cfg.HeartbeatMs == 0 || now-r.lastHeartbeat < r.cfg.HeartbeatMs {
		return
	}
	r.lastHeartbeat = now
	r.heartbeatCount++

	r.deps.IO.Toggle(hal.PinLEDStatus)

	// Full heartbeat report every 10th blink.
	if r.heartbeatCount%10 != 0 {
		return
	}

	log.Printf("heartbeat: uptime=%dms iterations=%d overall=%s",
		now-r.startTick, r.loopCount.Load(), r.deps.Monitor.Overall())

	if r.deps.Pub != nil {
		snap := r.deps.Tracker.Snapshot()
		hb := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "HEARTBEAT",
			RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
		}
		if err := r.deps.Pub.PublishSystem(hb); err != nil {
			log.Printf("heartbeat publish error: %v", err)
		}
	}
}

func (r *Runner) updateStatus(now uint32) {
	if now-r.lastStatus < r.cfg.StatusIntervalMs {
		return
	}
	r.lastStatus = now

	r.LogStatus()

	if r.deps.Pub != nil {
		snap := r.deps.Tracker.Snapshot()
		ev := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STATUS",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STATUS", ""),
		}
		if err := r.deps.Pub.PublishSystem(ev); err != nil {
			log.Printf("status publish error: %v", err)
		}
	}
}

// selfTest smoke-reads the physical ADC channels. Failures are logged and
// counted; classification is left to the safety monitor.
func (r *Runner) selfTest(now uint32) {
	if r.cfg.SelfTestMs == 0 || now-r.lastSelfTest < r.cfg.SelfTestMs {
		return
	}
	r.lastSelfTest = now

	for _, ch := range []hal.ADCChannel{hal.ADCVoltage, hal.ADCCurrent, hal.ADCTemperature} {
		if _, st := r.deps.ADC.ReadValue(ch); st != hal.StatusOK {
			r.selfTestFails++
			log.Printf("self-test: adc channel %d read failed: %s", ch, st)
		}
	}
}

// LogStatus writes a full status report to the log. Triggered by the STATUS
// command, by long presses and on the periodic status interval.
func (r *Runner) LogStatus() {
	now := r.deps.Clock.Ticks()
	log.Printf("status: uptime=%dms iterations=%d", now-r.startTick, r.loopCount.Load())
	r.deps.Monitor.LogStatus()

	states := r.deps.Bank.States()
	parts := make([]string, len(states))
	for i, on := range states {
		if on {
			parts[i] = "ON"
		} else {
			parts[i] = "OFF"
		}
	}
	log.Printf("status: channels=[%s]", strings.Join(parts, " "))

	counts := r.deps.Engine.Counts()
	log.Printf("status: events presses=%d releases=%d long=%d double=%d commands=%d dropped=%d",
		counts.Presses, counts.Releases, counts.LongPresses, counts.DoubleClicks,
		counts.Commands, counts.Dropped)
}
