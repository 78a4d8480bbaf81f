package input

import (
	"log"
	"sync/atomic"

	"github.com/mercer/diag-rig/internal/hal"
)

// Config holds the engine's timing windows in milliseconds.
type Config struct {
	DebounceMs    uint32
	LongPressMs   uint32
	DoubleClickMs uint32
}

// DefaultConfig returns the rig's tuned windows.
func DefaultConfig() Config {
	return Config{DebounceMs: 50, LongPressMs: 2000, DoubleClickMs: 500}
}

// Engine owns the button state machines and the event queue. It is driven
// from the scheduler goroutine only; the two interrupt flags are the sole
// state shared with the GPIO event goroutine.
//
// Buttons are wired active low: a low level means pressed.
type Engine struct {
	io  hal.DigitalIO
	cfg Config

	queue   Queue
	buttons [numButtons]buttonState
	pins    [numButtons]hal.Pin
	enabled bool

	emergencyPending atomic.Bool
	togglePending    atomic.Bool
	lastToggle       uint32

	emergencyFns []func()
	toggleFn     func()
	statusFn     func()
	channelFn    func(n int, on bool) hal.Status

	counts Counts
}

// New creates an engine over the given digital I/O. Initial levels are read
// immediately, so a button already held at startup does not produce a press
// edge.
func New(io hal.DigitalIO, cfg Config) *Engine {
	e := &Engine{
		io:      io,
		cfg:     cfg,
		enabled: true,
		pins: [numButtons]hal.Pin{
			hal.PinBtnUser,
			hal.PinBtnReset,
			hal.PinBtnMode,
			hal.PinEmergency,
		},
	}
	for i := range e.buttons {
		level, st := io.Read(e.pins[i])
		if st != hal.StatusOK {
			continue
		}
		pressed := !level
		e.buttons[i].current = pressed
		e.buttons[i].previous = pressed
	}
	return e
}

// OnEmergency appends fn to the emergency listener chain. Listeners run in
// registration order and may be invoked from the GPIO event goroutine, so
// they must be safe across that boundary. Register before BindInterrupts.
func (e *Engine) OnEmergency(fn func()) {
	e.emergencyFns = append(e.emergencyFns, fn)
}

// OnUserToggle registers the action taken when the user button interrupt is
// accepted. It runs in loop context.
func (e *Engine) OnUserToggle(fn func()) {
	e.toggleFn = fn
}

// OnStatusRequest registers the action for the STATUS command.
func (e *Engine) OnStatusRequest(fn func()) {
	e.statusFn = fn
}

// OnChannelCommand registers the target for CHANNEL commands.
func (e *Engine) OnChannelCommand(fn func(n int, on bool) hal.Status) {
	e.channelFn = fn
}

// BindInterrupts arms the edge interrupts for the user button and the
// dedicated emergency input. The handlers do the minimum possible in
// interrupt context: set a flag, or walk the emergency listener chain.
func (e *Engine) BindInterrupts() hal.Status {
	if st := e.io.Watch(hal.PinBtnUser, hal.EdgeFalling, func(hal.Pin, hal.Edge) {
		e.togglePending.Store(true)
	}); st != hal.StatusOK {
		return st
	}
	return e.io.Watch(hal.PinEmergency, hal.EdgeFalling, func(hal.Pin, hal.Edge) {
		e.fireEmergency()
		e.emergencyPending.Store(true)
	})
}

func (e *Engine) fireEmergency() {
	for _, fn := range e.emergencyFns {
		fn()
	}
}

// Update runs one tick of input processing: the pending interrupt flags
// first, then every button state machine. now is the current millisecond
// tick. A no-op while the engine is disabled.
func (e *Engine) Update(now uint32) {
	if !e.enabled {
		return
	}

	// The user button flag survives until its debounce window passes, so a
	// burst of edges collapses into a single accepted press.
	if e.togglePending.Load() && now-e.lastToggle > e.cfg.DebounceMs {
		e.togglePending.Store(false)
		e.lastToggle = now
		log.Printf("input: user button interrupt accepted")
		if e.toggleFn != nil {
			e.toggleFn()
		}
		e.queue.Push(Event{Tick: now, Type: EventPress, Button: ButtonUser})
		e.counts.Presses++
	}

	// The emergency listeners already ran in interrupt context; this queues
	// the record of it for downstream consumers.
	if e.emergencyPending.Swap(false) {
		e.queue.Push(Event{Tick: now, Type: EventEmergency, Button: ButtonEmergency})
		e.counts.Emergencies++
	}

	for i := range e.buttons {
		e.updateButton(Button(i), now)
	}
}

func (e *Engine) updateButton(id Button, now uint32) {
	b := &e.buttons[id]

	level, st := e.io.Read(e.pins[id])
	if st != hal.StatusOK {
		log.Printf("input: read %s button: %s", id, st)
		return
	}
	raw := !level

	var pressed, released bool

	if raw != b.current && now-b.lastDebounce >= e.cfg.DebounceMs {
		b.previous = b.current
		b.current = raw
		b.lastDebounce = now

		if b.current && !b.previous {
			pressed = true
			b.pressEdge = true
			b.pressStart = now
			b.longPressFired = false
			if now-b.lastClick < e.cfg.DoubleClickMs {
				b.clickCount++
			} else {
				b.clickCount = 1
			}
			b.lastClick = now
		} else if !b.current && b.previous {
			released = true
			b.releaseEdge = true
		}
	}

	if pressed {
		e.queue.Push(Event{Tick: now, Type: EventPress, Button: id})
		e.counts.Presses++
		if id == ButtonEmergency {
			e.fireEmergency()
		}
	}
	if released {
		e.queue.Push(Event{Tick: now, Type: EventRelease, Button: id, DurationMs: now - b.pressStart})
		e.counts.Releases++
	}

	// Long press fires once per hold, checked every tick so it lands as
	// soon as the threshold passes.
	if b.current && !b.longPressFired && now-b.pressStart > e.cfg.LongPressMs {
		b.longPressFired = true
		e.queue.Push(Event{Tick: now, Type: EventLongPress, Button: id, DurationMs: now - b.pressStart})
		e.counts.LongPresses++
	}

	if released && b.clickCount >= 2 {
		e.queue.Push(Event{Tick: now, Type: EventDoubleClick, Button: id})
		e.counts.DoubleClicks++
		b.clickCount = 0
	}
}

// Next returns the oldest queued event.
func (e *Engine) Next() (Event, bool) {
	return e.queue.Pop()
}

// Pending returns the number of queued events.
func (e *Engine) Pending() int {
	return e.queue.Len()
}

// ClearEvents empties the queue without touching button state.
func (e *Engine) ClearEvents() {
	e.queue.Clear()
}

// WasPressed reports and clears the press edge for id. The next call
// returns false until another press is debounced.
func (e *Engine) WasPressed(id Button) bool {
	if id < 0 || id >= numButtons {
		return false
	}
	b := &e.buttons[id]
	r := b.pressEdge
	b.pressEdge = false
	return r
}

// WasReleased reports and clears the release edge for id.
func (e *Engine) WasReleased(id Button) bool {
	if id < 0 || id >= numButtons {
		return false
	}
	b := &e.buttons[id]
	r := b.releaseEdge
	b.releaseEdge = false
	return r
}

// IsPressed returns the debounced level for id.
func (e *Engine) IsPressed(id Button) bool {
	if id < 0 || id >= numButtons {
		return false
	}
	return e.buttons[id].current
}

// PressDuration returns how long id has been held at the given tick, zero
// when not pressed.
func (e *Engine) PressDuration(id Button, now uint32) uint32 {
	if id < 0 || id >= numButtons || !e.buttons[id].current {
		return 0
	}
	return now - e.buttons[id].pressStart
}

// SetEnabled turns input processing on or off. While disabled, Update and
// ProcessCommand do nothing; queued events remain queued.
func (e *Engine) SetEnabled(enabled bool) {
	e.enabled = enabled
	if enabled {
		log.Printf("input: processing enabled")
	} else {
		log.Printf("input: processing disabled")
	}
}

// Enabled reports whether input processing is active.
func (e *Engine) Enabled() bool {
	return e.enabled
}

// Counts returns the event tallies, including queue drops.
func (e *Engine) Counts() Counts {
	c := e.counts
	c.Dropped = e.queue.Dropped()
	return c
}
