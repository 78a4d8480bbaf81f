// Package emergency implements the single idempotent shutdown shared by
// every failure path: threshold trips, the stop button, console commands.
package emergency

import (
	"log"
	"sync"

	"github.com/mercer/diag-rig/internal/hal"
)

// Coordinator owns the boot-lifetime emergency state. The first Shutdown
// call wins; later calls return immediately. Safe to call from any
// goroutine, including GPIO event handlers.
type Coordinator struct {
	mu        sync.Mutex
	tripped   bool
	reason    string
	listeners []func(reason string)
	stop      func()

	io   hal.DigitalIO
	disp hal.Display
}

// New creates a coordinator over the output and display capabilities.
func New(io hal.DigitalIO, disp hal.Display) *Coordinator {
	return &Coordinator{io: io, disp: disp}
}

// SetStop registers the scheduler stop hook, invoked last during shutdown.
func (c *Coordinator) SetStop(fn func()) {
	c.mu.Lock()
	c.stop = fn
	c.mu.Unlock()
}

// Register appends fn to the listener list. Listeners run in registration
// order, exactly once, during shutdown. There is no deduplication and no
// unregistration.
func (c *Coordinator) Register(fn func(reason string)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Shutdown drives every controllable output to its safe state, raises the
// alarm indicators, notifies listeners, renders the emergency screen and
// stops the scheduler. Only the first call has any effect.
func (c *Coordinator) Shutdown(reason string) {
	c.mu.Lock()
	if c.tripped {
		c.mu.Unlock()
		return
	}
	c.tripped = true
	c.reason = reason
	listeners := make([]func(string), len(c.listeners))
	copy(listeners, c.listeners)
	stop := c.stop
	c.mu.Unlock()

	log.Printf("emergency: SHUTDOWN: %s", reason)

	c.safeOutputs()
	c.raiseAlarm()

	for _, fn := range listeners {
		fn(reason)
	}

	c.drawScreen(reason)

	if stop != nil {
		stop()
	}
}

// safeOutputs drives the channel enables, relays and fan low. Individual
// write failures are logged and the sequence continues; a pin that cannot
// be driven must not block the others.
func (c *Coordinator) safeOutputs() {
	outputs := []hal.Pin{
		hal.PinChannel0, hal.PinChannel1, hal.PinChannel2, hal.PinChannel3,
		hal.PinRelay1, hal.PinRelay2, hal.PinFan,
	}
	for _, pin := range outputs {
		if st := c.io.Write(pin, false); st != hal.StatusOK {
			log.Printf("emergency: safe pin %d: %s", pin, st)
		}
	}
}

func (c *Coordinator) raiseAlarm() {
	c.io.Write(hal.PinBuzzer, true)
	c.io.Write(hal.PinLEDError, true)
	c.io.Write(hal.PinLEDStatus, false)
}

func (c *Coordinator) drawScreen(reason string) {
	if st := c.disp.Clear(hal.ColorRed); st != hal.StatusOK {
		log.Printf("emergency: display clear: %s", st)
	}
	c.disp.DrawText(10, 10, "EMERGENCY STOP", hal.ColorWhite, hal.ColorRed)
	c.disp.DrawText(10, 40, reason, hal.ColorWhite, hal.ColorRed)
	c.disp.DrawText(10, 70, "SYSTEM HALTED - RESTART REQUIRED", hal.ColorYellow, hal.ColorRed)
	if st := c.disp.Flush(); st != hal.StatusOK {
		log.Printf("emergency: display flush: %s", st)
	}
}

// Tripped reports whether the shutdown has run.
func (c *Coordinator) Tripped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tripped
}

// Reason returns the recorded shutdown reason, empty before any trip.
func (c *Coordinator) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}
