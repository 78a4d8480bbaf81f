// Package channels owns the enable state of the rig's diagnostic channels.
package channels

import (
	"log"

	"github.com/mercer/diag-rig/internal/hal"
)

// Count is the number of diagnostic channels on the rig.
const Count = 4

var pins = [Count]hal.Pin{hal.PinChannel0, hal.PinChannel1, hal.PinChannel2, hal.PinChannel3}

// Bank drives the channel enable lines and remembers the commanded state.
// Driven from the scheduler goroutine only.
type Bank struct {
	io      hal.DigitalIO
	enabled [Count]bool
}

// New configures the enable lines as outputs, all disabled.
func New(io hal.DigitalIO) *Bank {
	b := &Bank{io: io}
	for _, pin := range pins {
		if st := io.ConfigureOutput(pin); st != hal.StatusOK {
			log.Printf("channels: configure pin %d: %s", pin, st)
		}
	}
	return b
}

// Set enables or disables channel n. The remembered state only changes when
// the hardware write succeeds.
func (b *Bank) Set(n int, on bool) hal.Status {
	if n < 0 || n >= Count {
		return hal.StatusInvalidParam
	}
	if st := b.io.Write(pins[n], on); st != hal.StatusOK {
		return st
	}
	b.enabled[n] = on
	return hal.StatusOK
}

// Toggle flips channel n.
func (b *Bank) Toggle(n int) hal.Status {
	if n < 0 || n >= Count {
		return hal.StatusInvalidParam
	}
	return b.Set(n, !b.enabled[n])
}

// ToggleAll flips every channel.
func (b *Bank) ToggleAll() {
	for n := range b.enabled {
		b.Set(n, !b.enabled[n])
	}
	log.Printf("channels: all channels toggled, now %v", b.enabled)
}

// DisableAll turns every channel off.
func (b *Bank) DisableAll() {
	for n := range b.enabled {
		b.Set(n, false)
	}
}

// States returns the commanded enable state per channel.
func (b *Bank) States() [Count]bool {
	return b.enabled
}

// Enabled reports channel n's commanded state.
func (b *Bank) Enabled(n int) bool {
	if n < 0 || n >= Count {
		return false
	}
	return b.enabled[n]
}
