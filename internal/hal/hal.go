// Package hal defines the capability boundary between the rig core and the
// bench hardware: digital I/O, analog sampling, the serial console, the
// millisecond tick clock, and the panel display. The Linux implementations
// talk to the GPIO character device, the IIO sysfs ADC and a tarm serial
// port; fakes cover tests and simulated runs.
//
// Every operation returns a Status code rather than an error. Constructors
// return errors in the usual Go way; once a device is up, its operations
// report outcomes as codes the core can branch on without allocation.
package hal

// Status is the result code returned by hardware operations.
type Status int

const (
	StatusOK Status = iota
	StatusError
	StatusBusy
	StatusTimeout
	StatusInvalidParam
	StatusNotSupported
	StatusInitFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	case StatusBusy:
		return "BUSY"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusInvalidParam:
		return "INVALID_PARAM"
	case StatusNotSupported:
		return "NOT_SUPPORTED"
	case StatusInitFailed:
		return "INIT_FAILED"
	}
	return "UNKNOWN"
}

// Pin identifies a GPIO line by its chip offset.
type Pin int

// Rig wiring, offsets on gpiochip0.
const (
	PinLEDStatus Pin = 25
	PinLEDError  Pin = 16
	PinLEDComm   Pin = 17
	PinLEDPower  Pin = 18

	PinBtnUser   Pin = 14
	PinBtnReset  Pin = 15
	PinBtnMode   Pin = 19
	PinEmergency Pin = 10

	PinChannel0 Pin = 20
	PinChannel1 Pin = 21
	PinChannel2 Pin = 22
	PinChannel3 Pin = 26

	PinRelay1 Pin = 6
	PinRelay2 Pin = 7
	PinBuzzer Pin = 8
	PinFan    Pin = 9
)

// Pull selects the bias applied to an input line.
type Pull int

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// Edge selects which level transitions raise an interrupt.
type Edge int

const (
	EdgeRising Edge = iota
	EdgeFalling
	EdgeBoth
)

// ADCChannel identifies an analog input.
type ADCChannel int

// Analog front end: two voltage dividers, a shunt amplifier and the on-die
// temperature sensor.
const (
	ADCVoltage     ADCChannel = 0
	ADCVoltageAux  ADCChannel = 1
	ADCCurrent     ADCChannel = 2
	ADCTemperature ADCChannel = 3

	NumADCChannels = 4
)

// Color is a 24-bit RGB value for display calls.
type Color uint32

const (
	ColorBlack  Color = 0x000000
	ColorWhite  Color = 0xFFFFFF
	ColorRed    Color = 0xFF0000
	ColorGreen  Color = 0x00FF00
	ColorYellow Color = 0xFFFF00
	ColorNavy   Color = 0x000080
)

// DigitalIO drives and reads GPIO lines.
type DigitalIO interface {
	// ConfigureInput claims pin as an input with the given bias.
	ConfigureInput(pin Pin, pull Pull) Status
	// ConfigureOutput claims pin as an output, driven low.
	ConfigureOutput(pin Pin) Status
	Write(pin Pin, level bool) Status
	Read(pin Pin) (bool, Status)
	// Toggle inverts an output pin. Invalid on inputs.
	Toggle(pin Pin) Status
	// Watch arms an edge interrupt on an input pin, preserving its
	// configured bias. fn runs on the event goroutine; it must only touch
	// state that is safe to share across that boundary.
	Watch(pin Pin, edge Edge, fn func(Pin, Edge)) Status
}

// AnalogIn samples the ADC.
type AnalogIn interface {
	// Read returns the raw conversion for ch.
	Read(ch ADCChannel) (uint16, Status)
	// ReadValue returns the calibrated physical value for ch: volts,
	// amps or degrees C depending on the channel wiring.
	ReadValue(ch ADCChannel) (float64, Status)
}

// SerialPort is the byte console used for text commands.
type SerialPort interface {
	Write(p []byte, timeoutMs uint32) (int, Status)
	Read(p []byte, timeoutMs uint32) (int, Status)
	// Available returns the number of bytes ready to read, or
	// StatusNotSupported when the driver cannot tell.
	Available() (int, Status)
}

// Clock is the millisecond tick source. Ticks wraps at the uint32 boundary;
// core timing is computed as tick deltas, which survive the wrap.
type Clock interface {
	Ticks() uint32
	Sleep(ms uint32)
}

// Display renders the emergency screen.
type Display interface {
	Clear(bg Color) Status
	FillRect(x, y, w, h int, c Color) Status
	DrawText(x, y int, text string, fg, bg Color) Status
	Flush() Status
}

// Device bundles the capabilities handed to the core.
type Device struct {
	IO      DigitalIO
	ADC     AnalogIn
	Serial  SerialPort // nil when no console is attached
	Clock   Clock
	Display Display
}
