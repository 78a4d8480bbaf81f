// Package input turns raw button levels and console text into an ordered
// stream of typed events. All timing is in millisecond ticks supplied by the
// caller; the package never reads the wall clock, which keeps the state
// machines deterministic under test.
package input

// Button identifies a front panel button.
type Button int

const (
	ButtonUser Button = iota
	ButtonReset
	ButtonMode
	ButtonEmergency
	numButtons
)

func (b Button) String() string {
	switch b {
	case ButtonUser:
		return "USER"
	case ButtonReset:
		return "RESET"
	case ButtonMode:
		return "MODE"
	case ButtonEmergency:
		return "EMERGENCY"
	}
	return "UNKNOWN"
}

// EventType classifies an input event.
type EventType string

const (
	EventPress       EventType = "PRESS"
	EventRelease     EventType = "RELEASE"
	EventLongPress   EventType = "LONG_PRESS"
	EventDoubleClick EventType = "DOUBLE_CLICK"
	EventCommand     EventType = "COMMAND"
	EventEmergency   EventType = "EMERGENCY_STOP"
)

// Event is one input event. DurationMs is set for releases and long presses,
// Command and Port for command events.
type Event struct {
	Tick       uint32
	Type       EventType
	Button     Button
	DurationMs uint32
	Command    string
	Port       int
}

// Counts tallies events seen since startup.
type Counts struct {
	Presses      int
	Releases     int
	LongPresses  int
	DoubleClicks int
	Commands     int
	Emergencies  int
	Dropped      int
}

// buttonState is the debounce and click state for one button.
type buttonState struct {
	current        bool
	previous       bool
	pressEdge      bool
	releaseEdge    bool
	pressStart     uint32
	lastDebounce   uint32
	longPressFired bool
	clickCount     int
	lastClick      uint32
}
