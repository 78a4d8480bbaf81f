package input

import (
	"testing"

	"github.com/mercer/diag-rig/internal/hal"
)

type channelCall struct {
	n  int
	on bool
}

func TestCommandEnqueuedBeforeDispatch(t *testing.T) {
	e, _ := newTestEngine(t)

	statusCalls := 0
	e.OnStatusRequest(func() { statusCalls++ })

	e.ProcessCommand(1000, 0, "STATUS")

	if statusCalls != 1 {
		t.Fatalf("status calls = %d, want 1", statusCalls)
	}
	ev, ok := e.Next()
	if !ok {
		t.Fatal("no command event queued")
	}
	if ev.Type != EventCommand || ev.Command != "STATUS" || ev.Port != 0 || ev.Tick != 1000 {
		t.Errorf("command event = %+v", ev)
	}
}

func TestStopAndEmergencyCommandsFireListeners(t *testing.T) {
	e, _ := newTestEngine(t)

	calls := 0
	e.OnEmergency(func() { calls++ })

	e.ProcessCommand(1000, 0, "STOP")
	if calls != 1 {
		t.Errorf("calls after STOP = %d, want 1", calls)
	}
	e.ProcessCommand(1100, 1, "EMERGENCY")
	if calls != 2 {
		t.Errorf("calls after EMERGENCY = %d, want 2", calls)
	}
}

func TestChannelCommand(t *testing.T) {
	e, _ := newTestEngine(t)

	var calls []channelCall
	e.OnChannelCommand(func(n int, on bool) hal.Status {
		calls = append(calls, channelCall{n, on})
		return hal.StatusOK
	})

	e.ProcessCommand(1000, 0, "CHANNEL 2 ON")
	e.ProcessCommand(1100, 0, "CHANNEL 0 OFF")

	if len(calls) != 2 {
		t.Fatalf("channel calls = %d, want 2", len(calls))
	}
	if calls[0] != (channelCall{2, true}) || calls[1] != (channelCall{0, false}) {
		t.Errorf("calls = %v", calls)
	}
}

func TestChannelCommandIsCaseSensitive(t *testing.T) {
	e, _ := newTestEngine(t)

	called := false
	e.OnChannelCommand(func(n int, on bool) hal.Status {
		called = true
		return hal.StatusOK
	})

	// Anything but the exact ON or OFF token is rejected.
	e.ProcessCommand(1000, 0, "CHANNEL 1 on")
	e.ProcessCommand(1100, 0, "CHANNEL 1 On")

	if called {
		t.Error("lowercase state token reached the channel handler")
	}
	// The raw text is still recorded as a command event.
	if e.Pending() != 2 {
		t.Errorf("Pending = %d, want 2", e.Pending())
	}
}

func TestChannelCommandMalformed(t *testing.T) {
	e, _ := newTestEngine(t)

	called := false
	e.OnChannelCommand(func(n int, on bool) hal.Status {
		called = true
		return hal.StatusOK
	})

	e.ProcessCommand(1000, 0, "CHANNEL 1")
	e.ProcessCommand(1100, 0, "CHANNEL x ON")
	e.ProcessCommand(1200, 0, "CHANNEL 1 ON extra")

	if called {
		t.Error("malformed channel command reached the handler")
	}
}

func TestUnknownCommandStillRecorded(t *testing.T) {
	e, _ := newTestEngine(t)

	e.ProcessCommand(1000, 1, "BOGUS 42")

	c := e.Counts()
	if c.Commands != 1 {
		t.Errorf("Commands = %d, want 1", c.Commands)
	}
	ev, ok := e.Next()
	if !ok || ev.Command != "BOGUS 42" || ev.Port != 1 {
		t.Errorf("recorded event = %+v, ok=%v", ev, ok)
	}
}

func TestBlankCommandIgnored(t *testing.T) {
	e, _ := newTestEngine(t)

	e.ProcessCommand(1000, 0, "   ")
	e.ProcessCommand(1100, 0, "")

	if e.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", e.Pending())
	}
	if e.Counts().Commands != 0 {
		t.Errorf("Commands = %d, want 0", e.Counts().Commands)
	}
}

func TestResetCommandTakesNoAction(t *testing.T) {
	e, _ := newTestEngine(t)

	fired := false
	e.OnEmergency(func() { fired = true })
	e.OnStatusRequest(func() { fired = true })

	e.ProcessCommand(1000, 0, "RESET")

	if fired {
		t.Error("RESET invoked a listener")
	}
	if e.Counts().Commands != 1 {
		t.Errorf("Commands = %d, want 1", e.Counts().Commands)
	}
}
