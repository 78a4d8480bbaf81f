package emergency

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mercer/diag-rig/internal/hal"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *hal.FakeIO, *hal.FakeDisplay) {
	t.Helper()
	io := hal.NewFakeIO()
	disp := &hal.FakeDisplay{}
	return New(io, disp), io, disp
}

func TestShutdownSafesOutputsAndRaisesAlarm(t *testing.T) {
	c, io, _ := newTestCoordinator(t)

	// Simulate a running rig with live outputs.
	for _, pin := range []hal.Pin{hal.PinChannel0, hal.PinChannel2, hal.PinRelay1, hal.PinFan} {
		io.ConfigureOutput(pin)
		io.Write(pin, true)
	}
	io.Reset()

	c.Shutdown("VOLTAGE 36.00 exceeded emergency threshold 35.00")

	for _, pin := range []hal.Pin{
		hal.PinChannel0, hal.PinChannel1, hal.PinChannel2, hal.PinChannel3,
		hal.PinRelay1, hal.PinRelay2, hal.PinFan,
	} {
		if io.Level(pin) {
			t.Errorf("pin %d still high after shutdown", pin)
		}
	}
	if !io.Level(hal.PinBuzzer) {
		t.Error("buzzer not raised")
	}
	if !io.Level(hal.PinLEDError) {
		t.Error("error LED not raised")
	}
	if io.Level(hal.PinLEDStatus) {
		t.Error("status LED still on")
	}
	if !c.Tripped() {
		t.Error("Tripped = false after shutdown")
	}
	if c.Reason() != "VOLTAGE 36.00 exceeded emergency threshold 35.00" {
		t.Errorf("Reason = %q", c.Reason())
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	c, io, _ := newTestCoordinator(t)

	calls := 0
	c.Register(func(string) { calls++ })

	c.Shutdown("first")
	writes := len(io.Writes())
	c.Shutdown("second")

	if calls != 1 {
		t.Errorf("listener calls = %d, want 1", calls)
	}
	if len(io.Writes()) != writes {
		t.Error("second Shutdown touched the hardware")
	}
	if c.Reason() != "first" {
		t.Errorf("Reason = %q, want the first reason to win", c.Reason())
	}
}

func TestListenersRunInOrderAfterOutputsAreSafe(t *testing.T) {
	c, io, _ := newTestCoordinator(t)

	io.ConfigureOutput(hal.PinRelay1)
	io.Write(hal.PinRelay1, true)

	var order []int
	relayLiveDuringListener := false
	c.Register(func(reason string) {
		order = append(order, 1)
		if reason != "stop" {
			t.Errorf("listener got reason %q", reason)
		}
		if io.Level(hal.PinRelay1) {
			relayLiveDuringListener = true
		}
	})
	c.Register(func(string) { order = append(order, 2) })
	c.Register(func(string) { order = append(order, 3) })

	c.Shutdown("stop")

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("listener order = %v, want [1 2 3]", order)
	}
	if relayLiveDuringListener {
		t.Error("outputs were not safed before the listeners ran")
	}
}

func TestStopHookRunsLast(t *testing.T) {
	c, _, disp := newTestCoordinator(t)

	listenerRan := false
	screenDrawn := false
	c.Register(func(string) { listenerRan = true })
	c.SetStop(func() {
		if !listenerRan {
			t.Error("stop hook ran before the listeners")
		}
		if disp.Flushes == 0 {
			t.Error("stop hook ran before the emergency screen was drawn")
		}
		screenDrawn = true
	})

	c.Shutdown("stop")

	if !screenDrawn {
		t.Fatal("stop hook never ran")
	}
}

func TestEmergencyScreenContent(t *testing.T) {
	c, _, disp := newTestCoordinator(t)

	c.Shutdown("CURRENT 12.50 exceeded emergency threshold 12.00")

	if len(disp.Cleared) != 1 || disp.Cleared[0] != hal.ColorRed {
		t.Errorf("Cleared = %v, want one red clear", disp.Cleared)
	}
	want := []string{
		"EMERGENCY STOP",
		"CURRENT 12.50 exceeded emergency threshold 12.00",
		"SYSTEM HALTED - RESTART REQUIRED",
	}
	if len(disp.Texts) != len(want) {
		t.Fatalf("Texts = %v", disp.Texts)
	}
	for i, w := range want {
		if disp.Texts[i] != w {
			t.Errorf("text %d = %q, want %q", i, disp.Texts[i], w)
		}
	}
	if disp.Flushes != 1 {
		t.Errorf("Flushes = %d, want 1", disp.Flushes)
	}
}

func TestDisplayFailureDoesNotAbortShutdown(t *testing.T) {
	c, io, disp := newTestCoordinator(t)
	disp.CallStatus = hal.StatusError

	stopped := false
	c.SetStop(func() { stopped = true })

	c.Shutdown("stop")

	if !c.Tripped() {
		t.Error("shutdown did not complete with a dead display")
	}
	if !stopped {
		t.Error("stop hook skipped with a dead display")
	}
	if !io.Level(hal.PinBuzzer) {
		t.Error("alarm skipped with a dead display")
	}
}

func TestWriteFailureContinuesSafing(t *testing.T) {
	c, io, _ := newTestCoordinator(t)
	io.WriteStatus = hal.StatusError

	ran := false
	c.Register(func(string) { ran = true })

	c.Shutdown("stop")

	if !c.Tripped() || !ran {
		t.Error("shutdown did not complete with failing writes")
	}
}

func TestConcurrentShutdownRunsOnce(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	var calls atomic.Int32
	c.Register(func(string) { calls.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				c.Shutdown("monitor trip")
			} else {
				c.Shutdown("button press")
			}
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("listener ran %d times, want 1", calls.Load())
	}
	if !c.Tripped() {
		t.Error("not tripped after concurrent shutdowns")
	}
}
