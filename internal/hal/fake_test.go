package hal

import "testing"

func TestFakeIOInputIdlesAtPullLevel(t *testing.T) {
	io := NewFakeIO()

	io.ConfigureInput(PinBtnUser, PullUp)
	if level, st := io.Read(PinBtnUser); st != StatusOK || !level {
		t.Errorf("pulled-up input read = (%v, %v), want (true, OK)", level, st)
	}

	io.ConfigureInput(PinBtnMode, PullDown)
	if level, st := io.Read(PinBtnMode); st != StatusOK || level {
		t.Errorf("pulled-down input read = (%v, %v), want (false, OK)", level, st)
	}
}

func TestFakeIOWriteAndToggle(t *testing.T) {
	io := NewFakeIO()
	io.ConfigureOutput(PinLEDStatus)

	if st := io.Write(PinLEDStatus, true); st != StatusOK {
		t.Fatalf("Write returned %v", st)
	}
	if !io.Level(PinLEDStatus) {
		t.Error("level not high after Write(true)")
	}
	if st := io.Toggle(PinLEDStatus); st != StatusOK {
		t.Fatalf("Toggle returned %v", st)
	}
	if io.Level(PinLEDStatus) {
		t.Error("level still high after Toggle")
	}

	writes := io.WritesTo(PinLEDStatus)
	if len(writes) != 2 {
		t.Fatalf("recorded %d writes, want 2", len(writes))
	}
	if !writes[0].Level || writes[1].Level {
		t.Errorf("recorded writes = %v, want [high low]", writes)
	}
}

func TestFakeIOInjectedStatuses(t *testing.T) {
	io := NewFakeIO()
	io.ConfigureOutput(PinBuzzer)

	io.WriteStatus = StatusError
	if st := io.Write(PinBuzzer, true); st != StatusError {
		t.Errorf("Write with injected status returned %v, want ERROR", st)
	}
	io.ReadStatus = StatusTimeout
	if _, st := io.Read(PinBuzzer); st != StatusTimeout {
		t.Errorf("Read with injected status returned %v, want TIMEOUT", st)
	}

	io.Reset()
	if st := io.Write(PinBuzzer, true); st != StatusOK {
		t.Errorf("Write after Reset returned %v", st)
	}
	if len(io.WritesTo(PinBuzzer)) != 1 {
		t.Error("Reset did not clear recorded writes")
	}
}

func TestFakeIOFireEdgeInvokesWatcher(t *testing.T) {
	io := NewFakeIO()
	io.ConfigureInput(PinEmergency, PullUp)

	var gotPin Pin
	var gotEdge Edge
	calls := 0
	io.Watch(PinEmergency, EdgeFalling, func(p Pin, e Edge) {
		gotPin = p
		gotEdge = e
		calls++
	})
	if !io.Watched(PinEmergency) {
		t.Fatal("pin not reported as watched")
	}

	io.FireEdge(PinEmergency, EdgeFalling)
	if calls != 1 {
		t.Fatalf("handler called %d times, want 1", calls)
	}
	if gotPin != PinEmergency || gotEdge != EdgeFalling {
		t.Errorf("handler got (%v, %v), want (PinEmergency, EdgeFalling)", gotPin, gotEdge)
	}
	if io.Level(PinEmergency) {
		t.Error("falling edge did not drive the level low")
	}
}

func TestFakeADCScriptConsumesThenRepeats(t *testing.T) {
	adc := NewFakeADC()
	adc.Queue(ADCVoltage, 20, 28, 31, 36)

	want := []float64{20, 28, 31, 36, 36, 36}
	for i, w := range want {
		v, st := adc.ReadValue(ADCVoltage)
		if st != StatusOK {
			t.Fatalf("read %d returned %v", i, st)
		}
		if v != w {
			t.Errorf("read %d = %v, want %v", i, v, w)
		}
	}
}

func TestFakeADCStatusInjection(t *testing.T) {
	adc := NewFakeADC()
	adc.SetValue(ADCCurrent, 1.5)
	adc.SetStatus(ADCCurrent, StatusTimeout)

	if _, st := adc.ReadValue(ADCCurrent); st != StatusTimeout {
		t.Errorf("ReadValue returned %v, want TIMEOUT", st)
	}
	if _, st := adc.Read(ADCCurrent); st != StatusTimeout {
		t.Errorf("Read returned %v, want TIMEOUT", st)
	}

	adc.SetStatus(ADCCurrent, StatusOK)
	if v, st := adc.ReadValue(ADCCurrent); st != StatusOK || v != 1.5 {
		t.Errorf("ReadValue after clearing = (%v, %v), want (1.5, OK)", v, st)
	}
}

func TestFakeADCRejectsBadChannel(t *testing.T) {
	adc := NewFakeADC()
	if _, st := adc.Read(ADCChannel(9)); st != StatusInvalidParam {
		t.Errorf("Read(9) returned %v, want INVALID_PARAM", st)
	}
	if _, st := adc.ReadValue(ADCChannel(-1)); st != StatusInvalidParam {
		t.Errorf("ReadValue(-1) returned %v, want INVALID_PARAM", st)
	}
}

func TestFakeClockSleepAdvances(t *testing.T) {
	clock := &FakeClock{Now: 1000}
	clock.Sleep(60)
	if clock.Ticks() != 1060 {
		t.Errorf("Ticks after Sleep = %d, want 1060", clock.Ticks())
	}
	if len(clock.Slept) != 1 || clock.Slept[0] != 60 {
		t.Errorf("Slept = %v, want [60]", clock.Slept)
	}

	hookRan := false
	clock.OnSleep = func() { hookRan = true }
	clock.Sleep(40)
	if !hookRan {
		t.Error("OnSleep hook did not run")
	}
}

func TestFakeSerialReadConsumes(t *testing.T) {
	port := &FakeSerial{RxData: []byte("STATUS\n")}

	var buf [4]byte
	n, st := port.Read(buf[:], 0)
	if st != StatusOK || n != 4 {
		t.Fatalf("first read = (%d, %v), want (4, OK)", n, st)
	}
	if string(buf[:n]) != "STAT" {
		t.Errorf("first read data = %q", buf[:n])
	}

	n, st = port.Read(buf[:], 0)
	if st != StatusOK || n != 3 {
		t.Fatalf("second read = (%d, %v), want (3, OK)", n, st)
	}
	if avail, _ := port.Available(); avail != 0 {
		t.Errorf("Available after draining = %d, want 0", avail)
	}
}

func TestFakeDisplayRecordsAndFails(t *testing.T) {
	disp := &FakeDisplay{}
	disp.Clear(ColorRed)
	disp.DrawText(10, 10, "EMERGENCY STOP", ColorWhite, ColorRed)
	disp.Flush()

	if len(disp.Cleared) != 1 || disp.Cleared[0] != ColorRed {
		t.Errorf("Cleared = %v, want [ColorRed]", disp.Cleared)
	}
	if len(disp.Texts) != 1 || disp.Texts[0] != "EMERGENCY STOP" {
		t.Errorf("Texts = %v", disp.Texts)
	}
	if disp.Flushes != 1 {
		t.Errorf("Flushes = %d, want 1", disp.Flushes)
	}

	disp.CallStatus = StatusError
	if st := disp.DrawText(0, 0, "x", ColorWhite, ColorBlack); st != StatusError {
		t.Errorf("DrawText with injected status returned %v, want ERROR", st)
	}
}
