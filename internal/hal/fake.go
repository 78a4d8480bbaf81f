package hal

import "sync"

// PinWrite records a single write to a fake pin.
type PinWrite struct {
	Pin   Pin
	Level bool
}

type fakeWatch struct {
	edge Edge
	fn   func(Pin, Edge)
}

// FakeIO implements DigitalIO with settable levels and recorded writes. A
// mutex guards the maps because edge handlers fire from other goroutines in
// production; tests may call FireEdge from anywhere.
type FakeIO struct {
	mu      sync.Mutex
	levels  map[Pin]bool
	pulls   map[Pin]Pull
	outputs map[Pin]bool
	watches map[Pin]fakeWatch
	writes  []PinWrite

	// ReadStatus, when not OK, is returned by every Read.
	ReadStatus Status
	// WriteStatus, when not OK, is returned by every Write and Toggle.
	WriteStatus Status
}

func NewFakeIO() *FakeIO {
	return &FakeIO{
		levels:  make(map[Pin]bool),
		pulls:   make(map[Pin]Pull),
		outputs: make(map[Pin]bool),
		watches: make(map[Pin]fakeWatch),
	}
}

func (f *FakeIO) ConfigureInput(pin Pin, pull Pull) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls[pin] = pull
	delete(f.outputs, pin)
	if _, ok := f.levels[pin]; !ok {
		// Pulled-up inputs idle high.
		f.levels[pin] = pull == PullUp
	}
	return StatusOK
}

func (f *FakeIO) ConfigureOutput(pin Pin) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[pin] = true
	delete(f.pulls, pin)
	f.levels[pin] = false
	return StatusOK
}

func (f *FakeIO) Write(pin Pin, level bool) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteStatus != StatusOK {
		return f.WriteStatus
	}
	f.levels[pin] = level
	f.writes = append(f.writes, PinWrite{Pin: pin, Level: level})
	return StatusOK
}

func (f *FakeIO) Read(pin Pin) (bool, Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadStatus != StatusOK {
		return false, f.ReadStatus
	}
	return f.levels[pin], StatusOK
}

func (f *FakeIO) Toggle(pin Pin) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteStatus != StatusOK {
		return f.WriteStatus
	}
	f.levels[pin] = !f.levels[pin]
	f.writes = append(f.writes, PinWrite{Pin: pin, Level: f.levels[pin]})
	return StatusOK
}

func (f *FakeIO) Watch(pin Pin, edge Edge, fn func(Pin, Edge)) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watches[pin] = fakeWatch{edge: edge, fn: fn}
	return StatusOK
}

// SetLevel changes the level seen by Read without recording a write.
func (f *FakeIO) SetLevel(pin Pin, level bool) {
	f.mu.Lock()
	f.levels[pin] = level
	f.mu.Unlock()
}

// Level returns the current level of pin.
func (f *FakeIO) Level(pin Pin) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[pin]
}

// Writes returns the recorded writes in call order.
func (f *FakeIO) Writes() []PinWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PinWrite, len(f.writes))
	copy(out, f.writes)
	return out
}

// WritesTo returns the recorded writes for one pin.
func (f *FakeIO) WritesTo(pin Pin) []PinWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []PinWrite
	for _, w := range f.writes {
		if w.Pin == pin {
			out = append(out, w)
		}
	}
	return out
}

// Watched reports whether an edge handler is armed on pin.
func (f *FakeIO) Watched(pin Pin) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.watches[pin]
	return ok
}

// FireEdge invokes the handler armed on pin, simulating a hardware edge. It
// also updates the level to match the edge direction.
func (f *FakeIO) FireEdge(pin Pin, edge Edge) {
	f.mu.Lock()
	f.levels[pin] = edge == EdgeRising
	w, ok := f.watches[pin]
	f.mu.Unlock()
	if ok && w.fn != nil {
		w.fn(pin, edge)
	}
}

// Reset clears recorded writes and injected statuses, keeping configuration.
func (f *FakeIO) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = nil
	f.ReadStatus = StatusOK
	f.WriteStatus = StatusOK
}

// FakeADC returns scripted conversions. SetValue fixes a channel's value;
// Queue schedules a sequence consumed one reading at a time, repeating the
// last entry once exhausted.
type FakeADC struct {
	mu      sync.Mutex
	raw     map[ADCChannel]uint16
	values  map[ADCChannel]float64
	scripts map[ADCChannel][]float64
	fail    map[ADCChannel]Status
}

func NewFakeADC() *FakeADC {
	return &FakeADC{
		raw:     make(map[ADCChannel]uint16),
		values:  make(map[ADCChannel]float64),
		scripts: make(map[ADCChannel][]float64),
		fail:    make(map[ADCChannel]Status),
	}
}

// SetRaw fixes the raw conversion returned for ch.
func (f *FakeADC) SetRaw(ch ADCChannel, raw uint16) {
	f.mu.Lock()
	f.raw[ch] = raw
	f.mu.Unlock()
}

// SetValue fixes the calibrated value returned for ch.
func (f *FakeADC) SetValue(ch ADCChannel, v float64) {
	f.mu.Lock()
	f.values[ch] = v
	f.mu.Unlock()
}

// Queue schedules values for ch, consumed one per ReadValue call. The last
// value repeats after the script runs out.
func (f *FakeADC) Queue(ch ADCChannel, vals ...float64) {
	f.mu.Lock()
	f.scripts[ch] = append(f.scripts[ch], vals...)
	f.mu.Unlock()
}

// SetStatus makes reads of ch return st.
func (f *FakeADC) SetStatus(ch ADCChannel, st Status) {
	f.mu.Lock()
	f.fail[ch] = st
	f.mu.Unlock()
}

func (f *FakeADC) Read(ch ADCChannel) (uint16, Status) {
	if ch < 0 || ch >= NumADCChannels {
		return 0, StatusInvalidParam
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if st := f.fail[ch]; st != StatusOK {
		return 0, st
	}
	return f.raw[ch], StatusOK
}

func (f *FakeADC) ReadValue(ch ADCChannel) (float64, Status) {
	if ch < 0 || ch >= NumADCChannels {
		return 0, StatusInvalidParam
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if st := f.fail[ch]; st != StatusOK {
		return 0, st
	}
	if script := f.scripts[ch]; len(script) > 0 {
		v := script[0]
		if len(script) > 1 {
			f.scripts[ch] = script[1:]
		}
		f.values[ch] = v
		return v, StatusOK
	}
	return f.values[ch], StatusOK
}

// FakeClock is a manually advanced Clock. Sleep advances the clock so loop
// code runs at full speed under test; OnSleep, when set, runs after each
// Sleep and can request a stop or reschedule values.
type FakeClock struct {
	Now     uint32
	Slept   []uint32
	OnSleep func()
}

func (c *FakeClock) Ticks() uint32 {
	return c.Now
}

func (c *FakeClock) Sleep(ms uint32) {
	c.Slept = append(c.Slept, ms)
	c.Now += ms
	if c.OnSleep != nil {
		c.OnSleep()
	}
}

// Advance moves the clock forward without recording a sleep.
func (c *FakeClock) Advance(ms uint32) {
	c.Now += ms
}

// FakeSerial serves scripted console input and records writes.
type FakeSerial struct {
	RxData []byte
	TxData []byte

	// ReadStatus, when not OK, is returned by Read.
	ReadStatus Status
	// WriteStatus, when not OK, is returned by Write.
	WriteStatus Status
}

func (f *FakeSerial) Read(p []byte, timeoutMs uint32) (int, Status) {
	if f.ReadStatus != StatusOK {
		return 0, f.ReadStatus
	}
	n := copy(p, f.RxData)
	f.RxData = f.RxData[n:]
	return n, StatusOK
}

func (f *FakeSerial) Write(p []byte, timeoutMs uint32) (int, Status) {
	if f.WriteStatus != StatusOK {
		return 0, f.WriteStatus
	}
	f.TxData = append(f.TxData, p...)
	return len(p), StatusOK
}

func (f *FakeSerial) Available() (int, Status) {
	return len(f.RxData), StatusOK
}

// FakeDisplay records draw calls. CallStatus, when not OK, is returned by
// every operation so failure handling can be exercised.
type FakeDisplay struct {
	Cleared []Color
	Texts   []string
	Rects   int
	Flushes int

	CallStatus Status
}

func (d *FakeDisplay) Clear(bg Color) Status {
	if d.CallStatus != StatusOK {
		return d.CallStatus
	}
	d.Cleared = append(d.Cleared, bg)
	d.Texts = nil
	return StatusOK
}

func (d *FakeDisplay) FillRect(x, y, w, h int, c Color) Status {
	if d.CallStatus != StatusOK {
		return d.CallStatus
	}
	d.Rects++
	return StatusOK
}

func (d *FakeDisplay) DrawText(x, y int, text string, fg, bg Color) Status {
	if d.CallStatus != StatusOK {
		return d.CallStatus
	}
	d.Texts = append(d.Texts, text)
	return StatusOK
}

func (d *FakeDisplay) Flush() Status {
	if d.CallStatus != StatusOK {
		return d.CallStatus
	}
	d.Flushes++
	return StatusOK
}
