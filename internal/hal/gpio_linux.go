//go:build linux

package hal

import (
	"fmt"
	"log"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// LinuxGPIO implements DigitalIO on the Linux GPIO character device.
type LinuxGPIO struct {
	chip *gpiocdev.Chip

	mu    sync.Mutex
	lines map[Pin]*gpiocdev.Line
	pulls map[Pin]Pull
	outs  map[Pin]bool // last driven level per output pin
}

// NewLinuxGPIO opens the named gpiochip, e.g. "gpiochip0".
func NewLinuxGPIO(chipName string) (*LinuxGPIO, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("failed to open gpio chip %s: %w", chipName, err)
	}
	return &LinuxGPIO{
		chip:  chip,
		lines: make(map[Pin]*gpiocdev.Line),
		pulls: make(map[Pin]Pull),
		outs:  make(map[Pin]bool),
	}, nil
}

func (g *LinuxGPIO) ConfigureInput(pin Pin, pull Pull) Status {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput}
	switch pull {
	case PullUp:
		opts = append(opts, gpiocdev.WithPullUp)
	case PullDown:
		opts = append(opts, gpiocdev.WithPullDown)
	}
	st := g.request(pin, opts...)
	if st == StatusOK {
		g.mu.Lock()
		g.pulls[pin] = pull
		delete(g.outs, pin)
		g.mu.Unlock()
	}
	return st
}

func (g *LinuxGPIO) ConfigureOutput(pin Pin) Status {
	st := g.request(pin, gpiocdev.AsOutput(0))
	if st == StatusOK {
		g.mu.Lock()
		g.outs[pin] = false
		delete(g.pulls, pin)
		g.mu.Unlock()
	}
	return st
}

// request claims the line for pin, releasing any previous claim first.
func (g *LinuxGPIO) request(pin Pin, opts ...gpiocdev.LineReqOption) Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	if old, ok := g.lines[pin]; ok {
		old.Close()
		delete(g.lines, pin)
	}
	line, err := g.chip.RequestLine(int(pin), opts...)
	if err != nil {
		log.Printf("gpio: request line %d: %v", pin, err)
		return StatusInitFailed
	}
	g.lines[pin] = line
	return StatusOK
}

func (g *LinuxGPIO) Write(pin Pin, level bool) Status {
	g.mu.Lock()
	line, ok := g.lines[pin]
	_, isOut := g.outs[pin]
	g.mu.Unlock()
	if !ok || !isOut {
		return StatusInvalidParam
	}
	v := 0
	if level {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		log.Printf("gpio: write line %d: %v", pin, err)
		return StatusError
	}
	g.mu.Lock()
	g.outs[pin] = level
	g.mu.Unlock()
	return StatusOK
}

func (g *LinuxGPIO) Read(pin Pin) (bool, Status) {
	g.mu.Lock()
	line, ok := g.lines[pin]
	g.mu.Unlock()
	if !ok {
		return false, StatusInvalidParam
	}
	v, err := line.Value()
	if err != nil {
		log.Printf("gpio: read line %d: %v", pin, err)
		return false, StatusError
	}
	return v == 1, StatusOK
}

func (g *LinuxGPIO) Toggle(pin Pin) Status {
	g.mu.Lock()
	level, isOut := g.outs[pin]
	g.mu.Unlock()
	if !isOut {
		return StatusInvalidParam
	}
	return g.Write(pin, !level)
}

// Watch re-requests pin with edge detection, keeping the bias set by
// ConfigureInput. The handler runs on the gpiocdev event goroutine.
func (g *LinuxGPIO) Watch(pin Pin, edge Edge, fn func(Pin, Edge)) Status {
	g.mu.Lock()
	pull, configured := g.pulls[pin]
	g.mu.Unlock()
	if !configured {
		return StatusInvalidParam
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput}
	switch pull {
	case PullUp:
		opts = append(opts, gpiocdev.WithPullUp)
	case PullDown:
		opts = append(opts, gpiocdev.WithPullDown)
	}
	switch edge {
	case EdgeRising:
		opts = append(opts, gpiocdev.WithRisingEdge)
	case EdgeFalling:
		opts = append(opts, gpiocdev.WithFallingEdge)
	case EdgeBoth:
		opts = append(opts, gpiocdev.WithBothEdges)
	}
	opts = append(opts, gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
		e := EdgeRising
		if evt.Type == gpiocdev.LineEventFallingEdge {
			e = EdgeFalling
		}
		fn(pin, e)
	}))
	return g.request(pin, opts...)
}

// Close drives all outputs low, releases every claimed line and closes the
// chip. The returned error aggregates any failures.
func (g *LinuxGPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var errs []error
	for pin, line := range g.lines {
		if _, isOut := g.outs[pin]; isOut {
			if err := line.SetValue(0); err != nil {
				errs = append(errs, fmt.Errorf("clear line %d: %w", pin, err))
			}
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", pin, err))
		}
	}
	g.lines = make(map[Pin]*gpiocdev.Line)
	if err := g.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("gpio teardown: %v", errs)
	}
	return nil
}
