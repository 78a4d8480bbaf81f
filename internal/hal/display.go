package hal

import (
	"log"
	"strings"
)

// ConsoleDisplay renders display calls into the log. The rig's panel LCD is
// driven by a separate process; the daemon keeps the emergency screen
// visible in the journal through this implementation.
type ConsoleDisplay struct {
	lines []string
}

func NewConsoleDisplay() *ConsoleDisplay {
	return &ConsoleDisplay{}
}

func (d *ConsoleDisplay) Clear(bg Color) Status {
	d.lines = d.lines[:0]
	return StatusOK
}

func (d *ConsoleDisplay) FillRect(x, y, w, h int, c Color) Status {
	return StatusOK
}

func (d *ConsoleDisplay) DrawText(x, y int, text string, fg, bg Color) Status {
	d.lines = append(d.lines, text)
	return StatusOK
}

func (d *ConsoleDisplay) Flush() Status {
	if len(d.lines) == 0 {
		return StatusOK
	}
	width := 0
	for _, l := range d.lines {
		if len(l) > width {
			width = len(l)
		}
	}
	border := strings.Repeat("=", width+4)
	log.Printf("display: %s", border)
	for _, l := range d.lines {
		log.Printf("display: | %-*s |", width, l)
	}
	log.Printf("display: %s", border)
	return StatusOK
}
