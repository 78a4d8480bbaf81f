package input

import (
	"log"
	"strconv"
	"strings"

	"github.com/mercer/diag-rig/internal/hal"
)

// ProcessCommand parses one console command line at the given tick. The raw
// text is recorded as a command event before dispatch, whether or not it
// parses. Commands are case sensitive:
//
//	STOP | EMERGENCY     trigger the emergency listeners
//	STATUS               request a status dump
//	RESET                acknowledged, no action
//	CHANNEL <n> ON|OFF   set a diagnostic channel
func (e *Engine) ProcessCommand(now uint32, port int, text string) {
	if !e.enabled {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	log.Printf("input: port %d command %q", port, text)

	e.queue.Push(Event{Tick: now, Type: EventCommand, Command: text, Port: port})
	e.counts.Commands++

	fields := strings.Fields(text)
	switch fields[0] {
	case "STOP", "EMERGENCY":
		e.fireEmergency()
	case "STATUS":
		if e.statusFn != nil {
			e.statusFn()
		}
	case "RESET":
		log.Printf("input: reset acknowledged")
	case "CHANNEL":
		e.channelCommand(fields)
	default:
		log.Printf("input: unknown command %q", fields[0])
	}
}

func (e *Engine) channelCommand(fields []string) {
	if len(fields) != 3 {
		log.Printf("input: malformed channel command")
		return
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		log.Printf("input: bad channel number %q", fields[1])
		return
	}
	var on bool
	switch fields[2] {
	case "ON":
		on = true
	case "OFF":
		on = false
	default:
		log.Printf("input: bad channel state %q", fields[2])
		return
	}
	if e.channelFn == nil {
		return
	}
	if st := e.channelFn(n, on); st != hal.StatusOK {
		log.Printf("input: channel %d: %s", n, st)
		return
	}
	log.Printf("input: channel %d %s", n, fields[2])
}
