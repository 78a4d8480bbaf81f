package input

import "log"

// QueueSize is the fixed capacity of the event queue.
const QueueSize = 16

// Queue is a fixed-capacity FIFO of input events. A full queue rejects new
// events rather than overwriting old ones, so earlier events are never lost
// to later ones.
type Queue struct {
	buf     [QueueSize]Event
	head    int
	tail    int
	count   int
	dropped int
}

// Push appends ev. It reports false when the queue is full and ev was
// dropped.
func (q *Queue) Push(ev Event) bool {
	if q.count == QueueSize {
		q.dropped++
		log.Printf("input: event queue full, dropping %s", ev.Type)
		return false
	}
	q.buf[q.head] = ev
	q.head = (q.head + 1) % QueueSize
	q.count++
	return true
}

// Pop removes and returns the oldest event.
func (q *Queue) Pop() (Event, bool) {
	if q.count == 0 {
		return Event{}, false
	}
	ev := q.buf[q.tail]
	q.tail = (q.tail + 1) % QueueSize
	q.count--
	return ev, true
}

// Len returns the number of queued events.
func (q *Queue) Len() int { return q.count }

// Dropped returns how many events have been rejected since startup.
func (q *Queue) Dropped() int { return q.dropped }

// Clear discards all queued events. The dropped counter is retained.
func (q *Queue) Clear() {
	q.head = 0
	q.tail = 0
	q.count = 0
}
