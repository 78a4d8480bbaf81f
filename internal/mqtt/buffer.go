package mqtt

import "log"

// queuedMsg stores a serialized MQTT message for replay after reconnection.
type queuedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a fixed-capacity FIFO that holds messages while the broker is
// unreachable. When full, the oldest message is dropped: a late heartbeat is
// worthless but the most recent emergency event must survive. Not safe for
// concurrent use; callers hold the publisher mutex.
type outbox struct {
	msgs     []queuedMsg
	capacity int
	head     int // next write position
	count    int
	dropped  int // messages dropped since last drain
}

func newOutbox(capacity int) *outbox {
	return &outbox{
		msgs:     make([]queuedMsg, capacity),
		capacity: capacity,
	}
}

func (o *outbox) push(msg queuedMsg) {
	if o.count == o.capacity {
		if o.dropped == 0 {
			log.Printf("mqtt: outbox full (%d messages), dropping oldest", o.capacity)
		}
		o.dropped++
		// Overwrite oldest: head is already pointing at it
		o.msgs[o.head] = msg
		o.head = (o.head + 1) % o.capacity
		// count stays at capacity
		return
	}
	o.msgs[o.head] = msg
	o.head = (o.head + 1) % o.capacity
	o.count++
}

func (o *outbox) drainAll() []queuedMsg {
	if o.count == 0 {
		return nil
	}

	result := make([]queuedMsg, o.count)
	// Oldest item is at (head - count) mod capacity
	start := (o.head - o.count + o.capacity) % o.capacity
	for i := 0; i < o.count; i++ {
		result[i] = o.msgs[(start+i)%o.capacity]
	}

	o.count = 0
	o.head = 0
	o.dropped = 0
	return result
}

func (o *outbox) len() int {
	return o.count
}
