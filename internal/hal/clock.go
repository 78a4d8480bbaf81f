package hal

import "time"

// SystemClock derives millisecond ticks from the monotonic clock, starting
// at zero when constructed. Ticks wraps roughly every 49.7 days.
type SystemClock struct {
	start time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Ticks() uint32 {
	return uint32(time.Since(c.start) / time.Millisecond)
}

func (c *SystemClock) Sleep(ms uint32) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}
