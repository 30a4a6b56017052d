package render

import "time"

// Clock turns frame timestamps into elapsed seconds since the first frame.
// The value never decreases, even if the host delivers a timestamp that is
// earlier than the previous one.
type Clock struct {
	origin  time.Duration
	started bool
	last    float32
}

// Advance records frame timestamp t and returns the elapsed seconds.
func (c *Clock) Advance(t time.Duration) float32 {
	if !c.started {
		c.origin = t
		c.started = true
	}
	secs := float32((t - c.origin).Seconds())
	if secs < c.last {
		secs = c.last
	}
	c.last = secs
	return secs
}
