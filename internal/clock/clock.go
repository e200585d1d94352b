package clock

import (
	"sync/atomic"
	"time"
)

// Clock supplies engine time. Observe is called once per processed event with the
// exchange timestamp carried by that event, if any.
type Clock interface {
	Time() time.Time
	Observe(ts time.Time)
}

var (
	_ Clock = Live{}
	_ Clock = (*Historical)(nil)
)

// Live reports wall time and ignores event timestamps.
type Live struct{}

// Time returns the current UTC wall time.
func (Live) Time() time.Time {
	return time.Now().UTC()
}

// Observe is a no-op for the live clock.
func (Live) Observe(time.Time) {}

// Historical reports the latest exchange timestamp observed. It never moves
// backwards, so an out-of-order event does not rewind engine time.
type Historical struct {
	now atomic.Int64
}

// NewHistorical creates a historical clock starting at start.
func NewHistorical(start time.Time) *Historical {
	c := &Historical{}
	c.now.Store(start.UnixNano())
	return c
}

// Time returns the latest observed timestamp.
func (c *Historical) Time() time.Time {
	return time.Unix(0, c.now.Load()).UTC()
}

// Observe advances the clock to ts when ts is later than the current time.
func (c *Historical) Observe(ts time.Time) {
	if ts.IsZero() {
		return
	}
	next := ts.UnixNano()
	for {
		cur := c.now.Load()
		if next <= cur {
			return
		}
		if c.now.CompareAndSwap(cur, next) {
			return
		}
	}
}
