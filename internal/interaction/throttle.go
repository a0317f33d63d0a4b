package interaction

import (
	"sync"
	"time"

	"github.com/inamate/whiteboard/internal/geometry"
)

// CursorInterval is the minimum spacing between cursor broadcasts.
const CursorInterval = 50 * time.Millisecond

// CursorThrottle forwards at most one cursor position per interval. The
// first position in a quiet period is sent immediately; positions arriving
// while the window is closed overwrite each other and only the latest is
// sent when it reopens. Nothing is queued.
type CursorThrottle struct {
	mu       sync.Mutex
	interval time.Duration
	send     func(geometry.Point)

	blocked bool
	pending bool
	latest  geometry.Point
	timer   *time.Timer
	stopped bool
}

func NewCursorThrottle(interval time.Duration, send func(geometry.Point)) *CursorThrottle {
	if interval <= 0 {
		interval = CursorInterval
	}
	return &CursorThrottle{interval: interval, send: send}
}

// Update offers a new cursor position.
func (c *CursorThrottle) Update(p geometry.Point) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	if c.blocked {
		c.latest = p
		c.pending = true
		c.mu.Unlock()
		return
	}
	c.blocked = true
	c.timer = time.AfterFunc(c.interval, c.release)
	c.mu.Unlock()

	c.send(p)
}

func (c *CursorThrottle) release() {
	c.mu.Lock()
	if c.stopped || !c.pending {
		c.blocked = false
		c.mu.Unlock()
		return
	}
	p := c.latest
	c.pending = false
	c.timer = time.AfterFunc(c.interval, c.release)
	c.mu.Unlock()

	c.send(p)
}

// Cancel drops any pending position without stopping the throttle.
func (c *CursorThrottle) Cancel() {
	c.mu.Lock()
	c.pending = false
	c.mu.Unlock()
}

// Stop drops any pending position and disables the throttle.
func (c *CursorThrottle) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.pending = false
	if c.timer != nil {
		c.timer.Stop()
	}
}
