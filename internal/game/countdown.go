package game

import (
	"sync"
	"time"
)

// Countdown is a cancellable single-shot timer. Each arming completes at most
// once; re-arming replaces the pending arming instead of stacking on it.
type Countdown struct {
	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64
	running  bool
	deadline time.Time
}

// NewCountdown returns a disarmed countdown.
func NewCountdown() *Countdown {
	return &Countdown{}
}

// Arm starts counting down from d and calls onComplete once it reaches zero.
// onComplete runs on its own goroutine.
func (c *Countdown) Arm(d time.Duration, onComplete func()) {
	if d < 0 {
		d = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.gen++
	gen := c.gen
	c.running = true
	c.deadline = time.Now().Add(d)

	c.timer = time.AfterFunc(d, func() {
		c.mu.Lock()
		// A Stop that lost the race with the runtime leaves this callback
		// scheduled; the generation check drops it.
		if c.gen != gen || !c.running {
			c.mu.Unlock()
			return
		}
		c.running = false
		c.timer = nil
		c.mu.Unlock()

		onComplete()
	})
}

// Disarm cancels the pending completion. It reports whether a countdown was running.
func (c *Countdown) Disarm() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasRunning := c.running
	c.stopLocked()
	c.gen++
	return wasRunning
}

// Running reports whether a completion is still pending.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Deadline returns when the armed countdown completes.
func (c *Countdown) Deadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline, c.running
}

// Remaining returns the time left, or zero when disarmed.
func (c *Countdown) Remaining() time.Duration {
	deadline, ok := c.Deadline()
	if !ok {
		return 0
	}
	if left := time.Until(deadline); left > 0 {
		return left
	}
	return 0
}

func (c *Countdown) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.running = false
}
