package timer

import (
	"sync"
	"time"
)

// Controller keeps at most one outstanding deadline for an owner guarded by
// mu. Arm and Disarm must be called with mu held. The scheduled wrapper takes
// mu itself and drops the callback when a newer Arm or a Disarm happened in
// the meantime, so a stale deadline never runs even if the scheduler already
// dequeued it.
type Controller struct {
	scheduler  Scheduler
	mu         sync.Locker
	handle     Handle
	generation uint64
	armed      bool

	// AfterFire, if set, runs with mu still held right after a deadline
	// callback. The function it returns runs once mu is released.
	AfterFire func() func()
}

func NewController(s Scheduler, mu sync.Locker) *Controller {
	return &Controller{scheduler: s, mu: mu}
}

// Arm schedules fn after d, replacing any outstanding deadline.
func (c *Controller) Arm(d time.Duration, fn func()) {
	c.cancel()
	c.generation++
	c.armed = true
	gen := c.generation
	c.handle = c.scheduler.After(d, func() { c.fire(gen, fn) })
}

// Disarm cancels the outstanding deadline, if any.
func (c *Controller) Disarm() {
	c.cancel()
	c.generation++
	c.armed = false
}

func (c *Controller) Armed() bool {
	return c.armed
}

func (c *Controller) cancel() {
	if c.handle != nil {
		c.handle.Cancel()
		c.handle = nil
	}
}

func (c *Controller) fire(gen uint64, fn func()) {
	c.mu.Lock()
	if !c.armed || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.armed = false
	c.handle = nil
	fn()
	var after func()
	if c.AfterFire != nil {
		after = c.AfterFire()
	}
	c.mu.Unlock()

	if after != nil {
		after()
	}
}
