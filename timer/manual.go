package timer

import (
	"container/heap"
	"sync"
	"time"
)

// ManualClock is a Scheduler driven by Advance instead of wall time.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	queue  TimerQueue
	nextId int64
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start, nextId: 1}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) After(d time.Duration, fn func()) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	task := &TimerTask{Id: c.nextId, Execute: c.now.Add(d), Callback: fn}
	c.nextId++
	heap.Push(&c.queue, task)
	return manualHandle{c: c, id: task.Id}
}

// Advance moves the clock forward by d, running every task that falls due in
// order. Callbacks run without the clock's lock held and may schedule more
// work; tasks scheduled inside the window also run.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		if c.queue.Len() == 0 || c.queue[0].Execute.After(target) {
			c.now = target
			c.mu.Unlock()
			return
		}
		task := heap.Pop(&c.queue).(*TimerTask)
		if task.Execute.After(c.now) {
			c.now = task.Execute
		}
		c.mu.Unlock()

		task.Callback()
	}
}

// Pending reports how many tasks are still queued.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Len()
}

type manualHandle struct {
	c  *ManualClock
	id int64
}

func (h manualHandle) Cancel() {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	for i, task := range h.c.queue {
		if task.Id == h.id {
			heap.Remove(&h.c.queue, i)
			return
		}
	}
}
