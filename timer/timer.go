// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

// Handle cancels a scheduled callback. Cancel after the callback ran is a no-op.
type Handle interface {
	Cancel()
}

// Scheduler runs fn once after d.
type Scheduler interface {
	After(d time.Duration, fn func()) Handle
}

type TimerTask struct {
	Id       int64
	Execute  time.Time
	Interval time.Duration
	Callback func()
	index    int
}

type TimerQueue []*TimerTask

func (q TimerQueue) Len() int { return len(q) }

func (q TimerQueue) Less(i, j int) bool {
	if q[i].Execute.Equal(q[j].Execute) {
		return q[i].Id < q[j].Id
	}
	return q[i].Execute.Before(q[j].Execute)
}

func (q TimerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *TimerQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*TimerTask)
	task.index = n
	*q = append(*q, task)
}

func (q *TimerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// TimerManager is a heap of pending tasks drained by a ticker goroutine.
type TimerManager struct {
	queue      TimerQueue
	mutex      sync.Mutex
	nextId     int64
	resolution time.Duration
	now        func() time.Time
	done       chan struct{}
	stopOnce   sync.Once
}

const DefaultResolution = 10 * time.Millisecond

func NewTimerManager() *TimerManager {
	return NewTimerManagerWithResolution(DefaultResolution)
}

func NewTimerManagerWithResolution(resolution time.Duration) *TimerManager {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	manager := &TimerManager{
		queue:      make(TimerQueue, 0),
		nextId:     1,
		resolution: resolution,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	heap.Init(&manager.queue)
	go manager.process()
	return manager
}

// AddTimer schedules callback after delay, repeating every interval when interval > 0.
func (m *TimerManager) AddTimer(delay time.Duration, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task := &TimerTask{
		Id:       m.nextId,
		Execute:  m.now().Add(delay),
		Interval: interval,
		Callback: callback,
	}
	m.nextId++

	heap.Push(&m.queue, task)
	return task.Id
}

func (m *TimerManager) RemoveTimer(timerId int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, task := range m.queue {
		if task.Id == timerId {
			heap.Remove(&m.queue, i)
			break
		}
	}
}

// After implements Scheduler with a one-shot task.
func (m *TimerManager) After(d time.Duration, fn func()) Handle {
	return managerHandle{m: m, id: m.AddTimer(d, 0, fn)}
}

func (m *TimerManager) Pending() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queue.Len()
}

// Stop ends the processing goroutine. Pending tasks never fire.
func (m *TimerManager) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

type managerHandle struct {
	m  *TimerManager
	id int64
}

func (h managerHandle) Cancel() { h.m.RemoveTimer(h.id) }

func (m *TimerManager) process() {
	ticker := time.NewTicker(m.resolution)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			for _, task := range m.due() {
				go task.Callback()
			}
		}
	}
}

// due pops every task whose time has come and reschedules repeating ones.
func (m *TimerManager) due() []*TimerTask {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := m.now()
	var ready []*TimerTask
	for m.queue.Len() > 0 {
		task := m.queue[0]
		if task.Execute.After(now) {
			break
		}
		heap.Pop(&m.queue)
		ready = append(ready, task)

		if task.Interval > 0 {
			next := *task
			next.Execute = now.Add(task.Interval)
			heap.Push(&m.queue, &next)
		}
	}
	return ready
}
