package node

import (
	"sort"
	"sync"
	"time"
)

// Task is a pending delayed call.
type Task interface {
	// Stop cancels the call. It returns false if the call already ran or was
	// already stopped.
	Stop() bool
}

// Clock tells the time and schedules delayed calls. Production code uses the
// wall clock; tests drive a ManualClock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Task
}

type realClock struct{}

// NewRealClock returns a Clock backed by the time package.
func NewRealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Task {
	return time.AfterFunc(d, f)
}

// ManualClock is a Clock whose time only moves when Advance is called. Due
// calls run synchronously inside Advance, in order of their due time.
type ManualClock struct {
	sync.Mutex
	now   time.Time
	seq   uint64
	tasks []*manualTask
}

type manualTask struct {
	clock   *ManualClock
	at      time.Time
	seq     uint64
	f       func()
	stopped bool
	fired   bool
}

// NewManualClock creates a ManualClock set to start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now implements the Clock interface.
func (c *ManualClock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	return c.now
}

// AfterFunc implements the Clock interface.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) Task {
	c.Lock()
	defer c.Unlock()

	c.seq++
	t := &manualTask{
		clock: c,
		at:    c.now.Add(d),
		seq:   c.seq,
		f:     f,
	}
	c.tasks = append(c.tasks, t)

	return t
}

// Advance moves the clock forward by d, running every call that falls due on
// the way. Calls scheduled by those calls run too if they are due before the
// new time.
func (c *ManualClock) Advance(d time.Duration) {
	c.Lock()
	target := c.now.Add(d)
	c.Unlock()

	for {
		c.Lock()
		next := c.popDue(target)
		if next == nil {
			c.now = target
			c.Unlock()
			return
		}
		c.now = next.at
		next.fired = true
		c.Unlock()

		next.f()
	}
}

// Pending returns the number of calls waiting to run.
func (c *ManualClock) Pending() int {
	c.Lock()
	defer c.Unlock()
	return len(c.tasks)
}

// popDue removes and returns the earliest call due at or before target.
func (c *ManualClock) popDue(target time.Time) *manualTask {
	if len(c.tasks) == 0 {
		return nil
	}

	sort.SliceStable(c.tasks, func(i, j int) bool {
		if c.tasks[i].at.Equal(c.tasks[j].at) {
			return c.tasks[i].seq < c.tasks[j].seq
		}
		return c.tasks[i].at.Before(c.tasks[j].at)
	})

	first := c.tasks[0]
	if first.at.After(target) {
		return nil
	}
	c.tasks = c.tasks[1:]

	return first
}

func (t *manualTask) Stop() bool {
	c := t.clock
	c.Lock()
	defer c.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true

	for i, o := range c.tasks {
		if o == t {
			c.tasks = append(c.tasks[:i], c.tasks[i+1:]...)
			break
		}
	}

	return true
}

// RecurringTask runs a function over and over on a Clock. The function
// returns the delay before its next run, so each run picks its own cadence.
// No goroutine waits between runs.
type RecurringTask struct {
	sync.Mutex
	clock   Clock
	fn      func() time.Duration
	task    Task
	started bool
	stopped bool
}

// NewRecurringTask creates a stopped RecurringTask.
func NewRecurringTask(clock Clock, fn func() time.Duration) *RecurringTask {
	return &RecurringTask{
		clock: clock,
		fn:    fn,
	}
}

// Start schedules the first run after init. Only the first call has an
// effect.
func (r *RecurringTask) Start(init time.Duration) {
	r.Lock()
	defer r.Unlock()

	if r.started || r.stopped {
		return
	}
	r.started = true
	r.task = r.clock.AfterFunc(init, r.run)
}

func (r *RecurringTask) run() {
	r.Lock()
	if r.stopped {
		r.Unlock()
		return
	}
	r.Unlock()

	next := r.fn()

	r.Lock()
	defer r.Unlock()
	if r.stopped {
		return
	}
	r.task = r.clock.AfterFunc(next, r.run)
}

// Stop cancels the pending run. A run in progress completes but does not
// reschedule.
func (r *RecurringTask) Stop() {
	r.Lock()
	defer r.Unlock()

	r.stopped = true
	if r.task != nil {
		r.task.Stop()
	}
}

// Stopped reports whether Stop was called.
func (r *RecurringTask) Stopped() bool {
	r.Lock()
	defer r.Unlock()
	return r.stopped
}
