package node

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualClockOrder(t *testing.T) {
	clock := NewManualClock(epoch)

	var ran []int
	clock.AfterFunc(3*time.Second, func() { ran = append(ran, 3) })
	clock.AfterFunc(1*time.Second, func() { ran = append(ran, 1) })
	clock.AfterFunc(2*time.Second, func() { ran = append(ran, 2) })

	clock.Advance(2 * time.Second)
	assert.Equal(t, []int{1, 2}, ran)
	assert.Equal(t, epoch.Add(2*time.Second), clock.Now())
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(time.Second)
	assert.Equal(t, []int{1, 2, 3}, ran)
	assert.Equal(t, 0, clock.Pending())
}

func TestManualClockNowDuringCall(t *testing.T) {
	clock := NewManualClock(epoch)

	var seen time.Time
	clock.AfterFunc(time.Second, func() { seen = clock.Now() })
	clock.Advance(time.Minute)

	assert.Equal(t, epoch.Add(time.Second), seen)
	assert.Equal(t, epoch.Add(time.Minute), clock.Now())
}

func TestManualClockStop(t *testing.T) {
	clock := NewManualClock(epoch)

	ran := false
	task := clock.AfterFunc(time.Second, func() { ran = true })

	assert.True(t, task.Stop())
	assert.False(t, task.Stop())

	clock.Advance(time.Hour)
	assert.False(t, ran)

	fired := clock.AfterFunc(0, func() {})
	clock.Advance(0)
	assert.False(t, fired.Stop())
}

func TestRecurringTaskCadence(t *testing.T) {
	clock := NewManualClock(epoch)

	var runs []time.Time
	task := NewRecurringTask(clock, func() time.Duration {
		runs = append(runs, clock.Now())
		if len(runs) < 3 {
			return time.Second
		}
		return 30 * time.Second
	})
	task.Start(0)
	task.Start(0)

	clock.Advance(0)
	require.Len(t, runs, 1)

	clock.Advance(2 * time.Second)
	require.Len(t, runs, 3)

	clock.Advance(29 * time.Second)
	require.Len(t, runs, 3)

	clock.Advance(time.Second)
	require.Len(t, runs, 4)

	assert.Equal(t, []time.Time{
		epoch,
		epoch.Add(time.Second),
		epoch.Add(2 * time.Second),
		epoch.Add(32 * time.Second),
	}, runs)
}

func TestRecurringTaskStop(t *testing.T) {
	clock := NewManualClock(epoch)

	n := 0
	var task *RecurringTask
	task = NewRecurringTask(clock, func() time.Duration {
		n++
		if n == 2 {
			task.Stop()
		}
		return time.Second
	})
	task.Start(time.Second)

	clock.Advance(10 * time.Second)
	assert.Equal(t, 2, n)
	assert.True(t, task.Stopped())
	assert.Equal(t, 0, clock.Pending())
}

func TestRecurringTaskRealClock(t *testing.T) {
	var l sync.Mutex
	n := 0
	done := make(chan struct{})

	task := NewRecurringTask(NewRealClock(), func() time.Duration {
		l.Lock()
		defer l.Unlock()
		n++
		if n == 3 {
			close(done)
		}
		return time.Millisecond
	})
	task.Start(time.Millisecond)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("recurring task did not run 3 times")
	}
	task.Stop()
}
