package sched

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFired(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not fire")
	}
}

func TestTaskCollapsesBurst(t *testing.T) {
	fc := clockwork.NewFakeClock()
	fired := make(chan struct{}, 8)
	task := NewTask(fc, 100*time.Millisecond, func() { fired <- struct{}{} })

	for i := 0; i < 5; i++ {
		task.Schedule()
		fc.Advance(40 * time.Millisecond)
	}
	assert.True(t, task.Pending())
	assert.Zero(t, task.Runs())

	fc.Advance(100 * time.Millisecond)
	waitFired(t, fired)
	assert.Equal(t, uint64(1), task.Runs())
	assert.False(t, task.Pending())
}

func TestTaskCancel(t *testing.T) {
	fc := clockwork.NewFakeClock()
	var calls int32
	task := NewTask(fc, 10*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })

	assert.False(t, task.Cancel(), "nothing armed yet")
	task.Schedule()
	require.True(t, task.Cancel())
	fc.Advance(time.Second)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&calls))
	assert.Zero(t, task.Runs())
}

func TestTaskCanBeReused(t *testing.T) {
	fc := clockwork.NewFakeClock()
	fired := make(chan struct{}, 8)
	task := NewTask(fc, 10*time.Millisecond, func() { fired <- struct{}{} })

	task.Schedule()
	fc.Advance(10 * time.Millisecond)
	waitFired(t, fired)

	task.Schedule()
	fc.Advance(10 * time.Millisecond)
	waitFired(t, fired)
	assert.Equal(t, uint64(2), task.Runs())
}

func TestTaskStaleGenerationIsIgnored(t *testing.T) {
	var calls int32
	task := NewTask(clockwork.NewFakeClock(), time.Hour, func() { atomic.AddInt32(&calls, 1) })
	task.Schedule()
	task.Schedule()

	// A callback from the first arming arrives after it was superseded.
	task.fire(1)
	assert.Zero(t, atomic.LoadInt32(&calls))
	assert.True(t, task.Pending())

	task.fire(2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
