// Package sched provides a cancellable, fire-once scheduled task used to
// debounce bursts of work.
package sched

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Task runs fn once, delay after the most recent Schedule call. Calls to
// Schedule during the quiet period push the deadline back, so a burst of
// calls collapses into a single run.
type Task struct {
	clock clockwork.Clock
	delay time.Duration
	fn    func()

	mu    sync.Mutex
	timer clockwork.Timer
	gen   uint64
	runs  uint64
}

// NewTask creates a task. A nil clock means the real clock.
func NewTask(clock clockwork.Clock, delay time.Duration, fn func()) *Task {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Task{clock: clock, delay: delay, fn: fn}
}

// Schedule (re)arms the task.
func (t *Task) Schedule() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = t.clock.AfterFunc(t.delay, func() { t.fire(gen) })
}

// Cancel disarms a pending run. It reports whether a run was pending.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer == nil {
		return false
	}
	t.timer.Stop()
	t.timer = nil
	t.gen++
	return true
}

// Pending reports whether a run is armed.
func (t *Task) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

// Runs returns how many times fn has fired.
func (t *Task) Runs() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}

func (t *Task) fire(gen uint64) {
	t.mu.Lock()
	// A timer that was stopped after it had already expired can still call
	// in; only the latest generation may run.
	if gen != t.gen || t.timer == nil {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.runs++
	t.mu.Unlock()

	t.fn()
}
