package cmd

import "context"

// serialLoop owns the engine in headless mode: every dispatched function
// runs on the goroutine that called Run, one at a time.
type serialLoop struct {
	work chan func()
	quit chan struct{}
	done chan struct{}
}

func newSerialLoop() *serialLoop {
	return &serialLoop{
		work: make(chan func(), 64),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Dispatch queues f. Work dispatched after the loop exits is dropped.
func (l *serialLoop) Dispatch(f func()) {
	select {
	case l.work <- f:
	case <-l.done:
	}
}

// Quit asks Run to return after the function currently running.
// Call it from inside dispatched work.
func (l *serialLoop) Quit() {
	select {
	case <-l.quit:
	default:
		close(l.quit)
	}
}

// Run executes dispatched work until Quit is called or ctx is cancelled.
func (l *serialLoop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.quit:
			return nil
		case f := <-l.work:
			f()
		}
	}
}
