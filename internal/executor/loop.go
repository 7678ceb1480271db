// Package executor runs closures on a single owner goroutine.
//
// State that is only ever touched from inside a Loop needs no locking; other
// goroutines hand work to the owner with Post (fire and forget) or Exec
// (wait for completion).
package executor

import (
	"errors"
	"sync"
)

// ErrClosed is returned when work is submitted to a closed loop.
var ErrClosed = errors.New("executor: loop closed")

// Loop is a serial executor backed by one goroutine.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

// NewLoop starts a loop.
func NewLoop() *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

// Post schedules fn on the owner goroutine without waiting.
// Posting never blocks, so it is safe from inside the loop itself.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.queue = append(l.queue, fn)
	select {
	case l.wake <- struct{}{}:
	default:
	}
	l.mu.Unlock()
	return nil
}

// Exec runs fn on the owner goroutine and waits for it to return.
// Calling Exec from inside the loop deadlocks; use Post there.
func (l *Loop) Exec(fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}

	// accepted work always runs, Close drains the queue first
	<-finished
	return nil
}

// Close stops accepting work, runs what is already queued and waits for
// the owner goroutine to exit. Close is idempotent.
func (l *Loop) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.wake)
	}
	l.mu.Unlock()
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		_, ok := <-l.wake
		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()

			fn()
		}
		if !ok {
			return
		}
	}
}
