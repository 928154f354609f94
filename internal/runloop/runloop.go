// Package runloop provides the single-goroutine run loop all user-visible
// notification I/O funnels through. Producers on other goroutines post a
// (job, completion-signal) pair; the loop executes jobs one at a time in
// arrival order, so deliveries never interleave.
package runloop

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

var (
	// ErrStopped is returned for submissions to a stopped loop.
	ErrStopped = errors.New("runloop: stopped")
	// ErrTimeout is returned when a job did not finish within the caller's
	// wait bound. The job itself still runs to completion on the loop.
	ErrTimeout = errors.New("runloop: job timed out")
	// ErrBusy is returned by TrySubmit when the queue is full.
	ErrBusy = errors.New("runloop: queue full")
)

type job struct {
	fn   func()
	done chan struct{}
}

// Loop is the run loop. The zero value is not usable; construct with New
// and call Start.
type Loop struct {
	logger *log.Logger
	clock  quartz.Clock
	jobs   chan job
	quit   chan struct{}
	done   chan struct{}
}

// New constructs a loop with the given queue depth.
func New(logger *log.Logger, clock quartz.Clock, depth int) *Loop {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if depth <= 0 {
		depth = 256
	}
	return &Loop{
		logger: logger.WithPrefix("runloop"),
		clock:  clock,
		jobs:   make(chan job, depth),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the loop goroutine.
func (l *Loop) Start() {
	go l.run()
}

// Stop shuts the loop down after the job in flight, if any, completes.
// Queued jobs are discarded with their completion signals closed.
func (l *Loop) Stop() {
	select {
	case <-l.quit:
		return
	default:
	}
	close(l.quit)
	<-l.done
}

// Submit posts a job without waiting for it to run.
func (l *Loop) Submit(fn func()) error {
	select {
	case l.jobs <- job{fn: fn, done: make(chan struct{})}:
		return nil
	case <-l.quit:
		return ErrStopped
	}
}

// TrySubmit posts a job if the loop has queue room, without ever blocking.
// Safe to call while holding locks the queued jobs may contend on.
func (l *Loop) TrySubmit(fn func()) error {
	select {
	case <-l.quit:
		return ErrStopped
	default:
	}
	select {
	case l.jobs <- job{fn: fn, done: make(chan struct{})}:
		return nil
	default:
		return ErrBusy
	}
}

// SubmitWait posts a job and blocks until the loop has executed it, bounded
// by the timeout. On timeout the job stays queued and will still run; the
// caller just stops waiting for it.
func (l *Loop) SubmitWait(fn func(), timeout time.Duration) error {
	j := job{fn: fn, done: make(chan struct{})}
	select {
	case l.jobs <- j:
	case <-l.quit:
		return ErrStopped
	}

	timedOut := make(chan struct{})
	timer := l.clock.AfterFunc(timeout, func() {
		close(timedOut)
	})
	defer timer.Stop()

	select {
	case <-j.done:
		return nil
	case <-timedOut:
		return ErrTimeout
	case <-l.quit:
		return ErrStopped
	}
}

func (l *Loop) run() {
	defer close(l.done)
	l.logger.Debug("Run loop started")

	for {
		select {
		case j := <-l.jobs:
			l.exec(j)
		case <-l.quit:
			l.drain()
			l.logger.Debug("Run loop stopped")
			return
		}
	}
}

func (l *Loop) exec(j job) {
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			// One delivery's panic must not take the loop down.
			l.logger.Error("Job panicked", "panic", r)
		}
	}()
	j.fn()
}

// drain releases waiters for jobs that will never run.
func (l *Loop) drain() {
	for {
		select {
		case j := <-l.jobs:
			close(j.done)
		default:
			return
		}
	}
}
