package task

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/schwolf/livebingo/internal/runloop"
)

// DefaultExecTimeout bounds how long the worker waits for the run loop to
// finish one delivery before moving on.
const DefaultExecTimeout = 10 * time.Second

// sentinel unblocks the worker's dequeue during shutdown. It carries no
// player and is never executed.
var sentinel = &Task{}

// Processor owns the task queue and its worker goroutine. Producers call
// Add from any goroutine; execution happens on the notification run loop,
// one task at a time, bounded by the exec timeout.
//
// While paused the worker dequeues nothing, so every queued task stays
// visible to coalescing until the gate reopens. A task already in flight
// when Pause is called runs to completion.
type Processor struct {
	logger  *log.Logger
	loop    *runloop.Loop
	clock   quartz.Clock
	timeout time.Duration

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*Task
	pending map[string][]*Task
	paused  bool

	running atomic.Bool
	done    chan struct{}
}

// New constructs a processor delivering through the given run loop. A
// non-positive timeout falls back to DefaultExecTimeout.
func New(logger *log.Logger, loop *runloop.Loop, clock quartz.Clock, timeout time.Duration) *Processor {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	p := &Processor{
		logger:  logger.WithPrefix("tasks"),
		loop:    loop,
		clock:   clock,
		timeout: timeout,
		pending: make(map[string][]*Task),
		done:    make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start launches the worker goroutine. Starting twice is a no-op.
func (p *Processor) Start() {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	go p.worker()
}

// Stop shuts the processor down: no new tasks are accepted, the gate opens,
// a sentinel unblocks the dequeue and the worker drains what was already
// queued (each delivery still bounded by the exec timeout) before exiting.
// Stop blocks until the worker is done.
func (p *Processor) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	p.logger.Debug("Task processor signaled to shut down")

	p.mu.Lock()
	p.paused = false
	p.queue = append(p.queue, sentinel)
	p.mu.Unlock()
	p.cond.Broadcast()

	<-p.done
}

// Add enqueues a task unless an equivalent one is already queued: a new
// ChangeState supersedes everything pending for its player, a duplicate
// Update is dropped. Ignored once the processor is stopped.
func (p *Processor) Add(t *Task) {
	if !p.running.Load() {
		return
	}

	p.mu.Lock()
	key := t.Key()
	list, queued := p.pending[key]
	add := false
	switch {
	case !queued:
		add = true
		p.pending[key] = []*Task{t}
	case t.Kind() == ChangeState:
		// The player must see the latest state, not a stale one.
		for _, old := range list {
			old.SetNoOp()
		}
		add = true
		p.pending[key] = append(list, t)
	default:
		p.logger.Debug("Skipping redundant update task", "key", key)
	}
	if add {
		p.logger.Debug("Queued task", "task", t.String())
		p.queue = append(p.queue, t)
	}
	p.mu.Unlock()

	if add {
		p.cond.Signal()
	}
}

// Pause closes the gate: the worker finishes the task in flight, then holds
// before dequeuing the next one.
func (p *Processor) Pause() {
	if !p.running.Load() {
		return
	}
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
}

// Resume opens the gate.
func (p *Processor) Resume() {
	if !p.running.Load() {
		return
	}
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
	p.cond.Broadcast()
}

// QueueLen returns the number of queued tasks, superseded ones included.
func (p *Processor) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Processor) worker() {
	defer close(p.done)
	p.logger.Info("Task processor worker running")

	for {
		t := p.dequeue()
		if t == sentinel {
			break
		}

		if t.NoOp() {
			p.logger.Debug("Skipping superseded task", "task", t.String())
			continue
		}

		if err := p.loop.SubmitWait(t.fn, p.timeout); err != nil {
			// A slow or dead delivery must never stall the queue.
			p.logger.Warn("Task did not complete", "task", t.String(), "error", err)
		}
	}

	p.logger.Info("Task processor worker ended")
}

// dequeue blocks until a task is available and the gate is open. Stop
// clears the pause flag, so the shutdown sentinel always gets through.
func (p *Processor) dequeue() *Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 || p.paused {
		p.cond.Wait()
	}
	t := p.queue[0]
	p.queue = p.queue[1:]
	if t != sentinel {
		p.unpend(t)
	}
	return t
}

// unpend removes the task from its coalescing bucket. Caller holds p.mu.
func (p *Processor) unpend(t *Task) {
	key := t.Key()
	list := p.pending[key]
	for i, queued := range list {
		if queued == t {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(p.pending, key)
	} else {
		p.pending[key] = list
	}
}
