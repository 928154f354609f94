package task

import (
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schwolf/livebingo/internal/runloop"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func newHarness(t *testing.T, timeout time.Duration) (*Processor, *runloop.Loop) {
	t.Helper()
	loop := runloop.New(testLogger(), nil, 0)
	loop.Start()
	t.Cleanup(loop.Stop)

	p := New(testLogger(), loop, nil, timeout)
	p.Start()
	t.Cleanup(p.Stop)
	return p, loop
}

// trace records execution labels across goroutines.
type trace struct {
	mu  sync.Mutex
	got []string
}

func (tr *trace) add(s string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.got = append(tr.got, s)
}

func (tr *trace) snapshot() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.got...)
}

func TestExecutesInOrder(t *testing.T) {
	p, _ := newHarness(t, time.Second)

	var tr trace
	p.Add(NewChangeState(1, "alice", "started", func() { tr.add("a") }))
	p.Add(NewChangeState(2, "bob", "started", func() { tr.add("b") }))
	p.Add(NewChangeState(3, "carol", "started", func() { tr.add("c") }))

	require.Eventually(t, func() bool { return len(tr.snapshot()) == 3 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, tr.snapshot())
}

func TestChangeStateSupersedes(t *testing.T) {
	p, _ := newHarness(t, time.Second)
	p.Pause()

	var tr trace
	p.Add(NewChangeState(7, "alice", "started", func() { tr.add("started") }))
	p.Add(NewChangeState(7, "alice", "stopped", func() { tr.add("stopped") }))
	p.Resume()

	// The stale transition is skipped; only the newest runs.
	require.Eventually(t, func() bool { return p.QueueLen() == 0 }, 2*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return len(tr.snapshot()) == 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, []string{"stopped"}, tr.snapshot())
}

func TestUpdateDeduplicated(t *testing.T) {
	p, _ := newHarness(t, time.Second)
	p.Pause()

	var runs atomic.Int32
	p.Add(NewUpdate(7, "alice", func() { runs.Add(1) }))
	p.Add(NewUpdate(7, "alice", func() { runs.Add(1) }))
	p.Add(NewUpdate(8, "bob", func() { runs.Add(1) }))

	assert.Equal(t, 2, p.QueueLen())

	p.Resume()
	require.Eventually(t, func() bool { return runs.Load() == 2 }, 2*time.Second, time.Millisecond)
}

func TestUpdateRequeuesAfterExecution(t *testing.T) {
	p, _ := newHarness(t, time.Second)

	var runs atomic.Int32
	p.Add(NewUpdate(7, "alice", func() { runs.Add(1) }))
	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, time.Millisecond)

	p.Add(NewUpdate(7, "alice", func() { runs.Add(1) }))
	require.Eventually(t, func() bool { return runs.Load() == 2 }, 2*time.Second, time.Millisecond)
}

func TestPauseHoldsExecution(t *testing.T) {
	p, _ := newHarness(t, time.Second)
	p.Pause()

	var runs atomic.Int32
	p.Add(NewUpdate(7, "alice", func() { runs.Add(1) }))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())

	p.Resume()
	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, time.Millisecond)
}

func TestStopDrainsQueue(t *testing.T) {
	loop := runloop.New(testLogger(), nil, 0)
	loop.Start()
	defer loop.Stop()

	p := New(testLogger(), loop, nil, time.Second)
	p.Start()
	p.Pause()

	var runs atomic.Int32
	for i := int64(1); i <= 5; i++ {
		p.Add(NewUpdate(i, "player", func() { runs.Add(1) }))
	}

	p.Stop()
	assert.Equal(t, int32(5), runs.Load())

	// Rejected after shutdown.
	p.Add(NewUpdate(9, "late", func() { runs.Add(1) }))
	assert.Equal(t, 0, p.QueueLen())
}

func TestSlowTaskDoesNotStallQueue(t *testing.T) {
	p, _ := newHarness(t, 10*time.Millisecond)

	release := make(chan struct{})
	var second atomic.Bool
	p.Add(NewUpdate(1, "slow", func() { <-release }))
	p.Add(NewUpdate(2, "fast", func() { second.Store(true) }))

	// The worker gives up on the blocked delivery; once the loop frees
	// up the next task still goes through.
	time.Sleep(50 * time.Millisecond)
	close(release)

	require.Eventually(t, func() bool { return second.Load() }, 2*time.Second, time.Millisecond)
}
