package runloop

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	l := New(log.New(io.Discard), nil, 16)
	l.Start()
	t.Cleanup(l.Stop)
	return l
}

func TestSubmitWaitRunsJob(t *testing.T) {
	t.Parallel()

	l := newTestLoop(t)
	ran := false
	require.NoError(t, l.SubmitWait(func() { ran = true }, time.Second))
	assert.True(t, ran)
}

func TestJobsRunInOrderOnOneGoroutine(t *testing.T) {
	t.Parallel()

	l := newTestLoop(t)
	var mu sync.Mutex
	var order []int

	for i := 0; i < 20; i++ {
		i := i
		require.NoError(t, l.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}

	// A final SubmitWait flushes everything queued before it.
	require.NoError(t, l.SubmitWait(func() {}, time.Second))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 20)
	for i, got := range order {
		assert.Equal(t, i, got)
	}
}

func TestSubmitWaitTimeout(t *testing.T) {
	t.Parallel()

	l := newTestLoop(t)
	block := make(chan struct{})
	require.NoError(t, l.Submit(func() { <-block }))

	err := l.SubmitWait(func() {}, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	close(block)
}

func TestPanickingJobDoesNotKillLoop(t *testing.T) {
	t.Parallel()

	l := newTestLoop(t)
	_ = l.SubmitWait(func() { panic("boom") }, time.Second)

	ran := false
	require.NoError(t, l.SubmitWait(func() { ran = true }, time.Second))
	assert.True(t, ran)
}

func TestStoppedLoopRejectsJobs(t *testing.T) {
	t.Parallel()

	l := New(log.New(io.Discard), nil, 4)
	l.Start()
	l.Stop()

	assert.ErrorIs(t, l.Submit(func() {}), ErrStopped)
	assert.ErrorIs(t, l.SubmitWait(func() {}, time.Second), ErrStopped)
	l.Stop() // idempotent
}

func TestTrySubmitNeverBlocks(t *testing.T) {
	t.Parallel()

	l := New(log.New(io.Discard), nil, 1)
	l.Start()
	defer l.Stop()

	block := make(chan struct{})
	require.NoError(t, l.Submit(func() { <-block }))

	// Fill the queue, then expect ErrBusy instead of a blocked caller.
	for {
		if err := l.TrySubmit(func() {}); err != nil {
			assert.ErrorIs(t, err, ErrBusy)
			break
		}
	}
	close(block)
}
