// Package task runs per-player notification work on a dedicated worker
// goroutine so slow deliveries never stall the goroutine driving game
// actions. Queued tasks coalesce per (kind, player) so bursty activity
// cannot grow the queue without bound.
package task

import (
	"fmt"
	"sync/atomic"
)

// Kind classifies a task for coalescing.
type Kind int

const (
	// ChangeState tasks transition the player's view (started, paused,
	// kicked, ...). A newer one supersedes everything queued for the
	// player under this kind.
	ChangeState Kind = iota
	// Update tasks refresh view content in place. At most one may be
	// queued per player.
	Update
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case ChangeState:
		return "change-state"
	case Update:
		return "update"
	default:
		return "unknown"
	}
}

// Task is one unit of notification work for one player. The closure holds
// whatever it needs; the task itself only carries identity for coalescing
// and logging.
type Task struct {
	kind       Kind
	playerID   int64
	playerName string
	label      string
	fn         func()
	noop       atomic.Bool
}

// NewChangeState builds a view-transition task. The label names the
// transition for logging.
func NewChangeState(playerID int64, playerName, label string, fn func()) *Task {
	return &Task{kind: ChangeState, playerID: playerID, playerName: playerName, label: label, fn: fn}
}

// NewUpdate builds a content-refresh task.
func NewUpdate(playerID int64, playerName string, fn func()) *Task {
	return &Task{kind: Update, playerID: playerID, playerName: playerName, label: "update", fn: fn}
}

// Kind returns the task's coalescing kind.
func (t *Task) Kind() Kind {
	return t.kind
}

// PlayerID returns the target player's ID.
func (t *Task) PlayerID() int64 {
	return t.playerID
}

// Key is the coalescing key: kind plus target player ID.
func (t *Task) Key() string {
	return fmt.Sprintf("%s/%d", t.kind, t.playerID)
}

// SetNoOp marks the task superseded; the worker will skip it.
func (t *Task) SetNoOp() {
	t.noop.Store(true)
}

// NoOp reports whether the task has been superseded.
func (t *Task) NoOp() bool {
	return t.noop.Load()
}

// String describes the task for logging.
func (t *Task) String() string {
	return fmt.Sprintf("%s task for %q (%d)", t.label, t.playerName, t.playerID)
}
