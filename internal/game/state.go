package game

// State is the game lifecycle state. Normal progression is
// New → Idle → Started ⇄ Paused → Stopped → Destroyed.
type State int

const (
	StateNew State = iota
	StateIdle
	StateStarted
	StatePaused
	StateStopped
	StateDestroyed
)

// String returns the state name used in player-facing failure reasons.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateIdle:
		return "idle"
	case StateStarted:
		return "started"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}
