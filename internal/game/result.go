package game

import (
	"fmt"

	"github.com/schwolf/livebingo/internal/bingo"
)

// Result is the structured outcome every game action returns. Precondition
// violations are reported here, never as errors or panics across the
// boundary.
type Result struct {
	OK     bool
	Reason string
}

// Fail builds a failed result for callers layered above the game.
func Fail(reason string) Result {
	return Result{OK: false, Reason: reason}
}

func okf(format string, args ...any) Result {
	return Result{OK: true, Reason: fmt.Sprintf(format, args...)}
}

func failf(format string, args ...any) Result {
	return Result{OK: false, Reason: fmt.Sprintf(format, args...)}
}

// AddPlayerResult carries the new player and, when card generation collided
// with an existing card, a warning naming the colliding owners.
type AddPlayerResult struct {
	Result
	Player  *Player
	Warning string
}

// KickResult carries the removed player. Player is nil when a debug-mode
// kick targeted an ID with no active roster entry.
type KickResult struct {
	Result
	Player *Player
}

// CallResult carries the called slot, the players whose boards changed and
// the subset that newly achieved bingo.
type CallResult struct {
	Result
	Bing      bingo.Bing
	Marked    []*Player
	NewBingos []*Player
}

// RequestResult carries the surviving call request, which is either the
// freshly added one or the existing one the request merged into.
type RequestResult struct {
	Result
	Request *CallRequest
}
