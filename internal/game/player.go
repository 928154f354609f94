package game

import (
	"sync/atomic"
	"time"

	"github.com/schwolf/livebingo/internal/bingo"
	"github.com/schwolf/livebingo/internal/notify"
)

// Player is one roster entry. Identity is the user ID. The valid flag is
// read by notification tasks without the game lock: it flips to false the
// moment the player is kicked so queued work can detect staleness.
type Player struct {
	id      int64
	card    *bingo.Card
	channel notify.Channel
	valid   atomic.Bool

	// Rejection bookkeeping for the call-request rate limit. Only touched
	// while the game lock is held.
	rejections    int
	lastRejection time.Time
}

func newPlayer(id int64, card *bingo.Card) *Player {
	p := &Player{id: id, card: card}
	p.valid.Store(true)
	return p
}

// ID returns the stable user ID.
func (p *Player) ID() int64 {
	return p.id
}

// Name returns the display name the player joined with.
func (p *Player) Name() string {
	return p.card.Owner()
}

// Card returns the player's board.
func (p *Player) Card() *bingo.Card {
	return p.card
}

// Channel returns the player's notification channel, nil until assigned.
func (p *Player) Channel() notify.Channel {
	return p.channel
}

// SetChannel binds the player's notification channel.
func (p *Player) SetChannel(ch notify.Channel) {
	p.channel = ch
}

// Valid reports whether the player is still part of the game.
func (p *Player) Valid() bool {
	return p.valid.Load()
}

func (p *Player) invalidate() {
	p.valid.Store(false)
}

// Rejections returns how many of the player's call requests have been
// rejected since the counter last reset.
func (p *Player) Rejections() int {
	return p.rejections
}

func (p *Player) recordRejection(now time.Time) {
	p.rejections++
	p.lastRejection = now
}

// allowedRequest applies the rejection rate limit: once the player has
// accumulated limit rejections, further requests are blocked until cooldown
// has elapsed, at which point the counter resets. A non-positive limit
// disables the check.
func (p *Player) allowedRequest(limit int, cooldown time.Duration, now time.Time) bool {
	if limit <= 0 || p.rejections < limit {
		return true
	}
	if now.Sub(p.lastRejection) >= cooldown {
		p.rejections = 0
		p.lastRejection = time.Time{}
		return true
	}
	return false
}
