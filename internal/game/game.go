// Package game implements the authoritative bingo game state machine: the
// player roster, called slots, outstanding call requests and the kick/ban
// lists. Every action validates its preconditions against the current state
// and fails fast without mutation; outcomes cross the boundary as structured
// results, never as panics.
//
// The Game itself is not goroutine safe. Callers serialize access through
// the session layer's per-game lock.
package game

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/schwolf/livebingo/internal/bingo"
	"github.com/schwolf/livebingo/internal/catalog"
)

// cardGenTries bounds how often AddPlayer regenerates a card whose content
// hash collides with an existing player's card.
const cardGenTries = 5

// Config carries the per-game tunables.
type Config struct {
	// Variant names the catalog variant cards draw from.
	Variant string
	// CardSize is the board edge length N.
	CardSize int
	// UseFreeSpace places a pre-marked free slot at the board center.
	UseFreeSpace bool
	// RetroactiveCalls applies all past calls to a late joiner's card.
	RetroactiveCalls bool
	// Debug permits negative user IDs and kicks of unknown IDs.
	Debug bool
	// RejectionLimit blocks a player's requests after this many rejections;
	// non-positive disables the limit.
	RejectionLimit int
	// RejectionCooldown is how long a blocked player waits before the
	// rejection counter resets.
	RejectionCooldown time.Duration
}

// DefaultConfig returns the standard 5x5 game configuration.
func DefaultConfig() Config {
	return Config{
		Variant:           catalog.DefaultVariant,
		CardSize:          5,
		UseFreeSpace:      true,
		RetroactiveCalls:  true,
		RejectionLimit:    3,
		RejectionCooldown: time.Minute,
	}
}

// Game is one session's authoritative state.
type Game struct {
	logger  *log.Logger
	clock   quartz.Clock
	cfg     Config
	catalog *catalog.Catalog
	bans    BanStore
	filter  ContentFilter
	stats   StatsSink
	rng     *rand.Rand

	state    State
	players  map[int64]*Player
	called   map[int]bingo.Bing
	requests []*CallRequest
	kicked   map[int64]struct{}
	bingoed  map[int64]struct{}
}

// New constructs an uninitialized game. The catalog and ban store are
// required; a nil rng falls back to a time-seeded source.
func New(logger *log.Logger, clock quartz.Clock, cat *catalog.Catalog, bans BanStore, filter ContentFilter, cfg Config, rng *rand.Rand) *Game {
	if cat == nil {
		panic("game: nil catalog")
	}
	if bans == nil {
		panic("game: nil ban store")
	}
	if filter == nil {
		filter = AllowAllNames{}
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	g := &Game{
		logger:  logger.WithPrefix("game"),
		clock:   clock,
		cfg:     cfg,
		catalog: cat,
		bans:    bans,
		filter:  filter,
		rng:     rng,
		state:   StateNew,
	}
	g.reset()
	return g
}

// Init binds the stats collaborator and moves the game to idle. Only valid
// once, from the new state.
func (g *Game) Init(stats StatsSink) Result {
	if g.state != StateNew {
		g.logger.Warn("Game has already been initialized, skipping")
		return failf("Game has already been initialized.")
	}
	g.stats = stats
	g.state = StateIdle
	g.logger.Info("Game initialized", "variant", g.cfg.Variant, "cardSize", g.cfg.CardSize)
	return okf("Game initialized successfully.")
}

// Start clears any previous roster, calls and requests and begins a fresh
// game. Valid from idle and paused.
func (g *Game) Start() Result {
	g.logger.Debug("Game is starting")
	if g.state != StateIdle && g.state != StatePaused {
		return failf("Cannot start the bingo game while the game is %s.", g.state)
	}
	g.reset()
	g.state = StateStarted
	g.logger.Info("A new bingo game has been started")
	return okf("A new bingo game has been started.")
}

// Pause halts a started game.
func (g *Game) Pause() Result {
	if g.state != StateStarted {
		ret := failf("Cannot pause the bingo game while the game is %s.", g.state)
		g.logger.Error(ret.Reason)
		return ret
	}
	g.state = StatePaused
	return okf("Bingo game paused.")
}

// Resume continues a paused game.
func (g *Game) Resume() Result {
	if g.state != StatePaused {
		ret := failf("Cannot resume the bingo game while the game is %s.", g.state)
		g.logger.Error(ret.Reason)
		return ret
	}
	g.state = StateStarted
	return okf("Bingo game resumed.")
}

// Stop flushes session stats, clears all session state and moves to
// stopped. Valid from every state except stopped and destroyed.
func (g *Game) Stop() Result {
	g.logger.Debug("Stopping game")
	if g.state == StateStopped || g.state == StateDestroyed {
		return failf("Cannot stop the bingo game while the game is %s.", g.state)
	}

	if g.stats != nil {
		if err := g.stats.UpdateFromPlayers(g.Players()); err != nil {
			// Collaborator failure, the game still stops.
			g.logger.Error("Failed to flush session stats", "error", err)
		}
	}
	g.reset()
	g.state = StateStopped
	g.logger.Info("Bingo game stopped")
	return okf("Bingo game stopped.")
}

// Destroy stops the game first if needed and moves to the terminal state.
// Destroy is idempotent and never fails.
func (g *Game) Destroy() Result {
	if g.state != StateStopped && g.state != StateDestroyed {
		g.Stop()
	}
	g.state = StateDestroyed
	return okf("Bingo game destroyed.")
}

// AddPlayer runs the eligibility gate, generates a unique card and adds the
// player to the roster. A card-ID collision after the retry bound is
// reported as a warning naming the colliding owners but does not block the
// join.
func (g *Game) AddPlayer(id int64, name string) AddPlayerResult {
	if g.state != StateStarted {
		ret := failf("New players cannot be added while the game is %s.", g.state)
		g.logger.Error(ret.Reason)
		return AddPlayerResult{Result: ret}
	}

	if elig := g.CheckEligible(id, name); !elig.OK {
		g.logger.Error(elig.Reason)
		return AddPlayerResult{Result: elig}
	}

	card, collisions := g.generateCard(name)
	if card == nil {
		ret := failf("Could not generate a game card for player %q.", name)
		g.logger.Error(ret.Reason)
		return AddPlayerResult{Result: ret}
	}
	player := newPlayer(id, card)

	if g.cfg.RetroactiveCalls && len(g.called) > 0 {
		g.logger.Info("Applying past calls to new card", "player", name, "calls", len(g.called))
		for index := range g.called {
			card.Mark(index)
		}
	}

	g.players[id] = player

	ret := AddPlayerResult{
		Result: okf("Player %q has been added to the game.", name),
		Player: player,
	}
	g.logger.Info("Player added", "player", name, "id", id, "card", card.ID())

	if len(collisions) > 0 {
		ret.Warning = "Note that this player shares an identical game card with: " + strings.Join(collisions, ", ")
		g.logger.Warn(ret.Warning)
	}
	return ret
}

// KickPlayer removes a player from the roster, records the ID on the kicked
// list, invalidates the player and purges them from outstanding call
// requests. Valid in any state. Unknown IDs fail unless debug mode is on.
func (g *Game) KickPlayer(id int64) KickResult {
	player, found := g.players[id]
	if !found && !g.cfg.Debug {
		ret := failf("No player with ID %d exists in the game currently.", id)
		g.logger.Error(ret.Reason)
		return KickResult{Result: ret}
	}

	g.kicked[id] = struct{}{}

	if found {
		player.invalidate()
		delete(g.players, id)
		delete(g.bingoed, id)
		g.purgeRequester(id)
		g.logger.Info("Player kicked", "player", player.Name(), "id", id)
	}

	return KickResult{Result: okf("Player %d has been kicked from the game.", id), Player: player}
}

// BanPlayer kicks the player and adds the ID to the permanent ban store
// regardless of the kick outcome: banning must be effective even against
// users who never joined.
func (g *Game) BanPlayer(id int64, name string) KickResult {
	ret := g.KickPlayer(id)

	if err := g.bans.AddBanned(id, name); err != nil {
		g.logger.Error("Failed to persist ban", "id", id, "error", err)
		return KickResult{Result: failf("Could not save the ban for player %d.", id), Player: ret.Player}
	}
	if g.stats != nil {
		if err := g.stats.RemovePlayer(id); err != nil {
			g.logger.Error("Failed to scrub banned player stats", "id", id, "error", err)
		}
	}

	return KickResult{Result: okf("Player %d has been banned from the game.", id), Player: ret.Player}
}

// MakeCall marks the slot as called, applies it to every active card and
// reports which boards changed and which achieved a fresh bingo. Any
// outstanding request for the slot is removed without a rejection penalty.
func (g *Game) MakeCall(index int) CallResult {
	if g.state != StateStarted {
		ret := failf("Cannot make a call while the game is %s.", g.state)
		g.logger.Error(ret.Reason)
		return CallResult{Result: ret}
	}

	called, ok := g.catalog.BingByIndex(g.cfg.Variant, index)
	if !ok {
		ret := failf("Slot index %d does not exist in the %q catalog.", index, g.cfg.Variant)
		g.logger.Error(ret.Reason)
		return CallResult{Result: ret}
	}

	g.logger.Info("Marking slot as called", "slot", called.Text, "index", index)
	g.called[index] = called

	var marked, newBingos []*Player
	for _, player := range g.Players() {
		if player.Card().Mark(index) {
			marked = append(marked, player)
		}
		if _, had := g.bingoed[player.ID()]; player.Card().HasBingo() && !had {
			newBingos = append(newBingos, player)
			g.bingoed[player.ID()] = struct{}{}
			g.logger.Info("Player has a bingo", "player", player.Name())
		}
	}

	// The request was answered by the call, so its requesters are exempt
	// from the rejection penalty.
	g.removeRequest(index, true)

	return CallResult{
		Result:    okf("Slot %q has been called -> %d game cards have been marked!", called.Text, len(marked)),
		Bing:      called,
		Marked:    marked,
		NewBingos: newBingos,
	}
}

// RequestCall merges the request into an existing matching entry or records
// it as a new one. The requester must be an active player, within the
// rejection rate limit, and (for a brand-new request) must hold the slot on
// their own card.
func (g *Game) RequestCall(req *CallRequest) RequestResult {
	if g.state != StateStarted {
		ret := failf("Request call cannot be made while the game is %s.", g.state)
		g.logger.Error(ret.Reason)
		return RequestResult{Result: ret}
	}

	requester := req.Primary()
	if requester == nil {
		// A request with no requester is a caller bug, not a runtime
		// condition.
		panic("game: call request without a requester")
	}
	active, joined := g.players[requester.ID()]
	if !joined || active != requester {
		ret := failf("Player %q has not been added to the game. Rejecting the request call.", requester.Name())
		g.logger.Error(ret.Reason)
		return RequestResult{Result: ret}
	}

	if !requester.allowedRequest(g.cfg.RejectionLimit, g.cfg.RejectionCooldown, g.clock.Now()) {
		ret := failf("Requests by %q have already been rejected %d times! Ignoring for %s.",
			requester.Name(), g.cfg.RejectionLimit, g.cfg.RejectionCooldown)
		g.logger.Warn(ret.Reason)
		return RequestResult{Result: ret}
	}

	index := req.Bing().Index
	if _, ok := g.catalog.BingByIndex(g.cfg.Variant, index); !ok {
		ret := failf("Slot index %d does not exist in the %q catalog.", index, g.cfg.Variant)
		g.logger.Error(ret.Reason)
		return RequestResult{Result: ret}
	}

	var existing *CallRequest
	for _, r := range g.requests {
		if r.Matches(req) {
			existing = r
			break
		}
	}

	if existing != nil {
		existing.Merge(req)
	} else {
		if _, onCard := requester.Card().BingByIndex(index); !onCard {
			ret := failf("Slot %q is not on %q's card. Rejecting the request call.", req.Bing().Text, requester.Name())
			g.logger.Error(ret.Reason)
			return RequestResult{Result: ret}
		}
		g.requests = append(g.requests, req)
		existing = req
	}

	ret := RequestResult{
		Result:  okf("Request for %q has been made.", req.Bing().Text),
		Request: existing,
	}
	if existing.NumRequesters() > 1 {
		ret.Reason += fmt.Sprintf(" There are %d players with this same request.", existing.NumRequesters())
	}
	g.logger.Info(ret.Reason)
	return ret
}

// DeleteRequest removes the outstanding request for a slot, if any. Unless
// exempt, every requester still attached accrues a rejection toward the
// rate limit. Valid while started or paused.
func (g *Game) DeleteRequest(index int, exempt bool) Result {
	if g.state != StateStarted && g.state != StatePaused {
		ret := failf("Cannot delete call requests while the bingo game is %s.", g.state)
		g.logger.Error(ret.Reason)
		return ret
	}

	if !g.removeRequest(index, exempt) {
		g.logger.Warn("No outstanding request for index, skipping", "index", index)
		return okf("There is no outstanding request for index %d.", index)
	}
	return okf("Call request for index %d was removed.", index)
}

// State returns the current lifecycle state.
func (g *Game) State() State {
	return g.state
}

// Players returns the active roster sorted by user ID.
func (g *Game) Players() []*Player {
	out := make([]*Player, 0, len(g.players))
	for _, p := range g.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Player looks up an active player by user ID.
func (g *Game) Player(id int64) (*Player, bool) {
	p, ok := g.players[id]
	return p, ok
}

// Calls returns the called slots sorted by index.
func (g *Game) Calls() []bingo.Bing {
	out := make([]bingo.Bing, 0, len(g.called))
	for _, b := range g.called {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Called reports whether a slot index has been called this game.
func (g *Game) Called(index int) bool {
	_, ok := g.called[index]
	return ok
}

// Slot resolves a catalog index to its slot for the configured variant.
func (g *Game) Slot(index int) (bingo.Bing, bool) {
	return g.catalog.BingByIndex(g.cfg.Variant, index)
}

// Requests returns the outstanding call requests in arrival order.
func (g *Game) Requests() []*CallRequest {
	out := make([]*CallRequest, len(g.requests))
	copy(out, g.requests)
	return out
}

// CheckEligible applies the join gate: valid ID, not banned, not kicked,
// not already joined, display name passes the content filter.
func (g *Game) CheckEligible(id int64, name string) Result {
	if id < 0 && !g.cfg.Debug {
		return failf("Cannot add player with invalid ID of: %d", id)
	}
	if g.bans.IsBanned(id) {
		return failf("%s is banned from the game.", name)
	}
	if _, kicked := g.kicked[id]; kicked {
		return failf("%s is kicked from the game, cannot rejoin.", name)
	}
	if _, joined := g.players[id]; joined {
		return failf("%s is already playing the game.", name)
	}
	if !g.filter.Allow(name) {
		return failf("The display name %q is not allowed in this game.", name)
	}
	return Result{OK: true}
}

// generateCard deals a fresh card, retrying up to the bound while the
// content hash matches an existing player's card. A surviving collision is
// reported through the returned owner names, never as a failure.
func (g *Game) generateCard(name string) (*bingo.Card, []string) {
	var card *bingo.Card
	var collisions []string

	for try := 0; try < cardGenTries; try++ {
		g.logger.Debug("Attempting to generate new card", "player", name, "try", try+1)
		slots, err := g.catalog.Deal(g.cfg.Variant, g.cfg.CardSize*g.cfg.CardSize, g.rng)
		if err != nil {
			g.logger.Error("Card deal failed", "player", name, "error", err)
			return nil, nil
		}
		card, err = bingo.NewCard(name, g.cfg.CardSize, slots, g.cfg.UseFreeSpace)
		if err != nil {
			g.logger.Error("Card build failed", "player", name, "error", err)
			return nil, nil
		}

		collisions = collisions[:0]
		for _, other := range g.Players() {
			if other.Card().ID() == card.ID() {
				collisions = append(collisions, other.Name())
			}
		}
		if len(collisions) == 0 {
			g.logger.Info("Game card is unique", "card", card.ID())
			break
		}
		g.logger.Warn("Game card is not unique, regenerating", "card", card.ID(), "player", name)
	}
	return card, collisions
}

// removeRequest drops the request matching the slot index. Without the
// exempt flag the remaining requesters accrue a rejection.
func (g *Game) removeRequest(index int, exempt bool) bool {
	for i, r := range g.requests {
		if r.Bing().Index != index {
			continue
		}
		if !exempt {
			now := g.clock.Now()
			for _, p := range r.Requesters() {
				p.recordRejection(now)
			}
		}
		g.requests = append(g.requests[:i], g.requests[i+1:]...)
		g.logger.Info("Call request removed", "slot", r.Bing().Text, "exempt", exempt)
		return true
	}
	return false
}

// purgeRequester removes the player from every outstanding request and
// drops requests left with no requester.
func (g *Game) purgeRequester(id int64) {
	kept := g.requests[:0]
	for _, r := range g.requests {
		r.RemoveRequester(id)
		if r.NumRequesters() > 0 {
			kept = append(kept, r)
		}
	}
	g.requests = kept
}

func (g *Game) reset() {
	g.players = make(map[int64]*Player)
	g.called = make(map[int]bingo.Bing)
	g.requests = nil
	g.bingoed = make(map[int64]struct{})
	if g.kicked == nil {
		g.kicked = make(map[int64]struct{})
	}
}
