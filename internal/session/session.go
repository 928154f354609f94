// Package session serializes game actions and fans their effects out to
// player notification channels. Each Session pairs one Game with one task
// processor: a per-session lock guarantees at most one mutating action is
// in flight, and the processor is paused for exactly the span of the
// mutation so queued notification tasks never observe a half-applied
// action.
package session

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/schwolf/livebingo/internal/game"
	"github.com/schwolf/livebingo/internal/notify"
	"github.com/schwolf/livebingo/internal/runloop"
	"github.com/schwolf/livebingo/internal/task"
)

// Session is the concurrency boundary around a single Game. All methods are
// safe to call from any goroutine.
type Session struct {
	logger *log.Logger
	id     string
	loop   *runloop.Loop

	mu   sync.Mutex
	game *game.Game
	proc *task.Processor
}

// New wraps a game in a session. The run loop is shared across sessions;
// the processor is owned by this session and started here.
func New(logger *log.Logger, id string, g *game.Game, loop *runloop.Loop, clock quartz.Clock) *Session {
	s := &Session{
		logger: logger.WithPrefix("session").With("game", id),
		id:     id,
		loop:   loop,
		game:   g,
		proc:   task.New(logger, loop, clock, 0),
	}
	s.proc.Start()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// serialize runs fn with the action lock held and the task processor
// gated, so notification tasks cannot interleave with the mutation.
func (s *Session) serialize(fn func()) {
	s.proc.Pause()
	s.mu.Lock()
	fn()
	s.mu.Unlock()
	s.proc.Resume()
}

// Init wires the stats sink and moves the game to idle.
func (s *Session) Init(stats game.StatsSink) game.Result {
	var res game.Result
	s.serialize(func() {
		res = s.game.Init(stats)
	})
	return res
}

// Start begins a fresh game. The roster is cleared, so there is nobody to
// notify yet.
func (s *Session) Start() game.Result {
	var res game.Result
	s.serialize(func() {
		res = s.game.Start()
	})
	return res
}

// Pause halts the game and moves every player's view to the paused screen.
func (s *Session) Pause() game.Result {
	var res game.Result
	s.serialize(func() {
		res = s.game.Pause()
		if res.OK {
			for _, p := range s.game.Players() {
				s.changeView(p, "paused", notify.Channel.SetViewPaused)
			}
		}
	})
	return res
}

// Resume continues a paused game and restores every player's view.
func (s *Session) Resume() game.Result {
	var res game.Result
	s.serialize(func() {
		res = s.game.Resume()
		if res.OK {
			for _, p := range s.game.Players() {
				s.changeView(p, "resumed", notify.Channel.SetViewStarted)
			}
		}
	})
	return res
}

// Stop ends the game. Players are told before the roster is cleared.
func (s *Session) Stop() game.Result {
	var res game.Result
	s.serialize(func() {
		players := s.game.Players()
		res = s.game.Stop()
		if res.OK {
			for _, p := range players {
				s.changeView(p, "stopped", notify.Channel.SetViewStopped)
			}
		}
	})
	return res
}

// Close destroys the game and shuts the task processor down, draining
// whatever was already queued. The session is unusable afterwards.
func (s *Session) Close() game.Result {
	var res game.Result
	s.serialize(func() {
		players := s.game.Players()
		res = s.game.Destroy()
		for _, p := range players {
			s.changeView(p, "stopped", notify.Channel.SetViewStopped)
		}
	})
	s.proc.Stop()
	return res
}

// Bind adapts a ready-made channel to the factory AddPlayer takes, for
// channels that don't need the player.
func Bind(ch notify.Channel) func(*game.Player) notify.Channel {
	return func(*game.Player) notify.Channel { return ch }
}

// AddPlayer joins a user to the running game and binds their notification
// channel. The channel is built through a factory because transports like
// the websocket gateway need the player for card snapshots, and the
// binding has to happen before any task can fire. The card view opens
// asynchronously; a shared-card warning, if any, arrives as a notice.
func (s *Session) AddPlayer(id int64, name string, bind func(*game.Player) notify.Channel) game.AddPlayerResult {
	var res game.AddPlayerResult
	s.serialize(func() {
		res = s.game.AddPlayer(id, name)
		if !res.OK {
			return
		}
		res.Player.SetChannel(bind(res.Player))
		s.changeView(res.Player, "joined", notify.Channel.SetViewStarted)
		if res.Warning != "" {
			s.notice(res.Player, res.Warning)
		}
	})
	return res
}

// KickPlayer removes a player; their view is closed even though the player
// record is already invalid by the time the task runs.
func (s *Session) KickPlayer(id int64) game.KickResult {
	var res game.KickResult
	s.serialize(func() {
		res = s.game.KickPlayer(id)
		if res.OK && res.Player != nil {
			s.closeView(res.Player, "kicked")
		}
	})
	return res
}

// BanPlayer kicks the player and records the ban.
func (s *Session) BanPlayer(id int64, name string) game.KickResult {
	var res game.KickResult
	s.serialize(func() {
		res = s.game.BanPlayer(id, name)
		if res.OK && res.Player != nil {
			s.closeView(res.Player, "banned")
		}
	})
	return res
}

// MakeCall marks the slot on every card holding it. Marked players get a
// board refresh; fresh bingos get a congratulation on top.
func (s *Session) MakeCall(index int) game.CallResult {
	var res game.CallResult
	s.serialize(func() {
		res = s.game.MakeCall(index)
		if !res.OK {
			return
		}
		notice := fmt.Sprintf("%s has been called!", res.Bing.Text)
		for _, p := range res.Marked {
			s.refreshBoard(p, notice)
		}
		for _, p := range res.NewBingos {
			s.notice(p, fmt.Sprintf("BINGO! %s has a winning card!", p.Name()))
		}
	})
	return res
}

// RequestCall records or merges a call request on behalf of a user and
// refreshes the request view of everyone attached to it.
func (s *Session) RequestCall(userID int64, index int) game.RequestResult {
	var res game.RequestResult
	s.serialize(func() {
		player, ok := s.game.Player(userID)
		if !ok {
			res = game.RequestResult{Result: game.Fail(
				fmt.Sprintf("User %d has not been added to the game. Rejecting the request call.", userID))}
			return
		}
		slot, ok := s.game.Slot(index)
		if !ok {
			res = game.RequestResult{Result: game.Fail(
				fmt.Sprintf("Slot index %d does not exist in the catalog.", index))}
			return
		}
		res = s.game.RequestCall(game.NewCallRequest(player, slot))
		if res.OK {
			for _, p := range res.Request.Requesters() {
				s.refreshRequests(p)
			}
		}
	})
	return res
}

// DeleteRequest drops the outstanding request for a slot. Requesters are
// captured before deletion so their request views can still be refreshed;
// without the exemption each of them accrues a rejection.
func (s *Session) DeleteRequest(index int, exempt bool) game.Result {
	var res game.Result
	s.serialize(func() {
		var requesters []*game.Player
		for _, r := range s.game.Requests() {
			if r.Bing().Index == index {
				requesters = r.Requesters()
				break
			}
		}
		res = s.game.DeleteRequest(index, exempt)
		if res.OK {
			for _, p := range requesters {
				s.refreshRequests(p)
			}
		}
	})
	return res
}

// State reports the game state under the session lock.
func (s *Session) State() game.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game.State()
}

// Players snapshots the roster under the session lock.
func (s *Session) Players() []*game.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game.Players()
}

// NumPlayers reports the roster size under the session lock.
func (s *Session) NumPlayers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.game.Players())
}

// Requests snapshots the outstanding call requests under the session lock.
func (s *Session) Requests() []*game.CallRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game.Requests()
}

// changeView enqueues a view transition for one player. The task is
// dropped at execution time if the player was removed in the meantime; a
// newer transition would have superseded it anyway.
func (s *Session) changeView(p *game.Player, label string, send func(notify.Channel) error) {
	ch := p.Channel()
	if ch == nil {
		return
	}
	s.proc.Add(task.NewChangeState(p.ID(), p.Name(), label, func() {
		if !p.Valid() {
			return
		}
		if err := send(ch); err != nil {
			s.logger.Error("View transition failed", "player", p.Name(), "view", label, "error", err)
		}
	}))
}

// closeView enqueues the kicked/banned transition. Unlike other
// transitions it must go through even though the player is already
// invalidated.
func (s *Session) closeView(p *game.Player, action string) {
	ch := p.Channel()
	if ch == nil {
		return
	}
	s.proc.Add(task.NewChangeState(p.ID(), p.Name(), action, func() {
		if err := ch.SetViewKicked(action); err != nil {
			s.logger.Error("Kick notification failed", "player", p.Name(), "action", action, "error", err)
		}
	}))
}

func (s *Session) refreshBoard(p *game.Player, notice string) {
	ch := p.Channel()
	if ch == nil {
		return
	}
	s.proc.Add(task.NewUpdate(p.ID(), p.Name(), func() {
		if !p.Valid() {
			return
		}
		if err := ch.SetBoardView(notice); err != nil {
			s.logger.Error("Board refresh failed", "player", p.Name(), "error", err)
		}
	}))
}

func (s *Session) refreshRequests(p *game.Player) {
	ch := p.Channel()
	if ch == nil {
		return
	}
	s.proc.Add(task.NewUpdate(p.ID(), p.Name(), func() {
		if !p.Valid() {
			return
		}
		if err := ch.RefreshRequestView(); err != nil {
			s.logger.Error("Request view refresh failed", "player", p.Name(), "error", err)
		}
	}))
}

// notice sends a one-off message outside the task queue, straight on the
// notification loop. The non-blocking submit matters: notice runs with the
// session lock held, and a full loop may be stuck on a job waiting for
// that same lock.
func (s *Session) notice(p *game.Player, msg string) {
	ch := p.Channel()
	if ch == nil {
		return
	}
	if err := s.loop.TrySubmit(func() {
		if err := ch.SendNotice(msg); err != nil {
			s.logger.Error("Notice failed", "player", p.Name(), "error", err)
		}
	}); err != nil {
		s.logger.Error("Notification loop rejected notice", "player", p.Name(), "error", err)
	}
}
