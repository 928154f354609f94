package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/schwolf/livebingo/internal/game"
	"github.com/schwolf/livebingo/internal/notify"
	"github.com/schwolf/livebingo/internal/session"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var ErrConnectionClosed = websocket.ErrCloseSent

// Connection wraps one websocket client. A connection is either a host
// (drives the game, holds no card) or a player (holds a card, may request
// calls).
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	logger    zerolog.Logger
	store     *session.Store
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu       sync.RWMutex
	userID   int64
	userName string
	host     bool
	sess     *session.Session
}

// NewConnection wraps an upgraded websocket.
func NewConnection(conn *websocket.Conn, logger zerolog.Logger, store *session.Store) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:   conn,
		send:   make(chan *Message, 256),
		logger: logger.With().Str("component", "conn").Str("remote", conn.RemoteAddr().String()).Logger(),
		store:  store,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins handling the connection.
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection. The joined player, if any, stays in the
// game; an abandoned card keeps playing and its deliveries fail softly.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client. A full buffer closes the
// connection rather than blocking the notification loop.
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug().Interface("panic", r).Msg("Send on closed connection")
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn().Msg("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

func (c *Connection) session() (*session.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sess, c.sess != nil
}

func (c *Connection) isHost() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.host
}

func (c *Connection) user() (int64, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID, c.userName
}

func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("WebSocket error")
			}
			return
		}
		c.handleMessage(&msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error().Err(err).Msg("Failed to write message")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug().Str("type", msg.Type.String()).Msg("Received message")

	switch msg.Type {
	case MessageTypeJoinGame:
		var data JoinGameData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse join data")
			return
		}
		c.handleJoin(data)

	case MessageTypeLeaveGame:
		c.handleLeave()

	case MessageTypeListGames:
		c.handleListGames()

	case MessageTypeStartGame:
		c.handleHostAction("start", func(s *session.Session) game.Result { return s.Start() })

	case MessageTypeStopGame:
		c.handleHostAction("stop", func(s *session.Session) game.Result { return s.Stop() })

	case MessageTypePauseGame:
		c.handleHostAction("pause", func(s *session.Session) game.Result { return s.Pause() })

	case MessageTypeResumeGame:
		c.handleHostAction("resume", func(s *session.Session) game.Result { return s.Resume() })

	case MessageTypeMakeCall:
		var data MakeCallData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse call data")
			return
		}
		c.handleHostAction("call", func(s *session.Session) game.Result {
			return s.MakeCall(data.Index).Result
		})

	case MessageTypeDeleteRequest:
		var data DeleteRequestData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse delete request data")
			return
		}
		c.handleHostAction("delete_request", func(s *session.Session) game.Result {
			return s.DeleteRequest(data.Index, data.Exempt)
		})

	case MessageTypeKickPlayer:
		var data KickPlayerData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse kick data")
			return
		}
		c.handleHostAction("kick", func(s *session.Session) game.Result {
			return s.KickPlayer(data.UserID).Result
		})

	case MessageTypeBanPlayer:
		var data BanPlayerData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse ban data")
			return
		}
		c.handleHostAction("ban", func(s *session.Session) game.Result {
			return s.BanPlayer(data.UserID, data.UserName).Result
		})

	case MessageTypeRequestCall:
		var data RequestCallData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse request data")
			return
		}
		c.handleRequestCall(data)

	default:
		c.sendError("unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

func (c *Connection) handleJoin(data JoinGameData) {
	sess, ok := c.resolveSession(data.GameID)
	if !ok {
		c.sendError("game_not_found", "No such game")
		return
	}

	c.mu.Lock()
	c.userID = data.UserID
	c.userName = data.UserName
	c.mu.Unlock()

	if data.Host {
		c.mu.Lock()
		c.host = true
		c.sess = sess
		c.mu.Unlock()
		c.logger.Info().Str("game", sess.ID()).Str("user", data.UserName).Msg("Host joined")
		c.reply(MessageTypeGameJoined, GameJoinedData{GameID: sess.ID(), UserID: data.UserID})
		return
	}

	res := sess.AddPlayer(data.UserID, data.UserName, func(p *game.Player) notify.Channel {
		return newPlayerChannel(c, sess, p)
	})
	if !res.OK {
		c.sendError("join_failed", res.Reason)
		return
	}

	c.mu.Lock()
	c.sess = sess
	c.mu.Unlock()

	card := res.Player.Card()
	c.logger.Info().Str("game", sess.ID()).Str("user", data.UserName).Str("card", card.ID()).Msg("Player joined")
	c.reply(MessageTypeGameJoined, GameJoinedData{
		GameID:   sess.ID(),
		UserID:   data.UserID,
		Card:     card.CellStrings(),
		CardID:   card.ID(),
		CardSize: card.Size(),
	})
}

// handleLeave only detaches the connection. The card stays in play, same
// as a chat user going offline mid-game; only a kick or ban removes it.
func (c *Connection) handleLeave() {
	c.mu.Lock()
	c.sess = nil
	c.host = false
	c.mu.Unlock()
	c.reply(MessageTypeActionAck, ActionAckData{Action: "leave", OK: true})
}

func (c *Connection) handleListGames() {
	c.reply(MessageTypeGameList, GameListData{Games: c.store.List()})
}

func (c *Connection) handleHostAction(action string, fn func(*session.Session) game.Result) {
	sess, ok := c.session()
	if !ok {
		c.sendError("not_joined", "Join a game first")
		return
	}
	if !c.isHost() {
		c.sendError("not_host", "Only the host can do that")
		return
	}
	res := fn(sess)
	c.reply(MessageTypeActionAck, ActionAckData{Action: action, OK: res.OK, Reason: res.Reason})
}

func (c *Connection) handleRequestCall(data RequestCallData) {
	sess, ok := c.session()
	if !ok {
		c.sendError("not_joined", "Join a game first")
		return
	}
	if c.isHost() {
		c.sendError("not_player", "Hosts hold no card to request from")
		return
	}
	userID, _ := c.user()
	res := sess.RequestCall(userID, data.Index)
	c.reply(MessageTypeActionAck, ActionAckData{Action: "request_call", OK: res.OK, Reason: res.Reason})
}

func (c *Connection) resolveSession(id string) (*session.Session, bool) {
	if id == "" {
		return c.store.Default()
	}
	return c.store.Get(id)
}

func (c *Connection) reply(t MessageType, data any) {
	msg, err := NewMessage(t, data)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to encode message")
		return
	}
	_ = c.SendMessage(msg)
}

func (c *Connection) sendError(code, message string) {
	c.reply(MessageTypeError, ErrorData{Code: code, Message: message})
}
