package server

import (
	"encoding/json"
	"time"

	"github.com/schwolf/livebingo/internal/session"
)

// MessageType tags a websocket message.
type MessageType string

const (
	// Client to server messages
	MessageTypeJoinGame      MessageType = "join_game"
	MessageTypeLeaveGame     MessageType = "leave_game"
	MessageTypeListGames     MessageType = "list_games"
	MessageTypeStartGame     MessageType = "start_game"
	MessageTypeStopGame      MessageType = "stop_game"
	MessageTypePauseGame     MessageType = "pause_game"
	MessageTypeResumeGame    MessageType = "resume_game"
	MessageTypeMakeCall      MessageType = "make_call"
	MessageTypeRequestCall   MessageType = "request_call"
	MessageTypeDeleteRequest MessageType = "delete_request"
	MessageTypeKickPlayer    MessageType = "kick_player"
	MessageTypeBanPlayer     MessageType = "ban_player"

	// Server to client messages
	MessageTypeError       MessageType = "error"
	MessageTypeActionAck   MessageType = "action_ack"
	MessageTypeGameJoined  MessageType = "game_joined"
	MessageTypeGameList    MessageType = "game_list"
	MessageTypeViewChanged MessageType = "view_changed"
	MessageTypeBoard       MessageType = "board"
	MessageTypeRequestList MessageType = "request_list"
	MessageTypeNotice      MessageType = "notice"
)

// String returns the string representation of the message type.
func (mt MessageType) String() string {
	return string(mt)
}

// Message is the websocket envelope. Data holds the type-specific payload.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage wraps a payload in an envelope with the current timestamp.
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client to server payloads

type JoinGameData struct {
	GameID   string `json:"gameId,omitempty"`
	UserID   int64  `json:"userId"`
	UserName string `json:"userName"`
	// Host connections drive the game (start, call, kick) without
	// holding a card.
	Host bool `json:"host,omitempty"`
}

type MakeCallData struct {
	Index int `json:"index"`
}

type RequestCallData struct {
	Index int `json:"index"`
}

type DeleteRequestData struct {
	Index  int  `json:"index"`
	Exempt bool `json:"exempt,omitempty"`
}

type KickPlayerData struct {
	UserID int64 `json:"userId"`
}

type BanPlayerData struct {
	UserID   int64  `json:"userId"`
	UserName string `json:"userName"`
}

// Server to client payloads

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ActionAckData reports a game action's outcome back to the connection
// that issued it.
type ActionAckData struct {
	Action string `json:"action"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

type GameJoinedData struct {
	GameID   string     `json:"gameId"`
	UserID   int64      `json:"userId"`
	Card     [][]string `json:"card,omitempty"`
	CardID   string     `json:"cardId,omitempty"`
	CardSize int        `json:"cardSize,omitempty"`
}

type GameListData struct {
	Games []session.Summary `json:"games"`
}

type ViewChangedData struct {
	View   string `json:"view"`
	Action string `json:"action,omitempty"`
}

// BoardCell is one card cell with its marked flag.
type BoardCell struct {
	Index  int    `json:"index"`
	Text   string `json:"text"`
	Marked bool   `json:"marked"`
}

type BoardData struct {
	Cells  [][]BoardCell `json:"cells"`
	Bingo  bool          `json:"bingo"`
	Notice string        `json:"notice,omitempty"`
}

// RequestEntry is one outstanding call request in a request list.
type RequestEntry struct {
	Index      int      `json:"index"`
	Text       string   `json:"text"`
	Requesters []string `json:"requesters"`
}

type RequestListData struct {
	Requests []RequestEntry `json:"requests"`
}

type NoticeData struct {
	Message string `json:"message"`
}
