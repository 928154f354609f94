package server

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schwolf/livebingo/internal/catalog"
	"github.com/schwolf/livebingo/internal/game"
	"github.com/schwolf/livebingo/internal/runloop"
	"github.com/schwolf/livebingo/internal/session"
	"github.com/schwolf/livebingo/internal/stats"
)

type openBans struct{}

func (openBans) IsBanned(int64) bool           { return false }
func (openBans) AddBanned(int64, string) error { return nil }
func (openBans) RemoveBanned(int64) error      { return nil }

// gateway spins up a websocket endpoint backed by one started session.
func gateway(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	engineLog := log.New(io.Discard)

	loop := runloop.New(engineLog, nil, 0)
	loop.Start()
	t.Cleanup(loop.Stop)

	texts := make([]string, 16)
	for i := range texts {
		texts[i] = fmt.Sprintf("slot-%d", i+1)
	}
	cat, err := catalog.New(map[string][]catalog.Category{
		"test": {{Name: "all", Slots: texts}},
	})
	require.NoError(t, err)

	cfg := game.Config{
		Variant:           "test",
		CardSize:          3,
		RetroactiveCalls:  true,
		RejectionLimit:    3,
		RejectionCooldown: time.Minute,
	}
	g := game.New(engineLog, nil, cat, openBans{}, nil, cfg, rand.New(rand.NewSource(21)))

	sess := session.New(engineLog, "room-1", g, loop, nil)
	t.Cleanup(func() { sess.Close() })
	require.True(t, sess.Init(stats.Nop{}).OK)
	require.True(t, sess.Start().OK)

	store := session.NewStore(engineLog)
	store.Register(sess)

	srv := New("127.0.0.1:0", zerolog.Nop(), store)
	ts := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	t.Cleanup(ts.Close)

	return ts, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, mt MessageType, data any) {
	t.Helper()
	msg, err := NewMessage(mt, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(msg))
}

// readUntil discards messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, mt MessageType) *Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", mt)
		if msg.Type == mt {
			return &msg
		}
	}
}

func TestJoinDeliversCard(t *testing.T) {
	_, url := gateway(t)
	conn := dial(t, url)

	send(t, conn, MessageTypeJoinGame, JoinGameData{UserID: 1, UserName: "alice"})
	msg := readUntil(t, conn, MessageTypeGameJoined)

	var joined GameJoinedData
	require.NoError(t, json.Unmarshal(msg.Data, &joined))
	assert.Equal(t, "room-1", joined.GameID)
	assert.Equal(t, 3, joined.CardSize)
	assert.Len(t, joined.Card, 3)
	assert.NotEmpty(t, joined.CardID)

	// The deferred join task opens the board view.
	board := readUntil(t, conn, MessageTypeBoard)
	var data BoardData
	require.NoError(t, json.Unmarshal(board.Data, &data))
	assert.Len(t, data.Cells, 3)
	assert.False(t, data.Bingo)
}

func TestHostCallMarksPlayerBoard(t *testing.T) {
	_, url := gateway(t)

	player := dial(t, url)
	send(t, player, MessageTypeJoinGame, JoinGameData{UserID: 1, UserName: "alice"})
	msg := readUntil(t, player, MessageTypeGameJoined)
	var joined GameJoinedData
	require.NoError(t, json.Unmarshal(msg.Data, &joined))
	readUntil(t, player, MessageTypeBoard)

	host := dial(t, url)
	send(t, host, MessageTypeJoinGame, JoinGameData{UserID: 99, UserName: "host", Host: true})
	readUntil(t, host, MessageTypeGameJoined)

	// Texts are "slot-N" with catalog index N.
	var index int
	_, err := fmt.Sscanf(joined.Card[0][0], "slot-%d", &index)
	require.NoError(t, err)

	send(t, host, MessageTypeMakeCall, MakeCallData{Index: index})
	ack := readUntil(t, host, MessageTypeActionAck)
	var ackData ActionAckData
	require.NoError(t, json.Unmarshal(ack.Data, &ackData))
	assert.True(t, ackData.OK, ackData.Reason)

	board := readUntil(t, player, MessageTypeBoard)
	var data BoardData
	require.NoError(t, json.Unmarshal(board.Data, &data))
	assert.True(t, data.Cells[0][0].Marked)
}

func TestPlayerCannotDriveGame(t *testing.T) {
	_, url := gateway(t)
	conn := dial(t, url)

	send(t, conn, MessageTypeJoinGame, JoinGameData{UserID: 1, UserName: "alice"})
	readUntil(t, conn, MessageTypeGameJoined)

	send(t, conn, MessageTypeMakeCall, MakeCallData{Index: 1})
	msg := readUntil(t, conn, MessageTypeError)
	var errData ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &errData))
	assert.Equal(t, "not_host", errData.Code)
}

func TestRequestCallRoundtrip(t *testing.T) {
	_, url := gateway(t)
	conn := dial(t, url)

	send(t, conn, MessageTypeJoinGame, JoinGameData{UserID: 1, UserName: "alice"})
	msg := readUntil(t, conn, MessageTypeGameJoined)
	var joined GameJoinedData
	require.NoError(t, json.Unmarshal(msg.Data, &joined))

	var index int
	_, err := fmt.Sscanf(joined.Card[1][1], "slot-%d", &index)
	require.NoError(t, err)

	send(t, conn, MessageTypeRequestCall, RequestCallData{Index: index})
	list := readUntil(t, conn, MessageTypeRequestList)
	var data RequestListData
	require.NoError(t, json.Unmarshal(list.Data, &data))
	require.Len(t, data.Requests, 1)
	assert.Equal(t, index, data.Requests[0].Index)
	assert.Equal(t, []string{"alice"}, data.Requests[0].Requesters)
}

func TestJoinUnknownGameFails(t *testing.T) {
	_, url := gateway(t)
	conn := dial(t, url)

	send(t, conn, MessageTypeJoinGame, JoinGameData{GameID: "nope", UserID: 1, UserName: "alice"})
	msg := readUntil(t, conn, MessageTypeError)
	var errData ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &errData))
	assert.Equal(t, "game_not_found", errData.Code)
}

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfig(filepath.Join(t.TempDir(), "absent.hcl"))
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", cfg.Server.ListenAddr())
	require.Len(t, cfg.Games, 1)
	assert.Equal(t, "bingo", cfg.Games[0].Name)
}

func TestLoadServerConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.hcl")
	content := `
server {
  address = "0.0.0.0"
  port    = 9000
  ban_file = "bans.json"
}

game "friday" {
  variant               = "classic"
  card_size             = 5
  free_space            = true
  rejection_limit       = 5
  rejection_cooldown_ms = 30000
}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.ListenAddr())
	assert.Equal(t, "bans.json", cfg.Server.BanFile)

	require.Len(t, cfg.Games, 1)
	gc := cfg.Games[0].GameSettings()
	assert.Equal(t, "classic", gc.Variant)
	assert.Equal(t, 5, gc.CardSize)
	assert.True(t, gc.UseFreeSpace)
	assert.Equal(t, 5, gc.RejectionLimit)
	assert.Equal(t, 30*time.Second, gc.RejectionCooldown)
}
