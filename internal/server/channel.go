package server

import (
	"github.com/schwolf/livebingo/internal/game"
	"github.com/schwolf/livebingo/internal/notify"
	"github.com/schwolf/livebingo/internal/session"
)

// playerChannel delivers a joined player's view over their websocket
// connection. Its methods run on the notification run loop; card reads are
// safe there because card mutations only happen while the task processor
// is gated.
type playerChannel struct {
	conn   *Connection
	sess   *session.Session
	player *game.Player
}

func newPlayerChannel(conn *Connection, sess *session.Session, player *game.Player) notify.Channel {
	return &playerChannel{conn: conn, sess: sess, player: player}
}

func (pc *playerChannel) SetViewStarted() error {
	if err := pc.sendView("started", ""); err != nil {
		return err
	}
	return pc.SetBoardView("")
}

func (pc *playerChannel) SetViewPaused() error {
	return pc.sendView("paused", "")
}

func (pc *playerChannel) SetViewStopped() error {
	return pc.sendView("stopped", "")
}

func (pc *playerChannel) SetViewKicked(action string) error {
	return pc.sendView("kicked", action)
}

func (pc *playerChannel) SetBoardView(notice string) error {
	card := pc.player.Card()
	cells := card.Cells()
	out := make([][]BoardCell, len(cells))
	for i, row := range cells {
		out[i] = make([]BoardCell, len(row))
		for j, b := range row {
			out[i][j] = BoardCell{Index: b.Index, Text: b.Text, Marked: card.CellMarked(i, j)}
		}
	}
	msg, err := NewMessage(MessageTypeBoard, BoardData{
		Cells:  out,
		Bingo:  card.HasBingo(),
		Notice: notice,
	})
	if err != nil {
		return err
	}
	return pc.conn.SendMessage(msg)
}

func (pc *playerChannel) RefreshRequestView() error {
	requests := pc.sess.Requests()
	entries := make([]RequestEntry, 0, len(requests))
	for _, r := range requests {
		names := make([]string, 0, r.NumRequesters())
		for _, p := range r.Requesters() {
			names = append(names, p.Name())
		}
		entries = append(entries, RequestEntry{
			Index:      r.Bing().Index,
			Text:       r.Bing().Text,
			Requesters: names,
		})
	}
	msg, err := NewMessage(MessageTypeRequestList, RequestListData{Requests: entries})
	if err != nil {
		return err
	}
	return pc.conn.SendMessage(msg)
}

func (pc *playerChannel) SendNotice(text string) error {
	msg, err := NewMessage(MessageTypeNotice, NoticeData{Message: text})
	if err != nil {
		return err
	}
	return pc.conn.SendMessage(msg)
}

func (pc *playerChannel) sendView(view, action string) error {
	msg, err := NewMessage(MessageTypeViewChanged, ViewChangedData{View: view, Action: action})
	if err != nil {
		return err
	}
	return pc.conn.SendMessage(msg)
}
