// Package stats aggregates per-player session statistics. The game flushes
// through the sink interface when a session stops; everything here is
// in-memory and resets with the process.
package stats

import (
	"sort"
	"sync"

	"github.com/schwolf/livebingo/internal/game"
)

// PlayerTotals are the running counters for one player across sessions.
type PlayerTotals struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Sessions int    `json:"sessions"`
	Marks    int    `json:"marks"`
	Bingos   int    `json:"bingos"`
}

// Recorder implements the game's stats sink.
type Recorder struct {
	mu      sync.Mutex
	players map[int64]*PlayerTotals
}

// NewRecorder constructs an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{players: make(map[int64]*PlayerTotals)}
}

// UpdateFromPlayers folds a finished session's roster into the totals.
func (r *Recorder) UpdateFromPlayers(players []*game.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range players {
		totals, ok := r.players[p.ID()]
		if !ok {
			totals = &PlayerTotals{ID: p.ID(), Name: p.Name()}
			r.players[p.ID()] = totals
		}
		totals.Name = p.Name()
		totals.Sessions++
		totals.Marks += p.Card().NumMarked()
		if p.Card().HasBingo() {
			totals.Bingos++
		}
	}
	return nil
}

// RemovePlayer drops a player's totals, used when a ban should erase them.
func (r *Recorder) RemovePlayer(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.players, id)
	return nil
}

// Totals returns a snapshot for one player.
func (r *Recorder) Totals(id int64) (PlayerTotals, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.players[id]
	if !ok {
		return PlayerTotals{}, false
	}
	return *t, true
}

// All returns every player's totals, most bingos first, ties broken by
// marks and then ID for a stable order.
func (r *Recorder) All() []PlayerTotals {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]PlayerTotals, 0, len(r.players))
	for _, t := range r.players {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bingos != out[j].Bingos {
			return out[i].Bingos > out[j].Bingos
		}
		if out[i].Marks != out[j].Marks {
			return out[i].Marks > out[j].Marks
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Nop is a sink that records nothing.
type Nop struct{}

func (Nop) UpdateFromPlayers([]*game.Player) error { return nil }
func (Nop) RemovePlayer(int64) error               { return nil }
