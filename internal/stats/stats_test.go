package stats

import (
	"fmt"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schwolf/livebingo/internal/catalog"
	"github.com/schwolf/livebingo/internal/game"
)

type openBans struct{}

func (openBans) IsBanned(int64) bool           { return false }
func (openBans) AddBanned(int64, string) error { return nil }
func (openBans) RemoveBanned(int64) error      { return nil }

func newGame(t *testing.T, sink game.StatsSink) *game.Game {
	t.Helper()
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
		RejectionLimit:    3,
		RejectionCooldown: time.Minute,
	}
	g := game.New(log.New(io.Discard), nil, cat, openBans{}, nil, cfg, rand.New(rand.NewSource(5)))
	require.True(t, g.Init(sink).OK)
	require.True(t, g.Start().OK)
	return g
}

func TestStopFlushesTotals(t *testing.T) {
	rec := NewRecorder()
	g := newGame(t, rec)

	require.True(t, g.AddPlayer(1, "alice").OK)
	require.True(t, g.AddPlayer(2, "bob").OK)

	// Call the whole catalog so both cards end up fully marked.
	for i := 1; i <= 16; i++ {
		g.MakeCall(i)
	}
	require.True(t, g.Stop().OK)

	for id, name := range map[int64]string{1: "alice", 2: "bob"} {
		totals, ok := rec.Totals(id)
		require.True(t, ok, name)
		assert.Equal(t, name, totals.Name)
		assert.Equal(t, 1, totals.Sessions)
		assert.Equal(t, 9, totals.Marks)
		assert.Equal(t, 1, totals.Bingos)
	}
}

func TestTotalsAccumulateAcrossSessions(t *testing.T) {
	rec := NewRecorder()
	g := newGame(t, rec)

	require.True(t, g.AddPlayer(1, "alice").OK)
	require.True(t, g.Stop().OK)

	require.True(t, g.Start().OK)
	require.True(t, g.AddPlayer(1, "alice").OK)
	require.True(t, g.Stop().OK)

	totals, ok := rec.Totals(1)
	require.True(t, ok)
	assert.Equal(t, 2, totals.Sessions)
}

func TestRemovePlayerErasesTotals(t *testing.T) {
	rec := NewRecorder()
	g := newGame(t, rec)

	require.True(t, g.AddPlayer(1, "alice").OK)
	require.True(t, g.Stop().OK)

	require.NoError(t, rec.RemovePlayer(1))
	_, ok := rec.Totals(1)
	assert.False(t, ok)
}

func TestAllOrdersByBingosThenMarks(t *testing.T) {
	rec := NewRecorder()

	// Alice bingos in her game; bob's game stops before any call.
	g := newGame(t, rec)
	require.True(t, g.AddPlayer(1, "alice").OK)
	for i := 1; i <= 16; i++ {
		g.MakeCall(i)
	}
	require.True(t, g.Stop().OK)

	g2 := newGame(t, rec)
	require.True(t, g2.AddPlayer(2, "bob").OK)
	require.True(t, g2.Stop().OK)

	all := rec.All()
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].ID)
	assert.Equal(t, int64(2), all[1].ID)
}
