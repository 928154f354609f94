package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/schwolf/livebingo/internal/banlist"
	"github.com/schwolf/livebingo/internal/catalog"
	"github.com/schwolf/livebingo/internal/game"
	"github.com/schwolf/livebingo/internal/notify"
	"github.com/schwolf/livebingo/internal/runloop"
	"github.com/schwolf/livebingo/internal/session"
	"github.com/schwolf/livebingo/internal/stats"
)

// SimulateCmd plays one full game against the built-in catalog without a
// network in sight, calling random slots until somebody wins.
type SimulateCmd struct {
	Players  int    `short:"p" default:"8" help:"Number of players"`
	CardSize int    `default:"5" help:"Card dimension"`
	Variant  string `default:"classic" help:"Catalog variant"`
	Catalog  string `help:"Path to an HCL catalog file"`
	Seed     *int64 `help:"Deterministic RNG seed (optional)"`
	Debug    bool   `help:"Enable debug logging"`
}

func (c *SimulateCmd) Run() error {
	engineLog := log.NewWithOptions(os.Stderr, log.Options{Level: log.WarnLevel})
	if c.Debug {
		engineLog.SetLevel(log.DebugLevel)
	}

	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
	}
	rng := rand.New(rand.NewSource(seed))

	cat, err := catalog.Load(c.Catalog)
	if err != nil {
		return err
	}
	bans, err := banlist.Open(engineLog, nil, "")
	if err != nil {
		return err
	}

	loop := runloop.New(engineLog, nil, 0)
	loop.Start()
	defer loop.Stop()

	cfg := game.DefaultConfig()
	cfg.Variant = c.Variant
	cfg.CardSize = c.CardSize

	recorder := stats.NewRecorder()
	g := game.New(engineLog, nil, cat, bans, nil, cfg, rng)
	sess := session.New(engineLog, "simulation", g, loop, nil)
	defer sess.Close()

	if res := sess.Init(recorder); !res.OK {
		return fmt.Errorf("init: %s", res.Reason)
	}
	if res := sess.Start(); !res.OK {
		return fmt.Errorf("start: %s", res.Reason)
	}

	for i := 0; i < c.Players; i++ {
		name := fmt.Sprintf("player-%d", i+1)
		res := sess.AddPlayer(int64(i+1), name, session.Bind(notify.Nop{}))
		if !res.OK {
			return fmt.Errorf("add %s: %s", name, res.Reason)
		}
		if res.Warning != "" {
			fmt.Println(res.Warning)
		}
	}
	fmt.Printf("Simulating %d players on %dx%d cards (seed %d)\n", c.Players, c.CardSize, c.CardSize, seed)

	var winners []*game.Player
	calls := 0
	for _, index := range rng.Perm(cat.NumSlots(c.Variant)) {
		res := sess.MakeCall(index + 1)
		if !res.OK {
			return fmt.Errorf("call %d: %s", index+1, res.Reason)
		}
		calls++
		if len(res.NewBingos) > 0 {
			winners = res.NewBingos
			fmt.Printf("Call %2d: %s\n", calls, res.Reason)
			break
		}
	}

	if len(winners) == 0 {
		fmt.Printf("No bingo after %d calls\n", calls)
	}
	for _, w := range winners {
		fmt.Printf("BINGO after %d calls: %s (card %s)\n", calls, w.Name(), w.Card().ID())
	}

	if res := sess.Stop(); !res.OK {
		return fmt.Errorf("stop: %s", res.Reason)
	}

	fmt.Println("\nSession totals:")
	for _, totals := range recorder.All() {
		fmt.Printf("  %-12s marks=%-3d bingos=%d\n", totals.Name, totals.Marks, totals.Bingos)
	}
	return nil
}
