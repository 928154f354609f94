package main

import (
	"math/rand"
	"time"

	"github.com/schwolf/livebingo/internal/banlist"
	"github.com/schwolf/livebingo/internal/catalog"
	"github.com/schwolf/livebingo/internal/game"
	"github.com/schwolf/livebingo/internal/runloop"
	"github.com/schwolf/livebingo/internal/server"
	"github.com/schwolf/livebingo/internal/session"
	"github.com/schwolf/livebingo/internal/stats"
)

// ServeCmd runs the websocket gateway.
type ServeCmd struct {
	Config   string `short:"c" default:"livebingo.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" help:"Listen address (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	Debug    bool   `help:"Enable debug logging"`
	Seed     *int64 `help:"Deterministic RNG seed for card generation (optional)"`
}

func (c *ServeCmd) Run() error {
	cfg, err := server.LoadServerConfig(c.Config)
	if err != nil {
		return err
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}

	gatewayLog := setupGatewayLogger(c.Debug)
	engineLog := setupEngineLogger(cfg.Server.LogLevel, c.Debug)

	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
		gatewayLog.Info().Int64("seed", seed).Msg("Using deterministic seed")
	}

	cat, err := catalog.Load(cfg.Server.CatalogFile)
	if err != nil {
		return err
	}
	bans, err := banlist.Open(engineLog, nil, cfg.Server.BanFile)
	if err != nil {
		return err
	}

	loop := runloop.New(engineLog, nil, 0)
	loop.Start()
	defer loop.Stop()

	recorder := stats.NewRecorder()
	store := session.NewStore(engineLog)
	for i, gc := range cfg.Games {
		var filter game.ContentFilter
		if len(gc.BlockedNames) > 0 {
			filter = game.NewBlocklistFilter(gc.BlockedNames)
		}
		// Each game gets its own rng: sessions run concurrently and
		// math/rand sources are not goroutine safe.
		rng := rand.New(rand.NewSource(seed + int64(i)))
		g := game.New(engineLog, nil, cat, bans, filter, gc.GameSettings(), rng)
		sess := session.New(engineLog, gc.Name, g, loop, nil)
		if res := sess.Init(recorder); !res.OK {
			gatewayLog.Error().Str("game", gc.Name).Str("reason", res.Reason).Msg("Game failed to initialize")
			continue
		}
		store.Register(sess)
		gatewayLog.Info().Str("game", gc.Name).Str("variant", gc.GameSettings().Variant).Msg("Game room ready")
	}
	defer store.CloseAll()

	addr := cfg.Server.ListenAddr()
	if c.Addr != "" {
		addr = c.Addr
	}

	srv := server.New(addr, gatewayLog, store)
	ctx := setupSignalHandler(gatewayLog)
	return srv.Run(ctx)
}
