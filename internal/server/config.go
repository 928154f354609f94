package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/schwolf/livebingo/internal/game"
)

// ServerConfig is the complete gateway configuration.
type ServerConfig struct {
	Server ServerSettings `hcl:"server,block"`
	Games  []GameConfig   `hcl:"game,block"`
}

// ServerSettings contains server-level configuration.
type ServerSettings struct {
	Address     string `hcl:"address,optional"`
	Port        int    `hcl:"port,optional"`
	LogLevel    string `hcl:"log_level,optional"`
	BanFile     string `hcl:"ban_file,optional"`
	CatalogFile string `hcl:"catalog_file,optional"`
}

// GameConfig defines one game room.
type GameConfig struct {
	Name                string   `hcl:"name,label"`
	Variant             string   `hcl:"variant,optional"`
	CardSize            int      `hcl:"card_size,optional"`
	FreeSpace           *bool    `hcl:"free_space,optional"`
	RetroactiveCalls    *bool    `hcl:"retroactive_calls,optional"`
	Debug               bool     `hcl:"debug,optional"`
	RejectionLimit      *int     `hcl:"rejection_limit,optional"`
	RejectionCooldownMS int      `hcl:"rejection_cooldown_ms,optional"`
	BlockedNames        []string `hcl:"blocked_names,optional"`
}

// ListenAddr returns the host:port the gateway binds to.
func (s ServerSettings) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

// GameSettings converts a room block to the engine's config, filling in
// the engine defaults for anything the block left out.
func (gc GameConfig) GameSettings() game.Config {
	cfg := game.DefaultConfig()
	if gc.Variant != "" {
		cfg.Variant = gc.Variant
	}
	if gc.CardSize != 0 {
		cfg.CardSize = gc.CardSize
	}
	if gc.FreeSpace != nil {
		cfg.UseFreeSpace = *gc.FreeSpace
	}
	if gc.RetroactiveCalls != nil {
		cfg.RetroactiveCalls = *gc.RetroactiveCalls
	}
	if gc.RejectionLimit != nil {
		cfg.RejectionLimit = *gc.RejectionLimit
	}
	if gc.RejectionCooldownMS != 0 {
		cfg.RejectionCooldown = time.Duration(gc.RejectionCooldownMS) * time.Millisecond
	}
	cfg.Debug = gc.Debug
	return cfg
}

// DefaultServerConfig returns the configuration used when no file exists:
// one classic game on the local interface.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Games: []GameConfig{{Name: "bingo"}},
	}
}

// LoadServerConfig loads gateway configuration from an HCL file. A missing
// file yields the defaults.
func LoadServerConfig(filename string) (*ServerConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	if config.Server.Address == "" {
		config.Server.Address = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
	if len(config.Games) == 0 {
		config.Games = []GameConfig{{Name: "bingo"}}
	}
	return &config, nil
}
