package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/livyctl/internal/livysim"
)

// livysim config.toml schema; every key is optional and overlays the
// compiled defaults.
type fileConfig struct {
	Node            string `toml:"node"`
	ListenAddr      string `toml:"listen_addr"`
	ReadyAfterPolls int    `toml:"ready_after_polls"`
	StatementPolls  int    `toml:"statement_polls"`
	FailFirst       int    `toml:"fail_first"`
	RequireAuth     bool   `toml:"require_auth"`
}

func loadServiceConfig(path string) (livysim.ServiceConfig, error) {
	cfg := livysim.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return livysim.ServiceConfig{}, fmt.Errorf("load livysim config: %w", err)
	}

	if meta.IsDefined("node") {
		cfg.Node = strings.TrimSpace(raw.Node)
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("ready_after_polls") {
		cfg.ReadyAfterPolls = raw.ReadyAfterPolls
	}
	if meta.IsDefined("statement_polls") {
		cfg.StatementPolls = raw.StatementPolls
	}
	if meta.IsDefined("fail_first") {
		cfg.FailFirst = raw.FailFirst
	}
	if meta.IsDefined("require_auth") {
		cfg.RequireAuth = raw.RequireAuth
	}

	if cfg.ReadyAfterPolls < 0 {
		return livysim.ServiceConfig{}, fmt.Errorf("load livysim config: ready_after_polls must be >= 0")
	}
	if cfg.StatementPolls < 0 {
		return livysim.ServiceConfig{}, fmt.Errorf("load livysim config: statement_polls must be >= 0")
	}
	if cfg.FailFirst < 0 {
		return livysim.ServiceConfig{}, fmt.Errorf("load livysim config: fail_first must be >= 0")
	}
	return cfg, nil
}
