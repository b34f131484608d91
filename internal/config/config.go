// Package config holds the engine tuning: tick rate, phase lengths, storage
// backends and listen addresses.
package config

import (
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"arenaforge.gg/internal/sim/match"
)

// EnvPrefix is prepended to every env tag below.
const EnvPrefix = "ARENA_"

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz" env:"TICK_RATE_HZ"`

	LobbySeconds     int `yaml:"lobby_seconds" env:"LOBBY_SECONDS"`
	GameLimitSeconds int `yaml:"game_limit_seconds" env:"GAME_LIMIT_SECONDS"`
	DoneSeconds      int `yaml:"done_seconds" env:"DONE_SECONDS"`
	IdleGraceSeconds int `yaml:"idle_grace_seconds" env:"IDLE_GRACE_SECONDS"`

	CheckpointEveryTicks int `yaml:"checkpoint_every_ticks" env:"CHECKPOINT_EVERY_TICKS"`

	DataDir    string `yaml:"data_dir" env:"DATA_DIR"`
	ArenasPath string `yaml:"arenas_path" env:"ARENAS_PATH"`

	// Stats is "sqlite", "redis" or "none".
	Stats     string `yaml:"stats" env:"STATS"`
	RedisAddr string `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisKey  string `yaml:"redis_key" env:"REDIS_KEY"`

	HTTPAddr string `yaml:"http_addr" env:"HTTP_ADDR"`
	// EventsLoopbackOnly keeps the /v1/events feed local like the admin API.
	EventsLoopbackOnly bool `yaml:"events_loopback_only" env:"EVENTS_LOOPBACK_ONLY"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogPretty bool   `yaml:"log_pretty" env:"LOG_PRETTY"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:           20,
		LobbySeconds:         30,
		GameLimitSeconds:     15 * 60,
		DoneSeconds:          10,
		IdleGraceSeconds:     60,
		CheckpointEveryTicks: 100,
		DataDir:              "./data",
		ArenasPath:           "./configs/arenas.yaml",
		Stats:                "sqlite",
		RedisKey:             "arena",
		HTTPAddr:             ":8090",
		LogLevel:             "info",
	}
}

// Load reads path over Defaults, applies ARENA_* overrides and validates the
// result. An empty path skips the file.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return t, eris.Wrapf(err, "read %s", path)
		}
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return t, eris.Wrapf(err, "parse %s", path)
		}
	}
	if err := env.ParseWithOptions(&t, env.Options{Prefix: EnvPrefix}); err != nil {
		return t, eris.Wrap(err, "parse environment")
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	d := Defaults()
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.CheckpointEveryTicks <= 0 {
		t.CheckpointEveryTicks = d.CheckpointEveryTicks
	}
	t.Stats = strings.ToLower(strings.TrimSpace(t.Stats))
	if t.Stats == "" {
		t.Stats = "none"
	}
	t.LogLevel = strings.ToLower(strings.TrimSpace(t.LogLevel))
}

func (t Tuning) Validate() error {
	if t.TickRateHz > 1000 {
		return eris.Errorf("tick_rate_hz %d is above 1000", t.TickRateHz)
	}
	for name, v := range map[string]int{
		"lobby_seconds":      t.LobbySeconds,
		"game_limit_seconds": t.GameLimitSeconds,
		"done_seconds":       t.DoneSeconds,
		"idle_grace_seconds": t.IdleGraceSeconds,
	} {
		if v <= 0 {
			return eris.Errorf("%s must be > 0, got %d", name, v)
		}
	}
	switch t.Stats {
	case "sqlite", "none":
	case "redis":
		if t.RedisAddr == "" {
			return eris.New("redis_addr is required when stats is redis")
		}
	default:
		return eris.Errorf("unknown stats backend %q", t.Stats)
	}
	if t.DataDir == "" {
		return eris.New("data_dir is required")
	}
	return nil
}

func (t Tuning) ticks(seconds int) int {
	return max(1, seconds*t.TickRateHz)
}

// Timings converts the configured durations to heartbeat ticks.
func (t Tuning) Timings() match.Timings {
	return match.Timings{
		PhaseInterval:  t.TickRateHz,
		LobbyCountdown: t.ticks(t.LobbySeconds),
		GameLimit:      t.ticks(t.GameLimitSeconds),
		DoneDuration:   t.ticks(t.DoneSeconds),
		WatchInterval:  t.TickRateHz,
		IdleGrace:      t.ticks(t.IdleGraceSeconds),
	}
}
