// Package config loads the engine configuration from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type AppConfig struct {
	Redis      RedisConfig
	Database   DatabaseConfig
	Server     ServerConfig
	Supervisor SupervisorConfig
	Game       GameConfig
	Log        LogConfig
}

type RedisConfig struct {
	URL string `env:"REDIS_URL,required,notEmpty"`
	// EventBusURL serves the presence set and pub/sub. Empty means URL.
	EventBusURL   string        `env:"EVENT_BUS_REDIS_URL"`
	OpTimeout     time.Duration `env:"STORE_OP_TIMEOUT" envDefault:"3s"`
	NotifyChannel string        `env:"NOTIFY_CHANNEL" envDefault:"game_updates"`
	PresenceSet   string        `env:"PRESENCE_SET" envDefault:"online_users"`
}

type DatabaseConfig struct {
	URL string `env:"DATABASE_URL"`
}

type ServerConfig struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":5002"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type SupervisorConfig struct {
	Enabled    bool          `env:"SUPERVISOR_ENABLED" envDefault:"true"`
	Interval   time.Duration `env:"SUPERVISOR_INTERVAL" envDefault:"2s"`
	StallAfter time.Duration `env:"SUPERVISOR_STALL_AFTER" envDefault:"35s"`
}

type GameConfig struct {
	TTL          time.Duration `env:"GAME_TTL" envDefault:"24h"`
	DefaultSpeed string        `env:"DEFAULT_SPEED" envDefault:"standard"`
	TiersDir     string        `env:"TIERS_DIR"`
}

type LogConfig struct {
	Level     string `env:"LOG_LEVEL" envDefault:"info"`
	Format    string `env:"LOG_FORMAT" envDefault:"legacy"`
	ToConsole bool   `env:"LOG_TO_CONSOLE" envDefault:"true"`
	ToFile    bool   `env:"LOG_TO_FILE" envDefault:"false"`
	File      string `env:"LOG_FILE" envDefault:"logs/game-engine.log"`
	Caller    bool   `env:"LOG_CALLER" envDefault:"false"`
}

// Load parses the environment and validates cross-field constraints.
func Load() (*AppConfig, error) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if strings.TrimSpace(cfg.Redis.EventBusURL) == "" {
		cfg.Redis.EventBusURL = cfg.Redis.URL
	}
	if cfg.Supervisor.Interval <= 0 {
		return nil, fmt.Errorf("SUPERVISOR_INTERVAL must be positive")
	}
	if cfg.Supervisor.StallAfter <= 0 {
		return nil, fmt.Errorf("SUPERVISOR_STALL_AFTER must be positive")
	}
	if cfg.Game.TTL <= 0 || cfg.Redis.OpTimeout <= 0 {
		return nil, fmt.Errorf("GAME_TTL and STORE_OP_TIMEOUT must be positive")
	}
	return &cfg, nil
}
