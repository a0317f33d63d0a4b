package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port int `envconfig:"PORT" default:"8080"`

	// Empty runs without Postgres; snapshots then live in Redis or memory.
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`
	// Empty disables the snapshot cache and the replay mirror.
	RedisURL string `envconfig:"REDIS_URL" default:""`

	AllowedOrigins string        `envconfig:"ALLOWED_ORIGINS" default:"localhost:5173,localhost:3000"`
	ReplayLimit    int           `envconfig:"REPLAY_LIMIT" default:"5000"`
	ReplayTTL      time.Duration `envconfig:"REPLAY_TTL" default:"24h"`
	RoomGrace      time.Duration `envconfig:"ROOM_GRACE" default:"30s"`
	MDNSEnabled    bool          `envconfig:"MDNS_ENABLED" default:"false"`
	MDNSInstance   string        `envconfig:"MDNS_INSTANCE" default:""`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.ReplayLimit <= 0 {
		return nil, fmt.Errorf("REPLAY_LIMIT must be positive, got %d", cfg.ReplayLimit)
	}
	if _, err := cfg.Level(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Origins splits ALLOWED_ORIGINS into websocket origin patterns.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		o = strings.TrimSpace(o)
		o = strings.TrimPrefix(o, "http://")
		o = strings.TrimPrefix(o, "https://")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}
