// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Server struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath          string        `env:"DB_PATH" envDefault:"data/rallye.db"`
	LogLevel        slog.Level    `env:"LOG_LEVEL" envDefault:"INFO"`
	RedisURL        string        `env:"REDIS_URL"`
	SPADir          string        `env:"SPA_DIR" envDefault:"../web/dist"`
	PointsPerAnswer int           `env:"POINTS_PER_ANSWER" envDefault:"100"`
	LocationTTL     time.Duration `env:"LOCATION_TTL" envDefault:"10m"`
	SeedDemo        bool          `env:"SEED_DEMO" envDefault:"true"`
}

// Player configures the terminal player client.
type Player struct {
	API          string        `env:"RALLYE_API" envDefault:"http://localhost:8080"`
	RoomCode     string        `env:"ROOM_CODE,required"`
	GroupName    string        `env:"GROUP_NAME,required"`
	Mode         string        `env:"MODE" envDefault:"simulated"`
	GPSDAddr     string        `env:"GPSD_ADDR"`
	StepMeters   float64       `env:"STEP_METERS" envDefault:"75"`
	Duration     time.Duration `env:"GAME_DURATION" envDefault:"2h"`
	PushInterval time.Duration `env:"PUSH_INTERVAL" envDefault:"10s"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`
	HTTPTimeout  time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	LogLevel     slog.Level    `env:"LOG_LEVEL" envDefault:"WARN"`
}

// Watch configures the terminal admin live view.
type Watch struct {
	API              string        `env:"RALLYE_API" envDefault:"http://localhost:8080"`
	RoomCode         string        `env:"ROOM_CODE,required"`
	RosterInterval   time.Duration `env:"ROSTER_INTERVAL" envDefault:"5s"`
	RouteInterval    time.Duration `env:"ROUTE_INTERVAL" envDefault:"4s"`
	LocationInterval time.Duration `env:"LOCATION_INTERVAL" envDefault:"10s"`
	ScoreInterval    time.Duration `env:"SCORE_INTERVAL" envDefault:"10s"`
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	LogLevel         slog.Level    `env:"LOG_LEVEL" envDefault:"WARN"`
}

func LoadServer() (*Server, error) {
	cfg, err := env.ParseAs[Server]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}

func LoadPlayer() (*Player, error) {
	cfg, err := env.ParseAs[Player]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.Mode != "gps" && cfg.Mode != "simulated" {
		return nil, fmt.Errorf("MODE must be gps or simulated, got %q", cfg.Mode)
	}
	if cfg.Mode == "gps" && cfg.GPSDAddr == "" {
		return nil, fmt.Errorf("MODE=gps requires GPSD_ADDR")
	}
	return &cfg, nil
}

func LoadWatch() (*Watch, error) {
	cfg, err := env.ParseAs[Watch]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
