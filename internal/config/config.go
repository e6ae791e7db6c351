package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr      string        `env:"HTTP_ADDR" envDefault:":8080"`
	DBDriver      string        `env:"DB_DRIVER" envDefault:"libsql"`
	DBPath        string        `env:"DB_PATH" envDefault:"data/tycoon.db"`
	LogLevel      slog.Level    `env:"LOG_LEVEL" envDefault:"INFO"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	SeedDemo      bool          `env:"SEED_DEMO" envDefault:"false"`
	OTelEndpoint  string        `env:"OTEL_ENDPOINT"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) validate() error {
	switch c.DBDriver {
	case "libsql", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER %q: want libsql or sqlite", c.DBDriver)
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	return nil
}
