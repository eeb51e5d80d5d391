// Package config reads process settings from the environment, after an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTP    HTTPConfig
	WS      WSConfig
	Log     LogConfig
	Storage StorageConfig
	Export  ExportConfig

	// StrictUsernames rejects a known username before the game starts
	// instead of treating it as a rejoin.
	StrictUsernames bool          `env:"STRICT_USERNAMES" envDefault:"false"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

type HTTPConfig struct {
	Listen         string   `env:"HTTP_LISTEN" envDefault:":3000"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
}

type WSConfig struct {
	// Listen is the dedicated socket listener. Empty serves sockets only
	// under /ws/ on the HTTP listener.
	Listen       string        `env:"WS_LISTEN" envDefault:":8080"`
	WriteTimeout time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"5s"`
	ReadLimit    int64         `env:"WS_READ_LIMIT" envDefault:"32768"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type StorageConfig struct {
	URI    string `env:"STORAGE_URI" envDefault:"file://./sessions"`
	Prefix string `env:"STORAGE_PREFIX" envDefault:"cinemagames"`
}

type ExportConfig struct {
	MaxRetries uint64        `env:"EXPORT_MAX_RETRIES" envDefault:"3"`
	Timeout    time.Duration `env:"EXPORT_TIMEOUT" envDefault:"10s"`
}

// Load reads envFiles (a missing file is fine) and then the environment.
// Values already set in the environment win over the files.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "console" {
		return Config{}, fmt.Errorf("LOG_FORMAT must be json or console, got %q", cfg.Log.Format)
	}
	return cfg, nil
}
