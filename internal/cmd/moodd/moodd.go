// Package moodd parses mood service flags and launches the service.
package moodd

import (
	"context"
	"flag"

	entrypoint "github.com/moodtide/moodtide.app/internal/platform/cmd"
	server "github.com/moodtide/moodtide.app/internal/services/mood/app"
)

// Config holds mood command configuration.
type Config struct {
	Port int `env:"MOODTIDE_PORT" envDefault:"8080"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The mood HTTP server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the mood HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMood, func(context.Context) error {
		return server.Run(ctx, cfg.Port)
	})
}
