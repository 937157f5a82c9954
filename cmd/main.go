package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/swiper/internal/shared"
	"github.com/urfave/cli/v3"
)

// configPath is the TOML file read at startup. SWIPER_CONFIG overrides it.
func configPath() string {
	if p := os.Getenv("SWIPER_CONFIG"); p != "" {
		return p
	}
	return "config.toml"
}

func main() {
	logger := shared.NewLogger(nil)

	config, err := shared.ResolveConfig(configPath())
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.LogLevel))

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath(),
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "swiper",
		Usage:    "Discover music by swiping through Spotify recommendations",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) {
			logger.Error("not logged in, run 'swiper login' first", "error", err)
			os.Exit(1)
		}
		logger.Fatalf("application error: %v", err)
	}
}
