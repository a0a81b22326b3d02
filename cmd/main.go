package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/amply/internal/services"
	"github.com/desertthunder/amply/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	configPath := defaultConfigPath
	if p := os.Getenv("AMPLY_CONFIG"); p != "" {
		configPath = p
	}

	config, err := shared.ResolveConfig(configPath)
	if err != nil {
		logger.Warn("invalid config, using defaults", "path", configPath, "error", err)
		config = shared.DefaultConfig()
	}
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Log.Level))

	var spotifyService services.TrackSearcher
	if config.Credentials.Spotify.HasCredentials() {
		if svc, err := services.NewSpotifyService(config.Credentials.Spotify); err == nil {
			spotifyService = svc
		} else {
			logger.Warn("spotify search disabled", "error", err)
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Spotify:    spotifyService,
		Walrus:     services.NewWalrusService(config.Walrus, nil),
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "amply",
		Usage:    "Listening parties with shared playback, chat and Walrus storage",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		logger.Fatalf("application error: %v", err)
	}
}
