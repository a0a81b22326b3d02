package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/desertthunder/amply/internal/party"
	"github.com/desertthunder/amply/internal/repositories"
	"github.com/desertthunder/amply/internal/server"
	"github.com/desertthunder/amply/internal/services"
	"github.com/desertthunder/amply/internal/shared"
	"github.com/desertthunder/amply/internal/stats"
	"github.com/urfave/cli/v3"
)

// servicesFor returns the runner's integrations, or fresh ones when config is not the runner's own.
func (r *Runner) servicesFor(config *shared.Config) (services.TrackSearcher, services.BlobStore) {
	if config == r.config {
		return r.spotify, r.walrus
	}

	var spotify services.TrackSearcher
	if config.Credentials.Spotify.HasCredentials() {
		if svc, err := services.NewSpotifyService(config.Credentials.Spotify, services.WithSpotifyHTTPClient(r.httpClient)); err == nil {
			spotify = svc
		} else {
			r.logger.Warn("spotify search disabled", "error", err)
		}
	}
	return spotify, services.NewWalrusService(config.Walrus, r.httpClient)
}

// applyAddr overrides the configured host and port with a host:port flag value.
func applyAddr(cfg *shared.ServerConfig, addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%w: --addr %q: %v", shared.ErrInvalidArgument, addr, err)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("%w: --addr port %q", shared.ErrInvalidArgument, port)
	}
	cfg.Host = host
	cfg.Port = p
	return nil
}

// Serve runs the API until SIGINT or SIGTERM, then drains HTTP, closes the hub and finally the database.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, configPath, err := r.configFor(cmd)
	if err != nil {
		return err
	}
	if addr := cmd.String("addr"); addr != "" {
		if err := applyAddr(&config.Server, addr); err != nil {
			return err
		}
	}

	level := shared.ParseLogLevel(config.Log.Level)
	if config.Server.Debug {
		level = shared.ParseLogLevel("debug")
	}
	shared.SetLogLevel(r.logger, level)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := shared.OpenFromConfig(config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RunMigrationsContext(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	updater := stats.NewUpdater()
	updater.Run()
	defer updater.Stop()

	partyLogger := shared.WithLogger(r.logger, "component", "party")
	hub := party.NewHub(0, updater, partyLogger)
	spotify, walrus := r.servicesFor(config)
	if spotify == nil {
		r.logger.Warn("spotify credentials missing, search and queueing will answer 503")
	}

	coord := party.NewCoordinator(party.NewStore(db), hub, spotify,
		party.WithStats(updater),
		party.WithLogger(partyLogger),
	)

	go party.NewJanitor(coord, config.Party, partyLogger).Run(ctx)

	if cmd.Bool("watch") {
		if _, err := os.Stat(configPath); err == nil {
			watcher, err := shared.NewConfigWatcher(configPath, r.logger, func(c *shared.Config) {
				shared.SetLogLevel(r.logger, shared.ParseLogLevel(c.Log.Level))
			})
			if err != nil {
				r.logger.Warn("config watch disabled", "error", err)
			} else {
				go watcher.Run(ctx)
			}
		}
	}

	app := server.NewApp(server.Deps{
		Config:      config,
		DB:          db,
		Coordinator: coord,
		Users:       repositories.NewUserRepository(db),
		Spotify:     spotify,
		Walrus:      walrus,
		Stats:       updater,
		Logger:      shared.WithLogger(r.logger, "component", "server"),
	})

	errCh := make(chan error, 1)
	go func() { errCh <- app.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	r.logger.Info("shutting down", "timeout", server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
	defer cancel()

	if err := app.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	r.logger.Info("server stopped")
	return nil
}
