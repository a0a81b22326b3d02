package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/amply/internal/formatter"
	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/services"
	"github.com/desertthunder/amply/internal/shared"
	"github.com/urfave/cli/v3"
)

// SpotifySearch prints catalog matches for a query.
func (r *Runner) SpotifySearch(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify credentials are not configured", shared.ErrServiceUnavailable)
	}

	limit := services.ClampSearchLimit(cmd.Int("limit"))
	r.logger.Debug("searching spotify", "query", query, "limit", limit)

	tracks, err := r.spotify.Search(ctx, query, limit)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	if len(tracks) == 0 {
		return r.writePlain("No tracks found for %q\n", query)
	}

	r.writePlainHeader(fmt.Sprintf("%s results for %q", r.spotify.Name(), query))
	_, err = r.output.Write(formatter.TracksTable(tracks))
	return err
}

// SpotifyTrack prints a single catalog entry.
func (r *Runner) SpotifyTrack(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify credentials are not configured", shared.ErrServiceUnavailable)
	}

	track, err := r.spotify.Track(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(track, true)
	}

	_, err = r.output.Write(formatter.TracksTable([]models.SpotifyTrack{*track}))
	return err
}
