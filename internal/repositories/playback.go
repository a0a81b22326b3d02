package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/shared"
)

// PlaybackRepository stores one [models.PlaybackState] row per party.
type PlaybackRepository struct {
	db *shared.Database
}

func NewPlaybackRepository(db *shared.Database) *PlaybackRepository {
	return &PlaybackRepository{db: db}
}

const playbackColumns = `party_id, current_track_id, position_ms, is_playing, version, updated_at`

// Get returns the party's transport.
func (r *PlaybackRepository) Get(ctx context.Context, partyID string) (*models.PlaybackState, error) {
	query := `SELECT ` + playbackColumns + ` FROM playback_states WHERE party_id = ?`
	state, err := scanPlayback(r.db.QueryRowContext(ctx, query, partyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("playback state", partyID)
	}
	return state, err
}

// Save upserts the transport row.
func (r *PlaybackRepository) Save(ctx context.Context, state *models.PlaybackState) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO playback_states (` + playbackColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (party_id) DO UPDATE SET
			current_track_id = excluded.current_track_id,
			position_ms = excluded.position_ms,
			is_playing = excluded.is_playing,
			version = excluded.version,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		state.PartyID, nullString(state.CurrentTrackID), state.PositionMS, state.IsPlaying,
		state.Version, state.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save playback state: %w", err)
	}
	return nil
}

// ListPlaying returns every state that is currently playing.
func (r *PlaybackRepository) ListPlaying(ctx context.Context) ([]*models.PlaybackState, error) {
	query := `SELECT ` + playbackColumns + ` FROM playback_states WHERE is_playing = ?`
	rows, err := r.db.QueryContext(ctx, query, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query playback states: %w", err)
	}
	defer rows.Close()

	var states []*models.PlaybackState
	for rows.Next() {
		state, err := scanPlayback(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

func scanPlayback(row scanner) (*models.PlaybackState, error) {
	var (
		state   models.PlaybackState
		trackID sql.NullString
	)
	err := row.Scan(&state.PartyID, &trackID, &state.PositionMS, &state.IsPlaying, &state.Version, &state.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan playback state: %w", err)
	}
	state.CurrentTrackID = trackID.String
	return &state, nil
}
