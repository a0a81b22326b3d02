package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/shared"
)

// TrackRepository persists the party queue.
type TrackRepository struct {
	db *shared.Database
}

func NewTrackRepository(db *shared.Database) *TrackRepository {
	return &TrackRepository{db: db}
}

const trackColumns = `id, party_id, spotify_id, title, artist, album, image_url, duration_ms,
	added_by, position, status, created_at`

// Add appends a track to the end of the party queue, assigning ID and position.
func (r *TrackRepository) Add(ctx context.Context, track *models.PartyTrack) error {
	track.ID = shared.GenerateID()
	if track.Status == "" {
		track.Status = models.TrackQueued
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	track.Position, err = nextPosition(ctx, tx, track.PartyID)
	if err != nil {
		return err
	}

	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO party_tracks (` + trackColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query,
		track.ID, track.PartyID, track.SpotifyID, track.Title, track.Artist, track.Album, track.ImageURL,
		track.DurationMS, track.AddedBy, track.Position, string(track.Status), track.CreatedAt.UTC(),
	)
	if err != nil {
		return wrapWriteErr("insert track", err)
	}

	return tx.Commit()
}

// nextPosition returns the slot after the party's last queue entry.
func nextPosition(ctx context.Context, q shared.Querier, partyID string) (int, error) {
	var next int
	err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM party_tracks WHERE party_id = ?`, partyID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to compute queue position: %w", err)
	}
	return next, nil
}

// Get retrieves a queue entry by ID.
func (r *TrackRepository) Get(ctx context.Context, id string) (*models.PartyTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM party_tracks WHERE id = ?`
	track, err := scanTrack(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("track", id)
	}
	return track, err
}

// List returns the party queue in position order. An empty status returns every entry.
func (r *TrackRepository) List(ctx context.Context, partyID string, status models.TrackStatus) ([]*models.PartyTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM party_tracks WHERE party_id = ?`
	args := []any{partyID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY position`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.PartyTrack
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}

// NextQueued returns the lowest-position queued track.
func (r *TrackRepository) NextQueued(ctx context.Context, partyID string) (*models.PartyTrack, error) {
	query := `
		SELECT ` + trackColumns + ` FROM party_tracks
		WHERE party_id = ? AND status = ?
		ORDER BY position
		LIMIT 1
	`
	track, err := scanTrack(r.db.QueryRowContext(ctx, query, partyID, string(models.TrackQueued)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrQueueEmpty, partyID)
	}
	return track, err
}

// SetStatus moves a queue entry between queued, playing and played.
func (r *TrackRepository) SetStatus(ctx context.Context, id string, status models.TrackStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE party_tracks SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update track status: %w", err)
	}
	return expectOne(result, "track", id)
}

// Delete removes a queue entry. Positions of the remaining entries are left as they are.
func (r *TrackRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM party_tracks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	return expectOne(result, "track", id)
}

func scanTrack(row scanner) (*models.PartyTrack, error) {
	var (
		t      models.PartyTrack
		status string
	)
	err := row.Scan(&t.ID, &t.PartyID, &t.SpotifyID, &t.Title, &t.Artist, &t.Album, &t.ImageURL,
		&t.DurationMS, &t.AddedBy, &t.Position, &status, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}
	t.Status = models.TrackStatus(status)
	return &t, nil
}
