package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/shared"
)

// codeAttempts bounds retries when a generated invite code collides.
const codeAttempts = 3

// PartyRepository implements [models.Repository] for [models.ListeningParty].
type PartyRepository struct {
	db *shared.Database
}

func NewPartyRepository(db *shared.Database) *PartyRepository {
	return &PartyRepository{db: db}
}

const partyColumns = `id, sequence, code, host_id, title, description, status,
	scheduled_for, started_at, ended_at, created_at, updated_at`

// Create inserts a party with a generated ID, sequence and invite code.
func (r *PartyRepository) Create(ctx context.Context, party *models.ListeningParty) error {
	party.ID = shared.GenerateID()

	sequence, err := NextSequence(ctx, r.db, "parties")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	party.Sequence = sequence

	query := `
		INSERT INTO parties (` + partyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for attempt := 0; ; attempt++ {
		code, err := shared.GenerateCode()
		if err != nil {
			return err
		}
		party.Code = code

		if err := party.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		_, err = r.db.ExecContext(ctx, query,
			party.ID, sequence, party.Code, party.HostID, party.Title, party.Description, string(party.Status),
			nullTime(party.ScheduledFor), nullTime(party.StartedAt), nullTime(party.EndedAt),
			party.CreatedAt.UTC(), party.UpdatedAt.UTC(),
		)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) || attempt+1 >= codeAttempts {
			return wrapWriteErr("insert party", err)
		}
	}
}

// Get retrieves a party by ID.
func (r *PartyRepository) Get(ctx context.Context, id string) (*models.ListeningParty, error) {
	query := `SELECT ` + partyColumns + ` FROM parties WHERE id = ?`
	party, err := r.scanOne(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("party", id)
	}
	return party, err
}

// GetByCode retrieves a party by its invite code.
func (r *PartyRepository) GetByCode(ctx context.Context, code string) (*models.ListeningParty, error) {
	query := `SELECT ` + partyColumns + ` FROM parties WHERE code = ?`
	party, err := r.scanOne(r.db.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("party with code", code)
	}
	return party, err
}

// Update writes the mutable columns of a party.
func (r *PartyRepository) Update(ctx context.Context, party *models.ListeningParty) error {
	if err := party.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if party.UpdatedAt.IsZero() {
		party.UpdatedAt = time.Now().UTC()
	}

	query := `
		UPDATE parties
		SET host_id = ?, title = ?, description = ?, status = ?, scheduled_for = ?,
			started_at = ?, ended_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		party.HostID, party.Title, party.Description, string(party.Status), nullTime(party.ScheduledFor),
		nullTime(party.StartedAt), nullTime(party.EndedAt), party.UpdatedAt.UTC(), party.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update party: %w", err)
	}

	return expectOne(result, "party", party.ID)
}

// Delete removes a party and, through cascading keys, every row that belongs to it.
func (r *PartyRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// explicit child deletes keep this correct when foreign keys are off
	for _, table := range []string{"webrtc_signals", "party_tracks", "playback_states", "party_messages", "party_participants"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE party_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM parties WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete party: %w", err)
	}
	if err := expectOne(result, "party", id); err != nil {
		return err
	}

	return tx.Commit()
}

// List retrieves parties, newest first.
//
// Supported criteria: "status" ([models.PartyStatus] or string), "host_id" (string), "limit" (int).
func (r *PartyRepository) List(ctx context.Context, criteria map[string]any) ([]*models.ListeningParty, error) {
	query := `SELECT ` + partyColumns + ` FROM parties WHERE 1 = 1`
	var args []any

	switch v := criteria["status"].(type) {
	case models.PartyStatus:
		if v != "" {
			query += ` AND status = ?`
			args = append(args, string(v))
		}
	case string:
		if v != "" {
			query += ` AND status = ?`
			args = append(args, v)
		}
	}

	if v, ok := criteria["host_id"].(string); ok && v != "" {
		query += ` AND host_id = ?`
		args = append(args, v)
	}

	query += ` ORDER BY sequence DESC`

	if v, ok := criteria["limit"].(int); ok && v > 0 {
		query += fmt.Sprintf(` LIMIT %d`, v)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query parties: %w", err)
	}
	defer rows.Close()

	var parties []*models.ListeningParty
	for rows.Next() {
		party, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		parties = append(parties, party)
	}

	return parties, rows.Err()
}

func (r *PartyRepository) scanOne(row scanner) (*models.ListeningParty, error) {
	var (
		party                            models.ListeningParty
		status                           string
		scheduledFor, startedAt, endedAt sql.NullTime
	)

	err := row.Scan(&party.ID, &party.Sequence, &party.Code, &party.HostID, &party.Title, &party.Description,
		&status, &scheduledFor, &startedAt, &endedAt, &party.CreatedAt, &party.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan party: %w", err)
	}

	party.Status = models.PartyStatus(status)
	party.ScheduledFor = timePtr(scheduledFor)
	party.StartedAt = timePtr(startedAt)
	party.EndedAt = timePtr(endedAt)
	return &party, nil
}
