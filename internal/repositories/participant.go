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

// ParticipantRepository persists [models.PartyParticipant] rows keyed by (party_id, user_id).
type ParticipantRepository struct {
	db *shared.Database
}

func NewParticipantRepository(db *shared.Database) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

const participantColumns = `party_id, user_id, role, joined_at, left_at`

// Join inserts the membership or, for a returning user, clears left_at and restamps joined_at.
func (r *ParticipantRepository) Join(ctx context.Context, p *models.PartyParticipant) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	p.LeftAt = nil

	query := `
		INSERT INTO party_participants (party_id, user_id, role, joined_at, left_at)
		VALUES (?, ?, ?, ?, NULL)
		ON CONFLICT (party_id, user_id)
		DO UPDATE SET role = excluded.role, joined_at = excluded.joined_at, left_at = NULL
	`

	if _, err := r.db.ExecContext(ctx, query, p.PartyID, p.UserID, string(p.Role), p.JoinedAt.UTC()); err != nil {
		return wrapWriteErr("join party", err)
	}
	return nil
}

// Get returns the membership row whether or not the user is still present.
func (r *ParticipantRepository) Get(ctx context.Context, partyID, userID string) (*models.PartyParticipant, error) {
	query := `SELECT ` + participantColumns + ` FROM party_participants WHERE party_id = ? AND user_id = ?`
	p, err := scanParticipant(r.db.QueryRowContext(ctx, query, partyID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("participant", partyID+":"+userID)
	}
	return p, err
}

// Leave stamps left_at for an active participant.
func (r *ParticipantRepository) Leave(ctx context.Context, partyID, userID string, at time.Time) error {
	query := `UPDATE party_participants SET left_at = ? WHERE party_id = ? AND user_id = ? AND left_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, at.UTC(), partyID, userID)
	if err != nil {
		return fmt.Errorf("failed to leave party: %w", err)
	}
	return expectOne(result, "active participant", partyID+":"+userID)
}

// LeaveAll marks every active participant as gone, used when a party ends.
func (r *ParticipantRepository) LeaveAll(ctx context.Context, partyID string, at time.Time) (int64, error) {
	query := `UPDATE party_participants SET left_at = ? WHERE party_id = ? AND left_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, at.UTC(), partyID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear participants: %w", err)
	}
	return result.RowsAffected()
}

// SetRole changes a participant's role.
func (r *ParticipantRepository) SetRole(ctx context.Context, partyID, userID string, role models.Role) error {
	query := `UPDATE party_participants SET role = ? WHERE party_id = ? AND user_id = ?`
	result, err := r.db.ExecContext(ctx, query, string(role), partyID, userID)
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	return expectOne(result, "participant", partyID+":"+userID)
}

// ListActive returns present participants, earliest joiner first.
func (r *ParticipantRepository) ListActive(ctx context.Context, partyID string) ([]*models.PartyParticipant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM party_participants
		WHERE party_id = ? AND left_at IS NULL
		ORDER BY joined_at, user_id
	`

	rows, err := r.db.QueryContext(ctx, query, partyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	var participants []*models.PartyParticipant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// CountActive returns the number of present participants.
func (r *ParticipantRepository) CountActive(ctx context.Context, partyID string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM party_participants WHERE party_id = ? AND left_at IS NULL`
	if err := r.db.QueryRowContext(ctx, query, partyID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return n, nil
}

// LastLeftAt returns the most recent departure time, or nil if nobody has left.
func (r *ParticipantRepository) LastLeftAt(ctx context.Context, partyID string) (*time.Time, error) {
	query := `
		SELECT left_at FROM party_participants
		WHERE party_id = ? AND left_at IS NOT NULL
		ORDER BY left_at DESC
		LIMIT 1
	`
	var left sql.NullTime
	err := r.db.QueryRowContext(ctx, query, partyID).Scan(&left)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last departure: %w", err)
	}
	return timePtr(left), nil
}

func scanParticipant(row scanner) (*models.PartyParticipant, error) {
	var (
		p      models.PartyParticipant
		role   string
		leftAt sql.NullTime
	)
	if err := row.Scan(&p.PartyID, &p.UserID, &role, &p.JoinedAt, &leftAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan participant: %w", err)
	}
	p.Role = models.Role(role)
	p.LeftAt = timePtr(leftAt)
	return &p, nil
}
