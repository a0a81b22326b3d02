package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/shared"
)

// SignalRepository stores WebRTC signals until the recipient drains them.
type SignalRepository struct {
	db *shared.Database
}

func NewSignalRepository(db *shared.Database) *SignalRepository {
	return &SignalRepository{db: db}
}

// Create inserts a signal with a generated ID.
func (r *SignalRepository) Create(ctx context.Context, s *models.WebRTCSignal) error {
	s.ID = shared.GenerateID()
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO webrtc_signals (id, party_id, from_user, to_user, signal_type, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, s.ID, s.PartyID, s.FromUser, s.ToUser, string(s.Type), string(s.Payload), s.CreatedAt.UTC())
	if err != nil {
		return wrapWriteErr("insert signal", err)
	}
	return nil
}

// Drain returns every pending signal addressed to userID in the party, oldest first, and deletes them.
func (r *SignalRepository) Drain(ctx context.Context, partyID, userID string) ([]*models.WebRTCSignal, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT id, party_id, from_user, to_user, signal_type, payload, created_at
		FROM webrtc_signals
		WHERE party_id = ? AND to_user = ?
		ORDER BY created_at, id
	`
	rows, err := tx.QueryContext(ctx, query, partyID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}

	var signals []*models.WebRTCSignal
	for rows.Next() {
		var (
			s       models.WebRTCSignal
			typ     string
			payload string
		)
		if err := rows.Scan(&s.ID, &s.PartyID, &s.FromUser, &s.ToUser, &typ, &payload, &s.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		s.Type = models.SignalType(typ)
		s.Payload = []byte(payload)
		signals = append(signals, &s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, s := range signals {
		if _, err := tx.ExecContext(ctx, `DELETE FROM webrtc_signals WHERE id = ?`, s.ID); err != nil {
			return nil, fmt.Errorf("failed to delete drained signal: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit drain: %w", err)
	}
	return signals, nil
}

// DeleteFor removes a user's pending signals in a party.
func (r *SignalRepository) DeleteFor(ctx context.Context, partyID, userID string) error {
	query := `DELETE FROM webrtc_signals WHERE party_id = ? AND (to_user = ? OR from_user = ?)`
	if _, err := r.db.ExecContext(ctx, query, partyID, userID, userID); err != nil {
		return fmt.Errorf("failed to delete signals: %w", err)
	}
	return nil
}

// PruneBefore deletes signals created before cutoff and reports how many went.
func (r *SignalRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM webrtc_signals WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune signals: %w", err)
	}
	return result.RowsAffected()
}
