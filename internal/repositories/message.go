package repositories

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/shared"
)

const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 200
)

// MessageRepository persists party chat.
type MessageRepository struct {
	db *shared.Database
}

func NewMessageRepository(db *shared.Database) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a message with a generated ID.
func (r *MessageRepository) Create(ctx context.Context, m *models.PartyMessage) error {
	m.ID = shared.GenerateID()
	if err := m.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO party_messages (id, party_id, user_id, content, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, m.ID, m.PartyID, m.UserID, m.Content, m.CreatedAt.UTC()); err != nil {
		return wrapWriteErr("insert message", err)
	}
	return nil
}

// List returns up to limit messages older than before (all when nil), oldest first.
func (r *MessageRepository) List(ctx context.Context, partyID string, before *time.Time, limit int) ([]*models.PartyMessage, error) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	limit = min(limit, MaxMessageLimit)

	query := `SELECT id, party_id, user_id, content, created_at FROM party_messages WHERE party_id = ?`
	args := []any{partyID}
	if before != nil {
		query += ` AND created_at < ?`
		args = append(args, before.UTC())
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.PartyMessage
	for rows.Next() {
		var m models.PartyMessage
		if err := rows.Scan(&m.ID, &m.PartyID, &m.UserID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(messages)
	return messages, nil
}
