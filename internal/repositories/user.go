package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/shared"
)

// UserRepository implements [models.Repository] for [models.User] persistence.
type UserRepository struct {
	db *shared.Database
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *shared.Database) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, sequence, world_id, username, avatar_url, created_at, updated_at, deleted_at`

// Create inserts a new user. The ID is the auth uid; one is generated when empty.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = shared.GenerateID()
	}

	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	user.Sequence = sequence

	query := `
		INSERT INTO users (id, sequence, world_id, username, avatar_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		user.ID, sequence, nullString(user.WorldID), user.Username, user.AvatarURL,
		user.CreatedAt.UTC(), user.UpdatedAt.UTC(),
	)
	if err != nil {
		return wrapWriteErr("insert user", err)
	}

	return nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ? AND deleted_at IS NULL`
	user, err := r.scanOne(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", id)
	}
	return user, err
}

// GetByWorldID looks a user up by their World ID nullifier.
func (r *UserRepository) GetByWorldID(ctx context.Context, worldID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE world_id = ? AND deleted_at IS NULL`
	user, err := r.scanOne(r.db.QueryRowContext(ctx, query, worldID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user with world_id", worldID)
	}
	return user, err
}

// Update modifies an existing user in the database
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	user.UpdatedAt = now

	query := `
		UPDATE users
		SET world_id = ?, username = ?, avatar_url = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, nullString(user.WorldID), user.Username, user.AvatarURL, now, user.ID)
	if err != nil {
		return wrapWriteErr("update user", err)
	}

	return expectOne(result, "user", user.ID)
}

// Upsert creates the profile on first sight and updates it afterwards.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	existing, err := r.Get(ctx, user.ID)
	if errors.Is(err, shared.ErrNotFound) {
		return r.Create(ctx, user)
	}
	if err != nil {
		return err
	}

	user.Sequence = existing.Sequence
	user.CreatedAt = existing.CreatedAt
	return r.Update(ctx, user)
}

// Delete soft-deletes a user by ID
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE users SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return expectOne(result, "user", id)
}

// List retrieves users matching the given criteria, excluding soft-deleted users.
//
// Supported criteria: "username" (prefix match).
func (r *UserRepository) List(ctx context.Context, criteria map[string]any) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL`
	var args []any

	if v, ok := criteria["username"].(string); ok && v != "" {
		query += ` AND username LIKE ?`
		args = append(args, strings.ReplaceAll(v, "%", "")+"%")
	}
	query += ` ORDER BY sequence`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func (r *UserRepository) scanOne(row scanner) (*models.User, error) {
	var (
		user      models.User
		worldID   sql.NullString
		deletedAt sql.NullTime
	)

	err := row.Scan(&user.ID, &user.Sequence, &worldID, &user.Username, &user.AvatarURL,
		&user.CreatedAt, &user.UpdatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user.WorldID = worldID.String
	user.DeletedAt = timePtr(deletedAt)
	return &user, nil
}
