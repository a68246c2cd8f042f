package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/petithub/internal/apperror"
	"github.com/sakif/petithub/internal/model"
	"github.com/sakif/petithub/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Upsert inserts or updates a user keyed by GitHub ID.
//
// An existing user keeps their internal ID; profile fields and the access
// token are overwritten with the values from the latest login. On return
// user.ID, CreatedAt and UpdatedAt hold the stored values.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	var (
		existingID string
		createdAt  time.Time
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, created_at FROM users WHERE github_id = ?`, user.GitHubID,
	).Scan(&existingID, &createdAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	now := time.Now().UTC()
	expires := nullTime(user.TokenExpiresAt)

	if existingID != "" {
		user.ID = existingID
		user.CreatedAt = createdAt
		user.UpdatedAt = now
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users
			 SET login = ?, email = ?, avatar_url = ?, access_token = ?, refresh_token = ?, token_expires_at = ?, updated_at = ?
			 WHERE id = ?`,
			user.Login,
			user.Email,
			user.AvatarURL,
			user.AccessToken,
			user.RefreshToken,
			expires,
			user.UpdatedAt,
			user.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}
		return nil
	}

	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users
		 (id, github_id, login, email, avatar_url, access_token, refresh_token, token_expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.GitHubID,
		user.Login,
		user.Email,
		user.AvatarURL,
		user.AccessToken,
		user.RefreshToken,
		expires,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user (githubID=%d): %w", user.GitHubID, err)
	}
	return nil
}

// GetUserByID retrieves a user by internal ID, including the stored token.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var (
		u       model.User
		expires sql.NullTime
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, github_id, login, email, avatar_url, access_token, refresh_token, token_expires_at, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(
		&u.ID,
		&u.GitHubID,
		&u.Login,
		&u.Email,
		&u.AvatarURL,
		&u.AccessToken,
		&u.RefreshToken,
		&expires,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	if expires.Valid {
		u.TokenExpiresAt = expires.Time
	}

	return &u, nil
}

// nullTime stores the zero time as NULL.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
