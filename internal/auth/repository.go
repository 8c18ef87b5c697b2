package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository implements UserStore and RefreshTokenStore over postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByUsername(ctx context.Context, username string) (User, error) {
	return r.findUser(ctx, `
		SELECT id, username, name, email, password_hash, created_at, updated_at
		FROM users
		WHERE username = $1
	`, username)
}

func (r *Repository) FindByID(ctx context.Context, id string) (User, error) {
	return r.findUser(ctx, `
		SELECT id, username, name, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
}

func (r *Repository) findUser(ctx context.Context, query, arg string) (User, error) {
	var user User
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Username, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrRecordNotFound
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

func (r *Repository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email)
}

func (r *Repository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username)
}

func (r *Repository) exists(ctx context.Context, query, arg string) (bool, error) {
	var found bool
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("query existence: %w", err)
	}
	return found, nil
}

func (r *Repository) Insert(ctx context.Context, user User) (User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	now := time.Now().UTC()
	user.ID = id.String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, user.ID, user.Username, user.Name, user.Email, user.PasswordHash, now)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

// UpsertByUserID keeps the refresh store single-slot: a user's row is
// replaced in place whenever a new refresh token is issued at register/login.
func (r *Repository) UpsertByUserID(ctx context.Context, userID, token string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_refresh_tokens (user_id, token, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET token = EXCLUDED.token, updated_at = EXCLUDED.updated_at
	`, userID, token, now)
	if err != nil {
		return fmt.Errorf("upsert refresh token: %w", err)
	}
	return nil
}

func (r *Repository) UpdateByUserID(ctx context.Context, userID, token string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE auth_refresh_tokens
		SET token = $2, updated_at = $3
		WHERE user_id = $1
	`, userID, token, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update refresh token: %w", err)
	}
	return nil
}

// FindByUserAndToken is the revocation check: logical validity requires an
// exact string match against the most recently stored token for the user.
func (r *Repository) FindByUserAndToken(ctx context.Context, userID, token string) (RefreshTokenRecord, error) {
	var record RefreshTokenRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, token, created_at, updated_at
		FROM auth_refresh_tokens
		WHERE user_id = $1 AND token = $2
	`, userID, token).Scan(&record.UserID, &record.Token, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RefreshTokenRecord{}, ErrRecordNotFound
		}
		return RefreshTokenRecord{}, fmt.Errorf("query refresh token: %w", err)
	}
	return record, nil
}

// DeleteByToken revokes by token value, not user id, so logout only touches
// the session tied to the presented cookie. Deleting nothing is not an error.
func (r *Repository) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM auth_refresh_tokens
		WHERE token = $1
	`, token)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// DeleteStale removes refresh rows untouched since the cutoff. Rows linger
// after their bearer token has cryptographically expired; this is the only
// path that reclaims them.
func (r *Repository) DeleteStale(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT user_id
			FROM auth_refresh_tokens
			WHERE updated_at < $1
			ORDER BY updated_at ASC
			LIMIT $2
		)
		DELETE FROM auth_refresh_tokens t
		USING stale
		WHERE t.user_id = stale.user_id
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale refresh tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale refresh tokens rows affected: %w", err)
	}
	return affected, nil
}
