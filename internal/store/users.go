package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/foodshed/market-api/internal/auth"
)

// CreateUser inserts a new account, returning auth.ErrEmailTaken on an
// email collision.
func (s *Store) CreateUser(ctx context.Context, a auth.Account) (auth.Account, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO users (id, name, email, password_hash, roles)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		a.ID, a.Name, a.Email, a.PasswordHash, a.Roles)
	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		if IsUniqueViolation(err) {
			return auth.Account{}, auth.ErrEmailTaken
		}
		return auth.Account{}, err
	}
	return a, nil
}

const userColumns = `id, name, email, password_hash, roles, created_at, updated_at`

func scanAccount(row pgx.Row) (auth.Account, error) {
	var a auth.Account
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Roles, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.Account{}, ErrNotFound
	}
	return a, err
}

// GetUserByEmail fetches an account by normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (auth.Account, error) {
	return scanAccount(s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// GetUserByID fetches an account by primary key.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (auth.Account, error) {
	return scanAccount(s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// UpdateUserPassword replaces the stored password hash.
func (s *Store) UpdateUserPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSession stores a refresh session keyed by the hashed token.
func (s *Store) CreateSession(ctx context.Context, sess auth.Session) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, refresh_token, user_agent, ip, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sess.ID, sess.UserID, sess.RefreshToken, sess.UserAgent, sess.IP, sess.ExpiresAt)
	return err
}

// GetSessionByToken looks up a session by its hashed refresh token.
func (s *Store) GetSessionByToken(ctx context.Context, hashedToken string) (auth.Session, error) {
	var sess auth.Session
	err := s.Pool.QueryRow(ctx, `
		SELECT id, user_id, refresh_token, user_agent, ip, expires_at
		FROM sessions WHERE refresh_token = $1`, hashedToken).
		Scan(&sess.ID, &sess.UserID, &sess.RefreshToken, &sess.UserAgent, &sess.IP, &sess.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.Session{}, ErrNotFound
	}
	return sess, err
}

// RotateSessionToken swaps the hashed refresh token in place.
func (s *Store) RotateSessionToken(ctx context.Context, sessionID uuid.UUID, hashedToken string, expiresAt time.Time) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE sessions SET refresh_token = $2, expires_at = $3 WHERE id = $1`,
		sessionID, hashedToken, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSessionByToken revokes a single session.
func (s *Store) DeleteSessionByToken(ctx context.Context, hashedToken string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, hashedToken)
	return err
}

// DeleteSessionsByUser revokes every session a user holds.
func (s *Store) DeleteSessionsByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

// CreatePasswordReset stores a single-use reset token.
func (s *Store) CreatePasswordReset(ctx context.Context, r auth.PasswordReset) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO password_resets (id, user_id, token, expires_at)
		VALUES ($1, $2, $3, $4)`,
		r.ID, r.UserID, r.Token, r.ExpiresAt)
	return err
}

// GetPasswordResetByToken fetches a reset entry by raw token.
func (s *Store) GetPasswordResetByToken(ctx context.Context, token string) (auth.PasswordReset, error) {
	var r auth.PasswordReset
	err := s.Pool.QueryRow(ctx, `
		SELECT id, user_id, token, expires_at, used_at
		FROM password_resets WHERE token = $1`, token).
		Scan(&r.ID, &r.UserID, &r.Token, &r.ExpiresAt, &r.UsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.PasswordReset{}, ErrNotFound
	}
	return r, err
}

// UsePasswordReset marks the token consumed.
func (s *Store) UsePasswordReset(ctx context.Context, token string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE password_resets SET used_at = now() WHERE token = $1 AND used_at IS NULL`, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePasswordResetsByUser removes all reset entries for a user.
func (s *Store) DeletePasswordResetsByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM password_resets WHERE user_id = $1`, userID)
	return err
}
