package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ticketbooth/internal/apperr"
	"ticketbooth/internal/model"
)

// SessionStore is the ledger of issued tokens. It is the single source of
// truth for whether a token is still honored; the token's own signed
// expiry is checked separately by the issuer.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) Create(ctx context.Context, session model.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, token_hash, expires_at, is_revoked, revoked_at, device_info, ip_address, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, session.ID, session.UserID, session.TokenHash, session.ExpiresAt, session.IsRevoked, session.RevokedAt, session.DeviceInfo, session.IPAddress, session.CreatedAt, session.LastUsedAt)
	return err
}

func (s *SessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (model.Session, error) {
	var session model.Session
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, is_revoked, revoked_at, device_info, ip_address, created_at, last_used_at
		FROM sessions
		WHERE token_hash = $1
	`, tokenHash)
	err := row.Scan(&session.ID, &session.UserID, &session.TokenHash, &session.ExpiresAt, &session.IsRevoked, &session.RevokedAt, &session.DeviceInfo, &session.IPAddress, &session.CreatedAt, &session.LastUsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Session{}, apperr.NotFound("session_not_found", "Session not found")
	}
	return session, err
}

// Touch records ledger activity for an authenticated request. Best-effort;
// callers ignore the error.
func (s *SessionStore) Touch(ctx context.Context, tokenHash string, usedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions SET last_used_at = $1 WHERE token_hash = $2
	`, usedAt, tokenHash)
	return err
}

// Revoke marks a session unusable. Idempotent: revoking an already revoked
// session reports false without error.
func (s *SessionStore) Revoke(ctx context.Context, tokenHash string, revokedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET is_revoked = true, revoked_at = $1
		WHERE token_hash = $2 AND is_revoked = false
	`, revokedAt, tokenHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RevokeAllForUser is "log out everywhere". Returns the number of sessions
// actually revoked.
func (s *SessionStore) RevokeAllForUser(ctx context.Context, userID int64, revokedAt time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions
		SET is_revoked = true, revoked_at = $1
		WHERE user_id = $2 AND is_revoked = false
	`, revokedAt, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteStale removes sessions that are expired, or revoked longer ago
// than the retention window. Delete-only and idempotent, safe to run
// concurrently with live traffic.
func (s *SessionStore) DeleteStale(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM sessions
		WHERE expires_at < $1
		   OR (is_revoked = true AND revoked_at < $2)
	`, now, now.Add(-retention))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
