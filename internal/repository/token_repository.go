package repository

import (
	"context"
	"time"
)

// TokenRepo keeps refresh sessions.  Only the SHA-256 of a refresh token is
// stored; a session is live while it is neither revoked nor expired.
type TokenRepo struct{ q querier }

func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?, ?, ?)`,
		userID, tokenHash, exp.UTC())
	return translate(err)
}

// ValidateRefresh returns the owner of a live session, or ErrNotFound.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	var userID uint64
	err := r.q.QueryRowContext(ctx,
		`SELECT user_id FROM refresh_tokens
		  WHERE token_hash = ? AND revoked_at IS NULL AND expires_at > UTC_TIMESTAMP()`,
		tokenHash).Scan(&userID)
	return userID, translate(err)
}

func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	return r.revoke(ctx, `token_hash = ?`, tokenHash)
}

// RevokeAllForUser ends every live session of the user.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	return r.revoke(ctx, `user_id = ?`, userID)
}

func (r *TokenRepo) revoke(ctx context.Context, where string, arg any) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = UTC_TIMESTAMP() WHERE revoked_at IS NULL AND `+where, arg)
	return translate(err)
}
