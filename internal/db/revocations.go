package db

import (
	"context"
	"time"
)

// RevokeToken records a revoked token hash until expiresAt. Revoking the same
// hash twice is a no-op.
func (db *Store) RevokeToken(ctx context.Context, tokenHash string, expiresAt, now time.Time) error {
	query := `
		INSERT INTO revoked_tokens (token_hash, expires_at, revoked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO NOTHING
	`
	_, err := db.DB.ExecContext(ctx, query, tokenHash, timestamp(expiresAt), timestamp(now))
	return err
}

// IsTokenRevoked ignores entries whose token has already expired.
func (db *Store) IsTokenRevoked(ctx context.Context, tokenHash string, now time.Time) (bool, time.Time, error) {
	query := `
		SELECT expires_at
		FROM revoked_tokens
		WHERE token_hash = $1 AND expires_at > $2
	`
	var expiresAt time.Time
	err := db.DB.QueryRowContext(ctx, query, tokenHash, timestamp(now)).Scan(&expiresAt)
	if err != nil {
		if IsNoRows(err) {
			return false, time.Time{}, nil
		}
		return false, time.Time{}, err
	}
	return true, expiresAt, nil
}

// PurgeRevokedTokens deletes entries whose token has expired and returns how many were removed.
func (db *Store) PurgeRevokedTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.DB.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, timestamp(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const upsertSessionCutoff = `
	INSERT INTO session_cutoffs (user_id, revoked_before, expires_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (user_id) DO UPDATE
	SET revoked_before = excluded.revoked_before, expires_at = excluded.expires_at
`

// SessionCutoff returns the instant up to which tokens of userID are revoked.
// Cutoffs past expires_at are ignored.
func (db *Store) SessionCutoff(ctx context.Context, userID int64, now time.Time) (time.Time, time.Time, bool, error) {
	query := `
		SELECT revoked_before, expires_at
		FROM session_cutoffs
		WHERE user_id = $1 AND expires_at > $2
	`
	var revokedBefore, expiresAt time.Time
	err := db.DB.QueryRowContext(ctx, query, userID, timestamp(now)).Scan(&revokedBefore, &expiresAt)
	if err != nil {
		if IsNoRows(err) {
			return time.Time{}, time.Time{}, false, nil
		}
		return time.Time{}, time.Time{}, false, err
	}
	return revokedBefore, expiresAt, true, nil
}

func (db *Store) PurgeSessionCutoffs(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.DB.ExecContext(ctx, `DELETE FROM session_cutoffs WHERE expires_at <= $1`, timestamp(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
