package db

import (
	"context"
	"time"

	"github.com/taskhub/backend/internal/model"
)

const userColumns = `id, username, email, password_hash, created_at, updated_at`

func (db *Store) CreateUser(ctx context.Context, username, email, passwordHash string, now time.Time) (*model.User, error) {
	now = timestamp(now)
	query := `
		INSERT INTO users (username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	user := model.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.DB.QueryRowContext(ctx, query, username, email, passwordHash, now, now).Scan(&user.ID); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByLogin matches either the username or the email.
func (db *Store) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = $1 OR email = $2
		ORDER BY id
		LIMIT 1
	`
	return db.scanUser(ctx, query, login, login)
}

func (db *Store) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`
	return db.scanUser(ctx, query, userID)
}

// UsernameTaken reports whether another account (id != excludeID) uses username.
func (db *Store) UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error) {
	return db.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND id <> $2)`, username, excludeID)
}

// EmailTaken reports whether another account (id != excludeID) uses email.
func (db *Store) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	return db.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)`, email, excludeID)
}

func (db *Store) UpdateUserProfile(ctx context.Context, userID int64, username, email string, now time.Time) error {
	query := `
		UPDATE users
		SET username = $1, email = $2, updated_at = $3
		WHERE id = $4
	`
	res, err := db.DB.ExecContext(ctx, query, username, email, timestamp(now), userID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (db *Store) UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string, now time.Time) error {
	query := `
		UPDATE users
		SET password_hash = $1, updated_at = $2
		WHERE id = $3
	`
	res, err := db.DB.ExecContext(ctx, query, passwordHash, timestamp(now), userID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// DeleteUser removes the account and, in the same transaction, records a
// session cutoff so tokens issued up to revokedBefore stop authenticating.
func (db *Store) DeleteUser(ctx context.Context, userID int64, revokedBefore, expiresAt time.Time) error {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if err := expectAffected(res); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, upsertSessionCutoff, userID, timestamp(revokedBefore), timestamp(expiresAt)); err != nil {
		return err
	}

	return tx.Commit()
}

func (db *Store) scanUser(ctx context.Context, query string, args ...any) (*model.User, error) {
	var user model.User
	err := db.DB.QueryRowContext(ctx, query, args...).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *Store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var found bool
	if err := db.DB.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}
