package service

import (
	"context"
	"strings"
	"time"

	"github.com/taskhub/backend/internal/db"
	"github.com/taskhub/backend/internal/model"
	"golang.org/x/crypto/bcrypt"
)

type profileRepository interface {
	userRepository
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	UpdateUserProfile(ctx context.Context, userID int64, username, email string, now time.Time) error
	UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string, now time.Time) error
	DeleteUser(ctx context.Context, userID int64, revokedBefore, expiresAt time.Time) error
}

// UserService manages the caller's own account.
type UserService struct {
	repo profileRepository
	auth *AuthService
	now  func() time.Time
}

func NewUserService(repo profileRepository, auth *AuthService) *UserService {
	return &UserService{repo: repo, auth: auth, now: time.Now}
}

func (s *UserService) Get(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// UpdateProfile changes the username and email and returns a fresh token
// carrying the new username. Older tokens stay valid with the old one.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, req model.UpdateProfileRequest) (*model.User, string, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	if username == "" || email == "" {
		return nil, "", invalidf("username and email are required")
	}

	if err := checkAvailable(ctx, s.repo, username, email, userID); err != nil {
		return nil, "", err
	}

	if err := s.repo.UpdateUserProfile(ctx, userID, username, email, s.now()); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, "", &ConflictError{Message: "username or email already exists"}
		}
		return nil, "", notFound(err)
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	token, err := s.auth.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// ChangePassword requires the current password. Existing sessions stay valid.
func (s *UserService) ChangePassword(ctx context.Context, userID int64, req model.ChangePasswordRequest) error {
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return invalidf("current_password and new_password are required")
	}
	if err := validatePassword(req.NewPassword); err != nil {
		return err
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return ErrUnauthorized
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return notFound(s.repo.UpdatePasswordHash(ctx, userID, hash, s.now()))
}

// Delete removes the account with its projects and tasks. Every token issued
// to the account up to now stops authenticating; the cutoff is written in the
// same transaction as the delete.
func (s *UserService) Delete(ctx context.Context, userID int64) error {
	cutoff := sessionCutoff{
		revokedBefore: s.now().Truncate(time.Second),
	}
	cutoff.expiresAt = cutoff.revokedBefore.Add(SessionLifetime)

	if err := s.repo.DeleteUser(ctx, userID, cutoff.revokedBefore, cutoff.expiresAt); err != nil {
		return notFound(err)
	}
	s.auth.revoked.rememberCutoff(userID, cutoff)
	return nil
}
