package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/taskhub/backend/internal/config"
	"github.com/taskhub/backend/internal/db"
	"github.com/taskhub/backend/internal/model"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

const (
	// SessionLifetime is the fixed validity window of an issued token.
	SessionLifetime = 7 * 24 * time.Hour

	passwordHashCost  = 10
	minPasswordLength = 6
	maxPasswordBytes  = 72
)

type userRepository interface {
	CreateUser(ctx context.Context, username, email, passwordHash string, now time.Time) (*model.User, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
}

type AuthService struct {
	repo      userRepository
	revoked   *RevocationList
	jwtSecret []byte
	now       func() time.Time
}

type sessionClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func NewAuthService(repo userRepository, revoked *RevocationList, cfg config.AuthConfig) (*AuthService, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("%w: JWT_SECRET is required", ErrMisconfigured)
	}
	if revoked == nil {
		return nil, fmt.Errorf("%w: revocation list is required", ErrMisconfigured)
	}

	return &AuthService{
		repo:      repo,
		revoked:   revoked,
		jwtSecret: []byte(cfg.JWTSecret),
		now:       time.Now,
	}, nil
}

// Register creates an account and returns a session token for it.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (string, *model.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	if username == "" || email == "" || req.Password == "" {
		return "", nil, invalidf("username, email and password are required")
	}
	if err := validatePassword(req.Password); err != nil {
		return "", nil, err
	}

	if err := checkAvailable(ctx, s.repo, username, email, 0); err != nil {
		return "", nil, err
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return "", nil, err
	}

	user, err := s.repo.CreateUser(ctx, username, email, hash, s.now())
	if err != nil {
		// Lost a race against a concurrent registration.
		if db.IsUniqueViolation(err) {
			return "", nil, &ConflictError{Message: "username or email already exists"}
		}
		return "", nil, err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Login accepts either the username or the email. Every failure is reported
// as ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (string, *model.User, error) {
	login := strings.TrimSpace(req.Username)
	if login == "" || req.Password == "" {
		return "", nil, invalidf("username and password are required")
	}

	user, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		if db.IsNoRows(err) {
			// Keep the timing of unknown accounts close to a wrong password.
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(req.Password))
			return "", nil, ErrUnauthorized
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return "", nil, ErrUnauthorized
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Logout revokes a token for the rest of its lifetime. Missing, malformed and
// already expired tokens are accepted and leave nothing behind.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	claims, err := s.parseToken(token)
	if err != nil {
		return nil
	}

	return s.revoked.Revoke(ctx, token, claims.ExpiresAt.Time)
}

// Authenticate validates a bearer token. The revocation list is consulted
// before the signature so a revoked token is reported as such. Tokens of a
// deleted account are reported as revoked too.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	revoked, err := s.revoked.IsRevoked(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrRevokedToken
	}

	claims, err := s.parseToken(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}

	// Deleting an account cuts off every session issued before it.
	revoked, err = s.revoked.IsSessionRevoked(ctx, userID, claims.IssuedAt.Time)
	if err != nil {
		return nil, fmt.Errorf("check session cutoff: %w", err)
	}
	if revoked {
		return nil, ErrRevokedToken
	}

	return &model.Identity{
		ID:       userID,
		Username: claims.Username,
	}, nil
}

func checkAvailable(ctx context.Context, repo userRepository, username, email string, excludeID int64) error {
	var usernameTaken, emailTaken bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		usernameTaken, err = repo.UsernameTaken(gctx, username, excludeID)
		return err
	})
	g.Go(func() error {
		var err error
		emailTaken, err = repo.EmailTaken(gctx, email, excludeID)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	switch {
	case usernameTaken && emailTaken:
		return &ConflictError{Message: "username and email already exist"}
	case usernameTaken:
		return &ConflictError{Message: "username already exists"}
	case emailTaken:
		return &ConflictError{Message: "email already exists"}
	}
	return nil
}

func (s *AuthService) issueToken(user *model.User) (string, error) {
	now := s.now()
	claims := sessionClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionLifetime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) parseToken(tokenStr string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return invalidf("password must be at least %d characters", minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return invalidf("password must be at most %d bytes", maxPasswordBytes)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", invalidf("password must be at most %d bytes", maxPasswordBytes)
		}
		return "", err
	}
	return string(hash), nil
}

var (
	dummyOnce sync.Once
	dummy     []byte
)

// dummyHash is compared against when the account does not exist.
func dummyHash() []byte {
	dummyOnce.Do(func() {
		dummy, _ = bcrypt.GenerateFromPassword([]byte("taskhub-placeholder"), passwordHashCost)
	})
	return dummy
}

// HashToken is the key a revoked token is stored under.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
