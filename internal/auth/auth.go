// Package auth implements the login gate: credential verification against an
// externally supplied bcrypt hash, and the session that records a login.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/nitplane/nitplane/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when authentication fails
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionNotFound is returned for unknown or expired sessions
	ErrSessionNotFound = errors.New("session not found or expired")
)

// Session is the persisted login flag
type Session struct {
	ID        string    `json:"-"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Verifier checks a username/password pair
type Verifier interface {
	Verify(ctx context.Context, username, password string) error
}

// SessionStore persists sessions
type SessionStore interface {
	Create(ctx context.Context, username string, ttl time.Duration) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	PurgeExpired(ctx context.Context) (int64, error)
}

// BcryptVerifier accepts a single user whose password hash comes from configuration
type BcryptVerifier struct {
	username string
	hash     []byte
}

// NewBcryptVerifier creates a verifier for one user
func NewBcryptVerifier(username, passwordHash string) (*BcryptVerifier, error) {
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("invalid bcrypt hash: %w", err)
	}
	return &BcryptVerifier{username: username, hash: []byte(passwordHash)}, nil
}

// Verify returns ErrInvalidCredentials unless both username and password match
func (v *BcryptVerifier) Verify(ctx context.Context, username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(v.username)) == 1
	// always run the hash comparison so a wrong username costs the same
	passErr := bcrypt.CompareHashAndPassword(v.hash, []byte(password))
	if !userOK || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword hashes a plaintext password using bcrypt
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Service ties verification to session persistence
type Service struct {
	verifier Verifier
	store    SessionStore
	ttl      time.Duration
	logger   *logger.Logger
}

// NewService creates a new auth service
func NewService(verifier Verifier, store SessionStore, ttl time.Duration, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		verifier: verifier,
		store:    store,
		ttl:      ttl,
		logger:   log.Named("auth"),
	}
}

// TTL returns the session lifetime
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Login verifies credentials and records a new session
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	if err := s.verifier.Verify(ctx, username, password); err != nil {
		s.logger.Warn("Login rejected", logger.String("username", username))
		return nil, err
	}

	session, err := s.store.Create(ctx, username, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("Login accepted",
		logger.String("username", username),
		logger.Time("expires_at", session.ExpiresAt))
	return session, nil
}

// Authenticate resolves a session id
func (s *Service) Authenticate(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}
	return s.store.Get(ctx, id)
}

// Logout removes a session. Unknown ids are not an error.
func (s *Service) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.store.Delete(ctx, id)
}

// RunJanitor purges expired sessions every interval until ctx is done
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.store.PurgeExpired(ctx)
			if err != nil {
				s.logger.Error("Failed to purge expired sessions", logger.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Debug("Purged expired sessions", logger.Int64("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}
