package session

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Domain errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionInvalid  = errors.New("session invalid")
)

// Principal is the authenticated identity attached to a session
type Principal struct {
	UserID    string   `json:"user_id"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`

	// MustChangePassword is set when the session was opened with a one-time
	// password. It belongs to the session, not to the account status.
	MustChangePassword bool `json:"must_change_password"`
}

// DisplayName joins first and last name.
func (p Principal) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Session represents an issued login session
type Session struct {
	ID         string    `json:"id"`
	Principal  Principal `json:"principal"`
	IssuedAt   time.Time `json:"issued_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	ExpiresAt  time.Time `json:"expires_at"`

	// Token is the signed artifact handed to the client. Never persisted.
	Token string `json:"-"`
}

// IsExpired checks if the session has expired at t
func (s *Session) IsExpired(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// Store defines the interface for session persistence
type Store interface {
	// Save creates or replaces a session
	Save(ctx context.Context, sess *Session) error

	// Get retrieves a session by ID
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Delete deletes a session
	Delete(ctx context.Context, sessionID string) error

	// DeleteExpired deletes all sessions expired before t
	DeleteExpired(ctx context.Context, t time.Time) error
}
