// Copyright 2026 The Credentia Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/credentia/credentia/internal/session"
)

// SessionRepository implements session.Store
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Save creates or replaces a session
func (r *SessionRepository) Save(ctx context.Context, sess *session.Session) error {
	principal, err := json.Marshal(sess.Principal)
	if err != nil {
		return fmt.Errorf("failed to encode principal: %w", err)
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, principal, issued_at, last_seen_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			principal = EXCLUDED.principal,
			last_seen_at = EXCLUDED.last_seen_at,
			expires_at = EXCLUDED.expires_at
	`,
		sess.ID, sess.Principal.UserID, principal, sess.IssuedAt, sess.LastSeenAt, sess.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	var (
		sess      session.Session
		principal []byte
	)
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, principal, issued_at, last_seen_at, expires_at
		FROM sessions
		WHERE id = $1
	`, sessionID).Scan(&sess.ID, &principal, &sess.IssuedAt, &sess.LastSeenAt, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if err := json.Unmarshal(principal, &sess.Principal); err != nil {
		return nil, fmt.Errorf("failed to decode principal: %w", err)
	}
	return &sess, nil
}

// Delete deletes a session
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}

// DeleteExpired deletes all sessions expired at t
func (r *SessionRepository) DeleteExpired(ctx context.Context, t time.Time) error {
	if _, err := r.db.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, t); err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return nil
}
