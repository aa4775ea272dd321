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

package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Issuer creates, validates, renews and tears down sessions. Expiry is a
// short window that slides forward while the session is in use.
type Issuer struct {
	store      Store
	signingKey []byte
	lifetime   time.Duration
	now        func() time.Time
}

// NewIssuer creates a new session issuer
func NewIssuer(store Store, signingKey []byte, lifetime time.Duration) *Issuer {
	return &Issuer{
		store:      store,
		signingKey: signingKey,
		lifetime:   lifetime,
		now:        time.Now,
	}
}

// WithClock overrides the time source. Used by tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue opens a session for an authenticated principal
func (i *Issuer) Issue(ctx context.Context, p Principal) (*Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	roles := slices.Clone(p.Roles)
	slices.Sort(roles)
	p.Roles = slices.Compact(roles)
	if p.Roles == nil {
		p.Roles = []string{}
	}

	now := i.now().UTC()
	sess := &Session{
		ID:         id.String(),
		Principal:  p,
		IssuedAt:   now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(i.lifetime),
	}

	if sess.Token, err = signToken(i.signingKey, sess); err != nil {
		return nil, err
	}
	if err := i.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return sess, nil
}

// Authenticate resolves a token into its live session. Once half of the
// window has elapsed the expiry slides forward and the token is re-signed;
// callers detect this by comparing the returned Token with the presented one.
func (i *Issuer) Authenticate(ctx context.Context, token string) (*Session, error) {
	now := i.now().UTC()

	sessionID, userID, err := parseToken(i.signingKey, token, now)
	if err != nil {
		return nil, err
	}

	sess, err := i.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Principal.UserID != userID {
		return nil, fmt.Errorf("%w: subject mismatch", ErrSessionInvalid)
	}
	if sess.IsExpired(now) {
		_ = i.store.Delete(ctx, sess.ID)
		return nil, ErrSessionExpired
	}

	sess.Token = token
	if sess.ExpiresAt.Sub(now) > i.lifetime/2 {
		return sess, nil
	}

	sess.LastSeenAt = now
	sess.ExpiresAt = now.Add(i.lifetime)
	if sess.Token, err = signToken(i.signingKey, sess); err != nil {
		return nil, err
	}
	if err := i.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to renew session: %w", err)
	}
	return sess, nil
}

// Update persists a changed principal on a live session
func (i *Issuer) Update(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return ErrSessionInvalid
	}
	if sess.IsExpired(i.now()) {
		return ErrSessionExpired
	}
	if err := i.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// Teardown invalidates the session and wipes the cached principal
func (i *Issuer) Teardown(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	err := i.store.Delete(ctx, sess.ID)
	sess.Principal = Principal{}
	sess.Token = ""
	sess.ExpiresAt = time.Time{}
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CleanupExpired removes expired sessions from the store
func (i *Issuer) CleanupExpired(ctx context.Context) error {
	return i.store.DeleteExpired(ctx, i.now().UTC())
}
