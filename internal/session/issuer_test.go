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

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credentia/credentia/internal/session"
	"github.com/credentia/credentia/internal/store/memory"
)

var signingKey = []byte("test-signing-key-0123456789abcdef")

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newIssuer() (*session.Issuer, *memory.SessionStore, *clock) {
	store := memory.NewSessionStore()
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return session.NewIssuer(store, signingKey, 10*time.Minute).WithClock(clk.now), store, clk
}

// TestPurpose: Validates session issuance.
// Scope: Unit Test
// Security: Session token integrity
// Expected: A stored session with a 10 minute expiry, de-duplicated sorted roles and a token that authenticates.
// Test Case ID: SES-01
func TestIssuer_Issue(t *testing.T) {
	issuer, store, clk := newIssuer()
	ctx := context.Background()

	sess, err := issuer.Issue(ctx, session.Principal{
		UserID: "user-1",
		Email:  "ana@x.com",
		Roles:  []string{"staff", "administrator", "staff"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, []string{"administrator", "staff"}, sess.Principal.Roles)
	assert.Equal(t, clk.t.Add(10*time.Minute), sess.ExpiresAt)
	assert.Equal(t, 1, store.Len())

	authed, err := issuer.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, authed.ID)
	assert.Equal(t, "ana@x.com", authed.Principal.Email)
	assert.Equal(t, sess.Token, authed.Token, "fresh session must not be re-signed")
}

func TestIssuer_Issue_EmptyRoles(t *testing.T) {
	issuer, _, _ := newIssuer()

	sess, err := issuer.Issue(context.Background(), session.Principal{UserID: "user-1"})
	require.NoError(t, err)
	assert.NotNil(t, sess.Principal.Roles)
	assert.Empty(t, sess.Principal.Roles)
}

// TestPurpose: Validates the sliding expiry window.
// Scope: Unit Test
// Expected: Activity after half the window extends expiry and re-signs the token; idle sessions expire.
// Test Case ID: SES-02
func TestIssuer_Authenticate_SlidingExpiry(t *testing.T) {
	issuer, _, clk := newIssuer()
	ctx := context.Background()

	sess, err := issuer.Issue(ctx, session.Principal{UserID: "user-1"})
	require.NoError(t, err)

	clk.advance(6 * time.Minute)
	renewed, err := issuer.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.NotEqual(t, sess.Token, renewed.Token)
	assert.Equal(t, clk.t.Add(10*time.Minute), renewed.ExpiresAt)

	// The old token expired at its own exp claim; the renewed one carries on.
	clk.advance(8 * time.Minute)
	_, err = issuer.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, session.ErrSessionInvalid)

	again, err := issuer.Authenticate(ctx, renewed.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, again.ID)

	clk.advance(11 * time.Minute)
	_, err = issuer.Authenticate(ctx, again.Token)
	assert.Error(t, err)
}

func TestIssuer_Authenticate_ExpiredSessionIsRemoved(t *testing.T) {
	issuer, store, clk := newIssuer()
	ctx := context.Background()

	sess, err := issuer.Issue(ctx, session.Principal{UserID: "user-1"})
	require.NoError(t, err)

	// Shorten the stored expiry behind the token's back.
	stored, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	stored.ExpiresAt = clk.t.Add(time.Minute)
	require.NoError(t, store.Save(ctx, stored))

	clk.advance(2 * time.Minute)
	_, err = issuer.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, session.ErrSessionExpired)
	assert.Zero(t, store.Len())
}

// TestPurpose: Validates token verification.
// Scope: Unit Test
// Security: Forged or tampered tokens
// Expected: ErrSessionInvalid for foreign keys, wrong algorithms and garbage.
// Test Case ID: SES-03
func TestIssuer_Authenticate_RejectsForgedTokens(t *testing.T) {
	issuer, _, clk := newIssuer()
	ctx := context.Background()

	sess, err := issuer.Issue(ctx, session.Principal{UserID: "user-1"})
	require.NoError(t, err)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        sess.ID,
		Subject:   "user-1",
		Issuer:    "credentia",
		ExpiresAt: jwt.NewNumericDate(clk.t.Add(time.Minute)),
	}).SignedString([]byte("some-other-key-0123456789abcdef!"))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		ID:        sess.ID,
		Subject:   "user-1",
		Issuer:    "credentia",
		ExpiresAt: jwt.NewNumericDate(clk.t.Add(time.Minute)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	otherSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        sess.ID,
		Subject:   "user-2",
		Issuer:    "credentia",
		ExpiresAt: jwt.NewNumericDate(clk.t.Add(time.Minute)),
	}).SignedString(signingKey)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"foreign key":   foreign,
		"alg none":      unsigned,
		"other subject": otherSubject,
		"garbage":       "not-a-token",
		"empty":         "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Authenticate(ctx, token)
			assert.ErrorIs(t, err, session.ErrSessionInvalid)
		})
	}
}

func TestIssuer_Teardown(t *testing.T) {
	issuer, store, _ := newIssuer()
	ctx := context.Background()

	sess, err := issuer.Issue(ctx, session.Principal{UserID: "user-1", FirstName: "Ana"})
	require.NoError(t, err)
	token := sess.Token

	require.NoError(t, issuer.Teardown(ctx, sess))
	assert.Zero(t, store.Len())
	assert.Equal(t, session.Principal{}, sess.Principal)
	assert.Empty(t, sess.Token)

	_, err = issuer.Authenticate(ctx, token)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	// Tearing down twice is harmless.
	assert.NoError(t, issuer.Teardown(ctx, sess))
}

func TestIssuer_Update(t *testing.T) {
	issuer, store, _ := newIssuer()
	ctx := context.Background()

	sess, err := issuer.Issue(ctx, session.Principal{UserID: "user-1", MustChangePassword: true})
	require.NoError(t, err)

	sess.Principal.MustChangePassword = false
	require.NoError(t, issuer.Update(ctx, sess))

	stored, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, stored.Principal.MustChangePassword)
}

func TestIssuer_CleanupExpired(t *testing.T) {
	issuer, store, clk := newIssuer()
	ctx := context.Background()

	_, err := issuer.Issue(ctx, session.Principal{UserID: "user-1"})
	require.NoError(t, err)
	clk.advance(5 * time.Minute)
	_, err = issuer.Issue(ctx, session.Principal{UserID: "user-2"})
	require.NoError(t, err)

	clk.advance(6 * time.Minute)
	require.NoError(t, issuer.CleanupExpired(ctx))
	assert.Equal(t, 1, store.Len())
}
