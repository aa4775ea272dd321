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

//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credentia/credentia/internal/authz"
	"github.com/credentia/credentia/internal/identity"
	"github.com/credentia/credentia/internal/session"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	db, err := New(ctx, Config{
		Host:         getenv("DB_HOST", "localhost"),
		Port:         getenv("DB_PORT", "5432"),
		User:         getenv("DB_USER", "credentia"),
		Password:     getenv("DB_PASSWORD", "credentia_dev_password"),
		Database:     getenv("DB_NAME", "credentia"),
		SSLMode:      getenv("DB_SSLMODE", "disable"),
		MaxOpenConns: 5,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to database: %v", err)
	}
	t.Cleanup(db.Close)

	_, err = db.Migrate(ctx)
	require.NoError(t, err)
	return db
}

func newTestUser(email string) *identity.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &identity.User{
		ID:               uuid.NewString(),
		FirstName:        "Ana",
		LastName:         "Cruz",
		Email:            email,
		Gender:           identity.GenderFemale,
		PasswordHash:     "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$a2V5",
		Status:           identity.StatusNewRegister,
		RegistrationCode: "abc123",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// TestPurpose: Validates the credential store contract against PostgreSQL.
// Scope: Database Integration Test
// Security: Case-insensitive uniqueness and optimistic concurrency
// Expected: Duplicate emails conflict, lookups ignore case, stale versions are rejected.
// Test Case ID: PG-01
func TestUserRepository_Contract(t *testing.T) {
	db := openTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	email := uuid.NewString() + "@Example.com"
	user := newTestUser(email)
	require.NoError(t, repo.Create(ctx, user))
	t.Cleanup(func() { _, _ = db.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", user.ID) })

	dup := newTestUser(identity.NormalizeEmail(email))
	assert.ErrorIs(t, repo.Create(ctx, dup), identity.ErrUserAlreadyExists)

	found, err := repo.FindByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, identity.NormalizeEmail(email), found.Email)
	assert.Equal(t, identity.StatusNewRegister, found.Status)
	assert.Equal(t, int64(1), found.Version)

	_, err = repo.FindByEmailAndCode(ctx, email, "wrong1")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
	byCode, err := repo.FindByEmailAndCode(ctx, email, "abc123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byCode.ID)

	stale := found.Clone()
	found.LoginTrials = 1
	require.NoError(t, repo.Update(ctx, found))
	assert.Equal(t, int64(2), found.Version)

	stale.LoginTrials = 5
	assert.ErrorIs(t, repo.Update(ctx, stale), identity.ErrConcurrentUpdate)

	reloaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.LoginTrials)

	missing := newTestUser("missing@example.com")
	assert.ErrorIs(t, repo.Update(ctx, missing), identity.ErrUserNotFound)
}

func TestRoleRepository_ListRolesForUser(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db)
	roles := NewRoleRepository(db)
	ctx := context.Background()

	user := newTestUser(uuid.NewString() + "@example.com")
	require.NoError(t, users.Create(ctx, user))
	t.Cleanup(func() { _, _ = db.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", user.ID) })

	list, err := roles.ListRolesForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, roles.Assign(ctx, user.ID, authz.RoleStaff, "test"))
	require.NoError(t, roles.Assign(ctx, user.ID, authz.RoleStaff, "test"))
	assert.ErrorIs(t, roles.Assign(ctx, user.ID, "janitor", "test"), authz.ErrRoleNotFound)

	names, err := authz.NewService(roles).RoleNames(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{authz.RoleStaff}, names)
}

func TestSessionRepository_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	users := NewUserRepository(db)
	store := NewSessionRepository(db)
	ctx := context.Background()

	user := newTestUser(uuid.NewString() + "@example.com")
	require.NoError(t, users.Create(ctx, user))
	t.Cleanup(func() { _, _ = db.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", user.ID) })

	now := time.Now().UTC().Truncate(time.Microsecond)
	sess := &session.Session{
		ID: uuid.NewString(),
		Principal: session.Principal{
			UserID:             user.ID,
			FirstName:          "Ana",
			Roles:              []string{"staff"},
			MustChangePassword: true,
		},
		IssuedAt:   now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(10 * time.Minute),
	}
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.Principal, got.Principal)
	assert.True(t, sess.ExpiresAt.Equal(got.ExpiresAt))

	sess.Principal.MustChangePassword = false
	sess.ExpiresAt = now.Add(20 * time.Minute)
	require.NoError(t, store.Save(ctx, sess))
	got, err = store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, got.Principal.MustChangePassword)

	require.NoError(t, store.DeleteExpired(ctx, now.Add(30*time.Minute)))
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.ErrorIs(t, store.Delete(ctx, sess.ID), session.ErrSessionNotFound)
}
