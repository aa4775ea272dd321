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

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credentia/credentia/internal/authz"
	"github.com/credentia/credentia/internal/identity"
	"github.com/credentia/credentia/internal/session"
)

func TestUserRepository_VersionCheck(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	u := &identity.User{ID: "u1", Email: "Ada@Example.com", Status: identity.StatusNewRegister, RegistrationCode: "abc123"}
	require.NoError(t, repo.Create(ctx, u))
	assert.Equal(t, int64(1), u.Version)

	err := repo.Create(ctx, &identity.User{ID: "u2", Email: "ADA@example.com"})
	assert.ErrorIs(t, err, identity.ErrUserAlreadyExists)

	a, err := repo.FindByEmail(ctx, "ada@EXAMPLE.com")
	require.NoError(t, err)
	b, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)

	a.LoginTrials = 1
	require.NoError(t, repo.Update(ctx, a))
	assert.Equal(t, int64(2), a.Version)

	b.LoginTrials = 5
	assert.ErrorIs(t, repo.Update(ctx, b), identity.ErrConcurrentUpdate, "stale read must not overwrite")

	stored, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.LoginTrials)

	assert.ErrorIs(t, repo.Update(ctx, &identity.User{ID: "missing"}), identity.ErrUserNotFound)
}

func TestUserRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()
	require.NoError(t, repo.Create(ctx, &identity.User{ID: "u1", Email: "a@example.com", FirstName: "Ada"}))

	u, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	u.FirstName = "Mutated"

	again, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", again.FirstName)
}

func TestUserRepository_FindByEmailAndCode(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()
	require.NoError(t, repo.Create(ctx, &identity.User{ID: "u1", Email: "a@example.com", RegistrationCode: "abc123"}))

	_, err := repo.FindByEmailAndCode(ctx, "A@example.com", "abc123")
	assert.NoError(t, err)

	_, err = repo.FindByEmailAndCode(ctx, "a@example.com", "ABC123")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)

	_, err = repo.FindByEmailAndCode(ctx, "a@example.com", "")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}

func TestRoleRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRoleRepository(
		&authz.Role{ID: "r-admin", Name: authz.RoleAdministrator},
		&authz.Role{ID: "r-staff", Name: authz.RoleStaff},
	)

	roles, err := repo.ListRolesForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, roles)

	require.NoError(t, repo.Assign("u1", "r-staff", "test"))
	require.NoError(t, repo.Assign("u1", "r-staff", "test"), "assignment is idempotent")
	assert.ErrorIs(t, repo.Assign("u1", "r-unknown", "test"), authz.ErrRoleNotFound)

	roles, err = repo.ListRolesForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, authz.RoleStaff, roles[0].Name)
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	now := time.Now().UTC()

	live := &session.Session{ID: "live", Token: "signed", ExpiresAt: now.Add(time.Minute),
		Principal: session.Principal{UserID: "u1", Roles: []string{"staff"}}}
	dead := &session.Session{ID: "dead", ExpiresAt: now.Add(-time.Second)}
	require.NoError(t, store.Save(ctx, live))
	require.NoError(t, store.Save(ctx, dead))

	got, err := store.Get(ctx, "live")
	require.NoError(t, err)
	assert.Empty(t, got.Token, "tokens are never stored")
	got.Principal.Roles[0] = "administrator"

	again, err := store.Get(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, []string{"staff"}, again.Principal.Roles)

	require.NoError(t, store.DeleteExpired(ctx, now))
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Delete(ctx, "live"))
	assert.ErrorIs(t, store.Delete(ctx, "live"), session.ErrSessionNotFound)
	_, err = store.Get(ctx, "live")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}
