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

package authz_test

import (
	"context"
	"errors"
	"testing"

	"github.com/credentia/credentia/internal/authz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRoleRepository implements authz.RoleRepository for testing
type stubRoleRepository struct {
	roles map[string][]*authz.Role
	err   error
}

func (s *stubRoleRepository) ListRolesForUser(ctx context.Context, userID string) ([]*authz.Role, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.roles[userID], nil
}

// TestPurpose: Validates that the role set carried by a session is sorted and de-duplicated.
// Scope: Unit Test
// Security: Deterministic role claims in the session token
// Expected: Names come back sorted with duplicates and blank entries dropped.
// Test Case ID: ROL-01
func TestService_RoleNames(t *testing.T) {
	repo := &stubRoleRepository{roles: map[string][]*authz.Role{
		"u1": {
			{ID: "r2", Name: authz.RoleStaff},
			{ID: "r1", Name: authz.RoleAdministrator},
			{ID: "r2b", Name: authz.RoleStaff},
			nil,
			{ID: "r0", Name: ""},
		},
	}}
	svc := authz.NewService(repo)

	names, err := svc.RoleNames(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{authz.RoleAdministrator, authz.RoleStaff}, names)
}

// TestPurpose: Validates that a user without assignments gets an empty role set.
// Scope: Unit Test
// Security: No implicit roles
// Expected: An empty, non-nil slice.
// Test Case ID: ROL-02
func TestService_RoleNames_None(t *testing.T) {
	svc := authz.NewService(&stubRoleRepository{})

	names, err := svc.RoleNames(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)
}

// TestPurpose: Validates that repository failures propagate with their cause.
// Scope: Unit Test
// Security: Login must fail closed when roles cannot be resolved
// Expected: The returned error wraps the repository error.
// Test Case ID: ROL-03
func TestService_RoleNames_Error(t *testing.T) {
	boom := errors.New("boom")
	svc := authz.NewService(&stubRoleRepository{err: boom})

	_, err := svc.RoleNames(context.Background(), "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
