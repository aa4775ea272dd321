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
	"sync"
	"time"

	"github.com/credentia/credentia/internal/authz"
)

// RoleRepository implements authz.RoleRepository in memory
type RoleRepository struct {
	mu          sync.RWMutex
	roles       map[string]*authz.Role
	assignments map[string][]authz.Assignment
}

// NewRoleRepository creates a repository holding the given roles
func NewRoleRepository(roles ...*authz.Role) *RoleRepository {
	r := &RoleRepository{
		roles:       make(map[string]*authz.Role),
		assignments: make(map[string][]authz.Assignment),
	}
	for _, role := range roles {
		c := *role
		r.roles[role.ID] = &c
	}
	return r
}

// Assign grants a role to a user
func (r *RoleRepository) Assign(userID, roleID, grantedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roles[roleID]; !ok {
		return authz.ErrRoleNotFound
	}
	for _, a := range r.assignments[userID] {
		if a.RoleID == roleID {
			return nil
		}
	}
	r.assignments[userID] = append(r.assignments[userID], authz.Assignment{
		UserID:    userID,
		RoleID:    roleID,
		GrantedAt: time.Now().UTC(),
		GrantedBy: grantedBy,
	})
	return nil
}

// ListRolesForUser retrieves every role assigned to the user
func (r *RoleRepository) ListRolesForUser(_ context.Context, userID string) ([]*authz.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*authz.Role
	for _, a := range r.assignments[userID] {
		if role, ok := r.roles[a.RoleID]; ok {
			c := *role
			out = append(out, &c)
		}
	}
	return out, nil
}
