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

package authz

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrRoleNotFound = errors.New("role not found")
)

// Canonical role names seeded by the initial schema.
const (
	RoleAdministrator = "administrator"
	RoleStaff         = "staff"
	RoleMember        = "member"
)

// Role is a named permission grouping. Roles are reference data.
type Role struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Assignment associates a user with a role. Assignments are created by an
// administrative process outside this service.
type Assignment struct {
	UserID    string
	RoleID    string
	GrantedAt time.Time
	GrantedBy string
}

// RoleRepository defines read access to role assignments
type RoleRepository interface {
	// ListRolesForUser retrieves every role assigned to the user
	ListRolesForUser(ctx context.Context, userID string) ([]*Role, error)
}
