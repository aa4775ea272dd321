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
	"fmt"
	"slices"
)

// Service resolves the role set carried by a session
type Service struct {
	roleRepo RoleRepository
}

// NewService creates a new authorization service
func NewService(roleRepo RoleRepository) *Service {
	return &Service{roleRepo: roleRepo}
}

// RoleNames returns the sorted, de-duplicated role names assigned to a user.
// A user without assignments gets an empty, non-nil slice.
func (s *Service) RoleNames(ctx context.Context, userID string) ([]string, error) {
	roles, err := s.roleRepo.ListRolesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	names := make([]string, 0, len(roles))
	for _, r := range roles {
		if r == nil || r.Name == "" {
			continue
		}
		names = append(names, r.Name)
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}
