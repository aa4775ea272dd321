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

// Package memory provides process-local stores for tests and single-node
// development deployments.
package memory

import (
	"context"
	"sync"

	"github.com/credentia/credentia/internal/identity"
)

// UserRepository implements identity.UserRepository in memory
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*identity.User
	byEmail map[string]string
}

// NewUserRepository creates an empty user repository
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]*identity.User),
		byEmail: make(map[string]string),
	}
}

// FindByEmail retrieves a user by email
func (r *UserRepository) FindByEmail(_ context.Context, email string) (*identity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[identity.NormalizeEmail(email)]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return r.byID[id].Clone(), nil
}

// FindByID retrieves a user by ID
func (r *UserRepository) FindByID(_ context.Context, id string) (*identity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return u.Clone(), nil
}

// FindByEmailAndCode retrieves a user matching email and registration code
func (r *UserRepository) FindByEmailAndCode(ctx context.Context, email, code string) (*identity.User, error) {
	u, err := r.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if code == "" || u.RegistrationCode != code {
		return nil, identity.ErrUserNotFound
	}
	return u, nil
}

// Create stores a new user
func (r *UserRepository) Create(_ context.Context, user *identity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := identity.NormalizeEmail(user.Email)
	if _, exists := r.byEmail[email]; exists {
		return identity.ErrUserAlreadyExists
	}
	if _, exists := r.byID[user.ID]; exists {
		return identity.ErrUserAlreadyExists
	}

	user.Email = email
	user.Version = 1
	r.byID[user.ID] = user.Clone()
	r.byEmail[email] = user.ID
	return nil
}

// Update replaces a user if its version is current
func (r *UserRepository) Update(_ context.Context, user *identity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[user.ID]
	if !ok {
		return identity.ErrUserNotFound
	}
	if stored.Version != user.Version {
		return identity.ErrConcurrentUpdate
	}

	email := identity.NormalizeEmail(user.Email)
	if email != stored.Email {
		if _, taken := r.byEmail[email]; taken {
			return identity.ErrUserAlreadyExists
		}
		delete(r.byEmail, stored.Email)
		r.byEmail[email] = user.ID
	}

	user.Email = email
	user.Version++
	r.byID[user.ID] = user.Clone()
	return nil
}
