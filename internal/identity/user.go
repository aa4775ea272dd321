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

package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Domain errors
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountLocked        = errors.New("account is locked")
	ErrVerificationRequired = errors.New("account verification required")
	ErrVerificationFailed   = errors.New("account verification failed")
	ErrValidation           = errors.New("validation failed")
	ErrPasswordMismatch     = fmt.Errorf("%w: password and confirmation do not match", ErrValidation)
	ErrInvalidTransition    = errors.New("invalid account status transition")
	ErrConcurrentUpdate     = errors.New("user was modified concurrently")
	ErrStorage              = errors.New("credential store failure")
)

// Gender is descriptive only and never affects behaviour.
type Gender string

const (
	GenderUnspecified Gender = "unspecified"
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
)

// ParseGender maps free-form input onto a Gender, defaulting to unspecified.
func ParseGender(s string) Gender {
	switch Gender(strings.ToLower(strings.TrimSpace(s))) {
	case GenderMale:
		return GenderMale
	case GenderFemale:
		return GenderFemale
	default:
		return GenderUnspecified
	}
}

// User represents an account credential and its lifecycle state
type User struct {
	ID               string
	FirstName        string
	LastName         string
	Email            string
	Gender           Gender
	PasswordHash     string
	Status           Status
	RegistrationCode string
	LoginTrials      int

	// Version is the optimistic concurrency token. Update only succeeds
	// against the version that was read.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName joins first and last name.
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Clone returns a detached copy of the user.
func (u *User) Clone() *User {
	c := *u
	return &c
}

// NormalizeEmail lower-cases and trims an address. Emails are compared
// case-insensitively everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserRepository defines the credential store operations the authority needs
type UserRepository interface {
	// FindByEmail retrieves a user by (case-insensitive) email
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByID retrieves a user by ID
	FindByID(ctx context.Context, id string) (*User, error)

	// FindByEmailAndCode retrieves a user matching both email and registration code
	FindByEmailAndCode(ctx context.Context, email, code string) (*User, error)

	// Create persists a new user. Returns ErrUserAlreadyExists on duplicate email.
	Create(ctx context.Context, user *User) error

	// Update persists user changes if user.Version still matches the stored
	// record, then increments user.Version. Returns ErrConcurrentUpdate otherwise.
	Update(ctx context.Context, user *User) error
}
