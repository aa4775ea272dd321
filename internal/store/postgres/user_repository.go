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

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/credentia/credentia/internal/identity"
)

const userColumns = `id, first_name, last_name, email, gender, password_hash, status,
	registration_code, login_trials, version, created_at, updated_at`

// UserRepository implements identity.UserRepository
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	user.Email = identity.NormalizeEmail(user.Email)
	user.Version = 1

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO users (
			id, first_name, last_name, email, gender, password_hash, status,
			registration_code, login_trials, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		user.ID, user.FirstName, user.LastName, user.Email, string(user.Gender),
		user.PasswordHash, string(user.Status), user.RegistrationCode, user.LoginTrials,
		user.Version, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return identity.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// FindByID retrieves a user by ID
func (r *UserRepository) FindByID(ctx context.Context, id string) (*identity.User, error) {
	return r.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByEmail retrieves a user by email
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	return r.queryOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`,
		identity.NormalizeEmail(email))
}

// FindByEmailAndCode retrieves a user matching email and registration code
func (r *UserRepository) FindByEmailAndCode(ctx context.Context, email, code string) (*identity.User, error) {
	if code == "" {
		return nil, identity.ErrUserNotFound
	}
	return r.queryOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = $1 AND registration_code = $2`,
		identity.NormalizeEmail(email), code)
}

// Update writes the user if the stored version matches and bumps the version
func (r *UserRepository) Update(ctx context.Context, user *identity.User) error {
	email := identity.NormalizeEmail(user.Email)

	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET
			first_name = $3,
			last_name = $4,
			email = $5,
			gender = $6,
			password_hash = $7,
			status = $8,
			registration_code = $9,
			login_trials = $10,
			updated_at = $11,
			version = version + 1
		WHERE id = $1 AND version = $2
	`,
		user.ID, user.Version, user.FirstName, user.LastName, email, string(user.Gender),
		user.PasswordHash, string(user.Status), user.RegistrationCode, user.LoginTrials,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return identity.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.db.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, user.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check user: %w", err)
		}
		if !exists {
			return identity.ErrUserNotFound
		}
		return identity.ErrConcurrentUpdate
	}

	user.Email = email
	user.Version++
	return nil
}

func (r *UserRepository) queryOne(ctx context.Context, query string, args ...any) (*identity.User, error) {
	var (
		user   identity.User
		gender string
		status string
	)
	err := r.db.pool.QueryRow(ctx, query, args...).Scan(
		&user.ID, &user.FirstName, &user.LastName, &user.Email, &gender,
		&user.PasswordHash, &status, &user.RegistrationCode, &user.LoginTrials,
		&user.Version, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.Gender = identity.ParseGender(gender)
	if user.Status, err = identity.ParseStatus(status); err != nil {
		return nil, err
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
