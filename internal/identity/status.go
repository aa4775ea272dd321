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

import "fmt"

// Status is the lifecycle state of an account
type Status string

const (
	StatusNewRegister         Status = "new_register"
	StatusActive              Status = "active"
	StatusLocked              Status = "locked"
	StatusNeedsPasswordChange Status = "needs_password_change"
)

// transitions lists every permitted status change. Locked only exits through
// ForgotPassword here, or through a verified password change (ResetPassword).
var transitions = map[Status]map[Status]struct{}{
	StatusNewRegister: {
		StatusActive:              {},
		StatusLocked:              {},
		StatusNeedsPasswordChange: {},
	},
	StatusActive: {
		StatusActive:              {},
		StatusLocked:              {},
		StatusNeedsPasswordChange: {},
	},
	StatusNeedsPasswordChange: {
		StatusActive:              {},
		StatusLocked:              {},
		StatusNeedsPasswordChange: {},
	},
	StatusLocked: {
		StatusNeedsPasswordChange: {},
	},
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether moving from s to target is permitted.
func (s Status) CanTransition(target Status) bool {
	allowed, ok := transitions[s]
	if !ok {
		return false
	}
	_, ok = allowed[target]
	return ok
}

func (s Status) String() string { return string(s) }

// ParseStatus converts a stored value into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown account status %q", v)
	}
	return s, nil
}

// transitionTo applies a status change to the user, rejecting illegal moves.
// Leaving a failure-accruing condition resets the login trial counter.
func (u *User) transitionTo(target Status) error {
	if !u.Status.CanTransition(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, u.Status, target)
	}
	if target != StatusLocked {
		u.LoginTrials = 0
	}
	u.Status = target
	return nil
}

// Activate marks a verified or recovered account as usable.
func (u *User) Activate() error {
	if err := u.transitionTo(StatusActive); err != nil {
		return err
	}
	u.RegistrationCode = ""
	return nil
}

// ResetPassword installs a new password hash after the caller proved the old
// one, and returns the account to Active from any state, Locked included.
func (u *User) ResetPassword(hash string) error {
	if !u.Status.Valid() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, u.Status, StatusActive)
	}
	u.Status = StatusActive
	u.LoginTrials = 0
	u.RegistrationCode = ""
	u.PasswordHash = hash
	return nil
}

// Lock suspends login ability.
func (u *User) Lock() error {
	return u.transitionTo(StatusLocked)
}

// RequirePasswordChange marks the account as holding a one-time password.
func (u *User) RequirePasswordChange() error {
	return u.transitionTo(StatusNeedsPasswordChange)
}

// RecordFailedLogin increments the trial counter and locks the account once
// maxTrials is reached. It reports whether this call performed the lock.
func (u *User) RecordFailedLogin(maxTrials int) (locked bool, err error) {
	u.LoginTrials++
	if u.LoginTrials < maxTrials || u.Status == StatusLocked {
		return false, nil
	}
	if err := u.Lock(); err != nil {
		return false, err
	}
	return true, nil
}
