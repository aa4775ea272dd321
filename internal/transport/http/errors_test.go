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

package http

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/credentia/credentia/internal/identity"
	"github.com/credentia/credentia/internal/session"
)

// TestPurpose: Validates the mapping from authority errors to HTTP status and message.
// Scope: Unit Test
// Expected: Each error kind maps to its status; the locking attempt reports 423, not 401.
// Test Case ID: ERR-01
func TestStatusFor(t *testing.T) {
	lockedNow := fmt.Errorf("%w: %w", identity.ErrInvalidCredentials, identity.ErrAccountLocked)

	tests := []struct {
		name       string
		err        error
		messages   errorMessages
		wantStatus int
		wantMsg    string
	}{
		{"invalid login", identity.ErrInvalidCredentials, defaultMessages, http.StatusUnauthorized, msgInvalidLogin},
		{"locking attempt", lockedNow, defaultMessages, http.StatusLocked, msgAccountLocked},
		{"locked", identity.ErrAccountLocked, changePasswordMessages, http.StatusLocked, msgAccountLocked},
		{"wrong old password", identity.ErrInvalidCredentials, changePasswordMessages, http.StatusBadRequest, msgIncorrectOldPassword},
		{"unverified", identity.ErrVerificationRequired, defaultMessages, http.StatusForbidden, msgVerificationRequired},
		{"bad code", identity.ErrVerificationFailed, defaultMessages, http.StatusBadRequest, msgVerificationFailed},
		{"register mismatch", identity.ErrPasswordMismatch, registerMessages, http.StatusBadRequest, msgRegisterMismatch},
		{"change mismatch", identity.ErrPasswordMismatch, changePasswordMessages, http.StatusBadRequest, msgChangePasswordMismatch},
		{"validation", fmt.Errorf("%w: email is required", identity.ErrValidation), defaultMessages, http.StatusBadRequest, "validation failed: email is required"},
		{"expired session", session.ErrSessionExpired, defaultMessages, http.StatusUnauthorized, "invalid or expired session"},
		{"contention", identity.ErrConcurrentUpdate, defaultMessages, http.StatusConflict, "account was modified concurrently, please retry"},
		{"gone", identity.ErrUserNotFound, defaultMessages, http.StatusNotFound, "account not found"},
		{"storage", fmt.Errorf("%w: timeout", identity.ErrStorage), defaultMessages, http.StatusInternalServerError, msgInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := statusFor(tt.err, tt.messages)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}
