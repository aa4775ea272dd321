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
	"errors"
	"log/slog"
	"net/http"

	"github.com/credentia/credentia/internal/identity"
	"github.com/credentia/credentia/internal/observability/logger"
)

// User-facing messages.
const (
	msgInvalidLogin           = "Invalid Login."
	msgAccountLocked          = "Your account has been locked please contact an Administrator."
	msgVerificationRequired   = "Please verify your account first."
	msgVerificationFailed     = "Invalid email or registration code."
	msgRegisterMismatch       = "Password and Confirmation does not match."
	msgChangePasswordMismatch = "New Password does not match Confirm New Password"
	msgIncorrectOldPassword   = "Incorrect old Password."
	msgInternal               = "internal server error"
)

// errorMessages overrides the default message per endpoint. An override for
// invalid credentials also downgrades the status to 400: the caller is
// already authenticated.
type errorMessages struct {
	invalidCredentials string
	passwordMismatch   string
}

var (
	registerMessages       = errorMessages{passwordMismatch: msgRegisterMismatch}
	changePasswordMessages = errorMessages{invalidCredentials: msgIncorrectOldPassword, passwordMismatch: msgChangePasswordMismatch}
	defaultMessages        = errorMessages{}
)

// statusFor maps an authority error onto an HTTP status and message.
// Locked is tested first: the locking attempt also matches invalid credentials.
func statusFor(err error, m errorMessages) (int, string) {
	switch {
	case errors.Is(err, identity.ErrAccountLocked):
		return http.StatusLocked, msgAccountLocked
	case errors.Is(err, identity.ErrInvalidCredentials):
		if m.invalidCredentials != "" {
			return http.StatusBadRequest, m.invalidCredentials
		}
		return http.StatusUnauthorized, msgInvalidLogin
	case errors.Is(err, identity.ErrVerificationRequired):
		return http.StatusForbidden, msgVerificationRequired
	case errors.Is(err, identity.ErrVerificationFailed):
		return http.StatusBadRequest, msgVerificationFailed
	case errors.Is(err, identity.ErrPasswordMismatch) && m.passwordMismatch != "":
		return http.StatusBadRequest, m.passwordMismatch
	case errors.Is(err, identity.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case isSessionError(err):
		return http.StatusUnauthorized, "invalid or expired session"
	case errors.Is(err, identity.ErrConcurrentUpdate):
		return http.StatusConflict, "account was modified concurrently, please retry"
	case errors.Is(err, identity.ErrUserNotFound):
		return http.StatusNotFound, "account not found"
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, m errorMessages) {
	status, msg := statusFor(err, m)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", logger.Path(r.URL.Path), logger.Error(err))
	}
	respondError(w, status, msg)
}
