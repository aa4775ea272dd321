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
	"log/slog"
	"net/http"
	"time"

	"github.com/credentia/credentia/internal/identity"
	"github.com/credentia/credentia/internal/observability/logger"
)

// RegisterRequest is the registration form
type RegisterRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Gender          string `json:"gender"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// VerifyRequest confirms a registration
type VerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest asks for a one-time password
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ChangePasswordRequest replaces the caller's password
type ChangePasswordRequest struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// UpdateProfileRequest changes the caller's display name
type UpdateProfileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UserResponse is the public view of an account
type UserResponse struct {
	ID        string   `json:"id"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Email     string   `json:"email"`
	Gender    string   `json:"gender"`
	Status    string   `json:"status"`
	Roles     []string `json:"roles"`
}

// LoginResponse is returned on a successful login
type LoginResponse struct {
	User               UserResponse `json:"user"`
	MustChangePassword bool         `json:"must_change_password"`
	ExpiresAt          time.Time    `json:"expires_at"`
}

// decodeRequest parses and shape-checks a body, writing the 400 itself.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst validatable) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := dst.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func toUserResponse(u *identity.User, roles []string) UserResponse {
	if roles == nil {
		roles = []string{}
	}
	return UserResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Gender:    string(u.Gender),
		Status:    u.Status.String(),
		Roles:     roles,
	}
}

// Register handles account registration
// @Summary Register
// @Description Creates an unverified account and emails a registration code. The response does not reveal whether the email was already registered.
// @Tags Account
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration form"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /account/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	err := h.accounts.Register(r.Context(), identity.RegisterRequest{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Gender:          identity.ParseGender(req.Gender),
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		h.respondServiceError(w, r, err, registerMessages)
		return
	}

	respondMessage(w, http.StatusOK, "Registration successful. Please check your email for the registration code.")
}

// Verify handles registration code confirmation
// @Summary Verify account
// @Tags Account
// @Accept json
// @Produce json
// @Param request body VerifyRequest true "Email and registration code"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /account/verify [post]
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	if err := h.accounts.Verify(r.Context(), req.Email, req.Code); err != nil {
		h.respondServiceError(w, r, err, defaultMessages)
		return
	}

	respondMessage(w, http.StatusOK, "Your account has been verified. You may now log in.")
}

// Login handles user login
// @Summary Login
// @Description Authenticates with email and password and sets the session cookie
// @Tags Account
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 423 {object} map[string]string
// @Router /account/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondServiceError(w, r, err, defaultMessages)
		return
	}

	h.setSessionCookie(w, res.Session)

	p := res.Session.Principal
	respondJSON(w, http.StatusOK, LoginResponse{
		User: UserResponse{
			ID:        p.UserID,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Email:     p.Email,
			Roles:     p.Roles,
		},
		MustChangePassword: res.MustChangePassword,
		ExpiresAt:          res.Session.ExpiresAt,
	})
}

// ForgotPassword handles password reset requests
// @Summary Forgot password
// @Description Emails a one-time password. The response does not reveal whether the email exists.
// @Tags Account
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Email"
// @Success 200 {object} map[string]string
// @Router /account/forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	if err := h.accounts.ForgotPassword(r.Context(), req.Email); err != nil {
		h.respondServiceError(w, r, err, defaultMessages)
		return
	}

	respondMessage(w, http.StatusOK, "If the email is registered, a new password has been sent to it.")
}

// Logout handles user logout
// @Summary Logout
// @Tags Account
// @Produce json
// @Security CookieAuth
// @Success 200 {object} map[string]string
// @Router /account/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := h.getSessionFromCookie(r); token != "" {
		sess, err := h.sessions.Authenticate(r.Context(), token)
		switch {
		case err == nil:
			if err := h.accounts.Logout(r.Context(), sess); err != nil {
				slog.ErrorContext(r.Context(), "failed to tear down session", logger.SessionID(sess.ID), logger.Error(err))
				respondError(w, http.StatusInternalServerError, msgInternal)
				return
			}
		case !isSessionError(err):
			slog.ErrorContext(r.Context(), "session lookup failed", logger.Error(err))
		}
	}

	h.clearSessionCookie(w)
	respondMessage(w, http.StatusOK, "logged out successfully")
}

// GetCurrentUser returns the current authenticated user
// @Summary Get current user
// @Tags Account
// @Produce json
// @Security CookieAuth
// @Success 200 {object} UserResponse
// @Failure 401 {object} map[string]string
// @Router /account/me [get]
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	user, err := h.accounts.CurrentUser(r.Context(), sess)
	if err != nil {
		h.respondServiceError(w, r, err, defaultMessages)
		return
	}

	respondJSON(w, http.StatusOK, toUserResponse(user, sess.Principal.Roles))
}

// ChangePassword replaces the caller's password
// @Summary Change password
// @Tags Account
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param request body ChangePasswordRequest true "Old and new password"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 423 {object} map[string]string
// @Router /account/change-password [post]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	sess := SessionFromContext(r.Context())
	err := h.accounts.ChangePassword(r.Context(), sess, req.OldPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		h.respondServiceError(w, r, err, changePasswordMessages)
		return
	}

	respondMessage(w, http.StatusOK, "Your password has been changed.")
}

// UpdateProfile changes the caller's display name
// @Summary Update profile
// @Tags Account
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param request body UpdateProfileRequest true "Names"
// @Success 200 {object} UserResponse
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /account/profile [put]
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	sess := SessionFromContext(r.Context())
	user, err := h.accounts.UpdateProfile(r.Context(), sess, req.FirstName, req.LastName)
	if err != nil {
		h.respondServiceError(w, r, err, defaultMessages)
		return
	}

	respondJSON(w, http.StatusOK, toUserResponse(user, sess.Principal.Roles))
}
