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

// Package http exposes the account authority over a JSON API.
//
// @title Credentia API
// @version 1.0
// @BasePath /api/v1
//
// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name credentia_session
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/credentia/credentia/internal/identity"
	"github.com/credentia/credentia/internal/observability/logger"
	"github.com/credentia/credentia/internal/session"
)

const maxBodyBytes = 1 << 20

// AccountService is the account authority as seen by the transport
type AccountService interface {
	Register(ctx context.Context, req identity.RegisterRequest) error
	Verify(ctx context.Context, email, code string) error
	Login(ctx context.Context, email, password string) (*identity.LoginResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ChangePassword(ctx context.Context, sess *session.Session, oldPassword, newPassword, confirmPassword string) error
	UpdateProfile(ctx context.Context, sess *session.Session, firstName, lastName string) (*identity.User, error)
	CurrentUser(ctx context.Context, sess *session.Session) (*identity.User, error)
	Logout(ctx context.Context, sess *session.Session) error
}

// SessionAuthenticator resolves a session token into a live session
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*session.Session, error)
}

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// Handler holds HTTP handlers and dependencies
type Handler struct {
	accounts      AccountService
	sessions      SessionAuthenticator
	sessionConfig SessionConfig
	checks        map[string]HealthCheck
}

// SessionConfig holds session cookie configuration
type SessionConfig struct {
	CookieName     string
	CookieDomain   string
	CookiePath     string
	CookieSecure   bool
	CookieSameSite http.SameSite
}

// RouterConfig holds router-wide middleware settings
type RouterConfig struct {
	RateLimiter    *RateLimiter
	RequestTimeout time.Duration
	TrustProxy     bool
}

// NewHandler creates a new HTTP handler
func NewHandler(
	accounts AccountService,
	sessions SessionAuthenticator,
	sessionConfig SessionConfig,
	checks map[string]HealthCheck,
) *Handler {
	return &Handler{
		accounts:      accounts,
		sessions:      sessions,
		sessionConfig: sessionConfig,
		checks:        checks,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	if cfg.RateLimiter != nil {
		r.Use(RateLimitMiddleware(cfg.RateLimiter))
	}
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1/account", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/verify", h.Verify)
		r.Post("/login", h.Login)
		r.Post("/forgot-password", h.ForgotPassword)
		r.With(h.CSRFMiddleware).Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)
			r.Use(h.CSRFMiddleware)

			r.Get("/me", h.GetCurrentUser)
			r.Post("/change-password", h.ChangePassword)
			r.With(RequirePasswordCurrent).Put("/profile", h.UpdateProfile)
		})
	})

	return r
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks the service and its storage dependencies
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Service: "credentia"}
	status := http.StatusOK

	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for name, check := range h.checks {
			if err := check(ctx); err != nil {
				slog.WarnContext(r.Context(), "health check failed", logger.Component(name), logger.Error(err))
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	respondJSON(w, status, resp)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionConfig.CookieName,
		Value:    sess.Token,
		Path:     h.sessionConfig.CookiePath,
		Domain:   h.sessionConfig.CookieDomain,
		Secure:   h.sessionConfig.CookieSecure,
		HttpOnly: true,
		SameSite: h.sessionConfig.CookieSameSite,
		Expires:  sess.ExpiresAt,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionConfig.CookieName,
		Value:    "",
		Path:     h.sessionConfig.CookiePath,
		Domain:   h.sessionConfig.CookieDomain,
		Secure:   h.sessionConfig.CookieSecure,
		HttpOnly: true,
		SameSite: h.sessionConfig.CookieSameSite,
		MaxAge:   -1,
	})
}

func (h *Handler) getSessionFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(h.sessionConfig.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

var errEmptyBody = errors.New("empty request body")

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"message": message,
	})
}
