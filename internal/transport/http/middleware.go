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
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/credentia/credentia/internal/observability/logger"
	"github.com/credentia/credentia/internal/session"
)

// CSRFHeader must accompany every state-changing authenticated request.
const CSRFHeader = "X-CSRF-Token"

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				attrs := []any{
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				}
				if ww.Status() >= http.StatusInternalServerError {
					slog.ErrorContext(r.Context(), "http_request", attrs...)
					return
				}
				slog.InfoContext(r.Context(), "http_request", attrs...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// AuthMiddleware resolves the session cookie and puts the session into the
// request context. A renewed token is written back to the cookie.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.getSessionFromCookie(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		sess, err := h.sessions.Authenticate(r.Context(), token)
		if err != nil {
			if !isSessionError(err) {
				slog.ErrorContext(r.Context(), "session lookup failed", logger.Error(err))
				respondError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			h.clearSessionCookie(w)
			respondError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		if sess.Token != token {
			h.setSessionCookie(w, sess)
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// RequirePasswordCurrent blocks the request while the session was opened
// with a one-time password that has not been replaced yet.
func RequirePasswordCurrent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		if sess == nil {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		if sess.Principal.MustChangePassword {
			respondError(w, http.StatusForbidden, "You must change your password before continuing.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CSRFMiddleware protects against Cross-Site Request Forgery for state-changing requests.
// Browsers cannot attach a custom header cross-origin without a CORS preflight.
func (h *Handler) CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}

		if r.Header.Get(CSRFHeader) == "" {
			slog.WarnContext(r.Context(), "missing CSRF token header", logger.Method(r.Method), logger.Path(r.URL.Path))
			respondError(w, http.StatusForbidden, "CSRF protection: X-CSRF-Token header is required for state-changing operations")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isSessionError(err error) bool {
	return errors.Is(err, session.ErrSessionNotFound) ||
		errors.Is(err, session.ErrSessionExpired) ||
		errors.Is(err, session.ErrSessionInvalid)
}
