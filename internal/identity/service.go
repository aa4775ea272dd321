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
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/credentia/credentia/internal/notify"
	"github.com/credentia/credentia/internal/observability/logger"
	"github.com/credentia/credentia/internal/session"
)

// Login outcomes reported to Metrics
const (
	OutcomeSuccess              = "success"
	OutcomeInvalidCredentials   = "invalid_credentials"
	OutcomeLocked               = "locked"
	OutcomeVerificationRequired = "verification_required"
	OutcomeError                = "error"
)

// RoleResolver returns the role names assigned to a user
type RoleResolver interface {
	RoleNames(ctx context.Context, userID string) ([]string, error)
}

// SessionIssuer opens and maintains authenticated sessions
type SessionIssuer interface {
	Issue(ctx context.Context, p session.Principal) (*session.Session, error)
	Update(ctx context.Context, sess *session.Session) error
	Teardown(ctx context.Context, sess *session.Session) error
}

// Metrics receives account lifecycle events
type Metrics interface {
	LoginAttempt(ctx context.Context, outcome string)
	AccountLocked(ctx context.Context)
	Registered(ctx context.Context)
	NotificationFailed(ctx context.Context, kind string)
}

type noopMetrics struct{}

func (noopMetrics) LoginAttempt(context.Context, string)       {}
func (noopMetrics) AccountLocked(context.Context)              {}
func (noopMetrics) Registered(context.Context)                 {}
func (noopMetrics) NotificationFailed(context.Context, string) {}

// Config tunes the account authority
type Config struct {
	SiteName           string
	LockoutMaxAttempts int
	CodeLength         int
	NotifyTimeout      time.Duration
	MaxUpdateRetries   int
}

// DefaultConfig returns the stock policy: lock after 3 failures, 6-char codes.
func DefaultConfig() Config {
	return Config{
		SiteName:           "Credentia",
		LockoutMaxAttempts: 3,
		CodeLength:         6,
		NotifyTimeout:      20 * time.Second,
		MaxUpdateRetries:   5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SiteName == "" {
		c.SiteName = d.SiteName
	}
	if c.LockoutMaxAttempts <= 0 {
		c.LockoutMaxAttempts = d.LockoutMaxAttempts
	}
	if c.CodeLength <= 0 {
		c.CodeLength = d.CodeLength
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = d.NotifyTimeout
	}
	if c.MaxUpdateRetries <= 0 {
		c.MaxUpdateRetries = d.MaxUpdateRetries
	}
	return c
}

// Option customises a Service
type Option func(*Service)

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer used for operation spans
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// RegisterRequest carries the registration form
type RegisterRequest struct {
	FirstName       string
	LastName        string
	Email           string
	Gender          Gender
	Password        string
	ConfirmPassword string
}

// LoginResult is returned by a successful login. MustChangePassword asks the
// caller to route the user to the change-password step next.
type LoginResult struct {
	Session            *session.Session
	MustChangePassword bool
}

// Service is the account authority: it owns the credential lifecycle and the
// account status machine.
type Service struct {
	repo     UserRepository
	hasher   Hasher
	roles    RoleResolver
	sessions SessionIssuer
	notifier notify.Notifier
	metrics  Metrics
	tracer   trace.Tracer
	logger   *slog.Logger
	cfg      Config

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a new account authority
func NewService(
	repo UserRepository,
	hasher Hasher,
	roles RoleResolver,
	sessions SessionIssuer,
	notifier notify.Notifier,
	cfg Config,
	opts ...Option,
) *Service {
	s := &Service{
		repo:     repo,
		hasher:   hasher,
		roles:    roles,
		sessions: sessions,
		notifier: notifier,
		metrics:  noopMetrics{},
		tracer:   otel.Tracer("github.com/credentia/credentia/internal/identity"),
		logger:   slog.Default(),
		cfg:      cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("identity"))
	return s
}

// Register creates an account in NewRegister state and mails its
// registration code. A duplicate email is a silent no-op.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (err error) {
	ctx, span := s.tracer.Start(ctx, "identity.Register")
	defer func() { endSpan(span, err) }()

	if req.Password != req.ConfirmPassword {
		return ErrPasswordMismatch
	}
	email := NormalizeEmail(req.Email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if req.Password == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}

	// Hash before the lookup so existing and new emails cost the same.
	code, err := RandomCode(s.cfg.CodeLength)
	if err != nil {
		return fmt.Errorf("failed to generate registration code: %w", err)
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		s.logger.DebugContext(ctx, "registration skipped for existing email")
		return nil
	case !errors.Is(err, ErrUserNotFound):
		return storageErr(err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate user id: %w", err)
	}

	now := time.Now().UTC()
	user := &User{
		ID:               id.String(),
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		Email:            email,
		Gender:           req.Gender,
		PasswordHash:     hash,
		Status:           StatusNewRegister,
		RegistrationCode: code,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if user.Gender == "" {
		user.Gender = GenderUnspecified
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserAlreadyExists) {
			s.logger.DebugContext(ctx, "registration lost race for existing email")
			return nil
		}
		return storageErr(err)
	}

	s.metrics.Registered(ctx)
	s.logger.InfoContext(ctx, "account registered", logger.UserID(user.ID))
	s.deliver(ctx, "welcome", user.ID, welcomeMessage(s.cfg.SiteName, user, code))
	return nil
}

// Verify activates a NewRegister account when both email and code match.
func (s *Service) Verify(ctx context.Context, email, code string) (err error) {
	ctx, span := s.tracer.Start(ctx, "identity.Verify")
	defer func() { endSpan(span, err) }()

	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return ErrVerificationFailed
	}

	load := func(ctx context.Context) (*User, error) {
		return s.repo.FindByEmailAndCode(ctx, email, code)
	}
	user, err := s.mutate(ctx, load, func(u *User) (bool, error) {
		if u.Status != StatusNewRegister ||
			subtle.ConstantTimeCompare([]byte(u.RegistrationCode), []byte(code)) != 1 {
			return false, ErrVerificationFailed
		}
		return true, u.Activate()
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrVerificationFailed
		}
		return err
	}

	s.logger.InfoContext(ctx, "account verified", logger.UserID(user.ID))
	return nil
}

// Login checks a password and opens a session. Wrong passwords accrue login
// trials and lock the account at the configured threshold; the failure that
// locks the account matches both ErrInvalidCredentials and ErrAccountLocked.
func (s *Service) Login(ctx context.Context, email, password string) (res *LoginResult, err error) {
	ctx, span := s.tracer.Start(ctx, "identity.Login")
	defer func() { endSpan(span, err) }()

	email = NormalizeEmail(email)

	var (
		checked    bool
		checkedFor string
		passwordOK bool
		failed     bool
		lockedNow  bool
		mustChange bool
	)

	load := func(ctx context.Context) (*User, error) {
		return s.repo.FindByEmail(ctx, email)
	}
	user, err := s.mutate(ctx, load, func(u *User) (bool, error) {
		failed, lockedNow, mustChange = false, false, false

		// Re-verify only when another writer replaced the hash between reads.
		if !checked || checkedFor != u.PasswordHash {
			passwordOK = s.verifyPassword(ctx, u, password)
			checked, checkedFor = true, u.PasswordHash
		}

		if !passwordOK {
			locked, err := u.RecordFailedLogin(s.cfg.LockoutMaxAttempts)
			if err != nil {
				return false, err
			}
			failed, lockedNow = true, locked
			return true, nil
		}

		switch u.Status {
		case StatusLocked:
			return false, ErrAccountLocked
		case StatusNewRegister:
			return false, ErrVerificationRequired
		case StatusNeedsPasswordChange:
			mustChange = true
		}
		return true, u.Activate()
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			s.burnPasswordCheck(password)
			s.metrics.LoginAttempt(ctx, OutcomeInvalidCredentials)
			return nil, ErrInvalidCredentials
		case errors.Is(err, ErrAccountLocked):
			s.metrics.LoginAttempt(ctx, OutcomeLocked)
		case errors.Is(err, ErrVerificationRequired):
			s.metrics.LoginAttempt(ctx, OutcomeVerificationRequired)
		default:
			s.metrics.LoginAttempt(ctx, OutcomeError)
		}
		return nil, err
	}

	if failed {
		s.metrics.LoginAttempt(ctx, OutcomeInvalidCredentials)
		if lockedNow {
			s.metrics.AccountLocked(ctx)
			s.logger.WarnContext(ctx, "account locked after failed logins",
				logger.UserID(user.ID), slog.Int("login_trials", user.LoginTrials))
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, ErrAccountLocked)
		}
		return nil, ErrInvalidCredentials
	}

	sess, err := s.openSession(ctx, user, mustChange)
	if err != nil {
		s.metrics.LoginAttempt(ctx, OutcomeError)
		return nil, err
	}

	s.metrics.LoginAttempt(ctx, OutcomeSuccess)
	s.logger.InfoContext(ctx, "login succeeded",
		logger.UserID(user.ID), logger.SessionID(sess.ID), slog.Bool("must_change_password", mustChange))
	return &LoginResult{Session: sess, MustChangePassword: mustChange}, nil
}

// ForgotPassword replaces the password with a random one-time password and
// mails it to the account. Unknown emails are a silent no-op.
func (s *Service) ForgotPassword(ctx context.Context, email string) (err error) {
	ctx, span := s.tracer.Start(ctx, "identity.ForgotPassword")
	defer func() { endSpan(span, err) }()

	email = NormalizeEmail(email)
	if email == "" {
		return nil
	}

	newPassword, err := RandomCode(s.cfg.CodeLength)
	if err != nil {
		return fmt.Errorf("failed to generate password: %w", err)
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	load := func(ctx context.Context) (*User, error) {
		return s.repo.FindByEmail(ctx, email)
	}
	user, err := s.mutate(ctx, load, func(u *User) (bool, error) {
		if err := u.RequirePasswordChange(); err != nil {
			return false, err
		}
		u.PasswordHash = hash
		return true, nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}

	s.logger.InfoContext(ctx, "password reset issued", logger.UserID(user.ID))
	s.deliver(ctx, "forgot_password", user.ID, forgotPasswordMessage(s.cfg.SiteName, user, newPassword))
	return nil
}

// ChangePassword sets a new password for the session's user, returns the
// account to Active and clears the session's must-change flag.
func (s *Service) ChangePassword(ctx context.Context, sess *session.Session, oldPassword, newPassword, confirmPassword string) (err error) {
	ctx, span := s.tracer.Start(ctx, "identity.ChangePassword")
	defer func() { endSpan(span, err) }()

	if sess == nil || sess.Principal.UserID == "" {
		return session.ErrSessionInvalid
	}
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}
	if newPassword == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	var (
		checked    bool
		checkedFor string
		oldOK      bool
	)
	userID := sess.Principal.UserID
	load := func(ctx context.Context) (*User, error) {
		return s.repo.FindByID(ctx, userID)
	}
	_, err = s.mutate(ctx, load, func(u *User) (bool, error) {
		if !checked || checkedFor != u.PasswordHash {
			oldOK = s.verifyPassword(ctx, u, oldPassword)
			checked, checkedFor = true, u.PasswordHash
		}
		if !oldOK {
			return false, ErrInvalidCredentials
		}
		if err := u.ResetPassword(hash); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	sess.Principal.MustChangePassword = false
	if err := s.sessions.Update(ctx, sess); err != nil {
		s.logger.WarnContext(ctx, "failed to refresh session after password change",
			logger.SessionID(sess.ID), logger.Error(err))
	}
	s.logger.InfoContext(ctx, "password changed", logger.UserID(userID))
	return nil
}

// UpdateProfile changes the display name of the session's user and refreshes
// the session's cached copy.
func (s *Service) UpdateProfile(ctx context.Context, sess *session.Session, firstName, lastName string) (user *User, err error) {
	ctx, span := s.tracer.Start(ctx, "identity.UpdateProfile")
	defer func() { endSpan(span, err) }()

	if sess == nil || sess.Principal.UserID == "" {
		return nil, session.ErrSessionInvalid
	}
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("%w: first and last name are required", ErrValidation)
	}

	userID := sess.Principal.UserID
	load := func(ctx context.Context) (*User, error) {
		return s.repo.FindByID(ctx, userID)
	}
	user, err = s.mutate(ctx, load, func(u *User) (bool, error) {
		u.FirstName = firstName
		u.LastName = lastName
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	sess.Principal.FirstName = user.FirstName
	sess.Principal.LastName = user.LastName
	if err := s.sessions.Update(ctx, sess); err != nil {
		s.logger.WarnContext(ctx, "failed to refresh session after profile update",
			logger.SessionID(sess.ID), logger.Error(err))
	}
	return user, nil
}

// CurrentUser loads the account behind a session.
func (s *Service) CurrentUser(ctx context.Context, sess *session.Session) (*User, error) {
	if sess == nil || sess.Principal.UserID == "" {
		return nil, session.ErrSessionInvalid
	}
	user, err := s.repo.FindByID(ctx, sess.Principal.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storageErr(err)
	}
	return user, nil
}

// Logout tears the session down.
func (s *Service) Logout(ctx context.Context, sess *session.Session) (err error) {
	ctx, span := s.tracer.Start(ctx, "identity.Logout")
	defer func() { endSpan(span, err) }()

	if sess == nil {
		return nil
	}
	userID, sessionID := sess.Principal.UserID, sess.ID
	if err := s.sessions.Teardown(ctx, sess); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "logged out", logger.UserID(userID), logger.SessionID(sessionID))
	return nil
}

// mutate runs a read-modify-write against one account. apply reports whether
// the user must be written; a version conflict re-reads and re-applies, so
// apply must be safe to run more than once.
func (s *Service) mutate(
	ctx context.Context,
	load func(context.Context) (*User, error),
	apply func(*User) (bool, error),
) (*User, error) {
	for attempt := 1; attempt <= s.cfg.MaxUpdateRetries; attempt++ {
		user, err := load(ctx)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, storageErr(err)
		}

		write, err := apply(user)
		if err != nil {
			return nil, err
		}
		if !write {
			return user, nil
		}

		user.UpdatedAt = time.Now().UTC()
		err = s.repo.Update(ctx, user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, ErrConcurrentUpdate) {
			return nil, storageErr(err)
		}
		s.logger.DebugContext(ctx, "retrying account update after version conflict",
			logger.UserID(user.ID), slog.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("%w: gave up after %d attempts", ErrConcurrentUpdate, s.cfg.MaxUpdateRetries)
}

func (s *Service) openSession(ctx context.Context, u *User, mustChange bool) (*session.Session, error) {
	roles, err := s.roles.RoleNames(ctx, u.ID)
	if err != nil {
		return nil, storageErr(err)
	}
	sess, err := s.sessions.Issue(ctx, session.Principal{
		UserID:             u.ID,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		Email:              u.Email,
		Roles:              roles,
		MustChangePassword: mustChange,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}
	return sess, nil
}

func (s *Service) verifyPassword(ctx context.Context, u *User, password string) bool {
	ok, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		s.logger.WarnContext(ctx, "stored password hash is unreadable", logger.UserID(u.ID), logger.Error(err))
		return false
	}
	return ok
}

// burnPasswordCheck spends one hash verification so unknown emails cost the
// same as wrong passwords.
func (s *Service) burnPasswordCheck(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("credentia-unknown-account")
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(password, s.dummyHash)
	}
}

// deliver hands a message to the notifier. Delivery is best effort: the
// account change is already committed, so failures are logged and counted.
func (s *Service) deliver(ctx context.Context, kind, userID string, msg notify.Message) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
	defer cancel()

	if err := s.notifier.Send(ctx, msg); err != nil {
		s.metrics.NotificationFailed(ctx, kind)
		s.logger.ErrorContext(ctx, "notification failed",
			logger.UserID(userID), slog.String("kind", kind), logger.Error(err))
	}
}

func storageErr(err error) error {
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error.kind", errorKind(err)))
	}
	span.End()
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrVerificationRequired):
		return "verification_required"
	case errors.Is(err, ErrVerificationFailed):
		return "verification_failed"
	case errors.Is(err, ErrStorage):
		return "storage"
	default:
		return "internal"
	}
}
