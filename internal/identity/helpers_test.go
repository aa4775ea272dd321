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

package identity_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/credentia/credentia/internal/authz"
	"github.com/credentia/credentia/internal/identity"
	"github.com/credentia/credentia/internal/notify"
	"github.com/credentia/credentia/internal/session"
	"github.com/credentia/credentia/internal/store/memory"
)

const testSigningKey = "test-signing-key-0123456789abcdef"

// outbox records every message handed to the notifier
type outbox struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (o *outbox) Send(_ context.Context, msg notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) messages() []notify.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]notify.Message(nil), o.sent...)
}

func (o *outbox) last(t *testing.T) notify.Message {
	t.Helper()
	msgs := o.messages()
	require.NotEmpty(t, msgs, "expected a notification")
	return msgs[len(msgs)-1]
}

// countingHasher counts Hash calls made by the service
type countingHasher struct {
	identity.Hasher
	mu    sync.Mutex
	calls int
}

func (h *countingHasher) Hash(password string) (string, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	return h.Hasher.Hash(password)
}

func (h *countingHasher) hashCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// MockNotifier is a testify mock of notify.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, msg notify.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// countingMetrics tallies metric events
type countingMetrics struct {
	mu            sync.Mutex
	logins        map[string]int
	lockouts      int
	registrations int
	notifyFails   map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{logins: map[string]int{}, notifyFails: map[string]int{}}
}

func (m *countingMetrics) LoginAttempt(_ context.Context, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins[outcome]++
}

func (m *countingMetrics) AccountLocked(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockouts++
}

func (m *countingMetrics) Registered(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrations++
}

func (m *countingMetrics) NotificationFailed(_ context.Context, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifyFails[kind]++
}

type fixture struct {
	svc      *identity.Service
	users    *memory.UserRepository
	roles    *memory.RoleRepository
	sessions *memory.SessionStore
	issuer   *session.Issuer
	hasher   *identity.PasswordHasher
	hashes   *countingHasher
	mail     *outbox
	metrics  *countingMetrics
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	cfg      identity.Config
	notifier notify.Notifier
}

func withConfig(fn func(*identity.Config)) fixtureOption {
	return func(c *fixtureConfig) { fn(&c.cfg) }
}

func withNotifier(n notify.Notifier) fixtureOption {
	return func(c *fixtureConfig) { c.notifier = n }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	f := &fixture{
		users:    memory.NewUserRepository(),
		sessions: memory.NewSessionStore(),
		hasher:   identity.NewPasswordHasher(1024, 1, 1, 16, 32),
		mail:     &outbox{},
		metrics:  newCountingMetrics(),
		roles: memory.NewRoleRepository(
			&authz.Role{ID: "role-admin", Name: authz.RoleAdministrator},
			&authz.Role{ID: "role-staff", Name: authz.RoleStaff},
			&authz.Role{ID: "role-member", Name: authz.RoleMember},
		),
	}
	f.hashes = &countingHasher{Hasher: f.hasher}
	f.issuer = session.NewIssuer(f.sessions, []byte(testSigningKey), 10*time.Minute)

	fc := &fixtureConfig{cfg: identity.DefaultConfig(), notifier: f.mail}
	for _, opt := range opts {
		opt(fc)
	}

	f.svc = identity.NewService(
		f.users,
		f.hashes,
		authz.NewService(f.roles),
		f.issuer,
		fc.notifier,
		fc.cfg,
		identity.WithMetrics(f.metrics),
	)
	return f
}

// register creates an account and returns the registration code that was mailed.
func (f *fixture) register(t *testing.T, first, last, email, password string) string {
	t.Helper()
	before := len(f.mail.messages())
	err := f.svc.Register(context.Background(), identity.RegisterRequest{
		FirstName:       first,
		LastName:        last,
		Email:           email,
		Password:        password,
		ConfirmPassword: password,
	})
	require.NoError(t, err)
	require.Len(t, f.mail.messages(), before+1)
	return secretFrom(t, f.mail.last(t).Body)
}

// activate registers and verifies an account.
func (f *fixture) activate(t *testing.T, email, password string) *identity.User {
	t.Helper()
	code := f.register(t, "Test", "User", email, password)
	require.NoError(t, f.svc.Verify(context.Background(), email, code))
	return f.user(t, email)
}

func (f *fixture) user(t *testing.T, email string) *identity.User {
	t.Helper()
	u, err := f.users.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	return u
}

// secretFrom extracts the code or password highlighted in a message body.
func secretFrom(t *testing.T, body string) string {
	t.Helper()
	_, rest, ok := strings.Cut(body, "<strong>")
	require.True(t, ok, "no secret in %q", body)
	secret, _, ok := strings.Cut(rest, "</strong>")
	require.True(t, ok, "unterminated secret in %q", body)
	return secret
}
