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

package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/credentia/credentia/internal/session"
)

// SessionStore implements session.Store in memory
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]session.Session
}

// NewSessionStore creates an empty session store
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]session.Session)}
}

// Save creates or replaces a session
func (s *SessionStore) Save(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *sess
	c.Token = ""
	c.Principal.Roles = slices.Clone(sess.Principal.Roles)
	s.sessions[sess.ID] = c
	return nil
}

// Get retrieves a session by ID
func (s *SessionStore) Get(_ context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	c.Principal.Roles = slices.Clone(c.Principal.Roles)
	return &c, nil
}

// Delete deletes a session
func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return session.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// DeleteExpired deletes all sessions expired at t
func (s *SessionStore) DeleteExpired(_ context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if sess.IsExpired(t) {
			delete(s.sessions, id)
		}
	}
	return nil
}

// Len reports the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
