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

package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor periodically removes expired sessions. Stores with native expiry
// treat the sweep as a no-op.
type Janitor struct {
	cron   *cron.Cron
	issuer *Issuer
	logger *slog.Logger
}

// NewJanitor schedules CleanupExpired every interval. Call Start to begin.
func NewJanitor(issuer *Issuer, every time.Duration, logger *slog.Logger) (*Janitor, error) {
	if every < time.Second {
		return nil, fmt.Errorf("cleanup interval must be at least 1s, got %s", every)
	}
	if logger == nil {
		logger = slog.Default()
	}

	j := &Janitor{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		issuer: issuer,
		logger: logger.With(slog.String("component", "session_janitor")),
	}
	if _, err := j.cron.AddFunc("@every "+every.String(), j.sweep); err != nil {
		return nil, fmt.Errorf("failed to schedule session cleanup: %w", err)
	}
	return j, nil
}

// Start runs the schedule in the background
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running sweep, bounded by ctx.
func (j *Janitor) Stop(ctx context.Context) {
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := j.issuer.CleanupExpired(ctx); err != nil {
		j.logger.ErrorContext(ctx, "failed to cleanup expired sessions", slog.String("error", err.Error()))
	}
}
