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

package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes messages to the logger instead of delivering them.
// Intended for local development.
type LogNotifier struct {
	logger      *slog.Logger
	includeBody bool
}

// NewLogNotifier creates a log-backed notifier. Bodies carry codes and
// one-time passwords, so they are only logged when includeBody is set.
func NewLogNotifier(logger *slog.Logger, includeBody bool) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With(slog.String("component", "notify")), includeBody: includeBody}
}

// Send implements Notifier.
func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	attrs := []any{
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	}
	if n.includeBody {
		attrs = append(attrs, slog.String("body", msg.Body))
	}
	n.logger.InfoContext(ctx, "notification_logged", attrs...)
	return nil
}
