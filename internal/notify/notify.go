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

// Package notify delivers account messages (registration codes, reset
// passwords) to their recipients.
package notify

import (
	"context"
	"errors"
)

// ErrDelivery wraps every failure to hand a message to the transport.
var ErrDelivery = errors.New("message delivery failed")

// Message is a single outbound notification
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
	HTML    bool
}

// Notifier delivers a message to an address
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to the Notifier interface (useful for tests).
type NotifierFunc func(ctx context.Context, msg Message) error

// Send implements Notifier.
func (f NotifierFunc) Send(ctx context.Context, msg Message) error {
	if f == nil {
		return nil
	}
	return f(ctx, msg)
}
