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
	"fmt"
	"html"

	"github.com/credentia/credentia/internal/notify"
)

func welcomeMessage(siteName string, u *User, code string) notify.Message {
	return notify.Message{
		To:      u.Email,
		ToName:  u.DisplayName(),
		Subject: fmt.Sprintf("Welcome to %s!", siteName),
		Body: fmt.Sprintf(
			"<p>Hi %s,</p><p>Welcome to %s. Please use the following registration code to activate your account: <strong>%s</strong>.</p><p>Regards,<br>%s</p>",
			html.EscapeString(u.DisplayName()),
			html.EscapeString(siteName),
			code,
			html.EscapeString(siteName),
		),
		HTML: true,
	}
}

func forgotPasswordMessage(siteName string, u *User, password string) notify.Message {
	return notify.Message{
		To:      u.Email,
		ToName:  u.DisplayName(),
		Subject: fmt.Sprintf("%s - Forgot Password", siteName),
		Body: fmt.Sprintf(
			"<p>Hi %s,</p><p>You forgot your password. Please use this new password: <strong>%s</strong>.</p><p>Regards,<br>%s</p>",
			html.EscapeString(u.DisplayName()),
			password,
			html.EscapeString(siteName),
		),
		HTML: true,
	}
}
