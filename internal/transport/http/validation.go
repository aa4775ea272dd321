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
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Field bounds. These limit request shape only; the authority owns every
// business rule, including the password confirmation check.
const (
	maxNameLength     = 200
	maxEmailLength    = 254
	maxPasswordLength = 1024
	maxCodeLength     = 64
)

// Validate checks the registration form shape
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Length(0, maxNameLength)),
		validation.Field(&r.LastName, validation.Length(0, maxNameLength)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, maxEmailLength), is.EmailFormat),
		validation.Field(&r.Gender, validation.In("", "unspecified", "male", "female")),
		validation.Field(&r.Password, validation.Required, validation.Length(1, maxPasswordLength)),
		validation.Field(&r.ConfirmPassword, validation.Length(0, maxPasswordLength)),
	)
}

// Validate checks the verification form shape
func (r VerifyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, maxEmailLength)),
		validation.Field(&r.Code, validation.Required, validation.Length(1, maxCodeLength)),
	)
}

// Validate checks the forgot-password form shape
func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, maxEmailLength), is.EmailFormat),
	)
}

// Validate checks the change-password form shape
func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OldPassword, validation.Required, validation.Length(1, maxPasswordLength)),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(1, maxPasswordLength)),
		validation.Field(&r.ConfirmPassword, validation.Length(0, maxPasswordLength)),
	)
}

// Validate checks the profile form shape
func (r UpdateProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, maxNameLength)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, maxNameLength)),
	)
}

// validatable is implemented by request bodies that check their own shape
type validatable interface {
	Validate() error
}
