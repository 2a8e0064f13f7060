// Copyright 2025 The fawa Authors
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

// Package identity issues and validates bearer tokens for administrators.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fawa-io/katalog/pkg/config"
	"github.com/fawa-io/katalog/pkg/kv"
)

var (
	// ErrInvalidToken is returned for missing, malformed or expired tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrInvalidInput is returned when a new user is rejected.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUserExists is returned when the email is already registered.
	ErrUserExists = errors.New("user already registered")
	// ErrInvalidCredentials is returned by SignIn on a bad email/password pair.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrProvider wraps unexpected failures of the identity backend.
	ErrProvider = errors.New("identity provider error")
)

// DefaultName is stored as the user's name when signup omits it.
const DefaultName = "Admin"

// User is an authenticated principal.
type User struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Metadata  map[string]any `json:"user_metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewUser carries the fields needed to register a user.
type NewUser struct {
	Email    string
	Password string
	Metadata map[string]any
}

// Session is the result of a successful sign in.
type Session struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
	User        User   `json:"user"`
}

// Provider is the identity collaborator used by the HTTP layer.
type Provider interface {
	// ValidateToken resolves a bearer token to its user or returns ErrInvalidToken.
	ValidateToken(ctx context.Context, token string) (*User, error)
	// CreateUser registers an already confirmed user.
	CreateUser(ctx context.Context, u NewUser) (*User, error)
	// SignIn exchanges an email and password for an access token.
	SignIn(ctx context.Context, email, password string) (*Session, error)
}

// New builds the provider selected by cfg.Driver. The local driver keeps
// its users in table.
func New(cfg config.Identity, table kv.Table) (Provider, error) {
	switch cfg.Driver {
	case "local":
		return NewLocalProvider(table, []byte(cfg.JWTSecret), cfg.TokenTTL), nil
	case "gotrue":
		return NewGoTrueProvider(cfg.GoTrueURL, cfg.ServiceKey), nil
	default:
		return nil, fmt.Errorf("unknown identity driver %q", cfg.Driver)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
