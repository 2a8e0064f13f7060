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

package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fawa-io/katalog/pkg/kv"
)

const (
	userPrefix  = "user:"
	tokenIssuer = "katalog"
	minPassword = 6
)

// Claims are the JWT claims of an access token.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// userRecord is the stored form of a local user.
type userRecord struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"passwordHash"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

func (r userRecord) user() *User {
	return &User{ID: r.ID, Email: r.Email, Metadata: r.Metadata, CreatedAt: r.CreatedAt}
}

// LocalProvider keeps users in the key/value table and signs HS256 tokens.
type LocalProvider struct {
	table    kv.Table
	secret   []byte
	tokenTTL time.Duration

	// Cost is the bcrypt cost used for new password hashes.
	Cost int
	Now  func() time.Time
}

var _ Provider = (*LocalProvider)(nil)

func NewLocalProvider(table kv.Table, secret []byte, tokenTTL time.Duration) *LocalProvider {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &LocalProvider{
		table:    table,
		secret:   secret,
		tokenTTL: tokenTTL,
		Cost:     bcrypt.DefaultCost,
		Now:      time.Now,
	}
}

func (p *LocalProvider) lookup(ctx context.Context, email string) (*userRecord, error) {
	raw, ok, err := p.table.Get(ctx, userPrefix+email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if !ok {
		return nil, nil
	}
	var rec userRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: corrupt user record: %v", ErrProvider, err)
	}
	return &rec, nil
}

// CreateUser registers u. Two concurrent signups for the same email race;
// the later write wins.
func (p *LocalProvider) CreateUser(ctx context.Context, u NewUser) (*User, error) {
	email := normalizeEmail(u.Email)
	if email == "" || len(u.Password) < minPassword {
		return nil, fmt.Errorf("%w: password should be at least %d characters", ErrInvalidInput, minPassword)
	}
	existing, err := p.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), p.Cost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	rec := userRecord{
		ID:           id.String(),
		Email:        email,
		PasswordHash: string(hash),
		Metadata:     u.Metadata,
		CreatedAt:    p.Now().UTC(),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if err := p.table.Set(ctx, userPrefix+email, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return rec.user(), nil
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	rec, err := p.lookup(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := p.Now()
	claims := Claims{
		Email: rec.Email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   rec.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return &Session{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(p.tokenTTL.Seconds()),
		User:        *rec.user(),
	}, nil
}

// ValidateToken checks the signature and expiry of token. It does not
// consult the user table.
func (p *LocalProvider) ValidateToken(_ context.Context, token string) (*User, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if !claims.VerifyExpiresAt(p.Now(), true) || !claims.VerifyIssuer(tokenIssuer, true) || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &User{ID: claims.Subject, Email: claims.Email}, nil
}
