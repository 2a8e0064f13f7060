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
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fawa-io/katalog/pkg/kv"
)

func newLocal(t *testing.T) (*LocalProvider, *kv.MemoryTable) {
	t.Helper()
	table := kv.NewMemoryTable()
	p := NewLocalProvider(table, []byte("test-secret"), time.Hour)
	p.Cost = bcrypt.MinCost
	return p, table
}

func TestLocalProvider_SignupAndSignIn(t *testing.T) {
	ctx := context.Background()
	p, table := newLocal(t)

	u, err := p.CreateUser(ctx, NewUser{
		Email:    " Admin@Example.com ",
		Password: "hunter22",
		Metadata: map[string]any{"name": "Admin"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "admin@example.com", u.Email)
	assert.Equal(t, "Admin", u.Metadata["name"])

	raw, ok, err := table.Get(ctx, "user:admin@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, string(raw), "hunter22")

	sess, err := p.SignIn(ctx, "ADMIN@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "bearer", sess.TokenType)
	assert.Equal(t, int64(3600), sess.ExpiresIn)
	assert.Equal(t, u.ID, sess.User.ID)

	got, err := p.ValidateToken(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "admin@example.com", got.Email)
}

func TestLocalProvider_CreateUserErrors(t *testing.T) {
	ctx := context.Background()
	p, _ := newLocal(t)

	_, err := p.CreateUser(ctx, NewUser{Email: "a@b.c", Password: "12345"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = p.CreateUser(ctx, NewUser{Email: "", Password: "123456"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = p.CreateUser(ctx, NewUser{Email: "a@b.c", Password: "123456"})
	require.NoError(t, err)
	_, err = p.CreateUser(ctx, NewUser{Email: "A@B.C", Password: "abcdef"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestLocalProvider_SignInErrors(t *testing.T) {
	ctx := context.Background()
	p, _ := newLocal(t)
	_, err := p.CreateUser(ctx, NewUser{Email: "a@b.c", Password: "123456"})
	require.NoError(t, err)

	_, err = p.SignIn(ctx, "a@b.c", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = p.SignIn(ctx, "nobody@b.c", "123456")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLocalProvider_ValidateToken(t *testing.T) {
	ctx := context.Background()
	p, _ := newLocal(t)
	_, err := p.CreateUser(ctx, NewUser{Email: "a@b.c", Password: "123456"})
	require.NoError(t, err)

	sign := func(claims jwt.Claims, method jwt.SigningMethod, key any) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := func(now time.Time) Claims {
		return Claims{
			Email: "a@b.c",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    tokenIssuer,
				Subject:   "user-1",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
	}

	expired := valid(time.Now().Add(-2 * time.Hour))
	wrongIssuer := valid(time.Now())
	wrongIssuer.Issuer = "someone-else"
	noSubject := valid(time.Now())
	noSubject.Subject = ""

	testCases := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-jwt"},
		{name: "empty", token: ""},
		{name: "wrong secret", token: sign(valid(time.Now()), jwt.SigningMethodHS256, []byte("other"))},
		{name: "expired", token: sign(expired, jwt.SigningMethodHS256, []byte("test-secret"))},
		{name: "wrong issuer", token: sign(wrongIssuer, jwt.SigningMethodHS256, []byte("test-secret"))},
		{name: "no subject", token: sign(noSubject, jwt.SigningMethodHS256, []byte("test-secret"))},
		{name: "other algorithm", token: sign(valid(time.Now()), jwt.SigningMethodHS512, []byte("test-secret"))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.ValidateToken(ctx, tc.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	u, err := p.ValidateToken(ctx, sign(valid(time.Now()), jwt.SigningMethodHS256, []byte("test-secret")))
	require.NoError(t, err)
	assert.Equal(t, "user-1", u.ID)
}
