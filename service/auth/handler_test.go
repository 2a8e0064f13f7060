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

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fawa-io/katalog/pkg/identity"
	"github.com/fawa-io/katalog/pkg/kv"
	"github.com/fawa-io/katalog/pkg/web"
)

func newServer(t *testing.T) (*echo.Echo, *identity.LocalProvider) {
	t.Helper()
	p := identity.NewLocalProvider(kv.NewMemoryTable(), []byte("auth-test"), time.Hour)
	p.Cost = bcrypt.MinCost

	e := web.NewEcho("")
	NewHandler(p).Register(e.Group("/auth"))
	e.GET("/me", func(c echo.Context) error {
		return c.JSON(http.StatusOK, UserFrom(c))
	}, RequireBearer(p))
	return e, p
}

func do(e *echo.Echo, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body web.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestSignup(t *testing.T) {
	e, _ := newServer(t)

	rec := do(e, http.MethodPost, "/auth/signup", `{"email":"owner@toko.id","password":"rahasia1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Message string        `json:"message"`
		User    identity.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "User created successfully", resp.Message)
	assert.Equal(t, "owner@toko.id", resp.User.Email)
	assert.Equal(t, identity.DefaultName, resp.User.Metadata["name"])

	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{name: "missing password", body: `{"email":"a@b.c"}`, errMsg: "Email and password are required"},
		{name: "missing email", body: `{"password":"rahasia1"}`, errMsg: "Email and password are required"},
		{name: "duplicate email", body: `{"email":"OWNER@toko.id","password":"rahasia1"}`, errMsg: "Signup failed: user already registered"},
		{name: "short password", body: `{"email":"new@toko.id","password":"123"}`},
		{name: "malformed json", body: `{"email":`, errMsg: "Unable to parse signup request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodPost, "/auth/signup", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			if tt.errMsg != "" {
				assert.Equal(t, tt.errMsg, errorOf(t, rec))
			}
		})
	}
}

func TestSignup_KeepsName(t *testing.T) {
	e, p := newServer(t)

	rec := do(e, http.MethodPost, "/auth/signup", `{"email":"sari@toko.id","password":"rahasia1","name":"Sari"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	sess, err := p.SignIn(context.Background(), "sari@toko.id", "rahasia1")
	require.NoError(t, err)
	assert.Equal(t, "Sari", sess.User.Metadata["name"])
}

func TestLoginAndBearer(t *testing.T) {
	e, _ := newServer(t)
	require.Equal(t, http.StatusOK, do(e, http.MethodPost, "/auth/signup", `{"email":"owner@toko.id","password":"rahasia1"}`, "").Code)

	rec := do(e, http.MethodPost, "/auth/login", `{"email":"owner@toko.id","password":"salah"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid login credentials", errorOf(t, rec))

	rec = do(e, http.MethodPost, "/auth/login", `{"email":"owner@toko.id"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/auth/login", `{"email":"owner@toko.id","password":"rahasia1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sess identity.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, "bearer", sess.TokenType)
	require.NotEmpty(t, sess.AccessToken)

	rec = do(e, http.MethodGet, "/me", "", "Bearer "+sess.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var me identity.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, sess.User.ID, me.ID)
}

func TestRequireBearer(t *testing.T) {
	e, _ := newServer(t)

	tests := []struct {
		name   string
		header string
		errMsg string
	}{
		{name: "no header", errMsg: "Unauthorized: Missing Authorization header"},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz", errMsg: "Unauthorized: Missing Authorization header"},
		{name: "empty bearer", header: "Bearer ", errMsg: "Unauthorized: Missing Authorization header"},
		{name: "garbage token", header: "Bearer not-a-jwt", errMsg: "Unauthorized: Invalid or expired token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodGet, "/me", "", tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.errMsg, errorOf(t, rec))
		})
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", BearerToken(req))
	req.Header.Set("Authorization", "Bearer  abc.def ")
	assert.Equal(t, "abc.def", BearerToken(req))
}
