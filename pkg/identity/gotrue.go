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
	"net/http"
	"strings"
	"time"

	"github.com/guonaihong/gout"
)

// GoTrueProvider talks to a hosted GoTrue (Supabase Auth) server. The
// service key authorizes admin calls and is sent as the apikey header on
// every request.
type GoTrueProvider struct {
	baseURL    string
	serviceKey string
	client     *http.Client
}

var _ Provider = (*GoTrueProvider)(nil)

func NewGoTrueProvider(baseURL, serviceKey string) *GoTrueProvider {
	return &GoTrueProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *GoTrueProvider) endpoint(path string) string {
	return g.baseURL + "/auth/v1" + path
}

// gotrueUser is the user object returned by GoTrue.
type gotrueUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (u gotrueUser) user() *User {
	return &User{ID: u.ID, Email: u.Email, Metadata: u.UserMetadata, CreatedAt: u.CreatedAt}
}

// gotrueError covers the error shapes GoTrue has used across versions.
type gotrueError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func errorMessage(body []byte, code int) string {
	var e gotrueError
	if err := json.Unmarshal(body, &e); err == nil {
		for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
			if s != "" {
				return s
			}
		}
	}
	return http.StatusText(code)
}

func (g *GoTrueProvider) ValidateToken(ctx context.Context, token string) (*User, error) {
	var body []byte
	var code int
	err := gout.New(g.client).GET(g.endpoint("/user")).
		WithContext(ctx).
		SetHeader(gout.H{
			"Authorization": "Bearer " + token,
			"apikey":        g.serviceKey,
		}).
		BindBody(&body).
		Code(&code).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	switch {
	case code == http.StatusOK:
	case code == http.StatusUnauthorized || code == http.StatusForbidden || code == http.StatusNotFound:
		return nil, ErrInvalidToken
	default:
		return nil, fmt.Errorf("%w: %s", ErrProvider, errorMessage(body, code))
	}
	var u gotrueUser
	if err := json.Unmarshal(body, &u); err != nil || u.ID == "" {
		return nil, ErrInvalidToken
	}
	return u.user(), nil
}

func (g *GoTrueProvider) CreateUser(ctx context.Context, nu NewUser) (*User, error) {
	var body []byte
	var code int
	err := gout.New(g.client).POST(g.endpoint("/admin/users")).
		WithContext(ctx).
		SetHeader(gout.H{
			"Authorization": "Bearer " + g.serviceKey,
			"apikey":        g.serviceKey,
		}).
		SetJSON(gout.H{
			"email":         normalizeEmail(nu.Email),
			"password":      nu.Password,
			"user_metadata": nu.Metadata,
			"email_confirm": true,
		}).
		BindBody(&body).
		Code(&code).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	switch {
	case code == http.StatusOK || code == http.StatusCreated:
	case code == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(errorMessage(body, code)), "already"):
		return nil, ErrUserExists
	case code >= 400 && code < 500:
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, errorMessage(body, code))
	default:
		return nil, fmt.Errorf("%w: %s", ErrProvider, errorMessage(body, code))
	}
	var u gotrueUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return u.user(), nil
}

func (g *GoTrueProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var body []byte
	var code int
	err := gout.New(g.client).POST(g.endpoint("/token")).
		WithContext(ctx).
		SetQuery(gout.H{"grant_type": "password"}).
		SetHeader(gout.H{"apikey": g.serviceKey}).
		SetJSON(gout.H{
			"email":    normalizeEmail(email),
			"password": password,
		}).
		BindBody(&body).
		Code(&code).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	switch {
	case code == http.StatusOK:
	case code == http.StatusBadRequest || code == http.StatusUnauthorized:
		return nil, ErrInvalidCredentials
	default:
		return nil, fmt.Errorf("%w: %s", ErrProvider, errorMessage(body, code))
	}
	var resp struct {
		AccessToken string     `json:"access_token"`
		TokenType   string     `json:"token_type"`
		ExpiresIn   int64      `json:"expires_in"`
		User        gotrueUser `json:"user"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return &Session{
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		ExpiresIn:   resp.ExpiresIn,
		User:        *resp.User.user(),
	}, nil
}
