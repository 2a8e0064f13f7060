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

// Package auth serves account routes and guards the rest of the API with
// bearer tokens.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fawa-io/katalog/pkg/fwlog"
	"github.com/fawa-io/katalog/pkg/identity"
	"github.com/fawa-io/katalog/pkg/web"
)

const (
	bearerPrefix = "Bearer "
	userKey      = "identity.user"
)

// BearerToken extracts the token of a "Bearer <token>" Authorization
// header, or "" when there is none.
func BearerToken(r *http.Request) string {
	h := r.Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(h, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(h[len(bearerPrefix):])
}

// RequireBearer rejects requests without a token the provider accepts.
// The resolved user is available through UserFrom.
func RequireBearer(p identity.Provider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := BearerToken(c.Request())
			if token == "" {
				return web.Fail(c, http.StatusUnauthorized, "Unauthorized: Missing Authorization header")
			}
			user, err := p.ValidateToken(c.Request().Context(), token)
			if err != nil || user == nil {
				if err != nil && !errors.Is(err, identity.ErrInvalidToken) {
					fwlog.Errorf("validate token: %v", err)
				}
				return web.Fail(c, http.StatusUnauthorized, "Unauthorized: Invalid or expired token")
			}
			c.Set(userKey, user)
			return next(c)
		}
	}
}

// UserFrom returns the user resolved by RequireBearer.
func UserFrom(c echo.Context) *identity.User {
	u, _ := c.Get(userKey).(*identity.User)
	return u
}
