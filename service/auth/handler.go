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
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fawa-io/katalog/pkg/fwlog"
	"github.com/fawa-io/katalog/pkg/identity"
	"github.com/fawa-io/katalog/pkg/web"
)

// Handler serves signup and login.
type Handler struct {
	provider identity.Provider
}

func NewHandler(p identity.Provider) *Handler {
	return &Handler{provider: p}
}

// Register mounts the account routes on g.
func (h *Handler) Register(g *echo.Group) {
	g.POST("/signup", h.signup)
	g.POST("/login", h.login)
}

type signupPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupResponse struct {
	Message string         `json:"message"`
	User    *identity.User `json:"user"`
}

func (h *Handler) signup(c echo.Context) error {
	var payload signupPayload
	if err := c.Bind(&payload); err != nil {
		return web.Fail(c, http.StatusBadRequest, "Unable to parse signup request")
	}
	if strings.TrimSpace(payload.Email) == "" || payload.Password == "" {
		return web.Fail(c, http.StatusBadRequest, "Email and password are required")
	}
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		name = identity.DefaultName
	}

	user, err := h.provider.CreateUser(c.Request().Context(), identity.NewUser{
		Email:    payload.Email,
		Password: payload.Password,
		Metadata: map[string]any{"name": name},
	})
	if err != nil {
		if errors.Is(err, identity.ErrInvalidInput) || errors.Is(err, identity.ErrUserExists) {
			return web.Fail(c, http.StatusBadRequest, "Signup failed: "+err.Error())
		}
		fwlog.Errorf("create user: %v", err)
		return web.Fail(c, http.StatusInternalServerError, "Signup error")
	}
	fwlog.Infof("registered user %s", user.ID)
	return c.JSON(http.StatusOK, signupResponse{Message: "User created successfully", User: user})
}

func (h *Handler) login(c echo.Context) error {
	var payload loginPayload
	if err := c.Bind(&payload); err != nil {
		return web.Fail(c, http.StatusBadRequest, "Unable to parse login request")
	}
	if strings.TrimSpace(payload.Email) == "" || payload.Password == "" {
		return web.Fail(c, http.StatusBadRequest, "Email and password are required")
	}

	session, err := h.provider.SignIn(c.Request().Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return web.Fail(c, http.StatusUnauthorized, "Invalid login credentials")
		}
		fwlog.Errorf("sign in: %v", err)
		return web.Fail(c, http.StatusInternalServerError, "Login error")
	}
	return c.JSON(http.StatusOK, session)
}
