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

package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestNewEcho(t *testing.T) {
	e := NewEcho("16B")
	e.GET("/boom", func(c echo.Context) error { return errors.New("db exploded") })
	e.GET("/teapot", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "short and stout") })
	e.GET("/panic", func(c echo.Context) error { panic("unexpected") })
	e.POST("/echo", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
		errMsg string
	}{
		{name: "health", method: http.MethodGet, path: "/healthz", code: http.StatusOK},
		{name: "plain error hides detail", method: http.MethodGet, path: "/boom", code: http.StatusInternalServerError, errMsg: "Internal Server Error"},
		{name: "http error", method: http.MethodGet, path: "/teapot", code: http.StatusTeapot, errMsg: "short and stout"},
		{name: "panic recovered", method: http.MethodGet, path: "/panic", code: http.StatusInternalServerError, errMsg: "Internal Server Error"},
		{name: "unknown route", method: http.MethodGet, path: "/nope", code: http.StatusNotFound, errMsg: "Not Found"},
		{name: "body within limit", method: http.MethodPost, path: "/echo", body: "{}", code: http.StatusNoContent},
		{name: "body too large", method: http.MethodPost, path: "/echo", body: strings.Repeat("x", 64), code: http.StatusRequestEntityTooLarge, errMsg: "Request Entity Too Large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
			if tt.errMsg != "" {
				assert.Equal(t, tt.errMsg, decodeError(t, rec))
			}
		})
	}
}

func TestHealth(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)

	require.NoError(t, Health(c))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
