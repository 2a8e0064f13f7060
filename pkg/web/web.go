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

// Package web assembles the echo instance shared by every HTTP service.
package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fawa-io/katalog/pkg/fwlog"
	"github.com/fawa-io/katalog/pkg/metrics"
)

// ErrorBody is the JSON body of every failed request.
type ErrorBody struct {
	Error string `json:"error"`
}

// Fail writes an error response.
func Fail(c echo.Context, code int, msg string) error {
	return c.JSON(code, ErrorBody{Error: msg})
}

// NewEcho returns an echo instance with recovery, request ids, body
// limits, access logging and request metrics installed.
func NewEcho(bodyLimit string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if bodyLimit != "" {
		e.Use(middleware.BodyLimit(bodyLimit))
	}
	e.Use(Metrics())
	e.Use(AccessLog())

	e.GET("/healthz", Health)
	return e
}

// ErrorHandler renders echo errors with the shared error body.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	} else {
		fwlog.Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = Fail(c, code, msg)
	}
	if err != nil {
		fwlog.Errorf("write error response: %v", err)
	}
}

// Health reports liveness.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Metrics records the count and latency of every request by route.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.RecordRequest(c.Request().Method, route, c.Response().Status, time.Since(start))
			return nil
		}
	}
}

// AccessLog writes one line per request through fwlog.
func AccessLog() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			fwlog.Infof("%s %s %d %s id=%s", req.Method, req.URL.Path, c.Response().Status,
				time.Since(start), c.Response().Header().Get(echo.HeaderXRequestID))
			return nil
		}
	}
}
