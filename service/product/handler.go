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

package product

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fawa-io/katalog/pkg/fwlog"
	"github.com/fawa-io/katalog/pkg/web"
)

// Handler serves the product routes.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the product routes on g. Authentication is the
// caller's concern.
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

type listResponse struct {
	Products []Product `json:"products"`
}

type productResponse struct {
	Product *Product `json:"product"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) list(c echo.Context) error {
	products, err := h.svc.List(c.Request().Context())
	if err != nil {
		return h.fail(c, "list products", err)
	}
	return c.JSON(http.StatusOK, listResponse{Products: products})
}

func (h *Handler) get(c echo.Context) error {
	p, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "get product", err)
	}
	return c.JSON(http.StatusOK, productResponse{Product: p})
}

func (h *Handler) create(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return web.Fail(c, http.StatusBadRequest, "Unable to parse product")
	}
	p, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return h.fail(c, "create product", err)
	}
	return c.JSON(http.StatusOK, productResponse{Product: p})
}

func (h *Handler) update(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return web.Fail(c, http.StatusBadRequest, "Unable to parse product")
	}
	p, err := h.svc.Update(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return h.fail(c, "update product", err)
	}
	return c.JSON(http.StatusOK, productResponse{Product: p})
}

func (h *Handler) delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, "delete product", err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Product deleted successfully"})
}

func (h *Handler) fail(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return web.Fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return web.Fail(c, http.StatusNotFound, "Product not found")
	case errors.Is(err, ErrImageUploadFailed):
		return web.Fail(c, http.StatusInternalServerError, "Image upload failed")
	}
	fwlog.Errorf("%s: %v", op, err)
	return web.Fail(c, http.StatusInternalServerError, "Failed to "+op)
}
