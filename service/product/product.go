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

// Package product manages catalog products and their stored images.
package product

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// KeyPrefix namespaces product records in the key/value table.
const KeyPrefix = "product:"

var (
	ErrNotFound          = errors.New("product not found")
	ErrValidation        = errors.New("invalid product")
	ErrInvalidImage      = errors.New("invalid inline image")
	ErrImageUploadFailed = errors.New("image upload failed")
	ErrCorrupt           = errors.New("corrupt product record")
)

// Key returns the key/value key of product id.
func Key(id string) string {
	return KeyPrefix + id
}

// Product is the API representation. Foto holds either the stored external
// URL or a freshly signed URL for ImageKey.
type Product struct {
	ID        string     `json:"id"`
	Judul     string     `json:"judul"`
	Deskripsi string     `json:"deskripsi"`
	Harga     float64    `json:"harga"`
	Foto      string     `json:"foto"`
	Kategori  string     `json:"kategori"`
	Badge     string     `json:"badge,omitempty"`
	ImageKey  string     `json:"imageKey,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Input is the create/update payload.
type Input struct {
	Judul     string   `json:"judul" validate:"required"`
	Deskripsi string   `json:"deskripsi" validate:"required"`
	Harga     *float64 `json:"harga" validate:"required,gte=0"`
	Foto      string   `json:"foto"`
	Kategori  string   `json:"kategori" validate:"required"`
	Badge     string   `json:"badge"`
}

// record is the persisted document. When ImageKey is set Foto is always
// empty so a stale URL is never served from storage.
type record struct {
	Judul     string     `json:"judul" validate:"required"`
	Deskripsi string     `json:"deskripsi" validate:"required"`
	Harga     float64    `json:"harga" validate:"gte=0"`
	Foto      string     `json:"foto"`
	ImageKey  string     `json:"imageKey,omitempty"`
	Kategori  string     `json:"kategori" validate:"required"`
	Badge     string     `json:"badge,omitempty"`
	CreatedAt time.Time  `json:"createdAt" validate:"required"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields = append(fields, fe.Field()+" is required")
		case "gte":
			fields = append(fields, fe.Field()+" must be >= "+fe.Param())
		default:
			fields = append(fields, fe.Field()+" is invalid")
		}
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, ", "))
}

// normalize trims text fields and validates the payload.
func (in *Input) normalize() error {
	in.Judul = strings.TrimSpace(in.Judul)
	in.Deskripsi = strings.TrimSpace(in.Deskripsi)
	in.Kategori = strings.TrimSpace(in.Kategori)
	in.Badge = strings.TrimSpace(in.Badge)
	in.Foto = strings.TrimSpace(in.Foto)
	if err := validate.Struct(in); err != nil {
		return validationError(err)
	}
	return nil
}

func (r *record) check() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if r.ImageKey != "" && r.Foto != "" {
		return fmt.Errorf("%w: foto set alongside imageKey", ErrCorrupt)
	}
	return nil
}

func (r *record) encode() (json.RawMessage, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return json.Marshal(r)
}

// decodeRecord parses and validates a stored document. The partially
// decoded record is returned alongside ErrCorrupt so callers can still
// read ImageKey.
func decodeRecord(raw json.RawMessage) (*record, error) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return &r, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := r.check(); err != nil {
		return &r, err
	}
	return &r, nil
}

func (r *record) product(id, foto string) Product {
	return Product{
		ID:        id,
		Judul:     r.Judul,
		Deskripsi: r.Deskripsi,
		Harga:     r.Harga,
		Foto:      foto,
		Kategori:  r.Kategori,
		Badge:     r.Badge,
		ImageKey:  r.ImageKey,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
