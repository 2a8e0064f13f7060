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
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fawa-io/katalog/pkg/blob"
	"github.com/fawa-io/katalog/pkg/fwlog"
	"github.com/fawa-io/katalog/pkg/kv"
)

const (
	// DefaultSignedURLTTL is the lifetime of URLs handed out for images.
	DefaultSignedURLTTL = time.Hour

	signWorkers = 8
)

// Service owns product records and keeps them consistent with their
// image objects.
type Service struct {
	table kv.Table
	blobs blob.Store
	ttl   time.Duration

	// NewID generates product ids.
	NewID func() (string, error)
	Now   func() time.Time
}

func NewService(table kv.Table, blobs blob.Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}
	return &Service{
		table: table,
		blobs: blobs,
		ttl:   ttl,
		NewID: newID,
		Now:   time.Now,
	}
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// List returns every product with image URLs signed afresh.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	records, err := s.table.ScanPrefix(ctx, KeyPrefix)
	if err != nil {
		return nil, err
	}

	type entry struct {
		id  string
		rec *record
	}
	entries := make([]entry, 0, len(records))
	for _, r := range records {
		rec, err := decodeRecord(r.Value)
		if err != nil {
			fwlog.Warnf("skipping product record %q: %v", r.Key, err)
			continue
		}
		entries = append(entries, entry{id: strings.TrimPrefix(r.Key, KeyPrefix), rec: rec})
	}

	products := make([]Product, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(signWorkers)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			products[i] = e.rec.product(e.id, s.foto(gctx, e.id, e.rec))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(products, func(i, j int) bool {
		if !products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].CreatedAt.After(products[j].CreatedAt)
		}
		return products[i].ID > products[j].ID
	})
	return products, nil
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	p := rec.product(id, s.foto(ctx, id, rec))
	return &p, nil
}

// Create validates in, uploads an inline image when present and persists
// the record. Nothing is written to the table when the upload fails.
func (s *Service) Create(ctx context.Context, in Input) (*Product, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	img, err := inlineImage(in.Foto)
	if err != nil {
		return nil, err
	}
	id, err := s.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate product id: %w", err)
	}

	rec := &record{
		Judul:     in.Judul,
		Deskripsi: in.Deskripsi,
		Harga:     *in.Harga,
		Foto:      in.Foto,
		Kategori:  in.Kategori,
		Badge:     in.Badge,
		CreatedAt: s.Now().UTC(),
	}
	if img != nil {
		key := ObjectName(id, img.Extension)
		if err := s.blobs.Upload(ctx, key, img.Data, img.ContentType); err != nil {
			fwlog.Errorf("upload image %q for new product: %v", key, err)
			return nil, fmt.Errorf("%w: %v", ErrImageUploadFailed, err)
		}
		rec.ImageKey = key
		rec.Foto = ""
	}

	if err := s.save(ctx, id, rec); err != nil {
		if rec.ImageKey != "" {
			if rerr := s.blobs.Remove(ctx, rec.ImageKey); rerr != nil {
				fwlog.Warnf("remove image %q of unsaved product: %v", rec.ImageKey, rerr)
			}
		}
		return nil, err
	}
	fwlog.Infof("created product %s", id)

	p := rec.product(id, s.foto(ctx, id, rec))
	return &p, nil
}

// Update replaces the fields of an existing product. An unknown id is
// reported before the payload is validated. A new inline image
// replaces the previous object, which is removed before the upload.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Product, error) {
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	img, err := inlineImage(in.Foto)
	if err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	rec := &record{
		Judul:     in.Judul,
		Deskripsi: in.Deskripsi,
		Harga:     *in.Harga,
		Foto:      in.Foto,
		ImageKey:  existing.ImageKey,
		Kategori:  in.Kategori,
		Badge:     in.Badge,
		CreatedAt: existing.CreatedAt,
		UpdatedAt: &now,
	}
	if img != nil {
		if existing.ImageKey != "" {
			if err := s.blobs.Remove(ctx, existing.ImageKey); err != nil {
				fwlog.Warnf("remove previous image %q of product %s: %v", existing.ImageKey, id, err)
			}
		}
		key := ObjectName(id, img.Extension)
		if err := s.blobs.Upload(ctx, key, img.Data, img.ContentType); err != nil {
			fwlog.Errorf("upload image %q for product %s, previous image %q already removed: %v",
				key, id, existing.ImageKey, err)
			return nil, fmt.Errorf("%w: %v", ErrImageUploadFailed, err)
		}
		rec.ImageKey = key
	}
	if rec.ImageKey != "" {
		rec.Foto = ""
	}

	if err := s.save(ctx, id, rec); err != nil {
		return nil, err
	}
	fwlog.Infof("updated product %s", id)

	p := rec.product(id, s.foto(ctx, id, rec))
	return &p, nil
}

// Delete removes the product and, best effort, its image object.
func (s *Service) Delete(ctx context.Context, id string) error {
	raw, ok, err := s.table.Get(ctx, Key(id))
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		fwlog.Warnf("deleting corrupt product record %s: %v", id, err)
	}
	if rec.ImageKey != "" {
		if err := s.blobs.Remove(ctx, rec.ImageKey); err != nil {
			fwlog.Warnf("remove image %q of product %s: %v", rec.ImageKey, id, err)
		}
	}
	if err := s.table.Delete(ctx, Key(id)); err != nil {
		return err
	}
	fwlog.Infof("deleted product %s", id)
	return nil
}

// ImageKeys returns the set of object names referenced by stored products.
func (s *Service) ImageKeys(ctx context.Context) (map[string]struct{}, error) {
	records, err := s.table.ScanPrefix(ctx, KeyPrefix)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(records))
	for _, r := range records {
		rec, err := decodeRecord(r.Value)
		if err != nil {
			fwlog.Debugf("product record %q: %v", r.Key, err)
		}
		if rec.ImageKey != "" {
			keys[rec.ImageKey] = struct{}{}
		}
	}
	return keys, nil
}

func (s *Service) load(ctx context.Context, id string) (*record, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	raw, ok, err := s.table.Get(ctx, Key(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return decodeRecord(raw)
}

func (s *Service) save(ctx context.Context, id string, rec *record) error {
	raw, err := rec.encode()
	if err != nil {
		return err
	}
	return s.table.Set(ctx, Key(id), raw)
}

// foto resolves the URL served for rec. A signing failure falls back to
// the stored value.
func (s *Service) foto(ctx context.Context, id string, rec *record) string {
	if rec.ImageKey == "" {
		return rec.Foto
	}
	url, err := s.blobs.SignedURL(ctx, rec.ImageKey, s.ttl)
	if err != nil {
		fwlog.Warnf("sign image %q of product %s: %v", rec.ImageKey, id, err)
		return rec.Foto
	}
	return url
}

func inlineImage(foto string) (*InlineImage, error) {
	if !IsInline(foto) {
		return nil, nil
	}
	return ParseInline(foto)
}
