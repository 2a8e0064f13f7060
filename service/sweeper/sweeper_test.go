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

package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawa-io/katalog/pkg/blob/blobtest"
	"github.com/fawa-io/katalog/pkg/kv"
	"github.com/fawa-io/katalog/service/product"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type staticRefs map[string]struct{}

func (r staticRefs) ImageKeys(context.Context) (map[string]struct{}, error) { return r, nil }

type failingRefs struct{}

func (failingRefs) ImageKeys(context.Context) (map[string]struct{}, error) {
	return nil, &kv.StorageError{Op: "scan", Key: product.KeyPrefix, Err: errors.New("timeout")}
}

func put(r *blobtest.Recorder, key string, age time.Duration) {
	r.Put(key, blobtest.Object{Data: []byte(key), ContentType: "image/png", LastModified: now.Add(-age)})
}

func newSweeper(refs Referencer, blobs *blobtest.Recorder) *Sweeper {
	s := New(refs, blobs, time.Hour)
	s.Now = func() time.Time { return now }
	return s
}

func TestSweep(t *testing.T) {
	blobs := blobtest.NewRecorder()
	put(blobs, "kept.png", 48*time.Hour)
	put(blobs, "orphan-old.png", 2*time.Hour)
	put(blobs, "orphan-older.jpeg", 72*time.Hour)
	put(blobs, "in-flight.png", time.Minute)

	res, err := newSweeper(staticRefs{"kept.png": {}}, blobs).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Scanned)
	assert.Equal(t, []string{"orphan-old.png", "orphan-older.jpeg"}, res.Removed)
	assert.Zero(t, res.Failed)
	assert.Equal(t, []string{"in-flight.png", "kept.png"}, blobs.Keys())
}

func TestSweep_RemoveFailure(t *testing.T) {
	blobs := blobtest.NewRecorder()
	put(blobs, "orphan.png", 2*time.Hour)
	blobs.RemoveErr = errors.New("access denied")

	res, err := newSweeper(staticRefs{}, blobs).Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Removed)
	assert.Equal(t, 1, res.Failed)
}

func TestSweep_Errors(t *testing.T) {
	blobs := blobtest.NewRecorder()
	put(blobs, "orphan.png", 2*time.Hour)

	_, err := newSweeper(failingRefs{}, blobs).Sweep(context.Background())
	assert.ErrorIs(t, err, kv.ErrStorage)
	assert.Empty(t, blobs.CallsOf("remove"), "nothing is removed without a reference snapshot")

	blobs.ListErr = errors.New("list denied")
	_, err = newSweeper(staticRefs{}, blobs).Sweep(context.Background())
	assert.EqualError(t, err, "list denied")
}

func TestSweep_WithProductService(t *testing.T) {
	ctx := context.Background()
	table := kv.NewMemoryTable()
	blobs := blobtest.NewRecorder()
	blobs.Now = func() time.Time { return now.Add(-2 * time.Hour) }

	svc := product.NewService(table, blobs, time.Hour)
	harga := 15000.0
	p, err := svc.Create(ctx, product.Input{
		Judul:     "Kaos",
		Deskripsi: "Katun",
		Harga:     &harga,
		Foto:      "data:image/png;base64,iVBORw0KGgo=",
		Kategori:  "Pakaian",
	})
	require.NoError(t, err)
	put(blobs, "ghost.png", 3*time.Hour)

	res, err := newSweeper(svc, blobs).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost.png"}, res.Removed)
	assert.Equal(t, []string{p.ImageKey}, blobs.Keys())
}

func TestStart(t *testing.T) {
	s := newSweeper(staticRefs{}, blobtest.NewRecorder())

	c, err := s.Start("@every 1h")
	require.NoError(t, err)
	require.Len(t, c.Entries(), 1)
	<-c.Stop().Done()

	_, err = s.Start("not a schedule")
	assert.Error(t, err)
}
