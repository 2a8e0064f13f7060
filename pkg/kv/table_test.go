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

package kv

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func keysOf(records []Record) []string {
	keys := make([]string, 0, len(records))
	for _, r := range records {
		keys = append(keys, r.Key)
	}
	sort.Strings(keys)
	return keys
}

// runTableSuite checks the contract every Table driver must honour.
func runTableSuite(t *testing.T, newTable func(t *testing.T) Table) {
	ctx := context.Background()

	t.Run("set then get round trips", func(t *testing.T) {
		table := newTable(t)
		doc := json.RawMessage(`{"judul":"Widget","harga":10000,"tags":["a","b"],"nested":{"ok":true}}`)
		require.NoError(t, table.Set(ctx, "product:1", doc))

		got, ok, err := table.Get(ctx, "product:1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, string(doc), string(got))
	})

	t.Run("set overwrites the whole document", func(t *testing.T) {
		table := newTable(t)
		require.NoError(t, table.Set(ctx, "product:1", json.RawMessage(`{"a":1,"b":2}`)))
		require.NoError(t, table.Set(ctx, "product:1", json.RawMessage(`{"c":3}`)))

		got, ok, err := table.Get(ctx, "product:1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `{"c":3}`, string(got))
	})

	t.Run("absent key is not an error", func(t *testing.T) {
		table := newTable(t)
		got, ok, err := table.Get(ctx, "product:missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		table := newTable(t)
		require.NoError(t, table.Delete(ctx, "product:never"))

		require.NoError(t, table.Set(ctx, "product:1", json.RawMessage(`{"a":1}`)))
		require.NoError(t, table.Delete(ctx, "product:1"))
		require.NoError(t, table.Delete(ctx, "product:1"))

		_, ok, err := table.Get(ctx, "product:1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("prefix scan isolates keys", func(t *testing.T) {
		table := newTable(t)
		for _, k := range []string{"product:3", "user:a", "product:1", "Product:upper", "productx", "product:2", "a"} {
			require.NoError(t, table.Set(ctx, k, json.RawMessage(`{"k":"`+k+`"}`)))
		}

		records, err := table.ScanPrefix(ctx, "product:")
		require.NoError(t, err)
		assert.Equal(t, []string{"product:1", "product:2", "product:3"}, keysOf(records))
		for _, r := range records {
			assert.JSONEq(t, `{"k":"`+r.Key+`"}`, string(r.Value))
		}
	})

	t.Run("prefix with wildcard characters is literal", func(t *testing.T) {
		table := newTable(t)
		require.NoError(t, table.Set(ctx, "a%b:1", json.RawMessage(`{}`)))
		require.NoError(t, table.Set(ctx, "axb:1", json.RawMessage(`{}`)))
		require.NoError(t, table.Set(ctx, "a_c:1", json.RawMessage(`{}`)))
		require.NoError(t, table.Set(ctx, "abc:1", json.RawMessage(`{}`)))

		records, err := table.ScanPrefix(ctx, "a%b:")
		require.NoError(t, err)
		assert.Equal(t, []string{"a%b:1"}, keysOf(records))

		records, err = table.ScanPrefix(ctx, "a_c")
		require.NoError(t, err)
		assert.Equal(t, []string{"a_c:1"}, keysOf(records))
	})

	t.Run("no match yields empty slice", func(t *testing.T) {
		table := newTable(t)
		records, err := table.ScanPrefix(ctx, "product:")
		require.NoError(t, err)
		assert.NotNil(t, records)
		assert.Empty(t, records)
	})

	t.Run("rejects non object documents", func(t *testing.T) {
		table := newTable(t)
		for _, doc := range []string{``, `[]`, `"x"`, `{"a":`} {
			err := table.Set(ctx, "product:1", json.RawMessage(doc))
			assert.ErrorIs(t, err, ErrStorage, doc)
		}
		assert.ErrorIs(t, table.Set(ctx, "", json.RawMessage(`{}`)), ErrStorage)
	})
}

func TestMemoryTable(t *testing.T) {
	runTableSuite(t, func(t *testing.T) Table {
		return NewMemoryTable()
	})
}

func TestBoltTable(t *testing.T) {
	runTableSuite(t, func(t *testing.T) Table {
		table, err := OpenBolt(filepath.Join(t.TempDir(), "data", "kv.db"), "kv_store")
		require.NoError(t, err)
		t.Cleanup(func() { _ = table.Close() })
		return table
	})
}

func TestGormTable(t *testing.T) {
	runTableSuite(t, func(t *testing.T) Table {
		db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "kv.db")), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		require.NoError(t, err)
		table, err := NewGormTable(db, "kv_store")
		require.NoError(t, err)
		t.Cleanup(func() { _ = table.Close() })
		return table
	})
}

func TestBoltTable_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	table, err := OpenBolt(path, "kv_store")
	require.NoError(t, err)
	require.NoError(t, table.Set(ctx, "product:1", json.RawMessage(`{"a":1}`)))
	require.NoError(t, table.Close())

	table, err = OpenBolt(path, "kv_store")
	require.NoError(t, err)
	defer table.Close()
	got, ok, err := table.Get(ctx, "product:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(got))
}

func TestStorageError(t *testing.T) {
	err := storageErr("get", "product:1", context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, `kv get "product:1": context deadline exceeded`, err.Error())
}
