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
	"strings"
	"sync"

	"github.com/google/btree"
)

type item struct {
	key   string
	value json.RawMessage
}

func itemLess(a, b item) bool { return a.key < b.key }

// MemoryTable is a process local Table ordered by key. It is meant for
// tests and single-process development.
type MemoryTable struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[item]
}

func NewMemoryTable() *MemoryTable {
	return &MemoryTable{tree: btree.NewG(16, itemLess)}
}

func (m *MemoryTable) Set(_ context.Context, key string, value json.RawMessage) error {
	if err := checkDocument(key, value); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.ReplaceOrInsert(item{key: key, value: clone(value)})
	return nil
}

func (m *MemoryTable) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.tree.Get(item{key: key})
	if !ok {
		return nil, false, nil
	}
	return clone(it.value), true, nil
}

func (m *MemoryTable) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.Delete(item{key: key})
	return nil
}

func (m *MemoryTable) ScanPrefix(_ context.Context, prefix string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]Record, 0)
	m.tree.AscendGreaterOrEqual(item{key: prefix}, func(it item) bool {
		if !strings.HasPrefix(it.key, prefix) {
			return false
		}
		records = append(records, Record{Key: it.key, Value: clone(it.value)})
		return true
	})
	return records, nil
}

// Len reports the number of stored keys.
func (m *MemoryTable) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Len()
}

func (m *MemoryTable) Close() error { return nil }
