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
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fawa-io/katalog/pkg/util"
)

// BoltTable stores documents in a single bbolt bucket on local disk.
type BoltTable struct {
	db     *bolt.DB
	bucket []byte
}

// OpenBolt opens (creating if needed) the database file at path and the
// bucket named name.
func OpenBolt(path, name string) (*BoltTable, error) {
	if err := util.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, storageErr("open", "", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, storageErr("open", "", err)
	}
	bucket := []byte(name)
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, storageErr("open", "", err)
	}
	return &BoltTable{db: db, bucket: bucket}, nil
}

func (b *BoltTable) Set(ctx context.Context, key string, value json.RawMessage) error {
	if err := checkDocument(key, value); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return storageErr("set", key, err)
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(key), clone(value))
	})
	if err != nil {
		return storageErr("set", key, err)
	}
	return nil
}

func (b *BoltTable) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, storageErr("get", key, err)
	}
	var out json.RawMessage
	err := b.db.View(func(tx *bolt.Tx) error {
		// Values are only valid for the life of the transaction.
		out = clone(tx.Bucket(b.bucket).Get([]byte(key)))
		return nil
	})
	if err != nil {
		return nil, false, storageErr("get", key, err)
	}
	return out, out != nil, nil
}

func (b *BoltTable) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return storageErr("delete", key, err)
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Delete([]byte(key))
	})
	if err != nil {
		return storageErr("delete", key, err)
	}
	return nil
}

func (b *BoltTable) ScanPrefix(ctx context.Context, prefix string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("scan", prefix, err)
	}
	records := make([]Record, 0)
	p := []byte(prefix)
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(b.bucket).Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			records = append(records, Record{Key: string(k), Value: clone(v)})
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("scan", prefix, err)
	}
	return records, nil
}

func (b *BoltTable) Close() error {
	return b.db.Close()
}
