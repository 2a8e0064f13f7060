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
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

const scanCount = 100

// RedisTable implements Table on Dragonfly/Redis. Documents are stored as
// plain string values without expiry.
type RedisTable struct {
	client redis.Cmdable
}

// NewRedisTable connects to addr and checks the connection.
func NewRedisTable(ctx context.Context, addr string) (*RedisTable, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, storageErr("open", "", err)
	}
	return &RedisTable{client: client}, nil
}

func (r *RedisTable) Set(ctx context.Context, key string, value json.RawMessage) error {
	if err := checkDocument(key, value); err != nil {
		return err
	}
	if err := r.client.Set(ctx, key, string(value), 0).Err(); err != nil {
		return storageErr("set", key, err)
	}
	return nil
}

func (r *RedisTable) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr("get", key, err)
	}
	return json.RawMessage(val), true, nil
}

func (r *RedisTable) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return storageErr("delete", key, err)
	}
	return nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func (r *RedisTable) ScanPrefix(ctx context.Context, prefix string) ([]Record, error) {
	match := globEscaper.Replace(prefix) + "*"

	// SCAN may return a key more than once.
	seen := make(map[string]struct{})
	var keys []string
	var cursor uint64
	for {
		page, next, err := r.client.Scan(ctx, cursor, match, scanCount).Result()
		if err != nil {
			return nil, storageErr("scan", prefix, err)
		}
		for _, k := range page {
			if _, ok := seen[k]; ok || !hasPrefix(k, prefix) {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	records := make([]Record, 0, len(keys))
	if len(keys) == 0 {
		return records, nil
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storageErr("scan", prefix, err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			// Deleted between SCAN and MGET.
			continue
		}
		records = append(records, Record{Key: keys[i], Value: json.RawMessage(s)})
	}
	return records, nil
}

func (r *RedisTable) Close() error {
	if c, ok := r.client.(*redis.Client); ok {
		return c.Close()
	}
	return nil
}
