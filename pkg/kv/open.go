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
	"fmt"

	"github.com/fawa-io/katalog/pkg/config"
	"github.com/fawa-io/katalog/pkg/fwlog"
)

// Open builds the Table selected by cfg.Driver.
func Open(ctx context.Context, cfg config.KV) (Table, error) {
	var (
		t   Table
		err error
	)
	switch cfg.Driver {
	case "postgres":
		t, err = OpenPostgres(cfg.DSN, cfg.Table)
	case "redis":
		t, err = NewRedisTable(ctx, cfg.RedisAddr)
	case "bolt":
		t, err = OpenBolt(cfg.BoltPath, cfg.Table)
	case "memory":
		t = NewMemoryTable()
	default:
		return nil, fmt.Errorf("unknown kv driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	fwlog.Infof("Key/value table ready, driver: %s", cfg.Driver)
	return t, nil
}
