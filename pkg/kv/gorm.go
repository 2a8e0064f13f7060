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
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// entry is the row shape of the relational key/value table.
type entry struct {
	Key   string         `gorm:"column:key;primaryKey;type:text"`
	Value datatypes.JSON `gorm:"column:value;not null"`
}

// GormTable emulates a key/value store on top of a (key, value) relational table.
type GormTable struct {
	db   *gorm.DB
	name string
}

// NewGormTable wraps db and migrates the table named name.
func NewGormTable(db *gorm.DB, name string) (*GormTable, error) {
	if err := db.Table(name).AutoMigrate(&entry{}); err != nil {
		return nil, storageErr("migrate", "", err)
	}
	return &GormTable{db: db, name: name}, nil
}

// OpenPostgres connects to PostgreSQL with dsn and returns a table named name.
func OpenPostgres(dsn, name string) (*GormTable, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, storageErr("open", "", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, storageErr("open", "", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return NewGormTable(db, name)
}

func (t *GormTable) table(ctx context.Context) *gorm.DB {
	return t.db.WithContext(ctx).Table(t.name)
}

func keyEq(key string) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}

func (t *GormTable) Set(ctx context.Context, key string, value json.RawMessage) error {
	if err := checkDocument(key, value); err != nil {
		return err
	}
	row := entry{Key: key, Value: datatypes.JSON(clone(value))}
	err := t.table(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&row).Error
	if err != nil {
		return storageErr("set", key, err)
	}
	return nil
}

func (t *GormTable) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var row entry
	err := t.table(ctx).Where(keyEq(key)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr("get", key, err)
	}
	return json.RawMessage(row.Value), true, nil
}

func (t *GormTable) Delete(ctx context.Context, key string) error {
	if err := t.table(ctx).Where(keyEq(key)).Delete(&entry{}).Error; err != nil {
		return storageErr("delete", key, err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (t *GormTable) ScanPrefix(ctx context.Context, prefix string) ([]Record, error) {
	var rows []entry
	pattern := likeEscaper.Replace(prefix) + "%"
	err := t.table(ctx).
		Where(clause.Expr{SQL: `? LIKE ? ESCAPE '\'`, Vars: []any{clause.Column{Name: "key"}, pattern}}).
		Find(&rows).Error
	if err != nil {
		return nil, storageErr("scan", prefix, err)
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		// LIKE is case-insensitive on some engines.
		if !hasPrefix(row.Key, prefix) {
			continue
		}
		records = append(records, Record{Key: row.Key, Value: json.RawMessage(row.Value)})
	}
	return records, nil
}

func (t *GormTable) Close() error {
	sqlDB, err := t.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
