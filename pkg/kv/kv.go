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

// Package kv persists JSON documents under string keys and retrieves them
// either by exact key or by key prefix.
package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrStorage matches every failure of the backing table. Absent keys are
// never reported through it.
var ErrStorage = errors.New("kv: storage error")

// Record is a single key/document pair.
type Record struct {
	Key   string
	Value json.RawMessage
}

// Table defines the interface for all key/value operations.
// Every call round-trips to the backing store; nothing is cached.
type Table interface {
	// Set stores value under key, replacing any previous document in full.
	Set(ctx context.Context, key string, value json.RawMessage) error

	// Get returns the document stored under key. The boolean is false
	// and the error nil when the key is absent.
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// ScanPrefix returns every record whose key starts with prefix, in no
	// particular order. No match yields an empty slice.
	ScanPrefix(ctx context.Context, prefix string) ([]Record, error)

	Close() error
}

// StorageError describes a failed operation against the backing table.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("kv %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("kv %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func storageErr(op, key string, err error) error {
	return &StorageError{Op: op, Key: key, Err: err}
}

var errNotObject = errors.New("value must be a JSON object")

// checkDocument rejects values that are not a JSON object, the only
// document shape the table accepts.
func checkDocument(key string, value json.RawMessage) error {
	if key == "" {
		return storageErr("set", key, errors.New("empty key"))
	}
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return storageErr("set", key, errNotObject)
	}
	return nil
}

func hasPrefix(key, prefix string) bool {
	return strings.HasPrefix(key, prefix)
}

func clone(b []byte) json.RawMessage {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
