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

// Package blob stores image bytes in an object store and hands out
// time-limited signed URLs for them.
package blob

import (
	"context"
	"time"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store is the object storage collaborator. Every implementation is bound
// to a single container (bucket).
type Store interface {
	// EnsureContainer creates the container when missing. Safe to call
	// any number of times.
	EnsureContainer(ctx context.Context) error

	// Upload writes data under key, replacing any existing object.
	Upload(ctx context.Context, key string, data []byte, contentType string) error

	// Remove deletes the given objects. Missing objects are not an error.
	Remove(ctx context.Context, keys ...string) error

	// SignedURL returns a URL granting read access to key for ttl.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// List returns every object in the container.
	List(ctx context.Context) ([]ObjectInfo, error)
}
