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

// Package blobtest provides an in-memory blob.Store that records every call.
package blobtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fawa-io/katalog/pkg/blob"
)

// Call is one recorded operation.
type Call struct {
	Op          string
	Keys        []string
	ContentType string
}

// Object is a stored blob.
type Object struct {
	Data         []byte
	ContentType  string
	LastModified time.Time
}

// Recorder is a blob.Store fake. Set the *Err fields to make the matching
// operation fail.
type Recorder struct {
	mu      sync.Mutex
	calls   []Call
	objects map[string]Object

	EnsureErr error
	UploadErr error
	RemoveErr error
	SignErr   error
	ListErr   error

	Now func() time.Time
}

var _ blob.Store = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{objects: make(map[string]Object), Now: time.Now}
}

func (r *Recorder) record(c Call) {
	r.calls = append(r.calls, c)
}

func (r *Recorder) EnsureContainer(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Call{Op: "ensure"})
	return r.EnsureErr
}

func (r *Recorder) Upload(_ context.Context, key string, data []byte, contentType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Call{Op: "upload", Keys: []string{key}, ContentType: contentType})
	if r.UploadErr != nil {
		return r.UploadErr
	}
	r.objects[key] = Object{Data: append([]byte(nil), data...), ContentType: contentType, LastModified: r.Now()}
	return nil
}

func (r *Recorder) Remove(_ context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Call{Op: "remove", Keys: append([]string(nil), keys...)})
	if r.RemoveErr != nil {
		return r.RemoveErr
	}
	for _, k := range keys {
		delete(r.objects, k)
	}
	return nil
}

// SignedURL returns a deterministic URL embedding key and ttl.
func (r *Recorder) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Call{Op: "sign", Keys: []string{key}})
	if r.SignErr != nil {
		return "", r.SignErr
	}
	return URL(key, ttl), nil
}

func (r *Recorder) List(context.Context) ([]blob.ObjectInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Call{Op: "list"})
	if r.ListErr != nil {
		return nil, r.ListErr
	}
	out := make([]blob.ObjectInfo, 0, len(r.objects))
	for k, o := range r.objects {
		out = append(out, blob.ObjectInfo{Key: k, Size: int64(len(o.Data)), LastModified: o.LastModified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// URL is the signed URL the Recorder hands out for key.
func URL(key string, ttl time.Duration) string {
	return fmt.Sprintf("https://blob.test/products/%s?expires=%d", key, int(ttl.Seconds()))
}

// Put stores an object directly without recording a call.
func (r *Recorder) Put(key string, o Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[key] = o
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsOf returns the recorded calls of a single operation.
func (r *Recorder) CallsOf(op string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Mutations returns upload and remove calls in order.
func (r *Recorder) Mutations() []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == "upload" || c.Op == "remove" {
			out = append(out, c)
		}
	}
	return out
}

// Keys lists the stored object keys in order.
func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.objects))
	for k := range r.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Object returns the stored object under key.
func (r *Recorder) Object(key string) (Object, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.objects[key]
	return o, ok
}

// Reset forgets recorded calls but keeps stored objects.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
