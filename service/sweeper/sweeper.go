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

// Package sweeper removes image objects that no product references.
package sweeper

import (
	"context"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fawa-io/katalog/pkg/blob"
	"github.com/fawa-io/katalog/pkg/fwlog"
	"github.com/fawa-io/katalog/pkg/metrics"
)

const runTimeout = 5 * time.Minute

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Referencer reports the object names still in use.
type Referencer interface {
	ImageKeys(ctx context.Context) (map[string]struct{}, error)
}

// Result summarises one sweep.
type Result struct {
	Scanned int
	Removed []string
	Failed  int
}

// Sweeper deletes objects older than Grace that no record references.
// Younger objects are left alone so in-flight creates are never raced.
type Sweeper struct {
	refs  Referencer
	blobs blob.Store
	grace time.Duration

	Now func() time.Time
}

func New(refs Referencer, blobs blob.Store, grace time.Duration) *Sweeper {
	return &Sweeper{
		refs:  refs,
		blobs: blobs,
		grace: grace,
		Now:   time.Now,
	}
}

// Sweep runs a single reconciliation pass.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	var res Result

	// Objects are listed before references so a record written during the
	// sweep is seen by the reference scan.
	objects, err := s.blobs.List(ctx)
	if err != nil {
		return res, err
	}
	refs, err := s.refs.ImageKeys(ctx)
	if err != nil {
		return res, err
	}

	cutoff := s.Now().Add(-s.grace)
	var orphans []string
	for _, o := range objects {
		res.Scanned++
		if _, ok := refs[o.Key]; ok {
			continue
		}
		if o.LastModified.After(cutoff) {
			continue
		}
		orphans = append(orphans, o.Key)
	}
	sort.Strings(orphans)

	for _, key := range orphans {
		if err := s.blobs.Remove(ctx, key); err != nil {
			res.Failed++
			fwlog.Warnf("sweeper: remove orphan %q: %v", key, err)
			continue
		}
		res.Removed = append(res.Removed, key)
	}
	metrics.RecordSweep(len(res.Removed), res.Failed)
	return res, nil
}

func (s *Sweeper) run() {
	defer func() {
		if err := recover(); err != nil {
			fwlog.Error(err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	res, err := s.Sweep(ctx)
	if err != nil {
		fwlog.Errorf("sweeper: %v", err)
		return
	}
	fwlog.Infof("sweeper: scanned %d objects, removed %d, failed %d", res.Scanned, len(res.Removed), res.Failed)
}

// Start schedules Sweep on spec, a cron expression with optional seconds
// or a descriptor such as "@hourly". Stop the returned scheduler on
// shutdown.
func (s *Sweeper) Start(spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithParser(cronParser))
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return nil, err
	}
	c.Start()
	fwlog.Infof("sweeper scheduled on %q with grace %s", spec, s.grace)
	return c, nil
}
