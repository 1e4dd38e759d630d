// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/syncthing/fswatchstore/event"
	"github.com/syncthing/fswatchstore/fscache"
	"github.com/syncthing/fswatchstore/kv"
)

// Adapter composes the event log, filesystem cache and background
// manager into the external API surface. It is the single entry point
// callers outside this module use.
type Adapter struct {
	Store   *Store
	Cache   *fscache.Cache
	Manager *Manager
}

// OpenAdapter opens a Store and filesystem Cache sharing one backend,
// and builds their background Manager.
func OpenAdapter(cfg Config, cacheCfg fscache.Config) (*Adapter, error) {
	st, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	cache := fscache.New(st.Backend(), cacheCfg)
	a := &Adapter{
		Store: st,
		Cache: cache,
	}
	a.Manager = NewManager(st)
	return a, nil
}

// retryPolicy builds a capped exponential backoff for retryable KV
// operations: 50ms initial interval, up to 2s, five minutes total.
func retryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 5 * time.Minute
	return b
}

// withRetry re-runs fn under an exponential backoff while it returns a
// kv.Error flagged IsRetryable, surfacing any other error immediately.
func withRetry(fn func() error) error {
	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		var kerr *kv.Error
		if ok := asKVError(err, &kerr); ok && kerr.IsRetryable() {
			return err
		}
		return backoff.Permanent(err)
	}, retryPolicy())
}

func asKVError(err error, out **kv.Error) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if kerr, ok := err.(*kv.Error); ok {
			*out = kerr
			return true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// StoreEvent persists ev with retry on retryable failures.
func (a *Adapter) StoreEvent(ev event.Event) (event.Event, error) {
	var out event.Event
	err := withRetry(func() error {
		var err error
		out, err = a.Store.StoreEvent(ev)
		return err
	})
	return out, err
}

// GetEventsForPath proxies Store.GetEventsForPath.
func (a *Adapter) GetEventsForPath(path string) ([]event.Event, error) {
	return a.Store.GetEventsForPath(path)
}

// FindEventsByTimeRange proxies Store.FindEventsByTimeRange.
func (a *Adapter) FindEventsByTimeRange(start, end int64) ([]event.Event, error) {
	return a.Store.FindEventsByTimeRange(start, end)
}

// StoreMetadata proxies Store.StoreMetadata.
func (a *Adapter) StoreMetadata(meta event.Metadata) error {
	return a.Store.StoreMetadata(meta)
}

// GetMetadata proxies Store.GetMetadata.
func (a *Adapter) GetMetadata(path string) (event.Metadata, bool, error) {
	return a.Store.GetMetadata(path)
}

// CleanupOldEvents proxies Store.CleanupOldEvents.
func (a *Adapter) CleanupOldEvents() (int, error) { return a.Store.CleanupOldEvents() }

// CleanupOldEventsWithPolicy proxies Store.Cleanup.
func (a *Adapter) CleanupOldEventsWithPolicy(policy RetentionPolicy) (int, error) {
	return a.Store.Cleanup(policy)
}

// GetStats returns the event log's instrumentation as the get_stats()
// result. CacheHitRate reflects GetMetadata's hit/miss counters only;
// the filesystem cache has no hit/miss counters of its own to merge in.
func (a *Adapter) GetStats() (Stats, error) {
	s, err := a.Store.Stats()
	if err != nil {
		return Stats{}, err
	}
	return s, nil
}

// Compact proxies Store.Compact.
func (a *Adapter) Compact() error { return a.Store.Compact() }

// HealthCheck proxies Store.HealthCheck.
func (a *Adapter) HealthCheck() bool { return a.Store.HealthCheck() }

// GetFilesystemCache returns the underlying cache for callers needing
// direct C4/C5 access.
func (a *Adapter) GetFilesystemCache() *fscache.Cache { return a.Cache }

// GetRawDatabase returns the underlying backend for callers needing
// direct C1 access.
func (a *Adapter) GetRawDatabase() kv.Backend { return a.Store.Backend() }

// StartBackgroundManager starts the suture-supervised maintenance tasks.
func (a *Adapter) StartBackgroundManager(ctx context.Context) error {
	return a.Manager.Start(ctx)
}

// StoreFilesystemNode enforces watchID's Permissions before delegating
// to the cache, per the watch-permissions enrichment: a watch without
// PermWrite cannot add or update nodes.
func (a *Adapter) StoreFilesystemNode(watchID uuid.UUID, node event.FilesystemNode, kind event.Kind) error {
	if err := a.checkPermission(watchID, event.PermWrite); err != nil {
		return err
	}
	return a.Cache.StoreFilesystemNode(watchID, node, kind)
}

// RemoveFilesystemNode enforces watchID's Permissions before delegating
// to the cache: a watch without PermDelete cannot remove nodes.
func (a *Adapter) RemoveFilesystemNode(watchID uuid.UUID, path string, kind event.Kind) error {
	if err := a.checkPermission(watchID, event.PermDelete); err != nil {
		return err
	}
	return a.Cache.RemoveFilesystemNode(watchID, path, kind)
}

func (a *Adapter) checkPermission(watchID uuid.UUID, required event.Permission) error {
	w, ok, err := a.Cache.GetWatch(watchID)
	if err != nil {
		return err
	}
	if !ok {
		// Unregistered watches (ad hoc callers, tests) are unrestricted.
		return nil
	}
	if !w.Permissions.Allows(required) {
		return fscache.ErrPermissionDenied
	}
	return nil
}

// Close releases the shared backend.
func (a *Adapter) Close() error { return a.Store.Close() }
