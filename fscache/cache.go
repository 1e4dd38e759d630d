// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package fscache implements the filesystem cache layer (watch-scoped
// nodes, hierarchy and path-prefix multimaps) and the multi-watch
// coordinator that merges nodes shared by overlapping watch roots into a
// single reference-counted entry.
package fscache

import (
	"errors"
	"time"

	"github.com/syncthing/fswatchstore/kv"
)

// ErrPermissionDenied is returned when a watch's permission mask forbids
// the attempted mutation.
var ErrPermissionDenied = errors.New("fscache: permission denied for watch")

// Config bounds cache freshness.
type Config struct {
	// NodeTTL is the freshness boundary: a node older than this (measured
	// against its CacheInfo.LastVerified) is treated as missing by
	// GetNode.
	NodeTTL time.Duration
}

// DefaultConfig matches the moderate database profile's cadence.
func DefaultConfig() Config {
	return Config{NodeTTL: 10 * time.Minute}
}

// Cache wraps a kv.Backend with the filesystem cache and multi-watch
// coordinator operations.
type Cache struct {
	backend kv.Backend
	cfg     Config
}

// New builds a Cache over an already-open backend, typically the same
// backend a store.Store uses so both share one database file and one
// write-transaction serialization point.
func New(backend kv.Backend, cfg Config) *Cache {
	return &Cache{backend: backend, cfg: cfg}
}
