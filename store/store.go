// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import (
	"github.com/syncthing/fswatchstore/kv"
)

// Store wraps a kv.Backend with the event log, retention, and maintenance
// operations the adapter exposes.
type Store struct {
	backend kv.Backend
	cfg     Config
	instr   *instrumentation
}

// Open validates cfg and opens (bootstrapping if necessary) the backing
// database.
func Open(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, kv.NewError(kv.InvalidConfiguration, "open", err)
	}
	b, err := kv.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return &Store{backend: b, cfg: cfg, instr: newInstrumentation()}, nil
}

// Backend exposes the raw database handle, per get_raw_database() in the
// adapter surface.
func (s *Store) Backend() kv.Backend { return s.backend }

// Config returns the configuration the store was opened with.
func (s *Store) Config() Config { return s.cfg }

func (s *Store) Close() error { return s.backend.Close() }
