// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package watcher wires a raw OS filesystem notification source into the
// move detector, event log and filesystem cache.
package watcher

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/syncthing/fswatchstore/movedetect"
	"github.com/syncthing/fswatchstore/store"
)

// Config describes one watched root.
type Config struct {
	Path               string
	Recursive          bool
	WatchID            uuid.UUID
	MoveDetectorConfig movedetect.Config
	StoreConfig        store.Config
	EventChannelSize   int
}

// DefaultConfig returns a Config for path with a fresh watch id and the
// package defaults for the detector, store and event channel buffer.
func DefaultConfig(path string) Config {
	return Config{
		Path:               path,
		Recursive:          true,
		WatchID:            uuid.New(),
		MoveDetectorConfig: movedetect.DefaultConfig(),
		StoreConfig:        store.Default(),
		EventChannelSize:   100,
	}
}

// Validate reports the first configuration error found.
func (c Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("watcher: path must not be empty")
	}
	if c.EventChannelSize <= 0 {
		return fmt.Errorf("watcher: event_channel_size must be greater than 0")
	}
	if err := c.MoveDetectorConfig.Validate(); err != nil {
		return err
	}
	return c.StoreConfig.Validate()
}
