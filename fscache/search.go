// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package fscache

import (
	"path/filepath"

	"github.com/gobwas/glob"

	"github.com/syncthing/fswatchstore/event"
	"github.com/syncthing/fswatchstore/kv"
)

// SearchNodes performs a linear scan of multi_fs_cache, matching pattern
// against each node's base name. Documented as O(N); callers should not
// put it on a hot path.
func (c *Cache) SearchNodes(pattern string) ([]event.FilesystemNode, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}

	tx, err := c.backend.NewReadTransaction()
	if err != nil {
		return nil, err
	}
	defer tx.Release()

	it, err := tx.NewPrefixIterator(kv.TableMultiFSCache, nil)
	if err != nil {
		return nil, err
	}
	defer it.Release()

	var out []event.FilesystemNode
	for it.Next() {
		n, derr := decodeNode(it.Value())
		if derr != nil {
			continue // corrupt value, skip and keep scanning
		}
		if g.Match(filepath.Base(n.Path)) {
			out = append(out, n)
		}
	}
	return out, nil
}
