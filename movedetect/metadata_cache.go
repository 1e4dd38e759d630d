// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package movedetect

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// pathMetadata is what the detector recorded from a path's last sized
// Create, so a later Remove or Create of that path, which can no longer be
// stat'ed, still carries an inode and content hash into scoring.
type pathMetadata struct {
	Size        *int64
	ContentHash string
	Inode       uint64
	HasInode    bool
}

// metadataCache is a small TTL-bounded cache of the last known metadata
// per path, avoiding a stat() round-trip for paths the detector has
// already seen recently.
type metadataCache struct {
	cache *lru.LRU[string, pathMetadata]
}

func newMetadataCache(size int, ttl time.Duration) *metadataCache {
	return &metadataCache{cache: lru.NewLRU[string, pathMetadata](size, nil, ttl)}
}

func (m *metadataCache) put(path string, md pathMetadata) {
	m.cache.Add(path, md)
}

func (m *metadataCache) get(path string) (pathMetadata, bool) {
	return m.cache.Get(path)
}
