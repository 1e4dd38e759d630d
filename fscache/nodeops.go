// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package fscache

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/syncthing/fswatchstore/event"
	"github.com/syncthing/fswatchstore/kv"
)

func scopedKeyFor(watchID uuid.UUID, path string) event.ScopedKey {
	return event.ScopedKey{WatchID: watchID, PathHash: event.PathHash(path)}
}

func decodeNode(raw []byte) (event.FilesystemNode, error) {
	var n event.FilesystemNode
	if err := kv.Decode(raw, &n); err != nil {
		return event.FilesystemNode{}, err
	}
	return n, nil
}

// StoreFilesystemNode writes node under the watch's scoped key and
// maintains the hierarchy, path-to-watches, and path-prefix indexes in the
// same write transaction. The input path is canonicalized for key
// derivation only; the stored node retains the caller's path as given.
func (c *Cache) StoreFilesystemNode(watchID uuid.UUID, node event.FilesystemNode, eventType event.Kind) error {
	clean := filepath.Clean(node.Path)
	key := scopedKeyFor(watchID, clean)
	node.PathHash = key.PathHash
	if parentHash, ok := event.ParentHash(clean); ok {
		node.ParentHash = parentHash
		node.HasParent = true
	} else {
		node.HasParent = false
	}
	node.LastEventType = eventType
	node.HasLastEvent = true

	encoded, err := kv.Encode(node)
	if err != nil {
		return err
	}

	tx, err := c.backend.NewWriteTransaction()
	if err != nil {
		return err
	}
	defer tx.Release()

	if err := tx.Put(kv.TableMultiFSCache, key.Bytes(), encoded); err != nil {
		return err
	}

	if node.HasParent {
		parentKey := event.ScopedKey{WatchID: watchID, PathHash: node.ParentHash}
		if err := tx.MultimapPut(kv.TableMultiHierarchy, parentKey.Bytes(), key.Bytes()); err != nil {
			return err
		}
	}

	pathHashKey := make([]byte, 8)
	putUint64LE(pathHashKey, key.PathHash)
	if err := tx.MultimapPut(kv.TablePathToWatches, pathHashKey, watchID[:]); err != nil {
		return err
	}

	for _, prefix := range event.PathPrefixes(clean) {
		if err := tx.MultimapPut(kv.TablePathPrefix, []byte(prefix), key.Bytes()); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func putUint64LE(buf []byte, v uint64) {
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
}

// GetFilesystemNode returns the stored node for path under watchID, or
// false on miss.
func (c *Cache) GetFilesystemNode(watchID uuid.UUID, path string) (event.FilesystemNode, bool, error) {
	tx, err := c.backend.NewReadTransaction()
	if err != nil {
		return event.FilesystemNode{}, false, err
	}
	defer tx.Release()

	key := scopedKeyFor(watchID, filepath.Clean(path))
	raw, err := tx.Get(kv.TableMultiFSCache, key.Bytes())
	if err != nil {
		if kvErr, ok := err.(*kv.Error); ok && kvErr.Kind == kv.KeyNotFound {
			return event.FilesystemNode{}, false, nil
		}
		return event.FilesystemNode{}, false, err
	}
	n, err := decodeNode(raw)
	if err != nil {
		return event.FilesystemNode{}, false, err
	}
	return n, true, nil
}

// GetNode is GetFilesystemNode plus the staleness check: a node whose
// CacheInfo.LastVerified predates the configured TTL is treated as
// missing, the cache's freshness boundary.
func (c *Cache) GetNode(watchID uuid.UUID, path string) (event.FilesystemNode, bool, error) {
	n, ok, err := c.GetFilesystemNode(watchID, path)
	if err != nil || !ok {
		return n, ok, err
	}
	if n.IsStale(time.Now(), c.cfg.NodeTTL) {
		return event.FilesystemNode{}, false, nil
	}
	return n, true, nil
}

// RemoveFilesystemNode removes the node, every parent-child edge
// referencing it (scanning every parent bucket — acceptable because
// removals are rare relative to inserts), and its path-prefix entries, all
// in one write transaction.
func (c *Cache) RemoveFilesystemNode(watchID uuid.UUID, path string, _ event.Kind) error {
	clean := filepath.Clean(path)
	key := scopedKeyFor(watchID, clean)

	tx, err := c.backend.NewWriteTransaction()
	if err != nil {
		return err
	}
	defer tx.Release()

	if err := tx.Delete(kv.TableMultiFSCache, key.Bytes()); err != nil {
		return err
	}

	parentKeys, err := tx.MultimapKeys(kv.TableMultiHierarchy)
	if err != nil {
		return err
	}
	for _, pk := range parentKeys {
		if err := tx.MultimapDelete(kv.TableMultiHierarchy, pk, key.Bytes()); err != nil {
			return err
		}
	}

	for _, prefix := range event.PathPrefixes(clean) {
		if err := tx.MultimapDelete(kv.TablePathPrefix, []byte(prefix), key.Bytes()); err != nil {
			return err
		}
	}
	if err := tx.MultimapDelete(kv.TablePathPrefix, []byte(clean), key.Bytes()); err != nil {
		return err
	}

	return tx.Commit()
}

// RenameFilesystemNode moves a node from oldPath to newPath: reads the
// node, rewrites its path/path_hash, inserts under the new scoped key,
// deletes the old one, rewrites every parent-child edge that referenced
// the old key, and updates path_prefix. Atomic per transaction.
func (c *Cache) RenameFilesystemNode(watchID uuid.UUID, oldPath, newPath string, eventType event.Kind) error {
	oldClean := filepath.Clean(oldPath)
	newClean := filepath.Clean(newPath)
	oldKey := scopedKeyFor(watchID, oldClean)
	newKey := scopedKeyFor(watchID, newClean)

	tx, err := c.backend.NewWriteTransaction()
	if err != nil {
		return err
	}
	defer tx.Release()

	raw, err := tx.Get(kv.TableMultiFSCache, oldKey.Bytes())
	if err != nil {
		return err
	}
	n, err := decodeNode(raw)
	if err != nil {
		return err
	}
	n.Path = newClean
	n.PathHash = newKey.PathHash
	if parentHash, ok := event.ParentHash(newClean); ok {
		n.ParentHash = parentHash
		n.HasParent = true
	} else {
		n.HasParent = false
	}
	n.LastEventType = eventType
	n.HasLastEvent = true

	encoded, err := kv.Encode(n)
	if err != nil {
		return err
	}
	if err := tx.Put(kv.TableMultiFSCache, newKey.Bytes(), encoded); err != nil {
		return err
	}
	if err := tx.Delete(kv.TableMultiFSCache, oldKey.Bytes()); err != nil {
		return err
	}

	parentKeys, err := tx.MultimapKeys(kv.TableMultiHierarchy)
	if err != nil {
		return err
	}
	for _, pk := range parentKeys {
		values, err := tx.MultimapValues(kv.TableMultiHierarchy, pk)
		if err != nil {
			return err
		}
		for _, v := range values {
			if bytesEqual(v, oldKey.Bytes()) {
				if err := tx.MultimapDelete(kv.TableMultiHierarchy, pk, oldKey.Bytes()); err != nil {
					return err
				}
				if err := tx.MultimapPut(kv.TableMultiHierarchy, pk, newKey.Bytes()); err != nil {
					return err
				}
			}
		}
	}
	if n.HasParent {
		parentKey := event.ScopedKey{WatchID: watchID, PathHash: n.ParentHash}
		if err := tx.MultimapPut(kv.TableMultiHierarchy, parentKey.Bytes(), newKey.Bytes()); err != nil {
			return err
		}
	}

	for _, prefix := range event.PathPrefixes(oldClean) {
		if err := tx.MultimapDelete(kv.TablePathPrefix, []byte(prefix), oldKey.Bytes()); err != nil {
			return err
		}
	}
	for _, prefix := range event.PathPrefixes(newClean) {
		if err := tx.MultimapPut(kv.TablePathPrefix, []byte(prefix), newKey.Bytes()); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ListDirectoryForWatch returns the direct children of parent within
// watchID's scope.
func (c *Cache) ListDirectoryForWatch(watchID uuid.UUID, parent string) ([]event.FilesystemNode, error) {
	tx, err := c.backend.NewReadTransaction()
	if err != nil {
		return nil, err
	}
	defer tx.Release()

	parentKey := scopedKeyFor(watchID, filepath.Clean(parent))
	children, err := tx.MultimapValues(kv.TableMultiHierarchy, parentKey.Bytes())
	if err != nil {
		return nil, err
	}
	return dereferenceNodes(tx, children), nil
}

func dereferenceNodes(tx kv.ReadTxn, scopedKeys [][]byte) []event.FilesystemNode {
	out := make([]event.FilesystemNode, 0, len(scopedKeys))
	for _, sk := range scopedKeys {
		raw, err := tx.Get(kv.TableMultiFSCache, sk)
		if err != nil {
			continue // corrupt or already-removed entry, skip during bulk scan
		}
		n, err := decodeNode(raw)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// ListDirectoryUnified unions every watch's view of parent's children,
// deduplicated by path, including shared-node entries directly beneath
// parent (the "legacy shared edges" the multi-watch layer also consults).
func (c *Cache) ListDirectoryUnified(parent string) ([]event.FilesystemNode, error) {
	tx, err := c.backend.NewReadTransaction()
	if err != nil {
		return nil, err
	}
	defer tx.Release()

	clean := filepath.Clean(parent)
	watchIDs, err := c.listWatchIDs(tx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []event.FilesystemNode
	for _, wid := range watchIDs {
		parentKey := event.ScopedKey{WatchID: wid, PathHash: event.PathHash(clean)}
		children, err := tx.MultimapValues(kv.TableMultiHierarchy, parentKey.Bytes())
		if err != nil {
			return nil, err
		}
		for _, n := range dereferenceNodes(tx, children) {
			if _, dup := seen[n.Path]; dup {
				continue
			}
			seen[n.Path] = struct{}{}
			out = append(out, n)
		}
	}

	sharedKeys, err := tx.NewPrefixIterator(kv.TableSharedNodes, nil)
	if err == nil {
		for sharedKeys.Next() {
			entry, err := decodeShared(sharedKeys.Value())
			if err != nil {
				continue
			}
			if filepath.Dir(filepath.Clean(entry.Node.Path)) != clean {
				continue
			}
			if _, dup := seen[entry.Node.Path]; dup {
				continue
			}
			seen[entry.Node.Path] = struct{}{}
			out = append(out, entry.Node)
		}
		sharedKeys.Release()
	}

	return out, nil
}

func (c *Cache) listWatchIDs(tx kv.ReadTxn) ([]uuid.UUID, error) {
	it, err := tx.NewPrefixIterator(kv.TableWatchRegistry, nil)
	if err != nil {
		return nil, err
	}
	defer it.Release()
	var out []uuid.UUID
	for it.Next() {
		id, err := uuid.FromBytes(it.Key())
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// FindNodesByPrefix dereferences the scoped keys stored under prefix in
// path_prefix, restricted to watchID's scope.
func (c *Cache) FindNodesByPrefix(watchID uuid.UUID, prefix string) ([]event.FilesystemNode, error) {
	tx, err := c.backend.NewReadTransaction()
	if err != nil {
		return nil, err
	}
	defer tx.Release()

	keys, err := tx.MultimapValues(kv.TablePathPrefix, []byte(filepath.Clean(prefix)))
	if err != nil {
		return nil, err
	}
	var filtered [][]byte
	for _, k := range keys {
		sk, err := event.ScopedKeyFromBytes(k)
		if err != nil || sk.WatchID != watchID {
			continue
		}
		filtered = append(filtered, k)
	}
	return dereferenceNodes(tx, filtered), nil
}

// ListDescendants yields every node whose path starts with path, via a
// prefix scan of path_prefix.
func (c *Cache) ListDescendants(path string) ([]event.FilesystemNode, error) {
	tx, err := c.backend.NewReadTransaction()
	if err != nil {
		return nil, err
	}
	defer tx.Release()

	keys, err := tx.MultimapValues(kv.TablePathPrefix, []byte(filepath.Clean(path)))
	if err != nil {
		return nil, err
	}
	return dereferenceNodes(tx, keys), nil
}

// ListAncestors walks up the parent paths (filepath.Dir), reading each
// parent node from multi_fs_cache and checking it against the stored
// parent_hash, until no parent remains or one is missing. It breaks on a
// repeated path_hash rather than looping forever on a corrupted cycle.
func (c *Cache) ListAncestors(watchID uuid.UUID, path string) ([]event.FilesystemNode, error) {
	tx, err := c.backend.NewReadTransaction()
	if err != nil {
		return nil, err
	}
	defer tx.Release()

	visited := make(map[uint64]struct{})
	var out []event.FilesystemNode
	cur := filepath.Clean(path)
	for {
		key := scopedKeyFor(watchID, cur)
		if _, seen := visited[key.PathHash]; seen {
			break
		}
		visited[key.PathHash] = struct{}{}

		raw, err := tx.Get(kv.TableMultiFSCache, key.Bytes())
		if err != nil {
			break
		}
		n, err := decodeNode(raw)
		if err != nil {
			break
		}
		if !n.HasParent {
			break
		}
		parentPath := filepath.Dir(cur)
		parentKey := scopedKeyFor(watchID, parentPath)
		if parentKey.PathHash != n.ParentHash {
			break
		}
		praw, err := tx.Get(kv.TableMultiFSCache, parentKey.Bytes())
		if err != nil {
			break
		}
		pn, err := decodeNode(praw)
		if err != nil {
			break
		}
		out = append(out, pn)
		cur = parentPath
	}
	return out, nil
}

// CleanupStaleCache deletes the watch's nodes whose CacheInfo.CachedAt
// predates maxAge. The scan runs in a read transaction and the deletes in
// a second write transaction, since an iterator must not overlap a
// mutating transaction.
func (c *Cache) CleanupStaleCache(watchID uuid.UUID, maxAge time.Duration) (int, error) {
	var stale [][]byte
	func() {
		tx, err := c.backend.NewReadTransaction()
		if err != nil {
			return
		}
		defer tx.Release()
		it, err := tx.NewPrefixIterator(kv.TableMultiFSCache, watchID[:])
		if err != nil {
			return
		}
		defer it.Release()
		now := time.Now()
		for it.Next() {
			n, err := decodeNode(it.Value())
			if err != nil {
				continue
			}
			if now.Sub(n.Cache.CachedAt) > maxAge {
				stale = append(stale, append([]byte{}, it.Key()...))
			}
		}
	}()
	if len(stale) == 0 {
		return 0, nil
	}

	tx, err := c.backend.NewWriteTransaction()
	if err != nil {
		return 0, err
	}
	defer tx.Release()
	for _, k := range stale {
		if err := tx.Delete(kv.TableMultiFSCache, k); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// CacheStats tallies a watch's node population.
type CacheStats struct {
	TotalNodes int
	Files      int
	Directories int
	Symlinks   int
	TotalBytes int64
}

// GetCacheStats scans the watch's nodes, tallying counts by type and total
// bytes.
func (c *Cache) GetCacheStats(watchID uuid.UUID) (CacheStats, error) {
	tx, err := c.backend.NewReadTransaction()
	if err != nil {
		return CacheStats{}, err
	}
	defer tx.Release()

	it, err := tx.NewPrefixIterator(kv.TableMultiFSCache, watchID[:])
	if err != nil {
		return CacheStats{}, err
	}
	defer it.Release()

	var stats CacheStats
	for it.Next() {
		n, err := decodeNode(it.Value())
		if err != nil {
			continue // corrupt value, skip and keep scanning
		}
		stats.TotalNodes++
		switch n.Kind {
		case event.NodeFile:
			stats.Files++
			if n.File != nil {
				stats.TotalBytes += n.File.Size
			}
		case event.NodeDirectory:
			stats.Directories++
			if n.Directory != nil {
				stats.TotalBytes += n.Directory.TotalSize
			}
		case event.NodeSymlink:
			stats.Symlinks++
		}
	}
	return stats, nil
}
