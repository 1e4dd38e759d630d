// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package fscache

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syncthing/fswatchstore/event"
	"github.com/syncthing/fswatchstore/kv"
)

// OverlapKind classifies how two watch roots relate, computed purely from
// path components.
type OverlapKind int

const (
	OverlapNone OverlapKind = iota
	OverlapIdentical
	OverlapAncestor // A is a strict prefix of B
	OverlapPartial  // non-trivial common prefix longer than the filesystem root
)

// Overlap is the result of comparing two watch roots.
type Overlap struct {
	Kind         OverlapKind
	Ancestor     string // set for OverlapAncestor
	Descendant   string // set for OverlapAncestor
	CommonPrefix string // set for OverlapPartial
}

func components(path string) []string {
	clean := filepath.ToSlash(filepath.Clean(path))
	trimmed := strings.Trim(clean, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// DetectOverlap computes the Overlap relation between watch roots a and b.
func DetectOverlap(a, b string) Overlap {
	ca, cb := components(a), components(b)
	if filepath.Clean(a) == filepath.Clean(b) {
		return Overlap{Kind: OverlapIdentical}
	}
	if isPrefix(ca, cb) {
		return Overlap{Kind: OverlapAncestor, Ancestor: a, Descendant: b}
	}
	if isPrefix(cb, ca) {
		return Overlap{Kind: OverlapAncestor, Ancestor: b, Descendant: a}
	}
	common := commonPrefixComponents(ca, cb)
	if len(common) > 0 {
		return Overlap{Kind: OverlapPartial, CommonPrefix: "/" + strings.Join(common, "/")}
	}
	return Overlap{Kind: OverlapNone}
}

func isPrefix(short, long []string) bool {
	if len(short) >= len(long) {
		return false
	}
	for i, c := range short {
		if long[i] != c {
			return false
		}
	}
	return true
}

func commonPrefixComponents(a, b []string) []string {
	var out []string
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			break
		}
		out = append(out, a[i])
	}
	return out
}

func sharedKeyFor(path string) []byte {
	buf := make([]byte, 8)
	putUint64LE(buf, event.PathHash(path))
	return buf
}

func decodeShared(raw []byte) (event.SharedNodeInfo, error) {
	var s event.SharedNodeInfo
	if err := kv.Decode(raw, &s); err != nil {
		return event.SharedNodeInfo{}, err
	}
	return s, nil
}

// RegisterWatch adds a watch to the registry.
func (c *Cache) RegisterWatch(w event.Watch) error {
	tx, err := c.backend.NewWriteTransaction()
	if err != nil {
		return err
	}
	defer tx.Release()
	encoded, err := kv.Encode(w)
	if err != nil {
		return err
	}
	if err := tx.Put(kv.TableWatchRegistry, w.ID[:], encoded); err != nil {
		return err
	}
	return tx.Commit()
}

// ListWatches returns every registered watch.
func (c *Cache) ListWatches() ([]event.Watch, error) {
	tx, err := c.backend.NewReadTransaction()
	if err != nil {
		return nil, err
	}
	defer tx.Release()
	it, err := tx.NewPrefixIterator(kv.TableWatchRegistry, nil)
	if err != nil {
		return nil, err
	}
	defer it.Release()
	var out []event.Watch
	for it.Next() {
		var w event.Watch
		if err := kv.Decode(it.Value(), &w); err != nil {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

// GetWatch looks up a single registered watch by id.
func (c *Cache) GetWatch(watchID uuid.UUID) (event.Watch, bool, error) {
	tx, err := c.backend.NewReadTransaction()
	if err != nil {
		return event.Watch{}, false, err
	}
	defer tx.Release()
	raw, err := tx.Get(kv.TableWatchRegistry, watchID[:])
	if err != nil {
		if kvErr, ok := err.(*kv.Error); ok && kvErr.Kind == kv.KeyNotFound {
			return event.Watch{}, false, nil
		}
		return event.Watch{}, false, err
	}
	var w event.Watch
	if err := kv.Decode(raw, &w); err != nil {
		return event.Watch{}, false, err
	}
	return w, true, nil
}

// OptimizeSharedCache enumerates every pair of registered watches, merges
// nodes across any Partial or Ancestor overlap into the shared table, and
// runs the redundant/orphan cleanup pass.
func (c *Cache) OptimizeSharedCache() error {
	watches, err := c.ListWatches()
	if err != nil {
		return err
	}
	for i := 0; i < len(watches); i++ {
		for j := i + 1; j < len(watches); j++ {
			ov := DetectOverlap(watches[i].RootPath, watches[j].RootPath)
			switch ov.Kind {
			case OverlapAncestor:
				if err := c.MergeNodesToShared(ov.Descendant, []uuid.UUID{watches[i].ID, watches[j].ID}); err != nil {
					return err
				}
			case OverlapPartial:
				if err := c.MergeNodesToShared(ov.CommonPrefix, []uuid.UUID{watches[i].ID, watches[j].ID}); err != nil {
					return err
				}
			}
		}
	}
	return c.CleanupRedundantAndOrphanedNodes()
}

// MergeNodesToShared builds a shared entry with reference_count =
// len(watchIDs) at path's hash, and removes the now-redundant watch-scoped
// nodes for every watch in the same write transaction — closing the
// merge/cleanup window the bare insert-only version left open.
func (c *Cache) MergeNodesToShared(path string, watchIDs []uuid.UUID) error {
	clean := filepath.Clean(path)
	key := sharedKeyFor(clean)

	tx, err := c.backend.NewWriteTransaction()
	if err != nil {
		return err
	}
	defer tx.Release()

	var node event.FilesystemNode
	found := false
	for _, wid := range watchIDs {
		sk := event.ScopedKey{WatchID: wid, PathHash: event.PathHash(clean)}
		raw, err := tx.Get(kv.TableMultiFSCache, sk.Bytes())
		if err == nil {
			if n, derr := decodeNode(raw); derr == nil {
				node = n
				found = true
			}
		}
	}
	if !found {
		node = event.FilesystemNode{Path: clean, PathHash: event.PathHash(clean)}
	}

	entry := event.SharedNodeInfo{
		Node:             node,
		WatchingScopes:   append([]uuid.UUID{}, watchIDs...),
		ReferenceCount:   len(watchIDs),
		LastSharedUpdate: time.Now(),
	}
	encoded, err := kv.Encode(entry)
	if err != nil {
		return err
	}
	if err := tx.Put(kv.TableSharedNodes, key, encoded); err != nil {
		return err
	}

	for _, wid := range watchIDs {
		sk := event.ScopedKey{WatchID: wid, PathHash: event.PathHash(clean)}
		if err := tx.Delete(kv.TableMultiFSCache, sk.Bytes()); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RemoveWatch removes the watch from the registry and, for every shared
// entry it participates in, removes it from watching_scopes and
// decrements reference_count, deleting the entry outright once the count
// reaches zero. It drops the watch's own scoped nodes with a prefix scan of
// multi_fs_cache on the watch id, so that step costs in proportion to this
// watch's node count. Removing the watch id from path_to_watches visits
// every key of that table, and the shared_nodes pass scans all entries.
func (c *Cache) RemoveWatch(watchID uuid.UUID) error {
	tx, err := c.backend.NewWriteTransaction()
	if err != nil {
		return err
	}
	defer tx.Release()

	if err := tx.Delete(kv.TableWatchRegistry, watchID[:]); err != nil {
		return err
	}

	it, err := tx.NewPrefixIterator(kv.TableMultiFSCache, watchID[:])
	if err != nil {
		return err
	}
	var scoped [][]byte
	for it.Next() {
		scoped = append(scoped, append([]byte{}, it.Key()...))
	}
	it.Release()
	for _, sk := range scoped {
		if err := tx.Delete(kv.TableMultiFSCache, sk); err != nil {
			return err
		}
	}

	pathHashKeys, err := tx.MultimapKeys(kv.TablePathToWatches)
	if err != nil {
		return err
	}
	for _, phk := range pathHashKeys {
		if err := tx.MultimapDelete(kv.TablePathToWatches, phk, watchID[:]); err != nil {
			return err
		}
	}

	sharedIt, err := tx.NewPrefixIterator(kv.TableSharedNodes, nil)
	if err != nil {
		return err
	}
	type update struct {
		key   []byte
		entry event.SharedNodeInfo
	}
	var updates []update
	var deletes [][]byte
	for sharedIt.Next() {
		entry, derr := decodeShared(sharedIt.Value())
		if derr != nil {
			continue
		}
		idx := -1
		for i, id := range entry.WatchingScopes {
			if id == watchID {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		entry.WatchingScopes = append(entry.WatchingScopes[:idx], entry.WatchingScopes[idx+1:]...)
		entry.ReferenceCount = len(entry.WatchingScopes)
		key := append([]byte{}, sharedIt.Key()...)
		if entry.ReferenceCount == 0 {
			deletes = append(deletes, key)
		} else {
			updates = append(updates, update{key: key, entry: entry})
		}
	}
	sharedIt.Release()

	for _, u := range updates {
		encoded, err := kv.Encode(u.entry)
		if err != nil {
			return err
		}
		if err := tx.Put(kv.TableSharedNodes, u.key, encoded); err != nil {
			return err
		}
	}
	for _, k := range deletes {
		if err := tx.Delete(kv.TableSharedNodes, k); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// CleanupRedundantAndOrphanedNodes removes watch-scoped nodes whose
// path_hash is represented in shared_nodes and whose watch_id is in that
// entry's watching_scopes, and removes shared_nodes entries whose
// reference_count has dropped to zero or whose watching_scopes is empty.
// Idempotent against an already-merged state.
func (c *Cache) CleanupRedundantAndOrphanedNodes() error {
	tx, err := c.backend.NewWriteTransaction()
	if err != nil {
		return err
	}
	defer tx.Release()

	it, err := tx.NewPrefixIterator(kv.TableSharedNodes, nil)
	if err != nil {
		return err
	}
	type shared struct {
		key   []byte
		entry event.SharedNodeInfo
	}
	var all []shared
	for it.Next() {
		entry, derr := decodeShared(it.Value())
		if derr != nil {
			continue
		}
		all = append(all, shared{key: append([]byte{}, it.Key()...), entry: entry})
	}
	it.Release()

	for _, s := range all {
		if s.entry.ReferenceCount == 0 || len(s.entry.WatchingScopes) == 0 {
			if err := tx.Delete(kv.TableSharedNodes, s.key); err != nil {
				return err
			}
			continue
		}
		pathHash := event.PathHash(s.entry.Node.Path)
		for _, wid := range s.entry.WatchingScopes {
			sk := event.ScopedKey{WatchID: wid, PathHash: pathHash}
			if _, err := tx.Get(kv.TableMultiFSCache, sk.Bytes()); err == nil {
				if derr := tx.Delete(kv.TableMultiFSCache, sk.Bytes()); derr != nil {
					return derr
				}
			}
		}
	}

	return tx.Commit()
}
