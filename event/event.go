// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package event defines the record types shared by every other package in
// the module: the normalized filesystem event, the cached stat metadata,
// the filesystem node model, watch bookkeeping, and the storage-key
// encoding used to address rows in the kv tables.
package event

import (
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Kind enumerates the normalized event kinds the core understands. Raw OS
// events are translated into one of these by the watcher before anything
// else in the module sees them.
type Kind string

const (
	Create     Kind = "create"
	Write      Kind = "write"
	Remove     Kind = "remove"
	RenameFrom Kind = "rename_from"
	RenameTo   Kind = "rename_to"
	Rename     Kind = "rename"
	Move       Kind = "move"
	Chmod      Kind = "chmod"
	Other      Kind = "other"
)

// DetectionMethod names how a Move event's MoveData was derived.
type DetectionMethod string

const (
	MethodInode        DetectionMethod = "inode"
	MethodWindowsID    DetectionMethod = "windows_id"
	MethodContentHash  DetectionMethod = "content_hash"
	MethodSizeAndTime  DetectionMethod = "size_and_time"
	MethodHeuristics   DetectionMethod = "heuristics"
	MethodRename       DetectionMethod = "rename"
)

// MoveData is attached to an emitted event only when it represents a
// correlated move (a matched Remove/Create pair or a RenameFrom/RenameTo
// pair).
type MoveData struct {
	SourcePath      string
	DestinationPath string
	Confidence      float32
	Method          DetectionMethod
}

// Event is the normalized record persisted by the event log and threaded
// through the move detector.
type Event struct {
	ID              uuid.UUID
	Sequence        uint64
	Kind            Kind
	Path            string
	Timestamp       time.Time
	IsDirectory     bool
	Size            *int64
	PlatformID      *uint64
	ContentHash     string // empty when absent
	Move            *MoveData
	ExpiresAt       time.Time
}

// NewEvent builds an Event with a fresh id and expiry relative to ttl.
// Sequence is left zero; store.StoreEvent assigns it under the event-log
// write transaction.
func NewEvent(kind Kind, path string, ts time.Time, ttl time.Duration) Event {
	return Event{
		ID:        uuid.New(),
		Kind:      kind,
		Path:      path,
		Timestamp: ts,
		ExpiresAt: ts.Add(ttl),
	}
}

// IsExpired reports whether the event has passed its retention expiry.
func (e Event) IsExpired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// ExtendExpiration pushes ExpiresAt forward by d.
func (e *Event) ExtendExpiration(d time.Duration) {
	e.ExpiresAt = e.ExpiresAt.Add(d)
}

// Metadata is a path-keyed cached stat result, refreshed on observation.
type Metadata struct {
	Path        string
	Size        int64
	PlatformID  uint64
	HasPlatform bool
	ContentHash string
	CachedAt    time.Time
	IsDirectory bool
	ModifiedAt  time.Time
}

// IsStale reports whether the cached metadata is older than maxAge.
func (m Metadata) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(m.CachedAt) > maxAge
}

// NodeKind distinguishes the three filesystem node shapes.
type NodeKind string

const (
	NodeFile      NodeKind = "file"
	NodeDirectory NodeKind = "directory"
	NodeSymlink   NodeKind = "symlink"
)

// FileInfo holds File-kind node details.
type FileInfo struct {
	Size        int64
	ContentHash string
	MIME        string
}

// DirectoryInfo holds Directory-kind node details.
type DirectoryInfo struct {
	ChildCount int
	TotalSize  int64
	MaxDepth   int
}

// SymlinkInfo holds Symlink-kind node details.
type SymlinkInfo struct {
	Target string
}

// NodeMetadata carries filesystem attributes independent of node kind.
type NodeMetadata struct {
	ModifiedAt  time.Time
	CreatedAt   time.Time
	AccessedAt  time.Time
	Permissions uint32
	PlatformID  uint64
	HasPlatform bool
}

// CacheInfo tracks the freshness of a cached node.
type CacheInfo struct {
	CachedAt     time.Time
	LastVerified time.Time
	CacheVersion uint32
	NeedsRefresh bool
}

// FilesystemNode is the unit stored in the filesystem cache, watch-scoped
// or shared.
type FilesystemNode struct {
	Path            string
	Kind            NodeKind
	File            *FileInfo
	Directory       *DirectoryInfo
	Symlink         *SymlinkInfo
	Metadata        NodeMetadata
	Cache           CacheInfo
	Depth           int
	PathHash        uint64
	ParentHash      uint64
	HasParent       bool
	CanonicalName   string
	LastEventType   Kind
	HasLastEvent    bool
}

// IsStale reports whether the node has exceeded the supplied TTL measured
// against LastVerified. This is the cache's freshness boundary.
func (n FilesystemNode) IsStale(now time.Time, ttl time.Duration) bool {
	return now.Sub(n.Cache.LastVerified) > ttl
}

// Permission is a bit in a Watch's permission mask.
type Permission uint8

const (
	PermRead Permission = 1 << iota
	PermWrite
	PermDelete
	PermManage
)

// Allows reports whether the mask grants p. A zero mask (unset) is treated
// as full access, matching "optional permissions" in the data model.
func (m Permission) Allows(p Permission) bool {
	if m == 0 {
		return true
	}
	return m&p != 0
}

// Watch is a rooted monitoring scope.
type Watch struct {
	ID          uuid.UUID
	RootPath    string
	CreatedAt   time.Time
	LastScan    time.Time
	NodeCount   int64
	IsActive    bool
	ConfigHash  string
	Permissions Permission
}

// ScopedKey namespaces a cache entry by (watch_id, path_hash).
type ScopedKey struct {
	WatchID  uuid.UUID
	PathHash uint64
}

// Bytes returns the stable binary encoding used as a table key: 16-byte
// uuid followed by the 8-byte little-endian path hash.
func (k ScopedKey) Bytes() []byte {
	buf := make([]byte, 24)
	copy(buf[:16], k.WatchID[:])
	binary.LittleEndian.PutUint64(buf[16:], k.PathHash)
	return buf
}

// ScopedKeyFromBytes decodes a key produced by ScopedKey.Bytes.
func ScopedKeyFromBytes(b []byte) (ScopedKey, error) {
	if len(b) != 24 {
		return ScopedKey{}, fmt.Errorf("event: invalid scoped key length %d", len(b))
	}
	var id uuid.UUID
	copy(id[:], b[:16])
	return ScopedKey{WatchID: id, PathHash: binary.LittleEndian.Uint64(b[16:])}, nil
}

// SharedNodeInfo is a cache entry shared across two or more overlapping
// watches.
type SharedNodeInfo struct {
	Node            FilesystemNode
	WatchingScopes  []uuid.UUID
	ReferenceCount  int
	LastSharedUpdate time.Time
}

// UnifiedNodeTag discriminates UnifiedNode's two shapes.
type UnifiedNodeTag int

const (
	UnifiedWatchScoped UnifiedNodeTag = iota
	UnifiedShared
)

// UnifiedNode is a tagged union over a watch-scoped node and a shared
// entry, used when reading a single path across the multi-watch layer.
type UnifiedNode struct {
	Tag         UnifiedNodeTag
	WatchScoped FilesystemNode
	Shared      SharedNodeInfo
}

func init() {
	gob.Register(Event{})
	gob.Register(Metadata{})
	gob.Register(FilesystemNode{})
	gob.Register(Watch{})
	gob.Register(SharedNodeInfo{})
}

// PathHash returns the stable 64-bit hash of the canonical path used
// throughout the module. It must remain stable within a single binary
// build; the cache is documented as unsafe to reuse across builds that
// change the hash function.
func PathHash(path string) uint64 {
	return xxhash.Sum64String(filepath.ToSlash(filepath.Clean(path)))
}

// ParentHash returns the hash of path's parent, and false if path has no
// parent (it is already the filesystem root).
func ParentHash(path string) (uint64, bool) {
	clean := filepath.Clean(path)
	parent := filepath.Dir(clean)
	if parent == clean {
		return 0, false
	}
	return PathHash(parent), true
}

// PathPrefixes returns the hash's-eye list of every prefix (in path-string
// form) along path's components, shallowest first, for indexing into the
// path_prefix table.
func PathPrefixes(path string) []string {
	clean := filepath.ToSlash(filepath.Clean(path))
	parts := strings.Split(strings.TrimPrefix(clean, "/"), "/")
	prefixes := make([]string, 0, len(parts))
	cur := ""
	if strings.HasPrefix(clean, "/") {
		cur = ""
	}
	for _, p := range parts {
		if p == "" {
			continue
		}
		if cur == "" {
			if strings.HasPrefix(clean, "/") {
				cur = "/" + p
			} else {
				cur = p
			}
		} else {
			cur = cur + "/" + p
		}
		prefixes = append(prefixes, cur)
	}
	return prefixes
}

// SizeBucket buckets a byte size down to the nearest power of ten (log10
// floor); sizes of zero or less map to 0. The move detector does not use
// it: it keys pending creates/removes by their exact size.
func SizeBucket(size int64) int64 {
	if size <= 0 {
		return 0
	}
	exp := math.Floor(math.Log10(float64(size)))
	return int64(math.Pow(10, exp))
}

// TimeBucket floors a unix-second timestamp to an hour-aligned bucket.
func TimeBucket(ts time.Time) int64 {
	const hour = 3600
	return (ts.Unix() / hour) * hour
}
