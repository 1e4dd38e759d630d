// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package kv

// Table names the fixed set of logical tables bootstrapped on first open.
// Single-value tables are flat buckets; multimap tables are modeled as a
// bucket-of-buckets, the outer key selecting a nested bucket whose keys are
// the multimap's values.
const (
	TableEvents         = "events"          // single-value, event id -> record
	TableEventsLog      = "events_log"       // multimap, path_hash -> event record
	TableMetadata       = "metadata"         // single-value, path -> Metadata
	TableIndexes        = "indexes"          // multimap, general-purpose
	TableFSCache        = "fs_cache"         // single-value, scoped key -> node
	TableHierarchy      = "hierarchy"        // multimap, parent scoped key -> child scoped key
	TablePathPrefix     = "path_prefix"      // multimap, prefix bytes -> scoped key
	TableDepthIndex     = "depth_index"      // multimap
	TableMultiFSCache   = "multi_fs_cache"   // single-value, scoped key -> node
	TableMultiHierarchy = "multi_hierarchy"  // multimap, parent scoped key -> child scoped key
	TableSharedNodes    = "shared_nodes"     // single-value, path_hash LE bytes -> entry
	TableWatchRegistry  = "watch_registry"   // single-value, watch id bytes -> metadata
	TablePathToWatches  = "path_to_watches"  // multimap, path_hash -> watch id
	TableStats          = "stats"            // single-value
	TableMaintenanceLog = "maintenance_log"  // single-value
	TableTimeIndex      = "time_index"       // multimap, TimeBucket StorageKey (kind byte + BE i64, not a bare LE i64) -> event id
)

// Tables lists every bootstrapped bucket in open order.
var Tables = []string{
	TableEvents,
	TableEventsLog,
	TableMetadata,
	TableIndexes,
	TableFSCache,
	TableHierarchy,
	TablePathPrefix,
	TableDepthIndex,
	TableMultiFSCache,
	TableMultiHierarchy,
	TableSharedNodes,
	TableWatchRegistry,
	TablePathToWatches,
	TableStats,
	TableMaintenanceLog,
	TableTimeIndex,
}

// Stats keys, each an 8-byte little-endian unsigned integer value.
const (
	StatsEventCount    = "event_count"
	StatsMetadataCount = "metadata_count"
	StatsEventSequence = "event_sequence"
	StatsSchemaVersion = "schema_version"
)

// SchemaVersion is the schema version this binary writes and expects.
const SchemaVersion uint64 = 1
