// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import (
	"encoding/binary"
	"sort"

	"github.com/syncthing/fswatchstore/event"
	"github.com/syncthing/fswatchstore/kv"
)

func getUint64(tx kv.ReadTxn, key string) (uint64, error) {
	v, err := tx.Get(kv.TableStats, []byte(key))
	if err != nil {
		if kvErr, ok := err.(*kv.Error); ok && kvErr.Kind == kv.KeyNotFound {
			return 0, nil
		}
		return 0, err
	}
	return binary.LittleEndian.Uint64(v), nil
}

func putUint64(tx kv.WriteTxn, key string, v uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return tx.Put(kv.TableStats, []byte(key), buf)
}

// StoreEvent runs the five-step append transaction: assign the next
// sequence number, insert into events_log under path_hash(path), insert
// the (time_bucket, event_key) pair into time_index, update the sequence
// and count counters, commit.
func (s *Store) StoreEvent(ev event.Event) (event.Event, error) {
	defer s.instr.account("store_event")()
	s.instr.recordWrite()
	tx, err := s.backend.NewWriteTransaction()
	if err != nil {
		return ev, err
	}
	defer tx.Release()

	nextSeq, err := getUint64(tx, kv.StatsEventSequence)
	if err != nil {
		return ev, err
	}
	nextSeq++
	ev.Sequence = nextSeq

	encoded, err := kv.Encode(ev)
	if err != nil {
		return ev, err
	}

	pathKey := event.NewPathHashKey(ev.Path).ToBytes()
	eventKey := ev.ID[:]
	if err := tx.MultimapPut(kv.TableEventsLog, pathKey, append(append([]byte{}, eventKey...), encoded...)); err != nil {
		return ev, err
	}

	bucket := event.TimeBucket(ev.Timestamp)
	bucketKey := event.NewTimeBucketKey(bucket).ToBytes()
	if err := tx.MultimapPut(kv.TableTimeIndex, bucketKey, eventKey); err != nil {
		return ev, err
	}
	// Keep a direct lookup from event id to its events_log entry so
	// find_events_by_time_range can dereference a bare event key without
	// re-hashing the path.
	if err := tx.Put(kv.TableEvents, eventKey, encoded); err != nil {
		return ev, err
	}

	count, err := getUint64(tx, kv.StatsEventCount)
	if err != nil {
		return ev, err
	}
	if err := putUint64(tx, kv.StatsEventSequence, nextSeq); err != nil {
		return ev, err
	}
	if err := putUint64(tx, kv.StatsEventCount, count+1); err != nil {
		return ev, err
	}

	if err := tx.Commit(); err != nil {
		return ev, err
	}
	return ev, nil
}

// eventKeyLen is the length of the uuid prefix StoreEvent puts in front
// of every encoded events_log value so callers can recover the event id
// without decoding first.
const eventKeyLen = 16

// GetEventsForPath iterates the events_log multimap under path_hash(path).
// Ordering is unspecified; callers needing chronological order sort by
// (timestamp, sequence_number) themselves.
func (s *Store) GetEventsForPath(path string) ([]event.Event, error) {
	defer s.instr.account("get_events_for_path")()
	s.instr.recordRead()
	tx, err := s.backend.NewReadTransaction()
	if err != nil {
		return nil, err
	}
	defer tx.Release()

	key := event.NewPathHashKey(path).ToBytes()
	values, err := tx.MultimapValues(kv.TableEventsLog, key)
	if err != nil {
		return nil, err
	}
	out := make([]event.Event, 0, len(values))
	for _, v := range values {
		if len(v) < eventKeyLen {
			continue // corrupt entry, skip during bulk scan
		}
		var ev event.Event
		if err := kv.Decode(v[eventKeyLen:], &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// FindEventsByTimeRange iterates time_index buckets in [start,end]
// inclusive, dereferences each event key into the events table, and
// filters by exact timestamp.
func (s *Store) FindEventsByTimeRange(start, end int64) ([]event.Event, error) {
	defer s.instr.account("find_events_by_time_range")()
	s.instr.recordRead()
	tx, err := s.backend.NewReadTransaction()
	if err != nil {
		return nil, err
	}
	defer tx.Release()

	const hour = 3600
	startBucket := (start / hour) * hour
	endBucket := (end/hour + 1) * hour

	var out []event.Event
	for b := startBucket; b <= endBucket; b += hour {
		key := event.NewTimeBucketKey(b).ToBytes()
		eventKeys, err := tx.MultimapValues(kv.TableTimeIndex, key)
		if err != nil {
			return nil, err
		}
		for _, ek := range eventKeys {
			raw, err := tx.Get(kv.TableEvents, ek)
			if err != nil {
				continue // corrupt or already-removed, skip
			}
			var ev event.Event
			if err := kv.Decode(raw, &ev); err != nil {
				continue
			}
			ts := ev.Timestamp.Unix()
			if ts >= start && ts <= end {
				out = append(out, ev)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// CountEvents returns the authoritative event-count counter; it never
// scans the log.
func (s *Store) CountEvents() (uint64, error) {
	tx, err := s.backend.NewReadTransaction()
	if err != nil {
		return 0, err
	}
	defer tx.Release()
	return getUint64(tx, kv.StatsEventCount)
}

// CurrentSequence returns the authoritative sequence counter.
func (s *Store) CurrentSequence() (uint64, error) {
	tx, err := s.backend.NewReadTransaction()
	if err != nil {
		return 0, err
	}
	defer tx.Release()
	return getUint64(tx, kv.StatsEventSequence)
}
