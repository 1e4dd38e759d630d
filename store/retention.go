// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import (
	"sort"
	"time"

	"github.com/syncthing/fswatchstore/event"
	"github.com/syncthing/fswatchstore/kv"
)

// RetentionPolicy bounds event-log cleanup by age and/or count.
type RetentionPolicy struct {
	MaxEventAge time.Duration
	MaxEvents   *int
	Background  bool
	Interval    *time.Duration
}

// DefaultRetentionPolicy derives a policy from the store's own
// event-retention configuration.
func (s *Store) DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{MaxEventAge: s.cfg.EventRetention, Background: true}
}

type loggedEvent struct {
	pathHashKey []byte
	eventKey    []byte
	ev          event.Event
}

func (s *Store) scanAllEvents(tx kv.ReadTxn) ([]loggedEvent, error) {
	outerKeys, err := tx.MultimapKeys(kv.TableEventsLog)
	if err != nil {
		return nil, err
	}
	var out []loggedEvent
	for _, ok := range outerKeys {
		values, err := tx.MultimapValues(kv.TableEventsLog, ok)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			if len(v) < eventKeyLen {
				continue
			}
			var ev event.Event
			if err := kv.Decode(v[eventKeyLen:], &ev); err != nil {
				continue // corrupt value, skip during bulk scan
			}
			out = append(out, loggedEvent{pathHashKey: ok, eventKey: append([]byte{}, v[:eventKeyLen]...), ev: ev})
		}
	}
	return out, nil
}

func (s *Store) removeEventLocked(tx kv.WriteTxn, le loggedEvent) error {
	fullValue, err := kv.Encode(le.ev)
	if err != nil {
		return err
	}
	if err := tx.MultimapDelete(kv.TableEventsLog, le.pathHashKey, append(append([]byte{}, le.eventKey...), fullValue...)); err != nil {
		return err
	}
	if err := tx.Delete(kv.TableEvents, le.eventKey); err != nil {
		return err
	}
	bucketKey := event.NewTimeBucketKey(event.TimeBucket(le.ev.Timestamp)).ToBytes()
	if err := tx.MultimapDelete(kv.TableTimeIndex, bucketKey, le.eventKey); err != nil {
		return err
	}
	return nil
}

// Cleanup runs cleanup_old_events_with_policy in one write transaction:
// remove events older than cutoff, then if MaxEvents is set and the
// remaining count still exceeds it, remove the oldest until it doesn't.
// All-or-nothing: a failure mid-transaction rolls back entirely and the
// caller retries on the next cycle.
func (s *Store) Cleanup(policy RetentionPolicy) (int, error) {
	defer s.instr.account("cleanup")()
	s.instr.recordWrite()
	tx, err := s.backend.NewWriteTransaction()
	if err != nil {
		return 0, err
	}
	defer tx.Release()

	all, err := s.scanAllEvents(tx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-policy.MaxEventAge)
	removed := 0
	var remaining []loggedEvent
	for _, le := range all {
		if le.ev.Timestamp.Before(cutoff) {
			if err := s.removeEventLocked(tx, le); err != nil {
				return 0, err
			}
			removed++
			continue
		}
		remaining = append(remaining, le)
	}

	if policy.MaxEvents != nil && len(remaining) > *policy.MaxEvents {
		sort.Slice(remaining, func(i, j int) bool {
			return remaining[i].ev.Timestamp.Before(remaining[j].ev.Timestamp)
		})
		excess := len(remaining) - *policy.MaxEvents
		for i := 0; i < excess; i++ {
			if err := s.removeEventLocked(tx, remaining[i]); err != nil {
				return 0, err
			}
			removed++
		}
	}

	count, err := getUint64(tx, kv.StatsEventCount)
	if err != nil {
		return 0, err
	}
	newCount := count
	if uint64(removed) <= newCount {
		newCount -= uint64(removed)
	} else {
		newCount = 0
	}
	if err := putUint64(tx, kv.StatsEventCount, newCount); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return removed, nil
}

// CleanupOldEvents applies the store's configured default retention
// policy.
func (s *Store) CleanupOldEvents() (int, error) {
	return s.Cleanup(s.DefaultRetentionPolicy())
}

// RepairTimeIndex rebuilds time_index from events_log by iterating every
// event and reinserting its bucket entry. Used after an inconsistency is
// detected between counter and index cardinalities, or on request.
func (s *Store) RepairTimeIndex() error {
	tx, err := s.backend.NewWriteTransaction()
	if err != nil {
		return err
	}
	defer tx.Release()

	buckets, err := tx.MultimapKeys(kv.TableTimeIndex)
	if err != nil {
		return err
	}
	for _, b := range buckets {
		if err := tx.MultimapDeleteAll(kv.TableTimeIndex, b); err != nil {
			return err
		}
	}

	all, err := s.scanAllEvents(tx)
	if err != nil {
		return err
	}
	for _, le := range all {
		bucketKey := event.NewTimeBucketKey(event.TimeBucket(le.ev.Timestamp)).ToBytes()
		if err := tx.MultimapPut(kv.TableTimeIndex, bucketKey, le.eventKey); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Compact delegates to the backing store, documented as advisory in
// environments where the store auto-compacts.
func (s *Store) Compact() error {
	return kv.Compact(s.backend)
}

// HealthCheck performs a cheap read-transaction round trip.
func (s *Store) HealthCheck() bool {
	tx, err := s.backend.NewReadTransaction()
	if err != nil {
		return false
	}
	defer tx.Release()
	_, err = getUint64(tx, kv.StatsEventCount)
	return err == nil
}
