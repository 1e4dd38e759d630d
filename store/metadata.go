// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import (
	"github.com/syncthing/fswatchstore/event"
	"github.com/syncthing/fswatchstore/kv"
)

// StoreMetadata persists the cached stat result for path, overwriting any
// prior entry, and keeps the metadata_count stats counter accurate.
func (s *Store) StoreMetadata(meta event.Metadata) error {
	defer s.instr.account("store_metadata")()
	s.instr.recordWrite()

	tx, err := s.backend.NewWriteTransaction()
	if err != nil {
		return err
	}
	defer tx.Release()

	key := []byte(meta.Path)
	_, existedErr := tx.Get(kv.TableMetadata, key)
	existed := existedErr == nil

	encoded, err := kv.Encode(meta)
	if err != nil {
		return err
	}
	if err := tx.Put(kv.TableMetadata, key, encoded); err != nil {
		return err
	}

	if !existed {
		count, err := getUint64(tx, kv.StatsMetadataCount)
		if err != nil {
			return err
		}
		if err := putUint64(tx, kv.StatsMetadataCount, count+1); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetMetadata returns the cached metadata for path and true, or false on
// miss (surfaced as Option::None at this boundary, per the error
// taxonomy's KeyNotFound handling).
func (s *Store) GetMetadata(path string) (event.Metadata, bool, error) {
	defer s.instr.account("get_metadata")()
	s.instr.recordRead()

	tx, err := s.backend.NewReadTransaction()
	if err != nil {
		return event.Metadata{}, false, err
	}
	defer tx.Release()

	raw, err := tx.Get(kv.TableMetadata, []byte(path))
	if err != nil {
		if kvErr, ok := err.(*kv.Error); ok && kvErr.Kind == kv.KeyNotFound {
			s.instr.recordMiss()
			return event.Metadata{}, false, nil
		}
		return event.Metadata{}, false, err
	}
	s.instr.recordHit()
	var meta event.Metadata
	if err := kv.Decode(raw, &meta); err != nil {
		return event.Metadata{}, false, err
	}
	return meta, true, nil
}

// CountMetadata returns the authoritative metadata_count counter.
func (s *Store) CountMetadata() (uint64, error) {
	tx, err := s.backend.NewReadTransaction()
	if err != nil {
		return 0, err
	}
	defer tx.Release()
	return getUint64(tx, kv.StatsMetadataCount)
}
