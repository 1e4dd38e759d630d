// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package event

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// StorageKeyKind tags the variant held by a StorageKey.
type StorageKeyKind byte

const (
	KeyEventID StorageKeyKind = iota
	KeyPathHash
	KeySizeBucket
	KeyInode
	KeyWindowsID
	KeyContentHash
	KeyTimeBucket
	KeyPathPrefix
)

// StorageKey is a tagged union over the byte-string keys used to address
// rows in the kv tables. Each variant round-trips through ToBytes /
// StorageKeyFromBytes.
type StorageKey struct {
	Kind        StorageKeyKind
	EventID     uuid.UUID
	Uint64Val   uint64
	Int64Val    int64
	StringVal   string
}

// ToBytes serializes the key to the stable encoding: a one-byte kind tag
// followed by a kind-specific payload.
func (k StorageKey) ToBytes() []byte {
	switch k.Kind {
	case KeyEventID:
		buf := make([]byte, 17)
		buf[0] = byte(k.Kind)
		copy(buf[1:], k.EventID[:])
		return buf
	case KeyPathHash, KeySizeBucket, KeyInode, KeyWindowsID:
		buf := make([]byte, 9)
		buf[0] = byte(k.Kind)
		binary.BigEndian.PutUint64(buf[1:], k.Uint64Val)
		return buf
	case KeyTimeBucket:
		buf := make([]byte, 9)
		buf[0] = byte(k.Kind)
		binary.BigEndian.PutUint64(buf[1:], uint64(k.Int64Val))
		return buf
	case KeyContentHash, KeyPathPrefix:
		buf := make([]byte, 1+len(k.StringVal))
		buf[0] = byte(k.Kind)
		copy(buf[1:], k.StringVal)
		return buf
	default:
		return []byte{byte(k.Kind)}
	}
}

// StorageKeyFromBytes decodes a key produced by ToBytes.
func StorageKeyFromBytes(b []byte) (StorageKey, error) {
	if len(b) == 0 {
		return StorageKey{}, fmt.Errorf("event: empty storage key")
	}
	kind := StorageKeyKind(b[0])
	rest := b[1:]
	switch kind {
	case KeyEventID:
		if len(rest) != 16 {
			return StorageKey{}, fmt.Errorf("event: bad event id key length %d", len(rest))
		}
		var id uuid.UUID
		copy(id[:], rest)
		return StorageKey{Kind: kind, EventID: id}, nil
	case KeyPathHash, KeySizeBucket, KeyInode, KeyWindowsID:
		if len(rest) != 8 {
			return StorageKey{}, fmt.Errorf("event: bad uint64 key length %d", len(rest))
		}
		return StorageKey{Kind: kind, Uint64Val: binary.BigEndian.Uint64(rest)}, nil
	case KeyTimeBucket:
		if len(rest) != 8 {
			return StorageKey{}, fmt.Errorf("event: bad time bucket key length %d", len(rest))
		}
		return StorageKey{Kind: kind, Int64Val: int64(binary.BigEndian.Uint64(rest))}, nil
	case KeyContentHash, KeyPathPrefix:
		return StorageKey{Kind: kind, StringVal: string(rest)}, nil
	default:
		return StorageKey{}, fmt.Errorf("event: unknown storage key kind %d", kind)
	}
}

// NewPathHashKey builds the PathHash variant for path.
func NewPathHashKey(path string) StorageKey {
	return StorageKey{Kind: KeyPathHash, Uint64Val: PathHash(path)}
}

// NewTimeBucketKey builds the TimeBucket variant for an hour-aligned
// unix-second bucket.
func NewTimeBucketKey(bucket int64) StorageKey {
	return StorageKey{Kind: KeyTimeBucket, Int64Val: bucket}
}

// NewPathPrefixKey builds the PathPrefix variant.
func NewPathPrefixKey(prefix string) StorageKey {
	return StorageKey{Kind: KeyPathPrefix, StringVal: prefix}
}
