// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package event

import (
	"testing"

	"github.com/google/uuid"
)

func TestStorageKeyEventIDRoundTrip(t *testing.T) {
	k := StorageKey{Kind: KeyEventID, EventID: uuid.New()}
	got, err := StorageKeyFromBytes(k.ToBytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != k.Kind || got.EventID != k.EventID {
		t.Fatalf("got %+v, want %+v", got, k)
	}
}

func TestStorageKeyPathHashRoundTrip(t *testing.T) {
	k := NewPathHashKey("/a/b/c")
	got, err := StorageKeyFromBytes(k.ToBytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != k {
		t.Fatalf("got %+v, want %+v", got, k)
	}
}

func TestStorageKeyTimeBucketRoundTrip(t *testing.T) {
	k := NewTimeBucketKey(1_700_000_000)
	got, err := StorageKeyFromBytes(k.ToBytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != k {
		t.Fatalf("got %+v, want %+v", got, k)
	}
}

func TestStorageKeyPathPrefixRoundTrip(t *testing.T) {
	k := NewPathPrefixKey("/a/b/")
	got, err := StorageKeyFromBytes(k.ToBytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != k {
		t.Fatalf("got %+v, want %+v", got, k)
	}
}

func TestStorageKeyFromBytesRejectsEmpty(t *testing.T) {
	if _, err := StorageKeyFromBytes(nil); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestStorageKeyFromBytesRejectsBadEventIDLength(t *testing.T) {
	buf := []byte{byte(KeyEventID), 1, 2, 3}
	if _, err := StorageKeyFromBytes(buf); err == nil {
		t.Fatal("expected error for short event id payload")
	}
}

func TestStorageKeyOrderingPreservesUint64BigEndian(t *testing.T) {
	small := StorageKey{Kind: KeySizeBucket, Uint64Val: 1}.ToBytes()
	large := StorageKey{Kind: KeySizeBucket, Uint64Val: 2}.ToBytes()
	if !(string(small) < string(large)) {
		t.Fatal("expected big-endian uint64 encoding to preserve lexicographic order")
	}
}
