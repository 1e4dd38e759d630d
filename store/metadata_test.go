// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import (
	"testing"

	"github.com/syncthing/fswatchstore/event"
)

func TestStoreAndGetMetadataRoundTrip(t *testing.T) {
	st := openTestStore(t)
	meta := event.Metadata{Path: "/a/b.txt", Size: 42}
	if err := st.StoreMetadata(meta); err != nil {
		t.Fatalf("StoreMetadata: %v", err)
	}
	got, ok, err := st.GetMetadata("/a/b.txt")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Size != 42 {
		t.Fatalf("got size %d, want 42", got.Size)
	}
}

func TestGetMetadataMissReturnsFalse(t *testing.T) {
	st := openTestStore(t)
	_, ok, err := st.GetMetadata("/missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected miss")
	}
}

func TestStoreMetadataOverwriteDoesNotDoubleCount(t *testing.T) {
	st := openTestStore(t)
	meta := event.Metadata{Path: "/a/b.txt", Size: 1}
	if err := st.StoreMetadata(meta); err != nil {
		t.Fatalf("StoreMetadata: %v", err)
	}
	meta.Size = 2
	if err := st.StoreMetadata(meta); err != nil {
		t.Fatalf("StoreMetadata: %v", err)
	}
	count, err := st.CountMetadata()
	if err != nil {
		t.Fatalf("CountMetadata: %v", err)
	}
	if count != 1 {
		t.Fatalf("got %d, want 1", count)
	}
}

func TestCountMetadataTracksMultipleEntries(t *testing.T) {
	st := openTestStore(t)
	for _, p := range []string{"/a", "/b", "/c"} {
		if err := st.StoreMetadata(event.Metadata{Path: p}); err != nil {
			t.Fatalf("StoreMetadata(%s): %v", p, err)
		}
	}
	count, err := st.CountMetadata()
	if err != nil {
		t.Fatalf("CountMetadata: %v", err)
	}
	if count != 3 {
		t.Fatalf("got %d, want 3", count)
	}
}
