// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import (
	"testing"
	"time"

	"github.com/syncthing/fswatchstore/event"
)

func TestStatsCountsEventsAndMetadata(t *testing.T) {
	st := openTestStore(t)
	ev := event.NewEvent(event.Create, "/a.txt", time.Now(), time.Hour)
	if _, err := st.StoreEvent(ev); err != nil {
		t.Fatalf("StoreEvent: %v", err)
	}
	if err := st.StoreMetadata(event.Metadata{Path: "/a.txt"}); err != nil {
		t.Fatalf("StoreMetadata: %v", err)
	}

	stats, err := st.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalEvents != 1 {
		t.Fatalf("got TotalEvents=%d, want 1", stats.TotalEvents)
	}
	if stats.TotalMetadata != 1 {
		t.Fatalf("got TotalMetadata=%d, want 1", stats.TotalMetadata)
	}
}

func TestStatsReflectsReadAndWriteOps(t *testing.T) {
	st := openTestStore(t)
	ev := event.NewEvent(event.Create, "/a.txt", time.Now(), time.Hour)
	if _, err := st.StoreEvent(ev); err != nil {
		t.Fatalf("StoreEvent: %v", err)
	}
	if _, err := st.GetEventsForPath("/a.txt"); err != nil {
		t.Fatalf("GetEventsForPath: %v", err)
	}

	stats, err := st.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.WriteOps == 0 {
		t.Fatal("expected non-zero write ops")
	}
	if stats.ReadOps == 0 {
		t.Fatal("expected non-zero read ops")
	}
}
