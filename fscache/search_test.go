// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package fscache

import (
	"testing"

	"github.com/google/uuid"

	"github.com/syncthing/fswatchstore/event"
)

func TestSearchNodesMatchesGlob(t *testing.T) {
	c := openTestCache(t)
	watchID := uuid.New()

	for _, p := range []string{"/a/report.pdf", "/a/notes.txt", "/b/report.csv"} {
		if err := c.StoreFilesystemNode(watchID, event.FilesystemNode{Path: p, Kind: event.NodeFile}, event.Create); err != nil {
			t.Fatal(err)
		}
	}

	found, err := c.SearchNodes("report.*")
	if err != nil {
		t.Fatalf("SearchNodes: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(found), found)
	}
}

func TestSearchNodesRejectsInvalidPattern(t *testing.T) {
	c := openTestCache(t)
	if _, err := c.SearchNodes("["); err == nil {
		t.Fatal("expected error for invalid glob pattern")
	}
}
