// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package fscache

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/syncthing/fswatchstore/event"
)

func TestDetectOverlapIdentical(t *testing.T) {
	if ov := DetectOverlap("/a/b", "/a/b"); ov.Kind != OverlapIdentical {
		t.Fatalf("expected identical, got %v", ov.Kind)
	}
}

func TestDetectOverlapAncestor(t *testing.T) {
	ov := DetectOverlap("/a", "/a/b/c")
	if ov.Kind != OverlapAncestor || ov.Ancestor != "/a" || ov.Descendant != "/a/b/c" {
		t.Fatalf("unexpected overlap: %+v", ov)
	}
}

func TestDetectOverlapPartial(t *testing.T) {
	ov := DetectOverlap("/a/b/x", "/a/b/y")
	if ov.Kind != OverlapPartial || ov.CommonPrefix != "/a/b" {
		t.Fatalf("unexpected overlap: %+v", ov)
	}
}

func TestDetectOverlapNone(t *testing.T) {
	if ov := DetectOverlap("/a", "/b"); ov.Kind != OverlapNone {
		t.Fatalf("expected none, got %v", ov.Kind)
	}
}

func TestRegisterAndGetWatch(t *testing.T) {
	c := openTestCache(t)
	w := event.Watch{ID: uuid.New(), RootPath: "/a", CreatedAt: time.Now()}
	if err := c.RegisterWatch(w); err != nil {
		t.Fatalf("RegisterWatch: %v", err)
	}
	got, ok, err := c.GetWatch(w.ID)
	if err != nil {
		t.Fatalf("GetWatch: %v", err)
	}
	if !ok || got.RootPath != "/a" {
		t.Fatalf("unexpected watch: %+v ok=%v", got, ok)
	}
}

func TestGetWatchMissReturnsFalse(t *testing.T) {
	c := openTestCache(t)
	_, ok, err := c.GetWatch(uuid.New())
	if err != nil {
		t.Fatalf("GetWatch: %v", err)
	}
	if ok {
		t.Fatal("expected miss for unregistered watch")
	}
}

func TestMergeNodesToSharedRemovesScopedDuplicates(t *testing.T) {
	c := openTestCache(t)
	w1, w2 := uuid.New(), uuid.New()

	node := event.FilesystemNode{Path: "/shared/f.txt", Kind: event.NodeFile}
	if err := c.StoreFilesystemNode(w1, node, event.Create); err != nil {
		t.Fatal(err)
	}
	if err := c.StoreFilesystemNode(w2, node, event.Create); err != nil {
		t.Fatal(err)
	}

	if err := c.MergeNodesToShared("/shared/f.txt", []uuid.UUID{w1, w2}); err != nil {
		t.Fatalf("MergeNodesToShared: %v", err)
	}

	if _, ok, _ := c.GetFilesystemNode(w1, "/shared/f.txt"); ok {
		t.Fatal("expected scoped node for w1 to be removed after merge")
	}
	if _, ok, _ := c.GetFilesystemNode(w2, "/shared/f.txt"); ok {
		t.Fatal("expected scoped node for w2 to be removed after merge")
	}
}

func TestRemoveWatchDropsItsNodes(t *testing.T) {
	c := openTestCache(t)
	w := event.Watch{ID: uuid.New(), RootPath: "/a", CreatedAt: time.Now()}
	if err := c.RegisterWatch(w); err != nil {
		t.Fatal(err)
	}
	if err := c.StoreFilesystemNode(w.ID, event.FilesystemNode{Path: "/a/f.txt", Kind: event.NodeFile}, event.Create); err != nil {
		t.Fatal(err)
	}

	if err := c.RemoveWatch(w.ID); err != nil {
		t.Fatalf("RemoveWatch: %v", err)
	}

	if _, ok, _ := c.GetWatch(w.ID); ok {
		t.Fatal("expected watch to be gone from registry")
	}
	if _, ok, _ := c.GetFilesystemNode(w.ID, "/a/f.txt"); ok {
		t.Fatal("expected node to be removed along with the watch")
	}
}
