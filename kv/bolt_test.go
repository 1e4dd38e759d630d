// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package kv

import (
	"path/filepath"
	"testing"
)

func openTestBackend(t *testing.T) Backend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	b, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBootstrapCreatesAllTables(t *testing.T) {
	b := openTestBackend(t)
	tx, err := b.NewReadTransaction()
	if err != nil {
		t.Fatalf("NewReadTransaction: %v", err)
	}
	defer tx.Release()

	for _, table := range Tables {
		if _, err := tx.MultimapKeys(table); err != nil {
			t.Errorf("table %s missing or unreadable: %v", table, err)
		}
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	b := openTestBackend(t)

	wtx, err := b.NewWriteTransaction()
	if err != nil {
		t.Fatalf("NewWriteTransaction: %v", err)
	}
	if err := wtx.Put(TableMetadata, []byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := wtx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rtx, err := b.NewReadTransaction()
	if err != nil {
		t.Fatalf("NewReadTransaction: %v", err)
	}
	defer rtx.Release()
	got, err := rtx.Get(TableMetadata, []byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("got %q, want %q", got, "v")
	}
}

func TestGetMissingKeyIsClassifiedNotFound(t *testing.T) {
	b := openTestBackend(t)
	tx, err := b.NewReadTransaction()
	if err != nil {
		t.Fatalf("NewReadTransaction: %v", err)
	}
	defer tx.Release()

	_, err = tx.Get(TableMetadata, []byte("missing"))
	if err == nil {
		t.Fatal("expected error for missing key")
	}
	kerr, ok := err.(*Error)
	if !ok || kerr.Kind != KeyNotFound {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}
}

func TestMultimapPutValuesAndKeys(t *testing.T) {
	b := openTestBackend(t)

	wtx, err := b.NewWriteTransaction()
	if err != nil {
		t.Fatalf("NewWriteTransaction: %v", err)
	}
	if err := wtx.MultimapPut(TableEventsLog, []byte("path1"), []byte("ev1")); err != nil {
		t.Fatalf("MultimapPut: %v", err)
	}
	if err := wtx.MultimapPut(TableEventsLog, []byte("path1"), []byte("ev2")); err != nil {
		t.Fatalf("MultimapPut: %v", err)
	}
	if err := wtx.MultimapPut(TableEventsLog, []byte("path2"), []byte("ev3")); err != nil {
		t.Fatalf("MultimapPut: %v", err)
	}
	if err := wtx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rtx, err := b.NewReadTransaction()
	if err != nil {
		t.Fatalf("NewReadTransaction: %v", err)
	}
	defer rtx.Release()

	values, err := rtx.MultimapValues(TableEventsLog, []byte("path1"))
	if err != nil {
		t.Fatalf("MultimapValues: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("expected 2 values, got %d", len(values))
	}

	keys, err := rtx.MultimapKeys(TableEventsLog)
	if err != nil {
		t.Fatalf("MultimapKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 outer keys, got %d", len(keys))
	}
}

func TestMultimapDeleteAll(t *testing.T) {
	b := openTestBackend(t)

	wtx, _ := b.NewWriteTransaction()
	wtx.MultimapPut(TableEventsLog, []byte("path1"), []byte("ev1"))
	wtx.Commit()

	wtx2, _ := b.NewWriteTransaction()
	if err := wtx2.MultimapDeleteAll(TableEventsLog, []byte("path1")); err != nil {
		t.Fatalf("MultimapDeleteAll: %v", err)
	}
	wtx2.Commit()

	rtx, _ := b.NewReadTransaction()
	defer rtx.Release()
	values, err := rtx.MultimapValues(TableEventsLog, []byte("path1"))
	if err != nil {
		t.Fatalf("MultimapValues: %v", err)
	}
	if len(values) != 0 {
		t.Fatalf("expected no values after delete-all, got %d", len(values))
	}
}

func TestPrefixIterator(t *testing.T) {
	b := openTestBackend(t)

	wtx, _ := b.NewWriteTransaction()
	wtx.Put(TableMetadata, []byte("a/1"), []byte("1"))
	wtx.Put(TableMetadata, []byte("a/2"), []byte("2"))
	wtx.Put(TableMetadata, []byte("b/1"), []byte("3"))
	wtx.Commit()

	rtx, _ := b.NewReadTransaction()
	defer rtx.Release()
	it, err := rtx.NewPrefixIterator(TableMetadata, []byte("a/"))
	if err != nil {
		t.Fatalf("NewPrefixIterator: %v", err)
	}
	defer it.Release()

	count := 0
	for it.Next() {
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 matches, got %d", count)
	}
}

func TestCompactPreservesData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compact.db")
	b, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()

	wtx, _ := b.NewWriteTransaction()
	wtx.Put(TableMetadata, []byte("k"), []byte("v"))
	wtx.Commit()

	if err := Compact(b); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	rtx, _ := b.NewReadTransaction()
	defer rtx.Release()
	got, err := rtx.Get(TableMetadata, []byte("k"))
	if err != nil {
		t.Fatalf("Get after compact: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("got %q, want %q", got, "v")
	}
}
