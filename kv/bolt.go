// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package kv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Open opens (creating if absent) a bbolt-backed store at path and
// bootstraps the fixed table set in a single write transaction, per the
// bootstrap contract: open-or-create every table, record (or check) the
// schema version, commit.
func Open(path string) (Backend, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, NewError(ConnectionFailed, "open", err)
	}
	b := &boltBackend{db: db, path: path}
	if err := b.bootstrap(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

type boltBackend struct {
	db   *bolt.DB
	path string
}

func (b *boltBackend) bootstrap() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		for _, t := range Tables {
			if _, err := tx.CreateBucketIfNotExists([]byte(t)); err != nil {
				return NewError(InitializationFailed, "bootstrap", err)
			}
		}
		stats := tx.Bucket([]byte(TableStats))
		existing := stats.Get([]byte(StatsSchemaVersion))
		if existing == nil {
			buf := make([]byte, 8)
			binary.LittleEndian.PutUint64(buf, SchemaVersion)
			if err := stats.Put([]byte(StatsSchemaVersion), buf); err != nil {
				return NewError(InitializationFailed, "bootstrap", err)
			}
			return nil
		}
		if binary.LittleEndian.Uint64(existing) != SchemaVersion {
			return ErrSchemaMismatch
		}
		return nil
	})
}

func (b *boltBackend) Location() string { return b.path }

func (b *boltBackend) Close() error {
	if err := b.db.Close(); err != nil {
		return NewError(ConnectionFailed, "close", err)
	}
	return nil
}

func (b *boltBackend) NewReadTransaction() (ReadTxn, error) {
	tx, err := b.db.Begin(false)
	if err != nil {
		return nil, NewError(TransactionError, "begin_read", err)
	}
	return &boltTxn{tx: tx}, nil
}

func (b *boltBackend) NewWriteTransaction() (WriteTxn, error) {
	tx, err := b.db.Begin(true)
	if err != nil {
		return nil, NewError(TransactionError, "begin_write", err)
	}
	return &boltTxn{tx: tx}, nil
}

// boltTxn implements both ReadTxn and WriteTxn; mutation methods on a
// read-only transaction fail with ReadOnlyError via bbolt's own
// ErrTxNotWritable, rather than being rejected earlier by a type split.
type boltTxn struct {
	tx *bolt.Tx
}

func classifyTxErr(op string, err error) error {
	switch {
	case errors.Is(err, bolt.ErrTxNotWritable), errors.Is(err, bolt.ErrDatabaseNotOpen):
		return NewError(ReadOnlyError, op, err)
	case errors.Is(err, bolt.ErrTxClosed):
		return NewError(TransactionError, op, err)
	default:
		return NewError(TransactionError, op, err)
	}
}

func (t *boltTxn) bucket(op, table string) (*bolt.Bucket, error) {
	b := t.tx.Bucket([]byte(table))
	if b == nil {
		return nil, NewError(CorruptionError, op, fmt.Errorf("missing table %q", table))
	}
	return b, nil
}

func (t *boltTxn) Get(table string, key []byte) ([]byte, error) {
	b, err := t.bucket("get", table)
	if err != nil {
		return nil, err
	}
	v := b.Get(key)
	if v == nil {
		return nil, NewError(KeyNotFound, "get", fmt.Errorf("key not found in %s", table))
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (t *boltTxn) Put(table string, key, value []byte) error {
	b, err := t.bucket("put", table)
	if err != nil {
		return err
	}
	if err := b.Put(key, value); err != nil {
		return classifyTxErr("put", err)
	}
	return nil
}

func (t *boltTxn) Delete(table string, key []byte) error {
	b, err := t.bucket("delete", table)
	if err != nil {
		return err
	}
	if err := b.Delete(key); err != nil {
		return classifyTxErr("delete", err)
	}
	return nil
}

func (t *boltTxn) MultimapPut(table string, key, value []byte) error {
	outer, err := t.bucket("multimap_put", table)
	if err != nil {
		return err
	}
	inner, err := outer.CreateBucketIfNotExists(key)
	if err != nil {
		return classifyTxErr("multimap_put", err)
	}
	if err := inner.Put(value, []byte{}); err != nil {
		return classifyTxErr("multimap_put", err)
	}
	return nil
}

func (t *boltTxn) MultimapDelete(table string, key, value []byte) error {
	outer, err := t.bucket("multimap_delete", table)
	if err != nil {
		return err
	}
	inner := outer.Bucket(key)
	if inner == nil {
		return nil
	}
	if err := inner.Delete(value); err != nil {
		return classifyTxErr("multimap_delete", err)
	}
	return nil
}

func (t *boltTxn) MultimapDeleteAll(table string, key []byte) error {
	outer, err := t.bucket("multimap_delete_all", table)
	if err != nil {
		return err
	}
	if outer.Bucket(key) == nil {
		return nil
	}
	if err := outer.DeleteBucket(key); err != nil {
		return classifyTxErr("multimap_delete_all", err)
	}
	return nil
}

func (t *boltTxn) MultimapValues(table string, key []byte) ([][]byte, error) {
	outer, err := t.bucket("multimap_values", table)
	if err != nil {
		return nil, err
	}
	inner := outer.Bucket(key)
	if inner == nil {
		return nil, nil
	}
	var out [][]byte
	c := inner.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		v := make([]byte, len(k))
		copy(v, k)
		out = append(out, v)
	}
	return out, nil
}

func (t *boltTxn) MultimapKeys(table string) ([][]byte, error) {
	outer, err := t.bucket("multimap_keys", table)
	if err != nil {
		return nil, err
	}
	var out [][]byte
	c := outer.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if v != nil {
			continue // not a nested bucket
		}
		kp := make([]byte, len(k))
		copy(kp, k)
		out = append(out, kp)
	}
	return out, nil
}

type iterMode int

const (
	iterPrefix iterMode = iota
	iterRange
)

type boltIterator struct {
	c       *bolt.Cursor
	mode    iterMode
	prefix  []byte
	first   []byte
	last    []byte
	started bool
	done    bool
	k, v    []byte
}

func (t *boltTxn) NewPrefixIterator(table string, prefix []byte) (Iterator, error) {
	b, err := t.bucket("new_prefix_iterator", table)
	if err != nil {
		return nil, err
	}
	return &boltIterator{c: b.Cursor(), mode: iterPrefix, prefix: prefix}, nil
}

func (t *boltTxn) NewRangeIterator(table string, first, last []byte) (Iterator, error) {
	b, err := t.bucket("new_range_iterator", table)
	if err != nil {
		return nil, err
	}
	return &boltIterator{c: b.Cursor(), mode: iterRange, first: first, last: last}, nil
}

func (it *boltIterator) Next() bool {
	if it.done {
		return false
	}
	var k, v []byte
	if !it.started {
		it.started = true
		switch it.mode {
		case iterPrefix:
			k, v = it.c.Seek(it.prefix)
		case iterRange:
			k, v = it.c.Seek(it.first)
		}
	} else {
		k, v = it.c.Next()
	}
	if k == nil {
		it.done = true
		return false
	}
	switch it.mode {
	case iterPrefix:
		if !bytes.HasPrefix(k, it.prefix) {
			it.done = true
			return false
		}
	case iterRange:
		if it.last != nil && bytes.Compare(k, it.last) > 0 {
			it.done = true
			return false
		}
	}
	it.k = append([]byte(nil), k...)
	if v != nil {
		it.v = append([]byte(nil), v...)
	} else {
		it.v = nil
	}
	return true
}

func (it *boltIterator) Key() []byte   { return it.k }
func (it *boltIterator) Value() []byte { return it.v }
func (it *boltIterator) Error() error  { return nil }
func (it *boltIterator) Release()      { it.done = true }

func (t *boltTxn) Release() {
	if t.tx.Writable() {
		_ = t.tx.Rollback()
		return
	}
	_ = t.tx.Rollback()
}

func (t *boltTxn) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return classifyTxErr("commit", err)
	}
	return nil
}

func (t *boltTxn) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		return classifyTxErr("rollback", err)
	}
	return nil
}

// Compact rewrites the database file via bbolt's own copy-compact helper
// and atomically swaps it in; bbolt otherwise never reclaims freed pages
// back to the filesystem on its own.
func Compact(b Backend) error {
	bb, ok := b.(*boltBackend)
	if !ok {
		return NewError(InvalidConfiguration, "compact", fmt.Errorf("backend does not support compaction"))
	}
	tmpPath := bb.path + ".compact.tmp"
	dst, err := bolt.Open(tmpPath, 0o600, nil)
	if err != nil {
		return NewError(TransactionError, "compact", err)
	}
	if err := bolt.Compact(dst, bb.db, 0); err != nil {
		_ = dst.Close()
		return NewError(TransactionError, "compact", err)
	}
	if err := dst.Close(); err != nil {
		return NewError(TransactionError, "compact", err)
	}
	path := bb.path
	if err := bb.db.Close(); err != nil {
		return NewError(TransactionError, "compact", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return NewError(TransactionError, "compact", err)
	}
	reopened, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return NewError(ConnectionFailed, "compact", err)
	}
	bb.db = reopened
	return nil
}
