// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package kv provides transactional access to a fixed set of logical
// tables keyed by opaque byte strings, modeled on the backend.Backend
// interface the db package above it is built against: callers talk to
// transactions and iterators, never to a specific storage engine.
package kv

// Backend is the storage engine contract. The only production
// implementation is boltBackend, backed by go.etcd.io/bbolt; tests may
// substitute an in-memory fake that satisfies the same interface.
type Backend interface {
	// NewReadTransaction opens a snapshot that observes a consistent view
	// regardless of concurrent writers. Reader concurrency is unbounded.
	NewReadTransaction() (ReadTxn, error)

	// NewWriteTransaction opens the single allowed concurrent writer.
	// Writer concurrency is serialized by the backend.
	NewWriteTransaction() (WriteTxn, error)

	// Location returns the backend's storage path, for diagnostics and
	// for compact() to operate on.
	Location() string

	Close() error
}

// ReadTxn is a read-only view over the fixed table set.
type ReadTxn interface {
	// Get reads a single-value table entry. Returns a *Error with Kind
	// KeyNotFound on miss.
	Get(table string, key []byte) ([]byte, error)

	// MultimapValues returns every value stored under key in a multimap
	// table, in the backend's natural (byte-sorted) order.
	MultimapValues(table string, key []byte) ([][]byte, error)

	// MultimapKeys returns every outer key currently populated in a
	// multimap table, for full-table scans (retention cleanup, time-index
	// repair, cache sweeps).
	MultimapKeys(table string) ([][]byte, error)

	// NewPrefixIterator iterates a single-value table's keys matching a
	// byte prefix.
	NewPrefixIterator(table string, prefix []byte) (Iterator, error)

	// NewRangeIterator iterates a single-value table's keys in [first,last].
	NewRangeIterator(table string, first, last []byte) (Iterator, error)

	// Release ends the transaction. Safe to call multiple times.
	Release()
}

// WriteTxn extends ReadTxn with mutation and commit/rollback. All writes
// performed against tables opened in one WriteTxn commit atomically.
type WriteTxn interface {
	ReadTxn

	Put(table string, key, value []byte) error
	Delete(table string, key []byte) error

	MultimapPut(table string, key, value []byte) error
	MultimapDelete(table string, key, value []byte) error
	MultimapDeleteAll(table string, key []byte) error

	Commit() error
	Rollback() error
}

// Iterator walks a single-value table's key space in byte-sorted order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Release()
}
