// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package watcher

import (
	"github.com/fsnotify/fsnotify"
)

// RawOp mirrors the subset of fsnotify.Op this package acts on, kept as
// its own type so tests can construct RawEvents without importing
// fsnotify.
type RawOp uint32

const (
	RawCreate RawOp = 1 << iota
	RawWrite
	RawRemove
	RawRename
	RawChmod
)

// RawEvent is one notification from a RawSource.
type RawEvent struct {
	Path string
	Op   RawOp
}

// RawSource is the small boundary watcher.Glue depends on, letting tests
// substitute a fake source instead of touching a real filesystem.
type RawSource interface {
	Events() <-chan RawEvent
	Errors() <-chan error
	Add(path string) error
	Close() error
}

// fsnotifySource adapts github.com/fsnotify/fsnotify to RawSource.
type fsnotifySource struct {
	w       *fsnotify.Watcher
	events  chan RawEvent
	errors  chan error
	closeCh chan struct{}
}

// NewFsnotifySource starts translating fsnotify events into RawEvents.
func NewFsnotifySource() (RawSource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	s := &fsnotifySource{
		w:       w,
		events:  make(chan RawEvent, 100),
		errors:  make(chan error, 10),
		closeCh: make(chan struct{}),
	}
	go s.pump()
	return s, nil
}

func (s *fsnotifySource) pump() {
	for {
		select {
		case ev, ok := <-s.w.Events:
			if !ok {
				close(s.events)
				return
			}
			s.events <- RawEvent{Path: ev.Name, Op: translateOp(ev.Op)}
		case err, ok := <-s.w.Errors:
			if !ok {
				continue
			}
			select {
			case s.errors <- err:
			default:
			}
		case <-s.closeCh:
			return
		}
	}
}

func translateOp(op fsnotify.Op) RawOp {
	var out RawOp
	if op&fsnotify.Create != 0 {
		out |= RawCreate
	}
	if op&fsnotify.Write != 0 {
		out |= RawWrite
	}
	if op&fsnotify.Remove != 0 {
		out |= RawRemove
	}
	if op&fsnotify.Rename != 0 {
		out |= RawRename
	}
	if op&fsnotify.Chmod != 0 {
		out |= RawChmod
	}
	return out
}

func (s *fsnotifySource) Events() <-chan RawEvent { return s.events }
func (s *fsnotifySource) Errors() <-chan error    { return s.errors }
func (s *fsnotifySource) Add(path string) error   { return s.w.Add(path) }
func (s *fsnotifySource) Close() error {
	close(s.closeCh)
	return s.w.Close()
}
