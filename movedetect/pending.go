// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package movedetect

import (
	"time"

	"github.com/syncthing/fswatchstore/event"
)

// PendingEvent wraps an event plus the identity fields the matcher keys
// on, and the monotonic arrival time used to expire it. It is never
// persisted.
type PendingEvent struct {
	Event       event.Event
	Inode       uint64
	HasInode    bool
	WindowsID   uint64
	HasWindowsID bool
	ContentHash string
	ArrivedAt   time.Time
}

func (p *PendingEvent) expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(p.ArrivedAt) > timeout
}

// directionStore holds the four lookup structures for one direction
// (removes or creates).
type directionStore struct {
	bySize      map[int64][]*PendingEvent
	noSize      []*PendingEvent
	byInode     map[uint64]*PendingEvent
	byWindowsID map[uint64]*PendingEvent
}

func newDirectionStore() *directionStore {
	return &directionStore{
		bySize:      make(map[int64][]*PendingEvent),
		byInode:     make(map[uint64]*PendingEvent),
		byWindowsID: make(map[uint64]*PendingEvent),
	}
}

func (d *directionStore) insert(p *PendingEvent) {
	if p.HasInode {
		d.byInode[p.Inode] = p
	}
	if p.HasWindowsID {
		d.byWindowsID[p.WindowsID] = p
	}
	if p.Event.Size != nil {
		bucket := *p.Event.Size
		d.bySize[bucket] = append(d.bySize[bucket], p)
	} else {
		d.noSize = append(d.noSize, p)
	}
}

func (d *directionStore) count() int {
	n := len(d.noSize)
	for _, bucket := range d.bySize {
		n += len(bucket)
	}
	return n
}

// remove deletes p from every structure it may appear in.
func (d *directionStore) remove(p *PendingEvent) {
	if p.HasInode {
		delete(d.byInode, p.Inode)
	}
	if p.HasWindowsID {
		delete(d.byWindowsID, p.WindowsID)
	}
	if p.Event.Size != nil {
		bucket := *p.Event.Size
		d.bySize[bucket] = removePending(d.bySize[bucket], p)
		if len(d.bySize[bucket]) == 0 {
			delete(d.bySize, bucket)
		}
	} else {
		d.noSize = removePending(d.noSize, p)
	}
}

func removePending(list []*PendingEvent, target *PendingEvent) []*PendingEvent {
	for i, p := range list {
		if p == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// expire drops every pending event older than timeout. It returns nothing;
// count reports what survives.
func (d *directionStore) expire(now time.Time, timeout time.Duration) {
	for size, list := range d.bySize {
		var kept []*PendingEvent
		for _, p := range list {
			if !p.expired(now, timeout) {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			delete(d.bySize, size)
		} else {
			d.bySize[size] = kept
		}
	}
	var kept []*PendingEvent
	for _, p := range d.noSize {
		if !p.expired(now, timeout) {
			kept = append(kept, p)
		}
	}
	d.noSize = kept
	for k, p := range d.byInode {
		if p.expired(now, timeout) {
			delete(d.byInode, k)
		}
	}
	for k, p := range d.byWindowsID {
		if p.expired(now, timeout) {
			delete(d.byWindowsID, k)
		}
	}
}

// pendingStore owns the remove-direction and create-direction lookup
// structures plus the single rename-from slot.
type pendingStore struct {
	removes *directionStore
	creates *directionStore

	renameFrom      *event.Event
	renameFromAt    time.Time
	hasRenameFrom   bool
}

func newPendingStore() *pendingStore {
	return &pendingStore{removes: newDirectionStore(), creates: newDirectionStore()}
}

func (s *pendingStore) expireAll(now time.Time, timeout time.Duration) {
	s.removes.expire(now, timeout)
	s.creates.expire(now, timeout)
	if s.hasRenameFrom && now.Sub(s.renameFromAt) > timeout {
		s.hasRenameFrom = false
		s.renameFrom = nil
	}
}
