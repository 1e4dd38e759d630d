// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package movedetect

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/syncthing/fswatchstore/event"
)

// Detector correlates raw remove/create/rename-from/rename-to events
// into move events. It holds no persistent state: everything lives in
// the bounded in-memory pending stores and is dropped once matched or
// expired.
type Detector struct {
	cfg     Config
	mu      sync.Mutex
	pending *pendingStore
	meta    *metadataCache
}

// New builds a Detector from cfg. cfg should already have passed
// Validate.
func New(cfg Config) *Detector {
	return &Detector{
		cfg:     cfg,
		pending: newPendingStore(),
		meta:    newMetadataCache(cfg.MaxPendingEvents, cfg.Timeout*2),
	}
}

// ProcessEvent feeds one raw event through the correlator. It returns
// the event to emit downstream: either ev unchanged, a synthesized
// Move event replacing a matched remove/create or rename pair, or nil
// only for a RenameFrom held back awaiting its RenameTo half. Remove
// and Create events are always emitted, queued or not, per spec.
func (d *Detector) ProcessEvent(ev event.Event) *event.Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	d.pending.expireAll(now, d.cfg.Timeout)

	switch ev.Kind {
	case event.Remove:
		return d.handleRemove(ev, now)
	case event.Create:
		return d.handleCreate(ev, now)
	case event.RenameFrom:
		return d.handleRenameFrom(ev, now)
	case event.RenameTo:
		return d.handleRenameTo(ev, now)
	default:
		return &ev
	}
}

func (d *Detector) toPending(ev event.Event, now time.Time) *PendingEvent {
	p := &PendingEvent{Event: ev, ArrivedAt: now, ContentHash: ev.ContentHash}
	if ev.PlatformID != nil {
		if isWindowsPlatform {
			p.WindowsID, p.HasWindowsID = *ev.PlatformID, true
		} else {
			p.Inode, p.HasInode = *ev.PlatformID, true
		}
	}
	if md, ok := d.meta.get(ev.Path); ok {
		if !p.HasInode && md.HasInode {
			p.Inode, p.HasInode = md.Inode, true
		}
		if p.ContentHash == "" {
			p.ContentHash = md.ContentHash
		}
	}
	return p
}

func (d *Detector) handleRemove(ev event.Event, now time.Time) *event.Event {
	p := d.toPending(ev, now)
	if best := d.cfg.bestMatch(d.pending.creates, p, now); best != nil {
		d.pending.creates.remove(best.pending)
		return d.synthesizeMove(p, best, now)
	}
	if d.pending.removes.count() >= d.cfg.MaxPendingEvents {
		logrus.WithField("path", ev.Path).Warn("movedetect: remove queue full, dropping newest arrival")
		return &ev
	}
	d.pending.removes.insert(p)
	return &ev
}

func (d *Detector) handleCreate(ev event.Event, now time.Time) *event.Event {
	p := d.toPending(ev, now)
	if ev.Size != nil {
		d.meta.put(ev.Path, pathMetadata{Size: ev.Size, ContentHash: p.ContentHash, Inode: p.Inode, HasInode: p.HasInode})
	}
	if best := d.cfg.bestMatch(d.pending.removes, p, now); best != nil {
		d.pending.removes.remove(best.pending)
		return d.synthesizeMove(best.pending, &candidate{pending: p, confidence: best.confidence, method: best.method}, now)
	}
	if d.pending.creates.count() >= d.cfg.MaxPendingEvents {
		logrus.WithField("path", ev.Path).Warn("movedetect: create queue full, dropping newest arrival")
		return &ev
	}
	d.pending.creates.insert(p)
	return &ev
}

// handleRenameFrom and handleRenameTo implement the platform rename
// pair path: most watchers deliver these back-to-back for the same
// logical operation, so a single pending slot (rather than the
// bucketed stores) is enough to bridge the two halves.
func (d *Detector) handleRenameFrom(ev event.Event, now time.Time) *event.Event {
	d.pending.renameFrom = &ev
	d.pending.renameFromAt = now
	d.pending.hasRenameFrom = true
	return nil
}

func (d *Detector) handleRenameTo(ev event.Event, now time.Time) *event.Event {
	if !d.pending.hasRenameFrom {
		// No pending rename-from half: treat this as an ordinary create,
		// which still checks it against pending removes.
		return d.handleCreate(ev, now)
	}
	from := *d.pending.renameFrom
	d.pending.hasRenameFrom = false
	d.pending.renameFrom = nil

	moved := event.NewEvent(event.Move, ev.Path, ev.Timestamp, ev.ExpiresAt.Sub(ev.Timestamp))
	moved.Size = ev.Size
	moved.PlatformID = ev.PlatformID
	moved.ContentHash = ev.ContentHash
	moved.Move = &event.MoveData{
		SourcePath:      from.Path,
		DestinationPath: ev.Path,
		Confidence:      1.0,
		Method:          event.MethodRename,
	}
	return &moved
}

func (d *Detector) synthesizeMove(removeSide *PendingEvent, createSide *candidate, now time.Time) *event.Event {
	dest := createSide.pending
	moved := event.NewEvent(event.Move, dest.Event.Path, dest.Event.Timestamp, dest.Event.ExpiresAt.Sub(dest.Event.Timestamp))
	moved.Size = dest.Event.Size
	moved.PlatformID = dest.Event.PlatformID
	moved.ContentHash = dest.Event.ContentHash
	moved.Move = &event.MoveData{
		SourcePath:      removeSide.Event.Path,
		DestinationPath: dest.Event.Path,
		Confidence:      createSide.confidence,
		Method:          createSide.method,
	}
	return &moved
}

// PendingCounts reports the current size of each bucketed store, for
// diagnostics and tests.
func (d *Detector) PendingCounts() (removes, creates int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending.removes.count(), d.pending.creates.count()
}
