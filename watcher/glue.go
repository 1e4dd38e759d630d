// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/syncthing/fswatchstore/event"
	"github.com/syncthing/fswatchstore/fscache"
	"github.com/syncthing/fswatchstore/movedetect"
	"github.com/syncthing/fswatchstore/store"
)

// Glue binds a RawSource to the move detector, event log and filesystem
// cache. One Glue serves one watched root.
type Glue struct {
	cfg      Config
	src      RawSource
	detector *movedetect.Detector
	st       *store.Store
	cache    *fscache.Cache

	events  chan event.Event
	stop    chan struct{}
	drained chan struct{}
	once    sync.Once
}

// Handle is returned to callers of Start: Stop() requests a drain and
// close of the event channel.
type Handle struct {
	g *Glue
}

// Stop sends a one-shot stop signal; the processing loop finishes the
// event it is handling, drains the source's buffered events, then
// closes the channel returned by Start.
func (h *Handle) Stop() {
	h.g.once.Do(func() { close(h.g.stop) })
	<-h.g.drained
}

// Start validates cfg.Path, creates the OS watcher, wires it to st and
// cache, and returns a handle plus the channel of emitted events.
func Start(cfg Config, st *store.Store, cache *fscache.Cache) (*Handle, <-chan event.Event, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, nil, fmt.Errorf("watcher: path does not exist: %w", err)
	}

	src, err := NewFsnotifySource()
	if err != nil {
		return nil, nil, err
	}
	if err := addRecursive(src, cfg.Path, cfg.Recursive); err != nil {
		src.Close()
		return nil, nil, err
	}

	g := &Glue{
		cfg:      cfg,
		src:      src,
		detector: movedetect.New(cfg.MoveDetectorConfig),
		st:       st,
		cache:    cache,
		events:   make(chan event.Event, cfg.EventChannelSize),
		stop:     make(chan struct{}),
		drained:  make(chan struct{}),
	}
	go g.run()
	return &Handle{g: g}, g.events, nil
}

func addRecursive(src RawSource, root string, recursive bool) error {
	if !recursive {
		return src.Add(root)
	}
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return src.Add(p)
		}
		return nil
	})
}

func (g *Glue) run() {
	defer close(g.drained)
	defer close(g.events)
	defer g.src.Close()

	for {
		select {
		case <-g.stop:
			g.drain()
			return
		case raw, ok := <-g.src.Events():
			if !ok {
				return
			}
			g.handleRaw(raw)
		case err, ok := <-g.src.Errors():
			if ok {
				logrus.WithError(err).Warn("watcher: raw source reported an error")
			}
		}
	}
}

// drain consumes whatever is already buffered on the source's event
// channel before the processing loop exits, per the stop handshake.
func (g *Glue) drain() {
	for {
		select {
		case raw, ok := <-g.src.Events():
			if !ok {
				return
			}
			g.handleRaw(raw)
		default:
			return
		}
	}
}

func (g *Glue) handleRaw(raw RawEvent) {
	kind := synthesizeKind(raw.Op)
	ts := time.Now()

	info, statErr := os.Lstat(raw.Path)
	isDir := false
	var size *int64
	if statErr == nil {
		if info.IsDir() {
			isDir = true
		} else {
			s := info.Size()
			size = &s
		}
	} else if kind == event.Remove {
		switch g.detector.InferPathKind(raw.Path) {
		case movedetect.PathKindDirectory:
			isDir = true
		case movedetect.PathKindFile:
			isDir = false
		}
	}

	ev := event.NewEvent(kind, raw.Path, ts, g.cfg.StoreConfig.EventRetention)
	ev.IsDirectory = isDir
	ev.Size = size

	out := g.detector.ProcessEvent(ev)
	if out == nil {
		return
	}

	persisted, err := g.st.StoreEvent(*out)
	if err != nil {
		logrus.WithError(err).WithField("path", out.Path).Error("watcher: failed to persist event")
		return
	}

	if err := g.applyToCache(persisted); err != nil {
		logrus.WithError(err).WithField("path", persisted.Path).Warn("watcher: failed to apply event to filesystem cache")
	}

	select {
	case g.events <- persisted:
	case <-g.stop:
	}
}

// applyToCache implements the synchronizer: store a node for
// Create/Write, remove for Remove, rename for a synthesized Move.
func (g *Glue) applyToCache(ev event.Event) error {
	switch ev.Kind {
	case event.Create, event.Write:
		node := nodeFromEvent(ev)
		return g.cache.StoreFilesystemNode(g.cfg.WatchID, node, ev.Kind)
	case event.Remove:
		return g.cache.RemoveFilesystemNode(g.cfg.WatchID, ev.Path, ev.Kind)
	case event.Move:
		if ev.Move == nil {
			return nil
		}
		return g.cache.RenameFilesystemNode(g.cfg.WatchID, ev.Move.SourcePath, ev.Move.DestinationPath, ev.Kind)
	default:
		return nil
	}
}

func nodeFromEvent(ev event.Event) event.FilesystemNode {
	kind := event.NodeFile
	var fi *event.FileInfo
	if ev.IsDirectory {
		kind = event.NodeDirectory
	} else {
		fi = &event.FileInfo{}
		if ev.Size != nil {
			fi.Size = *ev.Size
		}
		fi.ContentHash = ev.ContentHash
	}
	now := ev.Timestamp
	return event.FilesystemNode{
		Path:          ev.Path,
		Kind:          kind,
		File:          fi,
		CanonicalName: filepath.Base(ev.Path),
		LastEventType: ev.Kind,
		HasLastEvent:  true,
		Metadata: event.NodeMetadata{
			ModifiedAt: now,
			CreatedAt:  now,
		},
		Cache: event.CacheInfo{
			CachedAt:     now,
			LastVerified: now,
			CacheVersion: 1,
		},
	}
}

func synthesizeKind(op RawOp) event.Kind {
	switch {
	case op&RawRename != 0:
		return event.Rename
	case op&RawCreate != 0:
		return event.Create
	case op&RawRemove != 0:
		return event.Remove
	case op&RawWrite != 0:
		return event.Write
	case op&RawChmod != 0:
		return event.Chmod
	default:
		return event.Other
	}
}
