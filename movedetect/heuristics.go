// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package movedetect

import (
	"path"
	"strings"
)

// fileExtensions lists suffixes treated as strong evidence of a regular
// file when nothing else is known about a removed path.
var fileExtensions = map[string]bool{
	".txt": true, ".md": true, ".go": true, ".rs": true, ".json": true,
	".yaml": true, ".yml": true, ".toml": true, ".log": true, ".db": true,
	".png": true, ".jpg": true, ".jpeg": true, ".pdf": true, ".zip": true,
	".tar": true, ".gz": true, ".exe": true, ".bin": true, ".so": true,
	".dll": true, ".csv": true,
}

// PathKind is the inferred node kind for a path that no longer exists.
type PathKind int

const (
	PathKindUnknown PathKind = iota
	PathKindFile
	PathKindDirectory
)

// InferPathKind implements the path-type inference heuristic for a
// removed path: children present in the pending creates or the metadata
// cache imply a directory, a cached size implies a file, otherwise an
// extension match implies a file, and anything else is unknown.
func (d *Detector) InferPathKind(removedPath string) PathKind {
	d.mu.Lock()
	defer d.mu.Unlock()

	prefix := removedPath
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	hasChild := func(p string) bool { return strings.HasPrefix(p, prefix) }

	for _, bucket := range d.pending.creates.bySize {
		for _, p := range bucket {
			if hasChild(p.Event.Path) {
				return PathKindDirectory
			}
		}
	}
	for _, p := range d.pending.creates.noSize {
		if hasChild(p.Event.Path) {
			return PathKindDirectory
		}
	}
	for _, p := range d.meta.cache.Keys() {
		if hasChild(p) {
			return PathKindDirectory
		}
	}

	if md, ok := d.meta.get(removedPath); ok {
		if md.Size != nil {
			return PathKindFile
		}
	}

	if fileExtensions[strings.ToLower(path.Ext(removedPath))] {
		return PathKindFile
	}

	return PathKindUnknown
}
