// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package movedetect

import (
	"path/filepath"
	"time"

	"github.com/agext/levenshtein"

	"github.com/syncthing/fswatchstore/event"
)

// candidate pairs a pending event with the confidence score computed
// against the event driving the current match attempt.
type candidate struct {
	pending    *PendingEvent
	confidence float32
	method     event.DetectionMethod
}

// score computes the weighted sum of all five confidence sub-scores
// between a and b, clamped to [0,1], and separately determines the
// detection method that would be reported if this pair is chosen.
// Confidence is always the full weighted sum regardless of which
// signal matched; method selection never feeds back into the number.
func (c *Config) score(a, b *PendingEvent, now time.Time) (float32, event.DetectionMethod) {
	confidence := c.WeightSizeMatch*sizeMatchScore(a, b) +
		c.WeightTimeFactor*timeDecay(elapsedBetween(a, b), c.Timeout) +
		c.WeightInodeMatch*identityMatchScore(a, b) +
		c.WeightContentHash*contentHashMatchScore(a, b) +
		c.WeightNameSimilarity*nameSimilarity(filepath.Base(a.Event.Path), filepath.Base(b.Event.Path))

	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return confidence, determineDetectionMethod(a, b)
}

func elapsedBetween(a, b *PendingEvent) time.Duration {
	elapsed := b.ArrivedAt.Sub(a.ArrivedAt)
	if elapsed < 0 {
		elapsed = -elapsed
	}
	return elapsed
}

// sizeMatchScore follows the original's four-way size comparison: an
// exact match scores 1.0, both sides missing a size (directories, or
// metadata unavailable) scores 0.8, one side missing scores 0.6, and
// differing sizes score 0.0.
func sizeMatchScore(a, b *PendingEvent) float32 {
	switch {
	case a.Event.Size != nil && b.Event.Size != nil:
		if *a.Event.Size == *b.Event.Size {
			return 1.0
		}
		return 0.0
	case a.Event.Size == nil && b.Event.Size == nil:
		return 0.8
	default:
		return 0.6
	}
}

// identityMatchScore compares whichever strong identity field the
// platform populates (inode or windows id); it contributes 0 when
// neither side carries the same kind of identity.
func identityMatchScore(a, b *PendingEvent) float32 {
	if a.HasInode && b.HasInode {
		if a.Inode == b.Inode {
			return 1.0
		}
		return 0.0
	}
	if a.HasWindowsID && b.HasWindowsID {
		if a.WindowsID == b.WindowsID {
			return 1.0
		}
		return 0.0
	}
	return 0.0
}

// contentHashMatchScore mirrors the original: equal hashes score 1.0,
// both sides unhashable (directories, or over the size cap) score 0.5,
// and anything else (including differing hashes) scores 0.0.
func contentHashMatchScore(a, b *PendingEvent) float32 {
	switch {
	case a.ContentHash != "" && b.ContentHash != "":
		if a.ContentHash == b.ContentHash {
			return 1.0
		}
		return 0.0
	case a.ContentHash == "" && b.ContentHash == "":
		return 0.5
	default:
		return 0.0
	}
}

// determineDetectionMethod picks the reported method by the same
// identity-first priority the original applies, independent of the
// confidence number: inode, then windows id, then content hash, then
// size, falling back to the fingerprint blend.
func determineDetectionMethod(a, b *PendingEvent) event.DetectionMethod {
	if a.HasInode && b.HasInode && a.Inode == b.Inode {
		return event.MethodInode
	}
	if a.HasWindowsID && b.HasWindowsID && a.WindowsID == b.WindowsID {
		return event.MethodWindowsID
	}
	if a.ContentHash != "" && b.ContentHash != "" && a.ContentHash == b.ContentHash {
		return event.MethodContentHash
	}
	if a.Event.Size != nil && b.Event.Size != nil && *a.Event.Size == *b.Event.Size {
		return event.MethodSizeAndTime
	}
	return event.MethodHeuristics
}

// timeDecay linearly decays from 1.0 at zero elapsed time to 0.0 at
// timeout and beyond.
func timeDecay(elapsed, timeout time.Duration) float32 {
	if timeout <= 0 {
		return 0
	}
	ratio := float32(elapsed) / float32(timeout)
	if ratio > 1 {
		return 0
	}
	return 1 - ratio
}

// nameSimilarity returns a 0..1 score from normalized Levenshtein
// distance between two base names, case-sensitive.
func nameSimilarity(a, b string) float32 {
	if a == b {
		return 1.0
	}
	return float32(levenshtein.Match(a, b, nil))
}

// bestMatch scans store for the highest-confidence candidate against
// target, returning nil when nothing clears the configured threshold.
func (c *Config) bestMatch(store *directionStore, target *PendingEvent, now time.Time) *candidate {
	var best *candidate

	consider := func(p *PendingEvent) {
		if p == target {
			return
		}
		confidence, method := c.score(target, p, now)
		if confidence < c.ConfidenceThreshold {
			return
		}
		if best == nil || confidence > best.confidence {
			best = &candidate{pending: p, confidence: confidence, method: method}
		}
	}

	if target.HasInode {
		if p, ok := store.byInode[target.Inode]; ok {
			consider(p)
		}
	}
	if target.HasWindowsID {
		if p, ok := store.byWindowsID[target.WindowsID]; ok {
			consider(p)
		}
	}
	if target.Event.Size != nil {
		for _, p := range store.bySize[*target.Event.Size] {
			consider(p)
		}
	}
	for _, p := range store.noSize {
		consider(p)
	}
	// Size-bucket misses still get a chance against the opposite bucket
	// set when identity fields and size both disagree but name/time
	// carry the match; scan the rest of the table as a fallback when
	// nothing has cleared threshold yet.
	if best == nil {
		for _, bucket := range store.bySize {
			for _, p := range bucket {
				consider(p)
			}
		}
	}

	return best
}
