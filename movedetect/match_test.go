// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package movedetect

import (
	"math"
	"testing"
	"time"

	"github.com/syncthing/fswatchstore/event"
)

func TestSizeMatchScoreCases(t *testing.T) {
	sz := func(n int64) *int64 { return &n }
	cases := []struct {
		name string
		a, b *int64
		want float32
	}{
		{"equal", sz(10), sz(10), 1.0},
		{"different", sz(10), sz(20), 0.0},
		{"both missing", nil, nil, 0.8},
		{"one missing left", nil, sz(10), 0.6},
		{"one missing right", sz(10), nil, 0.6},
	}
	for _, c := range cases {
		a := &PendingEvent{Event: event.Event{Size: c.a}}
		b := &PendingEvent{Event: event.Event{Size: c.b}}
		if got := sizeMatchScore(a, b); got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestContentHashMatchScoreCases(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want float32
	}{
		{"equal", "abc", "abc", 1.0},
		{"different", "abc", "def", 0.0},
		{"both empty", "", "", 0.5},
		{"one empty", "abc", "", 0.0},
	}
	for _, c := range cases {
		a := &PendingEvent{ContentHash: c.a}
		b := &PendingEvent{ContentHash: c.b}
		if got := contentHashMatchScore(a, b); got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestIdentityMatchScoreCases(t *testing.T) {
	a := &PendingEvent{Inode: 1, HasInode: true}
	b := &PendingEvent{Inode: 1, HasInode: true}
	if got := identityMatchScore(a, b); got != 1.0 {
		t.Fatalf("matching inode: got %v, want 1.0", got)
	}
	b.Inode = 2
	if got := identityMatchScore(a, b); got != 0.0 {
		t.Fatalf("mismatched inode: got %v, want 0.0", got)
	}
	c := &PendingEvent{WindowsID: 5, HasWindowsID: true}
	d := &PendingEvent{WindowsID: 5, HasWindowsID: true}
	if got := identityMatchScore(c, d); got != 1.0 {
		t.Fatalf("matching windows id: got %v, want 1.0", got)
	}
	if got := identityMatchScore(a, c); got != 0.0 {
		t.Fatalf("no shared identity kind: got %v, want 0.0", got)
	}
}

func TestDetermineDetectionMethodPriority(t *testing.T) {
	size := int64(10)
	inodeMatch := &PendingEvent{Inode: 1, HasInode: true, Event: event.Event{Size: &size}}
	inodeMatch2 := &PendingEvent{Inode: 1, HasInode: true, Event: event.Event{Size: &size}}
	if got := determineDetectionMethod(inodeMatch, inodeMatch2); got != event.MethodInode {
		t.Fatalf("got %v, want MethodInode", got)
	}

	winMatch := &PendingEvent{WindowsID: 9, HasWindowsID: true}
	winMatch2 := &PendingEvent{WindowsID: 9, HasWindowsID: true}
	if got := determineDetectionMethod(winMatch, winMatch2); got != event.MethodWindowsID {
		t.Fatalf("got %v, want MethodWindowsID", got)
	}

	hashMatch := &PendingEvent{ContentHash: "h1"}
	hashMatch2 := &PendingEvent{ContentHash: "h1"}
	if got := determineDetectionMethod(hashMatch, hashMatch2); got != event.MethodContentHash {
		t.Fatalf("got %v, want MethodContentHash", got)
	}

	sizeOnly := &PendingEvent{Event: event.Event{Size: &size}}
	sizeOnly2 := &PendingEvent{Event: event.Event{Size: &size}}
	if got := determineDetectionMethod(sizeOnly, sizeOnly2); got != event.MethodSizeAndTime {
		t.Fatalf("got %v, want MethodSizeAndTime", got)
	}

	nothing := &PendingEvent{}
	nothing2 := &PendingEvent{}
	if got := determineDetectionMethod(nothing, nothing2); got != event.MethodHeuristics {
		t.Fatalf("got %v, want MethodHeuristics", got)
	}
}

func TestScoreIsFullWeightedSumNotShortCircuited(t *testing.T) {
	cfg := &Config{
		Timeout:              100 * time.Millisecond,
		WeightSizeMatch:      0.3,
		WeightTimeFactor:     0.2,
		WeightInodeMatch:     0.2,
		WeightContentHash:    0.2,
		WeightNameSimilarity: 0.1,
	}

	now := time.Now()
	size := int64(100)
	a := &PendingEvent{
		Event:     event.Event{Path: "/a/old.txt", Size: &size},
		Inode:     1,
		HasInode:  true,
		ArrivedAt: now,
	}
	b := &PendingEvent{
		Event:     event.Event{Path: "/a/old.txt", Size: &size},
		Inode:     1,
		HasInode:  true,
		ArrivedAt: now,
	}

	// Every sub-score for this identical pair is 1.0 except content
	// hash, which is the "both missing" 0.5 case, so confidence must be
	// the full weighted sum, not the 1.0 an inode-match short-circuit
	// would have returned.
	want := float32(0.3*1.0 + 0.2*1.0 + 0.2*1.0 + 0.2*0.5 + 0.1*1.0)
	got, method := cfg.score(a, b, now)
	if math.Abs(float64(got-want)) > 1e-6 {
		t.Fatalf("got confidence %v, want %v", got, want)
	}
	if method != event.MethodInode {
		t.Fatalf("got method %v, want MethodInode", method)
	}
}

func TestScoreClampsToOne(t *testing.T) {
	cfg := &Config{
		Timeout:              time.Second,
		WeightSizeMatch:      1.0,
		WeightTimeFactor:     1.0,
		WeightInodeMatch:     1.0,
		WeightContentHash:    1.0,
		WeightNameSimilarity: 1.0,
	}
	now := time.Now()
	size := int64(10)
	p := &PendingEvent{
		Event:       event.Event{Path: "/a/x.txt", Size: &size},
		Inode:       1,
		HasInode:    true,
		ContentHash: "h",
		ArrivedAt:   now,
	}
	q := &PendingEvent{
		Event:       event.Event{Path: "/a/x.txt", Size: &size},
		Inode:       1,
		HasInode:    true,
		ContentHash: "h",
		ArrivedAt:   now,
	}
	got, _ := cfg.score(p, q, now)
	if got != 1.0 {
		t.Fatalf("got %v, want 1.0", got)
	}
}

func TestNameSimilarityIdentical(t *testing.T) {
	if got := nameSimilarity("report.txt", "report.txt"); got != 1.0 {
		t.Fatalf("got %v, want 1.0", got)
	}
}

func TestNameSimilarityDissimilar(t *testing.T) {
	got := nameSimilarity("report.txt", "zzz.bin")
	if got >= 0.5 {
		t.Fatalf("expected low similarity for dissimilar names, got %v", got)
	}
}

func TestTimeDecayBounds(t *testing.T) {
	if got := timeDecay(0, 0); got != 0 {
		t.Fatalf("expected 0 for zero timeout, got %v", got)
	}
	if got := timeDecay(-1, 100); got < 0.99 {
		t.Fatalf("expected ~1.0 for zero elapsed, got %v", got)
	}
}
