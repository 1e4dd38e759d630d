// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package movedetect implements the in-memory correlator that turns raw
// remove/create/rename-from/rename-to events into move events via
// inode/platform-id/content-hash/size+name+time fingerprint matching.
package movedetect

import (
	"fmt"
	"time"
)

// Config tunes the correlator. Weights must sum to approximately 1.0.
type Config struct {
	Timeout                time.Duration
	ConfidenceThreshold    float32
	WeightSizeMatch        float32
	WeightTimeFactor       float32
	WeightInodeMatch       float32
	WeightContentHash      float32
	WeightNameSimilarity   float32
	MaxPendingEvents       int
	ContentHashMaxFileSize int64
}

// DefaultConfig returns the platform-appropriate defaults: unix favors
// inode-dominant weighting at a higher confidence bar, other platforms
// fall back to name/time-dominant weighting at a lower bar since no
// reliable platform id is available to them here.
func DefaultConfig() Config {
	threshold, inode, size, name, timeW, content := platformDefaults()
	return Config{
		Timeout:                time.Second,
		ConfidenceThreshold:    threshold,
		WeightSizeMatch:        size,
		WeightTimeFactor:       timeW,
		WeightInodeMatch:       inode,
		WeightContentHash:      content,
		WeightNameSimilarity:   name,
		MaxPendingEvents:       1000,
		ContentHashMaxFileSize: 1024 * 1024,
	}
}

// WithTimeout returns DefaultConfig with a custom timeout.
func WithTimeout(timeoutMs int64) Config {
	c := DefaultConfig()
	c.Timeout = time.Duration(timeoutMs) * time.Millisecond
	return c
}

// Validate returns an error describing the first violated rule, checked in
// the same order the original validator applies them: threshold range,
// then max_pending_events, then the weight sum.
func (c Config) Validate() error {
	if c.ConfidenceThreshold < 0.0 || c.ConfidenceThreshold > 1.0 {
		return fmt.Errorf("movedetect: confidence_threshold must be between 0.0 and 1.0")
	}
	if c.MaxPendingEvents <= 0 {
		return fmt.Errorf("movedetect: max_pending_events must be greater than 0")
	}
	total := c.WeightSizeMatch + c.WeightTimeFactor + c.WeightInodeMatch + c.WeightContentHash + c.WeightNameSimilarity
	if diff := total - 1.0; diff < -0.1 || diff > 0.1 {
		return fmt.Errorf("movedetect: weights should sum to approximately 1.0, got %.2f", total)
	}
	return nil
}
