// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import "testing"

func TestPresetsAllValidate(t *testing.T) {
	presets := []Config{
		ForSmallDirectories(),
		ForModerateDirectories(),
		ForLargeDirectories(),
		ForMassiveDirectories(),
		Default(),
	}
	for i, cfg := range presets {
		if err := cfg.Validate(); err != nil {
			t.Fatalf("preset %d: unexpected error: %v", i, err)
		}
	}
}

func TestWithPathOverridesOnlyDatabasePath(t *testing.T) {
	cfg := WithPath("/tmp/custom.db")
	if cfg.DatabasePath != "/tmp/custom.db" {
		t.Fatalf("got %q", cfg.DatabasePath)
	}
	if cfg.MemoryBufferSize != ForModerateDirectories().MemoryBufferSize {
		t.Fatal("expected moderate preset to back WithPath")
	}
}

func TestValidateRejectsZeroMemoryBufferSize(t *testing.T) {
	cfg := Default()
	cfg.MemoryBufferSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidateRejectsWriteBatchLargerThanBuffer(t *testing.T) {
	cfg := Default()
	cfg.WriteBatchSize = cfg.MemoryBufferSize + 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidateRejectsNonPositiveFlushInterval(t *testing.T) {
	cfg := Default()
	cfg.FlushInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidateRejectsNonPositiveRetention(t *testing.T) {
	cfg := Default()
	cfg.EventRetention = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error")
	}
}
