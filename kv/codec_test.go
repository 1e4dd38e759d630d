// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package kv

import "testing"

type sampleRecord struct {
	Name  string
	Count int
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := sampleRecord{Name: "a", Count: 3}
	raw, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var out sampleRecord
	if err := Decode(raw, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out != in {
		t.Fatalf("got %+v, want %+v", out, in)
	}
}

func TestDecodeGarbageClassifiedAsDeserialization(t *testing.T) {
	var out sampleRecord
	err := Decode([]byte("not gob"), &out)
	if err == nil {
		t.Fatal("expected error decoding garbage")
	}
	kerr, ok := err.(*Error)
	if !ok || kerr.Kind != Deserialization {
		t.Fatalf("expected Deserialization, got %v", err)
	}
}
