// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package kv

import (
	"errors"
	"testing"
)

func TestErrorClassificationFlags(t *testing.T) {
	cases := []struct {
		kind        Kind
		retryable   bool
		corruption  bool
		resourceLim bool
	}{
		{TransactionError, true, false, false},
		{Timeout, true, false, false},
		{CorruptionError, false, true, false},
		{ReadOnlyError, false, false, true},
		{SizeLimitExceeded, false, false, true},
		{KeyNotFound, false, false, false},
	}
	for _, c := range cases {
		e := NewError(c.kind, "op", nil)
		if e.IsRetryable() != c.retryable {
			t.Errorf("%v: IsRetryable() = %v, want %v", c.kind, e.IsRetryable(), c.retryable)
		}
		if e.IsCorruption() != c.corruption {
			t.Errorf("%v: IsCorruption() = %v, want %v", c.kind, e.IsCorruption(), c.corruption)
		}
		if e.IsResourceLimit() != c.resourceLim {
			t.Errorf("%v: IsResourceLimit() = %v, want %v", c.kind, e.IsResourceLimit(), c.resourceLim)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	e := NewError(TransactionError, "commit", inner)
	if !errors.Is(e, inner) {
		t.Fatal("expected errors.Is to find the wrapped error")
	}
}

func TestKindString(t *testing.T) {
	if KeyNotFound.String() != "key_not_found" {
		t.Fatalf("got %q", KeyNotFound.String())
	}
}
