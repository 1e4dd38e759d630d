// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package kv

import (
	"bytes"
	"encoding/gob"
)

// Encode produces the stable binary format record values are stored in.
// Every record type (Event, Metadata, FilesystemNode, Watch,
// SharedNodeInfo) is registered with encoding/gob at package init in the
// event package.
func Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, NewError(Serialization, "encode", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode into v, which must be a pointer.
func Decode(b []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(v); err != nil {
		return NewError(Deserialization, "decode", err)
	}
	return nil
}
