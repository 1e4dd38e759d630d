// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build unix

package movedetect

// platformDefaults returns (threshold, inode, size, name, time, content)
// for unix, which has a reliable inode to key on.
func platformDefaults() (threshold, inode, size, name, timeW, content float32) {
	return 0.7, 0.35, 0.2, 0.1, 0.15, 0.2
}

// isWindowsPlatform is false here: PlatformID carries an inode.
const isWindowsPlatform = false
