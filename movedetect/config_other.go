// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build !unix

package movedetect

// platformDefaults returns (threshold, inode, size, name, time, content)
// for windows and any other platform: a lower confidence bar and
// name/time-dominant weighting, since the windows file id path carries
// the same shape as inode matching but arrives less reliably.
func platformDefaults() (threshold, inode, size, name, timeW, content float32) {
	return 0.5, 0.25, 0.25, 0.2, 0.2, 0.1
}

// isWindowsPlatform is true here: PlatformID carries a file id, not an
// inode.
const isWindowsPlatform = true
